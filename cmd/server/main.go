package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webtraffic/internal/config"
	"webtraffic/internal/database"
	"webtraffic/internal/dataset"
	"webtraffic/internal/events"
	"webtraffic/internal/forecast"
	"webtraffic/internal/server"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The dataset is read once here and shared read-only afterwards
	var store dataset.ObservationReader
	if cfg.Dataset.Source == config.SourceMySQL {
		db, err := database.NewDB(config.GetDatabaseDSN())
		if err != nil {
			log.Printf("Warning: failed to initialize database: %v", err)
		} else {
			defer db.Close()
			store = db
		}
	}
	data := dataset.Load(cfg, store)
	if data.Warning() != "" {
		log.Printf("Warning: %s", data.Warning())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	publisher := events.NewPublisher(ctx, config.GetRedisConfig())
	cancel()
	defer publisher.Close()

	engine := forecast.NewEngine(cfg.Forecast.Series)
	srv := server.NewServer(cfg, data, engine, publisher)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on %s", cfg.Server.Addr)
	if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Println("Server stopped")
}
