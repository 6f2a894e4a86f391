package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-redis/redis/v8"

	"webtraffic/internal/config"
	"webtraffic/internal/events"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	group := flag.String("group", "runwatch", "redis consumer group")
	name := flag.String("name", "runwatch-1", "consumer name within the group")
	flag.Parse()

	if _, err := config.Load(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	redisCfg := config.GetRedisConfig()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-quit
		log.Println("Shutting down run watcher...")
		cancel()
	}()

	consumer, err := events.NewConsumer(ctx, redisClient, redisCfg.Stream, *group, *name)
	if err != nil {
		log.Fatalf("Failed to start consumer: %v", err)
	}

	log.Printf("Watching forecast runs on %s. Press Ctrl+C to stop...", redisCfg.Stream)

	err = consumer.Run(ctx, func(e events.RunEvent) error {
		if e.Error != "" {
			log.Printf("❌ %s %s..%s h=%d %s: %s", e.ID, e.Start, e.End, e.Horizon, e.Status, e.Error)
			return nil
		}
		log.Printf("✓ %s %s..%s h=%d [%s] %dms", e.ID, e.Start, e.End, e.Horizon,
			strings.Join(e.Series, ","), e.DurationMs)
		return nil
	})
	if err != nil {
		log.Fatalf("Run watcher failed: %v", err)
	}
	log.Println("Run watcher stopped")
}
