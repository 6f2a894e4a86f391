package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webtraffic/internal/config"
	"webtraffic/internal/dataset"
	"webtraffic/internal/events"
	"webtraffic/internal/forecast"
)

// Server represents the HTTP server
type Server struct {
	cfg       *config.Config
	data      *dataset.Dataset
	engine    *forecast.Engine
	publisher events.Publisher
	router    *mux.Router
	srv       *http.Server
}

// NewServer wires the routes. The dataset is shared read-only by every request.
func NewServer(cfg *config.Config, data *dataset.Dataset, engine *forecast.Engine, publisher events.Publisher) *Server {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	s := &Server{
		cfg:       cfg,
		data:      data,
		engine:    engine,
		publisher: publisher,
		router:    mux.NewRouter(),
	}

	r := s.router
	r.Use(instrument)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/observations", s.handleObservations).Methods(http.MethodGet)
	r.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)

	// png routes first: {name} would also match "acf.png"
	r.HandleFunc("/charts/moving-average.png", s.handleMovingAveragePNG).Methods(http.MethodGet)
	r.HandleFunc("/charts/acf.png", s.handleCorrelogramPNG).Methods(http.MethodGet)
	r.HandleFunc("/charts/forecast.png", s.handleForecastPNG).Methods(http.MethodGet)
	r.HandleFunc("/charts/{name}", s.handleChart).Methods(http.MethodGet)

	r.HandleFunc("/forecast", s.handleForecast).Methods(http.MethodGet)
	r.HandleFunc("/forecast/runs", s.handleRuns).Methods(http.MethodGet)
	r.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s
}

// Handler returns the router wrapped with access logging.
func (s *Server) Handler() http.Handler {
	return handlers.LoggingHandler(os.Stdout, s.router)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
