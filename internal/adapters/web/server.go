package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"marketpulse/internal/adapters/web/handlers"
	"marketpulse/internal/application/usecases"
	"marketpulse/internal/metrics"
	"marketpulse/internal/scheduler"
)

// Server represents the HTTP server
type Server struct {
	port     int
	queries  *usecases.SnapshotQueryUseCase
	manager  *scheduler.Manager
	recorder *metrics.Recorder
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a new HTTP server
func NewServer(port int, queries *usecases.SnapshotQueryUseCase, manager *scheduler.Manager, recorder *metrics.Recorder, logger *zap.Logger) *Server {
	return &Server{
		port:     port,
		queries:  queries,
		manager:  manager,
		recorder: recorder,
		logger:   logger,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	router := mux.NewRouter()

	healthHandler := handlers.NewHealthHandler(s.recorder, s.logger)
	statsHandler := handlers.NewStatsHandler(s.recorder, s.logger)
	triggerHandler := handlers.NewTriggerHandler(s.manager, s.logger)
	snapshotsHandler := handlers.NewSnapshotsHandler(s.queries, s.logger)

	router.HandleFunc("/health", healthHandler.Handle).Methods(http.MethodGet)
	router.HandleFunc("/stats", statsHandler.Handle).Methods(http.MethodGet)
	router.HandleFunc("/trigger/{source}", triggerHandler.Handle).Methods(http.MethodPost)
	router.HandleFunc("/snapshots/latest/{source}", snapshotsHandler.HandleLatestBySource).Methods(http.MethodGet)
	router.HandleFunc("/snapshots/latest/{source}/{entity}", snapshotsHandler.HandleLatest).Methods(http.MethodGet)
	router.HandleFunc("/snapshots/history/{source}/{entity}", snapshotsHandler.HandleHistory).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.recorder.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	router.Use(s.logRequests)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting HTTP server", zap.Int("port", s.port))
	return s.server.ListenAndServe()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
