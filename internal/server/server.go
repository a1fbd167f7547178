package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"finmate/internal/config"
	"finmate/internal/domain"
	"finmate/internal/events"
	"finmate/internal/handler"
	"finmate/internal/llm"
	"finmate/internal/repository"
	"finmate/internal/scheduler"
	"finmate/internal/service"

	"github.com/gorilla/mux"
)

// Server represents the HTTP server
type Server struct {
	router    *mux.Router
	server    *http.Server
	db        *sql.DB
	publisher events.Publisher
	trigger   *scheduler.Handle
	logger    *slog.Logger
	port      string
}

// Collaborators are the language-model backed dependencies. Any nil field is
// filled from Gemini.
type Collaborators struct {
	Classifier domain.Classifier
	Narrator   domain.Narrator
	Responder  domain.ChatResponder
}

type options struct {
	collaborators Collaborators
	publisher     events.Publisher
}

type Option func(*options)

// WithCollaborators replaces the Gemini-backed collaborators.
func WithCollaborators(c Collaborators) Option {
	return func(o *options) {
		o.collaborators = c
	}
}

// WithPublisher replaces the publisher selected from configuration.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()

	db, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("Successfully connected to database")

	collaborators, err := resolveCollaborators(ctx, cfg, o.collaborators, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	publisher := o.publisher
	if publisher == nil {
		publisher, err = newPublisher(cfg, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	location := cfg.Location()

	// Initialize store (Unit of Work)
	store := repository.NewStore(db, logger)

	// Initialize services
	aggregator := service.NewAggregationService(store, location, logger)
	transactionService := service.NewTransactionService(store, collaborators.Classifier, location, logger)
	cohortService := service.NewCohortService(store, aggregator, publisher, cfg.CohortBandCount, location, logger)
	reportService := service.NewReportService(store, aggregator, collaborators.Narrator, publisher, service.ReportServiceConfig{
		Location:      location,
		CacheDegraded: cfg.ReportCacheDegraded,
	}, logger)
	chatService := service.NewChatService(store, aggregator, collaborators.Responder, location, cfg.ChatHistoryLimit, logger)

	// Initialize handlers
	transactionHandler := handler.NewTransactionHandler(transactionService, aggregator)
	summaryHandler := handler.NewSummaryHandler(aggregator)
	cohortHandler := handler.NewCohortHandler(cohortService)
	reportHandler := handler.NewReportHandler(reportService)
	chatHandler := handler.NewChatHandler(chatService)

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	router.HandleFunc("/transactions", transactionHandler.Record).Methods("POST")
	router.HandleFunc("/users/{user_id}/transactions", transactionHandler.List).Methods("GET")

	router.HandleFunc("/users/{user_id}/summary", summaryHandler.Summary).Methods("GET")
	router.HandleFunc("/users/{user_id}/cohort-average", summaryHandler.CohortAverage).Methods("GET")

	router.HandleFunc("/cohorts", cohortHandler.List).Methods("GET")
	router.HandleFunc("/cohorts/rebuild", cohortHandler.Rebuild).Methods("POST")

	router.HandleFunc("/reports", reportHandler.Create).Methods("POST")

	router.HandleFunc("/chat", chatHandler.Send).Methods("POST")
	router.HandleFunc("/users/{user_id}/chat", chatHandler.History).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	s := &Server{
		router:    router,
		db:        db,
		publisher: publisher,
		logger:    logger,
	}

	if cfg.SchedulerEnabled {
		s.trigger, err = scheduler.Start(scheduler.TriggerConfig{
			Spec:     cfg.CohortSchedule,
			Location: location,
		}, cohortService.RunScheduled, logger)
		if err != nil {
			publisher.Close()
			db.Close()
			return nil, fmt.Errorf("start cohort scheduler: %w", err)
		}
	}

	return s, nil
}

func resolveCollaborators(ctx context.Context, cfg *config.Config, c Collaborators, logger *slog.Logger) (Collaborators, error) {
	if c.Classifier != nil && c.Narrator != nil && c.Responder != nil {
		return c, nil
	}
	if !cfg.LLMEnabled() {
		return c, fmt.Errorf("GEMINI_API_KEY is required unless all collaborators are injected")
	}

	gemini, err := llm.NewGemini(ctx, cfg, logger)
	if err != nil {
		return c, err
	}
	if c.Classifier == nil {
		c.Classifier = gemini
	}
	if c.Narrator == nil {
		c.Narrator = gemini
	}
	if c.Responder == nil {
		c.Responder = gemini
	}
	return c, nil
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP_URL not set, domain events are not published")
		return events.Noop{}, nil
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp: %w", err)
	}
	return publisher, nil
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	// Report generation waits on the narrator, so writes get more room than reads.
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed to start", "error", err)
		}
	}()

	return s.port, nil
}

// Stop gracefully shuts down the server. The scheduler is stopped first so no
// rebuild starts against a closing pool.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var firstErr error
	if s.trigger != nil {
		if err := s.trigger.Stop(ctx); err != nil {
			firstErr = err
		}
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("Failed to close publisher", "error", err)
		}
	}

	if s.db != nil {
		s.db.Close()
	}
	return firstErr
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() string {
	return s.port
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// NextRebuild reports when the scheduler fires next, zero when it is disabled.
func (s *Server) NextRebuild(now time.Time) time.Time {
	if s.trigger == nil {
		return time.Time{}
	}
	return s.trigger.Next(now)
}

// StartServer starts the server with the given configuration
func StartServer(cfg *config.Config, opts ...Option) (*Server, string, error) {
	var logger *slog.Logger
	if cfg.ServerPort == "0" {
		// Test environment - use discard logger
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	server, err := NewServer(cfg, logger, opts...)
	if err != nil {
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.Stop(context.Background())
		return nil, "", err
	}

	return server, port, nil
}
