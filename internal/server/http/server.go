// Package httpserver provides the HTTP console API for the review screening engine.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/review-screening/internal/database"
	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/screening"
)

// Engine is the screening session the console drives.
type Engine interface {
	Refresh(ctx context.Context) ([]domain.Review, error)
	Create(ctx context.Context, in domain.CreateReviewInput) (*domain.Review, error)
	Select(ctx context.Context, reviewID string) (*domain.Review, error)
	Remove(ctx context.Context, reviewID string) error
	Search(ctx context.Context, databases []domain.DatabaseID, query string) (screening.MergeResult, error)
	SetStatus(ctx context.Context, studyID string, d domain.Decision) (domain.Study, error)
	BulkDecide(ctx context.Context, studyIDs []string, d domain.Decision) (screening.BulkResult, error)
	Decide(ctx context.Context, d domain.Decision) (domain.Study, error)
	History(ctx context.Context, studyID string) ([]domain.DecisionRecord, error)
	RemoteFlow(ctx context.Context) (*domain.PrismaFlow, error)
	Export(ctx context.Context) (*screening.Export, error)

	Next() screening.CursorView
	Previous() screening.CursorView
	Cursor() screening.CursorView
	Active() *domain.Review
	Reviews() []domain.Review
	Studies() []domain.Study
	Flow() domain.PrismaFlow
	Statistics() domain.Statistics
	Snapshot() screening.Session
}

var _ Engine = (*screening.Store)(nil)

// HealthChecker reports the health of a dependency, such as the journal database.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP console API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	engine     Engine
	health     HealthChecker
	metrics    http.Handler
	metricsAt  string
	validate   *validator.Validate
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MetricsPath is where MetricsHandler is mounted; ignored when the handler is nil.
	MetricsPath    string
	MetricsHandler http.Handler
}

// NewServer creates a new HTTP server. health may be nil when no external
// dependency needs checking.
func NewServer(cfg Config, engine Engine, health HealthChecker, logger zerolog.Logger) *Server {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	s := &Server{
		engine:    engine,
		health:    health,
		metrics:   cfg.MetricsHandler,
		metricsAt: cfg.MetricsPath,
		validate:  validate,
		logger:    logger.With().Str("component", "http-server").Logger(),
	}
	if s.metricsAt == "" {
		s.metricsAt = "/metrics"
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(requestLogger(s.logger))

	if s.metrics != nil {
		r.Method(http.MethodGet, s.metricsAt, s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)
		r.Get("/healthz", s.healthHandler)
		r.Get("/readyz", s.readinessHandler)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", s.listReviews)
			r.Post("/", s.createReview)
			r.Post("/refresh", s.refreshReviews)
			r.Post("/{reviewID}/select", s.selectReview)
			r.Delete("/{reviewID}", s.deleteReview)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Post("/search", s.search)
			r.Get("/studies", s.listStudies)
			r.Post("/studies/bulk", s.bulkDecide)
			r.Patch("/studies/{studyID}", s.updateStudy)
			r.Get("/studies/{studyID}/decisions", s.studyDecisions)
			r.Get("/cursor", s.getCursor)
			r.Post("/cursor/next", s.nextStudy)
			r.Post("/cursor/previous", s.previousStudy)
			r.Post("/cursor/decide", s.decide)
			r.Get("/prisma", s.getPrismaFlow)
			r.Get("/prisma/remote", s.getRemotePrismaFlow)
			r.Get("/prisma.svg", s.getPrismaSVG)
			r.Get("/statistics", s.getStatistics)
			r.Get("/export", s.exportReview)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	health := s.health.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Journal: health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, healthResponse{
		Status:  "unhealthy",
		Journal: health.Status,
		Error:   health.Error,
	})
}

// readinessHandler reports ready once dependencies are healthy.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ready"}
	if s.health != nil {
		health := s.health.Health(r.Context())
		resp.Journal = health.Status
		if health.Status != "healthy" {
			resp.Status = "not_ready"
			resp.Error = health.Error
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	if active := s.engine.Active(); active != nil {
		resp.ActiveReviewID = active.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
