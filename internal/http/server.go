// Package http serves the companiond REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/chat"
	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/intervention"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
	"github.com/fyrsmithlabs/companiond/internal/personalization"
)

// DataStore is the subset of the store the handlers use directly.
type DataStore interface {
	Ping(ctx context.Context) error
	MoodsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Mood, error)
	EraseUserData(ctx context.Context, userID string) (map[string]int64, error)
}

// PersonalizationService reads and edits personalization records.
type PersonalizationService interface {
	Effective(ctx context.Context, userID string) (*personalization.Effective, error)
	SetOverrides(ctx context.Context, userID string, overrides domain.UserOverrides) (*domain.Personalization, error)
	ClearOverrides(ctx context.Context, userID string) (*domain.Personalization, error)
}

// Updater runs a personalization analysis.
type Updater interface {
	Update(ctx context.Context, userID string, force bool) (*personalization.UpdateOutcome, error)
}

// PatternAnalyzer extracts patterns for a lookback window.
type PatternAnalyzer interface {
	Analyze(ctx context.Context, userID string, lookbackDays int) (*patterns.Result, error)
}

// Tracker drives intervention progress.
type Tracker interface {
	Start(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error)
	CompleteStep(ctx context.Context, userID, interventionID string, step int) (*domain.InterventionProgress, error)
	Complete(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error)
	Pause(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error)
	Resume(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error)
	Abandon(ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error)
	ProcessEffectivenessRating(ctx context.Context, userID, interventionID string, rating int) (intervention.RatingResult, error)
	MeasureOutcome(ctx context.Context, userID, interventionID string) (*intervention.Outcome, error)
}

// Responder writes chat replies.
type Responder interface {
	Respond(ctx context.Context, userID, message string, recent []string) (*chat.Reply, error)
}

// Services are the collaborators behind the API.
type Services struct {
	Store           DataStore
	Personalization PersonalizationService
	Updater         Updater
	Patterns        PatternAnalyzer
	Detector        *intervention.Detector
	Gate            chat.Gate
	Recommender     chat.Recommender
	Tracker         Tracker
	Chat            Responder
}

func (s Services) validate() error {
	switch {
	case s.Store == nil:
		return errors.New("store cannot be nil")
	case s.Personalization == nil:
		return errors.New("personalization service cannot be nil")
	case s.Updater == nil:
		return errors.New("updater cannot be nil")
	case s.Patterns == nil:
		return errors.New("pattern analyzer cannot be nil")
	case s.Gate == nil:
		return errors.New("gate cannot be nil")
	case s.Recommender == nil:
		return errors.New("recommender cannot be nil")
	case s.Tracker == nil:
		return errors.New("tracker cannot be nil")
	case s.Chat == nil:
		return errors.New("chat responder cannot be nil")
	}
	return nil
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Option configures a Server.
type Option func(*Server)

// WithTracer records a span per request.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithMetrics records OpenTelemetry request metrics.
func WithMetrics(m *HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server provides the HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	svc     Services
	logger  *logging.Logger
	config  *Config
	tracer  trace.Tracer
	metrics *HTTPMetrics
	now     func() time.Time
}

// NewServer creates a new HTTP server.
func NewServer(svc Services, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if err := svc.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Port: 8080}
	}
	if svc.Detector == nil {
		svc.Detector = intervention.NewDetector(nil)
	}

	s := &Server{
		svc:    svc,
		logger: logger,
		config: cfg,
		tracer: noop.NewTracerProvider().Tracer(""),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestContext)
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}

	s.echo = e
	s.registerRoutes()
	return s, nil
}

// requestContext opens the request span, tags the context with the request
// and user ids, and logs the request once it completes.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)

		ctx, span := s.tracer.Start(req.Context(), req.Method+" "+c.Path(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		ctx = logging.WithRequestID(ctx, requestID)
		if userID := c.Param("userID"); userID != "" {
			ctx = logging.WithUserID(ctx, userID)
		}
		ctx = logging.WithLogger(ctx, s.logger)
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		span.SetAttributes(
			attribute.String("http.route", c.Path()),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		s.logger.Info(ctx, "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	u := s.echo.Group("/api/v1/users/:userID")

	u.GET("/personalization", s.handleGetPersonalization)
	u.PUT("/personalization/overrides", s.handleSetOverrides)
	u.DELETE("/personalization/overrides", s.handleClearOverrides)
	u.POST("/personalization/analyze", s.handleAnalyze)
	u.GET("/patterns", s.handlePatterns)

	u.POST("/interventions/detect", s.handleDetect)
	iv := u.Group("/interventions/:interventionID")
	iv.POST("/start", s.handleStart)
	iv.POST("/steps/:step/complete", s.handleCompleteStep)
	iv.POST("/complete", s.transition(Tracker.Complete))
	iv.POST("/pause", s.transition(Tracker.Pause))
	iv.POST("/resume", s.transition(Tracker.Resume))
	iv.POST("/abandon", s.transition(Tracker.Abandon))
	iv.POST("/rating", s.handleRating)
	iv.GET("/outcome", s.handleOutcome)

	u.POST("/chat/respond", s.handleChat)
	u.DELETE("/data", s.handleErase)
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
