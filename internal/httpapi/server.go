// Package httpapi exposes the aggregation core over HTTP: the merged event
// view, the publish state machine, and run triggering. It is a thin client
// of the service contracts; it owns no business rules of its own.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"nightfeed.app/nightfeed/internal/db"
	"nightfeed.app/nightfeed/internal/domain"
	"nightfeed.app/nightfeed/internal/entity"
	"nightfeed.app/nightfeed/internal/globaltime"
	"nightfeed.app/nightfeed/internal/metrics"
	"nightfeed.app/nightfeed/internal/scrape"
	"nightfeed.app/nightfeed/internal/workflow"
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowOrigins    []string
}

type Server struct {
	pool     *db.Pool
	entities *entity.Service
	flow     *workflow.Service
	runner   *scrape.Runner
	logger   zerolog.Logger
	opts     Options
}

func NewServer(
	pool *db.Pool,
	entities *entity.Service,
	flow *workflow.Service,
	runner *scrape.Runner,
	logger zerolog.Logger,
	opts Options,
) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	allowOrigins := opts.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}

	return &Server{
		pool:     pool,
		entities: entities,
		flow:     flow,
		runner:   runner,
		logger:   logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AllowOrigins:    allowOrigins,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/events/:entity_uuid", s.handleEvent)
	api.POST("/events/:entity_uuid/transition", s.handleTransition)
	api.POST("/events/publish-status", s.handlePublishStatus)
	api.POST("/runs", s.handleTriggerRun)
	api.POST("/runs/force-release", s.handleForceRelease)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("nightfeed api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("nightfeed api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	var one int
	if err := s.pool.QueryRow(c.Request().Context(), "SELECT 1").Scan(&one); err != nil {
		s.logger.Error().Err(err).Msg("health database check failed")
		return internalError(c, "Database unavailable")
	}
	return success(c, map[string]any{
		"service":      "nightfeed",
		"time":         globaltime.UTC(),
		"run_underway": s.runner != nil && s.runner.Guard().Running(),
	})
}

func (s *Server) handleEvent(c echo.Context) error {
	entityUUID := strings.TrimSpace(c.Param("entity_uuid"))
	if entityUUID == "" {
		return failValidation(c, map[string]string{"entity_uuid": "must not be empty"})
	}

	view, err := s.entities.View(c.Request().Context(), entityUUID)
	if err != nil {
		var notFound domain.NotFoundError
		if errors.As(err, &notFound) {
			return failNotFound(c, notFound.Error())
		}
		s.logger.Error().Err(err).Str("entity_uuid", entityUUID).Msg("load merged view failed")
		return internalError(c, "Failed to load event")
	}
	return success(c, view)
}

type transitionRequest struct {
	Status  string         `json:"status"`
	Actor   string         `json:"actor"`
	Pending map[string]any `json:"pending,omitempty"`
}

func (s *Server) handleTransition(c echo.Context) error {
	entityUUID := strings.TrimSpace(c.Param("entity_uuid"))
	if entityUUID == "" {
		return failValidation(c, map[string]string{"entity_uuid": "must not be empty"})
	}

	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}
	to, ok := workflow.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		return failValidation(c, map[string]string{"status": "unknown status"})
	}
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		return failValidation(c, map[string]string{"actor": "must not be empty"})
	}

	err := s.flow.Transition(c.Request().Context(), entityUUID, to, actor, req.Pending)
	switch {
	case err == nil:
		return success(c, map[string]any{
			"entity_uuid": entityUUID,
			"status":      string(to),
		})
	case errors.As(err, &domain.NotFoundError{}):
		return failNotFound(c, err.Error())
	case errors.As(err, &domain.InvalidTransitionError{}):
		return fail(c, http.StatusConflict, err.Error(), nil)
	case errors.As(err, &domain.ValidationError{}):
		return fail(c, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		s.logger.Error().Err(err).Str("entity_uuid", entityUUID).Msg("transition failed")
		return internalError(c, "Failed to transition event")
	}
}

type publishStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
	Actor  string   `json:"actor"`
}

func (s *Server) handlePublishStatus(c echo.Context) error {
	var req publishStatusRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}
	if len(req.IDs) == 0 {
		return failValidation(c, map[string]string{"ids": "must not be empty"})
	}
	to, ok := workflow.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		return failValidation(c, map[string]string{"status": "unknown status"})
	}
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		return failValidation(c, map[string]string{"actor": "must not be empty"})
	}

	result := s.flow.PublishStatus(c.Request().Context(), req.IDs, to, actor)
	return success(c, result)
}

func (s *Server) handleTriggerRun(c echo.Context) error {
	if s.runner == nil {
		return fail(c, http.StatusServiceUnavailable, "No scrape runner configured", nil)
	}
	if s.runner.Guard().Running() {
		return fail(c, http.StatusConflict, "A scrape run is already in progress", nil)
	}

	// The run outlives the request; only the trigger is synchronous.
	go func() {
		if _, err := s.runner.Run(context.Background()); err != nil {
			if errors.Is(err, scrape.ErrRunInProgress) {
				return
			}
			s.logger.Error().Err(err).Msg("triggered scrape run failed")
		}
	}()

	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"accepted": true,
	})
}

// handleForceRelease frees the run slot after a crashed run left it held.
// The guard alone is reset; a run still executing keeps going.
func (s *Server) handleForceRelease(c echo.Context) error {
	if s.runner == nil {
		return fail(c, http.StatusServiceUnavailable, "No scrape runner configured", nil)
	}
	wasRunning := s.runner.Guard().Running()
	s.runner.Guard().ForceRelease()
	s.logger.Warn().Bool("was_running", wasRunning).Msg("scrape run guard force-released")
	return success(c, map[string]any{
		"released":    true,
		"was_running": wasRunning,
	})
}
