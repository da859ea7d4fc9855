package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/solmari/civassist/internal/profile"
	"github.com/solmari/civassist/plugin/assistant"
	"github.com/solmari/civassist/plugin/assistant/session"
	"github.com/solmari/civassist/server/channel"
	apiv1 "github.com/solmari/civassist/server/router/api/v1"
	"github.com/solmari/civassist/server/router/webhook"
	"github.com/solmari/civassist/store"
)

// Server is the HTTP front end: the JSON chat API plus the channel
// provider webhooks.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	cleanup    *session.CleanupJob
}

// NewServer assembles the echo server. Reapers are background TTL sweeps
// (session store, workflow state machine) sharing one cleanup job.
func NewServer(profile *profile.Profile, st *store.Store, engine *assistant.Engine, sender *channel.SocialSender, reapers ...session.Reaper) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(requestLogger())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	apiv1.NewAPIV1Service(profile, st, engine).Register(e)
	webhook.NewWebhookService(profile, engine, sender).Register(e)

	return &Server{
		Profile:    profile,
		Store:      st,
		echoServer: e,
		cleanup:    session.NewCleanupJob(session.DefaultCleanupInterval, reapers...),
	}
}

// Start begins serving and launches the background cleanup job. It blocks
// until the listener fails or the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.cleanup.Start(ctx)

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server listening", "address", address, "mode", s.Profile.Mode)
	if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Shutdown drains in-flight requests and stops background work.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.cleanup.Stop()
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shut down")
}

func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			slog.Debug("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	})
}
