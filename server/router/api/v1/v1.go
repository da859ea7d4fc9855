// Package v1 exposes the JSON API consumed by the embedded web chat
// widget: conversation turns, cross-channel handoff codes and operational
// metrics.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/solmari/civassist/internal/profile"
	"github.com/solmari/civassist/plugin/assistant"
	"github.com/solmari/civassist/plugin/assistant/session"
	"github.com/solmari/civassist/plugin/assistant/workflow"
	apierrors "github.com/solmari/civassist/server/internal/errors"
	"github.com/solmari/civassist/server/internal/observability"
	"github.com/solmari/civassist/server/middleware"
	"github.com/solmari/civassist/store"
)

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Engine  *assistant.Engine

	limiter *middleware.RateLimiter
	// chatSemaphore limits concurrent model calls so a traffic burst cannot
	// exhaust the provider quota in one window.
	chatSemaphore *semaphore.Weighted
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, engine *assistant.Engine) *APIV1Service {
	return &APIV1Service{
		Profile:       profile,
		Store:         store,
		Engine:        engine,
		limiter:       middleware.NewRateLimiter(),
		chatSemaphore: semaphore.NewWeighted(16),
	}
}

// Register mounts the API routes on the echo server.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1", s.limiter.Middleware())
	g.POST("/chat", s.Chat)
	g.POST("/handoff", s.Handoff)
	g.GET("/metrics", s.Metrics)
}

func errorResponse(c echo.Context, status int, apiErr *apierrors.APIError) error {
	return c.JSON(status, map[string]string{
		"code":    string(apiErr.Code),
		"message": apiErr.Message,
	})
}

// Metrics returns the per-channel turn counters.
func (s *APIV1Service) Metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, observability.GlobalMetrics().Snapshot())
}

// HandoffRequest either asks for a resume code for an existing session
// (Token empty) or redeems one on this channel (Token set).
type HandoffRequest struct {
	Channel string `json:"channel"`
	UserID  string `json:"user_id"`
	Token   string `json:"token"`
}

// HandoffResponse carries a freshly issued resume code.
type HandoffResponse struct {
	Token string `json:"token"`
}

// Handoff issues or redeems a short-lived cross-channel resume code.
// Redemption returns the engine reply confirming (or refusing) the resume.
func (s *APIV1Service) Handoff(c echo.Context) error {
	var req HandoffRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, apierrors.New(apierrors.ErrCodeInvalidArgument, "malformed request body"))
	}
	channel := session.Channel(req.Channel)
	if channel == "" {
		channel = session.ChannelWeb
	}
	if !channel.Valid() {
		return errorResponse(c, http.StatusBadRequest, apierrors.New(apierrors.ErrCodeInvalidChannel, "unknown channel"))
	}
	if req.UserID == "" {
		return errorResponse(c, http.StatusBadRequest, apierrors.New(apierrors.ErrCodeInvalidArgument, "user_id is required"))
	}

	if req.Token != "" {
		reply, err := s.Engine.HandleTurn(c.Request().Context(), assistant.Turn{
			Channel: channel,
			UserID:  req.UserID,
			Command: workflow.Command{Kind: workflow.CommandHandoff, Token: req.Token},
		})
		if err != nil {
			return errorResponse(c, http.StatusInternalServerError, apierrors.Wrap(apierrors.ErrCodeInternal, "failed to redeem token", err))
		}
		return c.JSON(http.StatusOK, reply)
	}

	token, err := s.Engine.GenerateHandoff(c.Request().Context(), channel, req.UserID)
	if err != nil {
		return errorResponse(c, http.StatusNotFound, apierrors.Wrap(apierrors.ErrCodeNoActiveSession, "no active session to hand off", err))
	}
	return c.JSON(http.StatusOK, HandoffResponse{Token: token})
}
