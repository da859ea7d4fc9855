package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/solmari/civassist/plugin/assistant"
	"github.com/solmari/civassist/plugin/assistant/session"
	"github.com/solmari/civassist/plugin/assistant/workflow"
	apierrors "github.com/solmari/civassist/server/internal/errors"
	"github.com/solmari/civassist/server/internal/observability"
)

// ChatRequest is one web chat turn.
type ChatRequest struct {
	UserID string `json:"user_id"`
	// Message is the free-form user text. Ignored when OptionID is set.
	Message string `json:"message"`
	// OptionID selects a previously offered workflow option.
	OptionID string `json:"option_id"`
	// Language optionally forces the reply language (en, es, ht).
	Language string `json:"language"`
	// Domain scopes knowledge retrieval, e.g. a department slug.
	Domain string `json:"domain"`
}

// Chat handles one web chat turn and returns the engine reply as JSON.
func (s *APIV1Service) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, apierrors.New(apierrors.ErrCodeInvalidArgument, "malformed request body"))
	}
	if req.UserID == "" {
		return errorResponse(c, http.StatusBadRequest, apierrors.New(apierrors.ErrCodeInvalidArgument, "user_id is required"))
	}
	var command workflow.Command
	switch {
	case req.OptionID != "":
		command = workflow.OptionCommand(req.OptionID)
	case strings.TrimSpace(req.Message) != "":
		command = workflow.ParseCommand(req.Message)
	default:
		return errorResponse(c, http.StatusBadRequest, apierrors.New(apierrors.ErrCodeInvalidArgument, "message or option_id is required"))
	}

	ctx := c.Request().Context()
	if err := s.chatSemaphore.Acquire(ctx, 1); err != nil {
		return errorResponse(c, http.StatusServiceUnavailable, apierrors.Wrap(apierrors.ErrCodeServiceUnavailable, "server busy", err))
	}
	defer s.chatSemaphore.Release(1)

	tc := observability.NewTurnContext(slog.Default(), string(session.ChannelWeb), req.UserID)
	metrics := observability.GlobalMetrics()
	metrics.RecordTurn(string(session.ChannelWeb))

	reply, err := s.Engine.HandleTurn(ctx, assistant.Turn{
		Channel:           session.ChannelWeb,
		UserID:            req.UserID,
		Command:           command,
		RequestedLanguage: req.Language,
		Domain:            req.Domain,
	})
	metrics.RecordDuration(string(session.ChannelWeb), tc.Duration())
	if err != nil {
		metrics.RecordFailure(string(session.ChannelWeb))
		tc.Error("chat turn failed", err)
		return errorResponse(c, http.StatusInternalServerError, apierrors.Wrap(apierrors.ErrCodeInternal, "failed to process turn", err))
	}
	if reply.Escalate {
		metrics.RecordEscalation()
	}
	tc.Info("chat turn handled",
		slog.String(observability.LogFieldLanguage, string(reply.Language)),
		slog.Int64(observability.LogFieldDuration, tc.Duration().Milliseconds()),
		slog.Int(observability.LogFieldMessageLen, len(req.Message)),
	)
	return c.JSON(http.StatusOK, reply)
}
