package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/solmari/civassist/plugin/assistant"
	"github.com/solmari/civassist/plugin/assistant/session"
	"github.com/solmari/civassist/plugin/assistant/workflow"
	"github.com/solmari/civassist/server/channel"
	"github.com/solmari/civassist/server/internal/observability"
)

const socialProcessTimeout = 30 * time.Second

// verifySocial answers the graph platform's subscription handshake.
func (s *WebhookService) verifySocial(c echo.Context) error {
	challenge, ok := channel.VerifySocialWebhook(
		c.QueryParam("hub.mode"),
		c.QueryParam("hub.verify_token"),
		c.QueryParam("hub.challenge"),
		s.Profile.SocialVerifyToken,
	)
	if !ok {
		return c.NoContent(http.StatusForbidden)
	}
	return c.String(http.StatusOK, challenge)
}

// receiveSocial acknowledges immediately and processes events in the
// background. The platform redelivers on slow responses, so the turn must
// not block the acknowledgment.
func (s *WebhookService) receiveSocial(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusOK)
	}
	events := channel.ParseSocialInbound(body)
	if len(events) > 0 {
		go s.processSocialEvents(events)
	}
	return c.NoContent(http.StatusOK)
}

func (s *WebhookService) processSocialEvents(events []channel.SocialEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), socialProcessTimeout)
	defer cancel()

	metrics := observability.GlobalMetrics()
	for _, ev := range events {
		tc := observability.NewTurnContext(slog.Default(), string(session.ChannelSocial), ev.SenderID)
		metrics.RecordTurn(string(session.ChannelSocial))

		reply, err := s.Engine.HandleTurn(ctx, assistant.Turn{
			Channel: session.ChannelSocial,
			UserID:  string(ev.Platform) + ":" + ev.SenderID,
			Command: workflow.ParseCommand(ev.Text),
		})
		metrics.RecordDuration(string(session.ChannelSocial), tc.Duration())
		if err != nil {
			metrics.RecordFailure(string(session.ChannelSocial))
			tc.Error("social turn failed", err)
			continue
		}
		if reply.Escalate {
			metrics.RecordEscalation()
		}

		if s.Sender == nil {
			tc.Warn("no social sender configured, dropping reply")
			continue
		}
		if err := s.Sender.Send(ctx, ev.Platform, ev.SenderID, replyText(reply)); err != nil {
			tc.Error("failed to send social reply", err)
		}
	}
}
