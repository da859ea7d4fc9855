package webhook

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/solmari/civassist/plugin/assistant"
	"github.com/solmari/civassist/plugin/assistant/chat"
	"github.com/solmari/civassist/plugin/assistant/langdetect"
	"github.com/solmari/civassist/plugin/assistant/session"
	"github.com/solmari/civassist/plugin/assistant/workflow"
	"github.com/solmari/civassist/server/channel"
	"github.com/solmari/civassist/server/internal/observability"
)

// receiveSMS handles one inbound text message. Carrier keywords such as
// STOP and HELP are answered directly and never reach the conversation
// engine.
func (s *WebhookService) receiveSMS(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return c.NoContent(http.StatusOK)
	}
	ev := channel.ParseSMSInbound(form)
	if ev.From == "" || ev.Body == "" {
		return c.NoContent(http.StatusOK)
	}

	if keyword := channel.ClassifySMSKeyword(ev.Body); keyword != channel.SMSKeywordNone {
		lang := langdetect.Detect(ev.Body)
		return s.renderSMS(c, channel.SMSKeywordReply(keyword, lang))
	}

	tc := observability.NewTurnContext(slog.Default(), string(session.ChannelSMS), ev.From)
	metrics := observability.GlobalMetrics()
	metrics.RecordTurn(string(session.ChannelSMS))

	reply, err := s.Engine.HandleTurn(c.Request().Context(), assistant.Turn{
		Channel: session.ChannelSMS,
		UserID:  ev.From,
		Command: workflow.ParseCommand(ev.Body),
	})
	metrics.RecordDuration(string(session.ChannelSMS), tc.Duration())
	if err != nil {
		metrics.RecordFailure(string(session.ChannelSMS))
		tc.Error("sms turn failed", err)
		return s.renderSMS(c, chat.Apology(langdetect.Detect(ev.Body)))
	}
	if reply.Escalate {
		metrics.RecordEscalation()
	}
	tc.Info("sms turn handled",
		slog.String(observability.LogFieldLanguage, string(reply.Language)),
		slog.Int64(observability.LogFieldDuration, tc.Duration().Milliseconds()),
		slog.Int(observability.LogFieldMessageLen, len(ev.Body)),
	)
	return s.renderSMS(c, replyText(reply))
}

func (s *WebhookService) renderSMS(c echo.Context, body string) error {
	out, err := channel.RenderSMSReply(body)
	if err != nil {
		slog.Error("failed to render sms reply", "error", err)
		return c.NoContent(http.StatusOK)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(out))
}
