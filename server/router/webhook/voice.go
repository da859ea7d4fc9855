package webhook

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/solmari/civassist/plugin/assistant"
	"github.com/solmari/civassist/plugin/assistant/chat"
	"github.com/solmari/civassist/plugin/assistant/langdetect"
	"github.com/solmari/civassist/plugin/assistant/session"
	"github.com/solmari/civassist/plugin/assistant/workflow"
	"github.com/solmari/civassist/server/channel"
	"github.com/solmari/civassist/server/internal/observability"
)

const (
	voiceLanguagePath = "/webhooks/voice/language"
	voiceTurnPath     = "/webhooks/voice/turn"
)

// handoffPhrases trigger a spoken resume code instead of a chat turn. The
// caller continues the conversation on another channel with that code.
var handoffPhrases = []string{
	"continue on the web",
	"continue online",
	"send me a code",
	"resume code",
	"continuar en la web",
	"kontinye sou entènèt",
}

// receiveVoiceCall answers a new call with the trilingual language menu.
func (s *WebhookService) receiveVoiceCall(c echo.Context) error {
	return s.renderVoice(c, channel.VoiceGreeting(voiceLanguagePath))
}

// receiveVoiceLanguage handles the menu digit and starts listening in the
// chosen language. An unrecognized digit replays the menu.
func (s *WebhookService) receiveVoiceLanguage(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return s.renderVoice(c, channel.VoiceGreeting(voiceLanguagePath))
	}
	ev := channel.ParseVoiceInbound(form)
	lang, ok := channel.LanguageForDigit(ev.Digits)
	if !ok {
		return s.renderVoice(c, channel.VoiceGreeting(voiceLanguagePath))
	}
	return s.renderVoice(c, channel.VoiceLanguageSelected(lang, turnAction(lang)))
}

// receiveVoiceTurn handles one spoken (or keyed) utterance.
func (s *WebhookService) receiveVoiceTurn(c echo.Context) error {
	lang, _ := langdetect.Normalize(c.QueryParam("lang"))
	form, err := c.FormParams()
	if err != nil {
		return s.renderVoice(c, channel.VoiceGoodbye(lang))
	}
	ev := channel.ParseVoiceInbound(form)
	input := ev.Input()
	if input == "" {
		return s.renderVoice(c, channel.VoiceGoodbye(lang))
	}

	if isHandoffRequest(input) {
		code, err := s.Engine.GenerateHandoff(c.Request().Context(), session.ChannelVoice, ev.From)
		if err != nil {
			slog.Warn("failed to generate handoff code", "error", err)
			return s.renderVoice(c, channel.VoiceTurn(chat.Apology(lang), lang, false, turnAction(lang)))
		}
		return s.renderVoice(c, channel.VoiceHandoffCode(code, lang, turnAction(lang)))
	}

	tc := observability.NewTurnContext(slog.Default(), string(session.ChannelVoice), ev.From)
	metrics := observability.GlobalMetrics()
	metrics.RecordTurn(string(session.ChannelVoice))

	reply, err := s.Engine.HandleTurn(c.Request().Context(), assistant.Turn{
		Channel:           session.ChannelVoice,
		UserID:            ev.From,
		Command:           workflow.ParseCommand(input),
		RequestedLanguage: string(lang),
	})
	metrics.RecordDuration(string(session.ChannelVoice), tc.Duration())
	if err != nil {
		metrics.RecordFailure(string(session.ChannelVoice))
		tc.Error("voice turn failed", err)
		return s.renderVoice(c, channel.VoiceTurn(chat.Apology(lang), lang, false, turnAction(lang)))
	}
	if reply.Escalate {
		metrics.RecordEscalation()
	}
	tc.Info("voice turn handled",
		slog.String(observability.LogFieldLanguage, string(reply.Language)),
		slog.Int64(observability.LogFieldDuration, tc.Duration().Milliseconds()),
	)

	spoken := reply.Message
	if opts := renderOptions(reply.Options); opts != "" {
		spoken += "\n" + opts
	}
	return s.renderVoice(c, channel.VoiceTurn(spoken, reply.Language, reply.Escalate, turnAction(reply.Language)))
}

func (s *WebhookService) renderVoice(c echo.Context, doc *channel.VoiceResponse) error {
	out, err := doc.Render()
	if err != nil {
		slog.Error("failed to render voice response", "error", err)
		return c.NoContent(http.StatusOK)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(out))
}

func turnAction(lang langdetect.Language) string {
	return voiceTurnPath + "?lang=" + string(lang)
}

func isHandoffRequest(input string) bool {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, phrase := range handoffPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}
