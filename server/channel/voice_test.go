package channel

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solmari/civassist/plugin/assistant/langdetect"
)

// requireNextStep asserts the document never leaves the call hanging: the
// last verb must either keep listening or hang up.
func requireNextStep(t *testing.T, r *VoiceResponse) {
	t.Helper()
	require.NotEmpty(t, r.Verbs)
	last := r.Verbs[len(r.Verbs)-1]
	switch last.(type) {
	case Gather, Hangup:
	default:
		t.Fatalf("document ends in %T, want Gather or Hangup", last)
	}
	// a Gather must exist somewhere unless the document is terminal
	hasGather, hasHangup := false, false
	for _, v := range r.Verbs {
		switch v.(type) {
		case Gather:
			hasGather = true
		case Hangup:
			hasHangup = true
		}
	}
	require.True(t, hasGather || hasHangup)
}

func TestVoiceGreeting(t *testing.T) {
	r := VoiceGreeting("/webhooks/voice")
	requireNextStep(t, r)

	out, err := r.Render()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "<?xml"))
	require.Contains(t, out, "<Response>")
	require.Contains(t, out, `numDigits="1"`)
	require.Contains(t, out, "press 1")
	require.Contains(t, out, "oprima 2")
	require.Contains(t, out, "peze 3")
	require.Contains(t, out, "<Hangup>")
}

func TestVoiceTurn(t *testing.T) {
	r := VoiceTurn("Your **appointment** is confirmed.", langdetect.Spanish, false, "/webhooks/voice")
	requireNextStep(t, r)

	out, err := r.Render()
	require.NoError(t, err)
	// markdown stripped before speaking
	require.NotContains(t, out, "**")
	require.Contains(t, out, "Your appointment is confirmed.")
	require.Contains(t, out, `language="es-US"`)
	require.Contains(t, out, "¿Puedo ayudarle con algo más?")
	require.Contains(t, out, "<Hangup>")
}

func TestVoiceTurn_Escalation(t *testing.T) {
	r := VoiceTurn("I understand this is urgent.", langdetect.English, true, "/webhooks/voice")
	requireNextStep(t, r)

	out, err := r.Render()
	require.NoError(t, err)
	require.Contains(t, out, "please say agent")
}

func TestVoiceTurn_UnknownLanguageFallsBack(t *testing.T) {
	r := VoiceTurn("Hello.", langdetect.Language("de"), false, "/webhooks/voice")
	out, err := r.Render()
	require.NoError(t, err)
	require.Contains(t, out, `language="en-US"`)
	require.Contains(t, out, "anything else I can help")
}

func TestVoiceLanguageSelected(t *testing.T) {
	r := VoiceLanguageSelected(langdetect.Spanish, "/webhooks/voice/turn")
	requireNextStep(t, r)

	out, err := r.Render()
	require.NoError(t, err)
	require.Contains(t, out, "¿Cómo puedo ayudarle hoy?")
	require.Contains(t, out, `language="es-US"`)
}

func TestVoiceHandoffCode(t *testing.T) {
	r := VoiceHandoffCode("AWEX7Y", langdetect.English, "/webhooks/voice")
	requireNextStep(t, r)

	out, err := r.Render()
	require.NoError(t, err)
	// the code is spelled character by character, twice
	require.Equal(t, 2, strings.Count(out, "A, W, E, X, 7, Y"))
	require.Contains(t, out, "Your resume code is:")
}

func TestVoiceGoodbye(t *testing.T) {
	r := VoiceGoodbye(langdetect.Creole)
	requireNextStep(t, r)

	out, err := r.Render()
	require.NoError(t, err)
	require.Contains(t, out, "Mèsi paske ou rele. Orevwa.")
	require.Contains(t, out, "<Hangup>")
}

func TestParseVoiceInbound(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("From", "+13055551234")
	form.Set("SpeechResult", "When is trash pickup?")

	ev := ParseVoiceInbound(form)
	require.Equal(t, "CA123", ev.CallID)
	require.Equal(t, "+13055551234", ev.From)
	require.Equal(t, "When is trash pickup?", ev.Input())
}

func TestVoiceEventInput_PrefersSpeech(t *testing.T) {
	ev := VoiceEvent{Digits: "2", Speech: "dos"}
	require.Equal(t, "dos", ev.Input())

	ev = VoiceEvent{Digits: "2"}
	require.Equal(t, "2", ev.Input())
}

func TestLanguageForDigit(t *testing.T) {
	lang, ok := LanguageForDigit("2")
	require.True(t, ok)
	require.Equal(t, langdetect.Spanish, lang)

	_, ok = LanguageForDigit("9")
	require.False(t, ok)
}
