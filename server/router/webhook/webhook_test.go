package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/solmari/civassist/internal/profile"
	"github.com/solmari/civassist/plugin/assistant"
	"github.com/solmari/civassist/plugin/assistant/chat"
	"github.com/solmari/civassist/plugin/assistant/intent"
	"github.com/solmari/civassist/plugin/assistant/knowledge"
	"github.com/solmari/civassist/plugin/assistant/session"
	"github.com/solmari/civassist/plugin/assistant/state"
	"github.com/solmari/civassist/plugin/assistant/workflow"
	"github.com/solmari/civassist/server/ai"
	"github.com/solmari/civassist/store"
	"github.com/solmari/civassist/store/db/memory"
	"github.com/solmari/civassist/store/kv"
)

type webhookFixture struct {
	service  *WebhookService
	echo     *echo.Echo
	provider *ai.MockProvider
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	ctx := context.Background()

	s := store.New(memory.NewDB())
	_, err := s.GetDriver().UpsertRoutingRule(ctx, &store.RoutingRule{
		Name: "Streets", Keywords: []string{"pothole", "street", "road"},
		Department: "Public Works", Priority: store.PriorityHigh, Active: true,
	})
	require.NoError(t, err)

	shared := kv.NewMemory()
	sessions := session.NewStore(session.Config{KV: shared, AcceptUnverifiedHandoff: true})
	machine := state.NewMachine(shared)
	provider := &ai.MockProvider{ProviderName: "primary", Reply: "Trash pickup is on Tuesdays."}
	processor := chat.NewProcessor(sessions, knowledge.NewMockRetriever(), ai.NewFallbackChain(provider), s)
	engine := assistant.NewEngine(
		sessions,
		machine,
		intent.NewMatcher(s),
		workflow.NewAppointmentFlow(s, machine),
		workflow.NewServiceRequestFlow(s, machine),
		processor,
	)

	service := NewWebhookService(&profile.Profile{SocialVerifyToken: "verify-secret"}, engine, nil)
	e := echo.New()
	service.Register(e)
	return &webhookFixture{service: service, echo: e, provider: provider}
}

func (f *webhookFixture) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func TestReceiveSMS_Turn(t *testing.T) {
	f := newWebhookFixture(t)

	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("From", "+13055551234")
	form.Set("Body", "when is trash pickup?")

	rec := f.postForm("/webhooks/sms", form)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<Message>Trash pickup is on Tuesdays.</Message>")
	require.Len(t, f.provider.Calls, 1)
}

func TestReceiveSMS_StopKeywordShortCircuits(t *testing.T) {
	f := newWebhookFixture(t)

	form := url.Values{}
	form.Set("From", "+13055551234")
	form.Set("Body", "STOP")

	rec := f.postForm("/webhooks/sms", form)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "unsubscribed")
	// the keyword never reaches the model
	require.Empty(t, f.provider.Calls)
}

func TestReceiveSMS_HelpKeyword(t *testing.T) {
	f := newWebhookFixture(t)

	form := url.Values{}
	form.Set("From", "+13055551234")
	form.Set("Body", "help")

	rec := f.postForm("/webhooks/sms", form)
	require.Contains(t, rec.Body.String(), "City assistant")
	require.Empty(t, f.provider.Calls)
}

func TestReceiveSMS_EmptyBodyAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	form := url.Values{}
	form.Set("From", "+13055551234")

	rec := f.postForm("/webhooks/sms", form)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, f.provider.Calls)
}

func TestReceiveVoiceCall_Greeting(t *testing.T) {
	f := newWebhookFixture(t)

	rec := f.postForm("/webhooks/voice", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "press 1")
	require.Contains(t, rec.Body.String(), "/webhooks/voice/language")
}

func TestReceiveVoiceLanguage(t *testing.T) {
	f := newWebhookFixture(t)

	form := url.Values{}
	form.Set("CallSid", "CA1")
	form.Set("From", "+13055551234")
	form.Set("Digits", "2")

	rec := f.postForm("/webhooks/voice/language", form)
	require.Contains(t, rec.Body.String(), "¿Cómo puedo ayudarle hoy?")
	require.Contains(t, rec.Body.String(), "lang=es")

	// unknown digit replays the menu
	form.Set("Digits", "9")
	rec = f.postForm("/webhooks/voice/language", form)
	require.Contains(t, rec.Body.String(), "press 1")
}

func TestReceiveVoiceTurn(t *testing.T) {
	f := newWebhookFixture(t)

	form := url.Values{}
	form.Set("CallSid", "CA1")
	form.Set("From", "+13055551234")
	form.Set("SpeechResult", "when is trash pickup?")

	rec := f.postForm("/webhooks/voice/turn?lang=es", form)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Trash pickup is on Tuesdays.")
	require.Contains(t, rec.Body.String(), "<Hangup>")
	require.Len(t, f.provider.Calls, 1)
}

func TestReceiveVoiceTurn_SilenceHangsUp(t *testing.T) {
	f := newWebhookFixture(t)

	form := url.Values{}
	form.Set("CallSid", "CA1")
	form.Set("From", "+13055551234")

	rec := f.postForm("/webhooks/voice/turn?lang=en", form)
	require.Contains(t, rec.Body.String(), "Goodbye")
	require.Contains(t, rec.Body.String(), "<Hangup>")
	require.Empty(t, f.provider.Calls)
}

func TestReceiveVoiceTurn_HandoffCode(t *testing.T) {
	f := newWebhookFixture(t)

	// establish a session first
	form := url.Values{}
	form.Set("CallSid", "CA1")
	form.Set("From", "+13055551234")
	form.Set("SpeechResult", "when is trash pickup?")
	f.postForm("/webhooks/voice/turn?lang=en", form)

	form.Set("SpeechResult", "please send me a code to continue on the web")
	rec := f.postForm("/webhooks/voice/turn?lang=en", form)
	require.Contains(t, rec.Body.String(), "Your resume code is:")
}

func TestVerifySocial(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/social?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=1234", nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1234", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet,
		"/webhooks/social?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1234", nil)
	rec = httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReceiveSocial_AlwaysAcknowledges(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/social", strings.NewReader("not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRenderOptions(t *testing.T) {
	require.Empty(t, renderOptions(nil))
	got := renderOptions([]workflow.Option{{ID: "09:00", Label: "09:00"}, {ID: "09:30", Label: "09:30"}})
	require.Equal(t, "09:00\n09:30", got)
}
