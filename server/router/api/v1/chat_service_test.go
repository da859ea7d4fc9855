package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

type apiFixture struct {
	service  *APIV1Service
	echo     *echo.Echo
	provider *ai.MockProvider
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	s := store.New(memory.NewDB())
	_, err := s.GetDriver().UpsertAppointmentConfig(ctx, &store.AppointmentConfig{
		ID:            "permits",
		Name:          "Building Permits",
		AvailableDays: []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		TimeRanges:    []store.TimeRange{{Start: "09:00", End: "12:00"}},
		SlotMinutes:   30,
		MaxPerSlot:    3,
		Active:        true,
	})
	require.NoError(t, err)

	shared := kv.NewMemory()
	sessions := session.NewStore(session.Config{KV: shared, AcceptUnverifiedHandoff: true})
	machine := state.NewMachine(shared)
	provider := &ai.MockProvider{ProviderName: "primary", Reply: "chat reply"}
	processor := chat.NewProcessor(sessions, knowledge.NewMockRetriever(), ai.NewFallbackChain(provider), s)
	engine := assistant.NewEngine(
		sessions,
		machine,
		intent.NewMatcher(s),
		workflow.NewAppointmentFlow(s, machine),
		workflow.NewServiceRequestFlow(s, machine),
		processor,
	)

	service := NewAPIV1Service(&profile.Profile{Mode: "dev"}, s, engine)
	e := echo.New()
	service.Register(e)
	return &apiFixture{service: service, echo: e, provider: provider}
}

func (f *apiFixture) postJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func TestChat_BasicTurn(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.postJSON(t, "/api/v1/chat", ChatRequest{UserID: "u1", Message: "what are the pool hours?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply assistant.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.Equal(t, "chat reply", reply.Message)
	require.Len(t, f.provider.Calls, 1)
}

func TestChat_WorkflowOptions(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.postJSON(t, "/api/v1/chat", ChatRequest{UserID: "u1", Message: "I want to book an appointment"})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply assistant.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.NotEmpty(t, reply.Options)
	require.Equal(t, "permits", reply.Options[0].ID)

	// selecting an option advances the workflow without hitting the model
	rec = f.postJSON(t, "/api/v1/chat", ChatRequest{UserID: "u1", OptionID: "permits"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.NotEmpty(t, reply.Options)
	require.Empty(t, f.provider.Calls)
}

func TestChat_MissingFields(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.postJSON(t, "/api/v1/chat", ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_ARGUMENT")

	rec = f.postJSON(t, "/api/v1/chat", ChatRequest{UserID: "u1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandoff_GenerateAndRedeem(t *testing.T) {
	f := newAPIFixture(t)

	// no session yet
	rec := f.postJSON(t, "/api/v1/handoff", HandoffRequest{Channel: "web", UserID: "u1"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NO_ACTIVE_SESSION")

	f.postJSON(t, "/api/v1/chat", ChatRequest{UserID: "u1", Message: "hello there"})

	rec = f.postJSON(t, "/api/v1/handoff", HandoffRequest{Channel: "web", UserID: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HandoffResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Token, session.TokenLength)

	// redeem on another channel
	rec = f.postJSON(t, "/api/v1/handoff", HandoffRequest{Channel: "sms", UserID: "+13055551234", Token: resp.Token})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply assistant.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.Contains(t, reply.Message, "restored")
}

func TestHandoff_InvalidChannel(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.postJSON(t, "/api/v1/handoff", HandoffRequest{Channel: "carrier-pigeon", UserID: "u1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_CHANNEL")
}

func TestMetrics(t *testing.T) {
	f := newAPIFixture(t)

	f.postJSON(t, "/api/v1/chat", ChatRequest{UserID: "u1", Message: "hello there"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "turn_total")
}
