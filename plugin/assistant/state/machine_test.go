package state

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solmari/civassist/plugin/assistant/langdetect"
	"github.com/solmari/civassist/store/kv"
)

func newTestMachine() *Machine {
	return NewMachine(kv.NewMemory())
}

func TestGet_UnknownSessionIsFresh(t *testing.T) {
	m := newTestMachine()
	ctx := context.Background()

	st, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", st.SessionID)
	require.False(t, st.InWorkflow())
	require.Equal(t, 0, st.Step)
}

func TestStartAndGet(t *testing.T) {
	m := newTestMachine()
	ctx := context.Background()

	seed := Data{Request: &RequestData{Category: "pothole", Department: "Public Works"}}
	st, err := m.Start(ctx, "s1", WorkflowServiceRequest, seed, langdetect.Spanish)
	require.NoError(t, err)
	require.Equal(t, WorkflowServiceRequest, st.Workflow)
	require.Equal(t, 1, st.Step)

	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, got.InWorkflow())
	require.Equal(t, WorkflowServiceRequest, got.Workflow)
	require.Equal(t, langdetect.Spanish, got.Language)
	require.NotNil(t, got.Data.Request)
	require.Equal(t, "pothole", got.Data.Request.Category)
	require.Nil(t, got.Data.Appointment)
}

func TestAdvance_MergesData(t *testing.T) {
	m := newTestMachine()
	ctx := context.Background()

	_, err := m.Start(ctx, "s1", WorkflowAppointment, Data{Appointment: &AppointmentData{ServiceID: "permits"}}, langdetect.English)
	require.NoError(t, err)

	st, err := m.Advance(ctx, "s1", func(d *Data) {
		d.Appointment.Date = "2026-09-03"
	})
	require.NoError(t, err)
	require.Equal(t, 2, st.Step)
	require.Equal(t, "permits", st.Data.Appointment.ServiceID)
	require.Equal(t, "2026-09-03", st.Data.Appointment.Date)

	st, err = m.Advance(ctx, "s1", func(d *Data) {
		d.Appointment.Slot = "10:30"
	})
	require.NoError(t, err)
	require.Equal(t, 3, st.Step)
	require.Equal(t, "2026-09-03", st.Data.Appointment.Date)
	require.Equal(t, "10:30", st.Data.Appointment.Slot)
}

func TestSetStep_Rewinds(t *testing.T) {
	m := newTestMachine()
	ctx := context.Background()

	_, err := m.Start(ctx, "s1", WorkflowAppointment, Data{Appointment: &AppointmentData{}}, langdetect.English)
	require.NoError(t, err)
	_, err = m.Advance(ctx, "s1", nil)
	require.NoError(t, err)

	require.NoError(t, m.SetStep(ctx, "s1", 1, func(d *Data) {
		d.Appointment.Slot = ""
	}))

	st, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 1, st.Step)
	require.Equal(t, WorkflowAppointment, st.Workflow)
	require.Empty(t, st.Data.Appointment.Slot)
}

func TestClearWorkflow(t *testing.T) {
	m := newTestMachine()
	ctx := context.Background()

	_, err := m.Start(ctx, "s1", WorkflowServiceRequest, Data{Request: &RequestData{Description: "streetlight out"}}, langdetect.English)
	require.NoError(t, err)

	require.NoError(t, m.ClearWorkflow(ctx, "s1"))

	st, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.False(t, st.InWorkflow())
	require.Equal(t, 0, st.Step)
	require.Nil(t, st.Data.Request)
}

func TestGet_ExpiredStateIsFresh(t *testing.T) {
	store := kv.NewMemory()
	m := NewMachine(store)
	ctx := context.Background()

	_, err := m.Start(ctx, "s1", WorkflowAppointment, Data{Appointment: &AppointmentData{}}, langdetect.English)
	require.NoError(t, err)

	// Rewrite the stored timestamp past the soft TTL. The KV entry is still
	// present, so this exercises the LastUpdated check rather than KV expiry.
	raw, found, err := store.Get(ctx, "state:s1")
	require.NoError(t, err)
	require.True(t, found)
	var st State
	require.NoError(t, json.Unmarshal(raw, &st))
	st.LastUpdated = time.Now().Add(-TTL - time.Minute)
	aged, err := json.Marshal(&st)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "state:s1", aged, time.Hour))

	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.False(t, got.InWorkflow())
	require.Equal(t, 0, got.Step)
}

func TestAdvance_ExpiredStateRestarts(t *testing.T) {
	store := kv.NewMemory()
	m := NewMachine(store)
	ctx := context.Background()

	st, err := m.Advance(ctx, "s1", nil)
	require.NoError(t, err)
	require.Equal(t, 1, st.Step)
	require.False(t, st.InWorkflow())
}
