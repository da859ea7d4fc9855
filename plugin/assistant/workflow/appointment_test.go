package workflow

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solmari/civassist/plugin/assistant/langdetect"
	"github.com/solmari/civassist/plugin/assistant/state"
	"github.com/solmari/civassist/store"
	"github.com/solmari/civassist/store/db/memory"
	"github.com/solmari/civassist/store/kv"
)

// fixedNow keeps date computation deterministic: a Monday morning.
var fixedNow = time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

func newAppointmentFixture(t *testing.T) (*AppointmentFlow, *state.Machine, *store.Store) {
	t.Helper()
	s := store.New(memory.NewDB())
	m := state.NewMachine(kv.NewMemory())
	f := NewAppointmentFlow(s, m)
	f.now = func() time.Time { return fixedNow }

	_, err := s.GetDriver().UpsertAppointmentConfig(context.Background(), &store.AppointmentConfig{
		ID:            "permits",
		Name:          "Building Permits",
		AvailableDays: []string{"monday", "wednesday"},
		TimeRanges:    []store.TimeRange{{Start: "09:00", End: "11:00"}},
		SlotMinutes:   30,
		MaxPerSlot:    2,
		LeadTimeHours: 24,
		Active:        true,
	})
	require.NoError(t, err)
	return f, m, s
}

func textCmd(s string) Command { return Command{Kind: CommandText, Text: s} }

func currentState(t *testing.T, m *state.Machine, sessionID string) *state.State {
	t.Helper()
	st, err := m.Get(context.Background(), sessionID)
	require.NoError(t, err)
	return st
}

func TestAppointmentFlow_StartListsServices(t *testing.T) {
	f, m, _ := newAppointmentFixture(t)
	ctx := context.Background()

	res, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)
	require.False(t, res.Done)
	require.Len(t, res.Options, 1)
	require.Equal(t, "permits", res.Options[0].ID)
	require.Equal(t, "Building Permits", res.Options[0].Label)

	st := currentState(t, m, "s1")
	require.Equal(t, state.WorkflowAppointment, st.Workflow)
	require.Equal(t, 1, st.Step)
}

func TestAppointmentFlow_StartWithoutServices(t *testing.T) {
	s := store.New(memory.NewDB())
	m := state.NewMachine(kv.NewMemory())
	f := NewAppointmentFlow(s, m)
	ctx := context.Background()

	res, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)
	require.True(t, res.Done)
	require.Contains(t, res.Message, "not available")

	st := currentState(t, m, "s1")
	require.False(t, st.InWorkflow())
}

func TestAppointmentFlow_DateComputation(t *testing.T) {
	f, m, _ := newAppointmentFixture(t)
	ctx := context.Background()

	_, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)

	st := currentState(t, m, "s1")
	res, err := f.Step(ctx, st, OptionCommand("permits"))
	require.NoError(t, err)

	// Lead time pushes the horizon to Tuesday Sep 1; within the 14-day
	// scan the mondays and wednesdays are Sep 2, 7, 9, 14.
	require.Len(t, res.Options, 4)
	require.Equal(t, "2026-09-02", res.Options[0].ID)
	require.Equal(t, "2026-09-07", res.Options[1].ID)
	require.Equal(t, "2026-09-09", res.Options[2].ID)
	require.Equal(t, "2026-09-14", res.Options[3].ID)
}

func TestAppointmentFlow_InvalidServiceReprompts(t *testing.T) {
	f, m, _ := newAppointmentFixture(t)
	ctx := context.Background()

	_, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)

	st := currentState(t, m, "s1")
	res, err := f.Step(ctx, st, textCmd("parking tickets"))
	require.NoError(t, err)
	require.Len(t, res.Options, 1)

	// Still awaiting a service choice.
	require.Equal(t, 1, currentState(t, m, "s1").Step)
}

func TestAppointmentFlow_SlotEnumeration(t *testing.T) {
	f, m, _ := newAppointmentFixture(t)
	ctx := context.Background()

	_, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), OptionCommand("permits"))
	require.NoError(t, err)

	res, err := f.Step(ctx, currentState(t, m, "s1"), textCmd("2026-09-02"))
	require.NoError(t, err)
	require.Equal(t, []Option{
		{ID: "09:00", Label: "09:00"},
		{ID: "09:30", Label: "09:30"},
		{ID: "10:00", Label: "10:00"},
		{ID: "10:30", Label: "10:30"},
	}, res.Options)
}

func TestAppointmentFlow_SlotCapacity(t *testing.T) {
	f, m, s := newAppointmentFixture(t)
	ctx := context.Background()

	// Fill the 09:00 slot to its capacity of 2.
	for i := 0; i < 2; i++ {
		_, err := s.CreateAppointment(ctx, &store.Appointment{
			ID: "book-00" + string(rune('1'+i)), ServiceID: "permits",
			Date: "2026-09-02", Slot: "09:00", Status: store.AppointmentConfirmed,
		})
		require.NoError(t, err)
	}

	_, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), OptionCommand("permits"))
	require.NoError(t, err)

	res, err := f.Step(ctx, currentState(t, m, "s1"), textCmd("2026-09-02"))
	require.NoError(t, err)
	for _, o := range res.Options {
		require.NotEqual(t, "09:00", o.ID)
	}
}

func TestAppointmentFlow_CancelledBookingFreesSlot(t *testing.T) {
	f, m, s := newAppointmentFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		status := store.AppointmentConfirmed
		if i == 1 {
			status = store.AppointmentCancelled
		}
		_, err := s.CreateAppointment(ctx, &store.Appointment{
			ID: "book-00" + string(rune('1'+i)), ServiceID: "permits",
			Date: "2026-09-02", Slot: "09:00", Status: status,
		})
		require.NoError(t, err)
	}

	_, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), OptionCommand("permits"))
	require.NoError(t, err)

	res, err := f.Step(ctx, currentState(t, m, "s1"), textCmd("2026-09-02"))
	require.NoError(t, err)
	require.Equal(t, "09:00", res.Options[0].ID)
}

func TestAppointmentFlow_EndToEnd(t *testing.T) {
	f, m, s := newAppointmentFixture(t)
	ctx := context.Background()

	_, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), OptionCommand("permits"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("2026-09-02"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("09:30"))
	require.NoError(t, err)

	res, err := f.Step(ctx, currentState(t, m, "s1"), textCmd("John Doe, john@email.com, 305-555-1234"))
	require.NoError(t, err)
	require.Contains(t, res.Message, "John Doe")
	require.Len(t, res.Options, 2)

	res, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("yes"))
	require.NoError(t, err)
	require.True(t, res.Done)
	require.Regexp(t, regexp.MustCompile(`book-\d{3}`), res.Message)

	bookings, err := s.ListAppointments(ctx, &store.FindAppointment{})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.Equal(t, "book-001", bookings[0].ID)
	require.Equal(t, "John Doe", bookings[0].Name)
	require.Equal(t, "john@email.com", bookings[0].Email)
	require.Equal(t, "305-555-1234", bookings[0].Phone)
	require.Equal(t, "2026-09-02", bookings[0].Date)
	require.Equal(t, "09:30", bookings[0].Slot)

	require.False(t, currentState(t, m, "s1").InWorkflow())
}

func TestAppointmentFlow_SlotFillsWhileConfirming(t *testing.T) {
	f, m, s := newAppointmentFixture(t)
	ctx := context.Background()

	_, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), OptionCommand("permits"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("2026-09-02"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("09:00"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("John Doe, john@email.com, 305-555-1234"))
	require.NoError(t, err)

	// Other users take the last 09:00 seats while this one sits at the
	// confirmation prompt.
	for i := 0; i < 2; i++ {
		_, err := s.CreateAppointment(ctx, &store.Appointment{
			ID: "book-00" + string(rune('8'+i)), ServiceID: "permits",
			Date: "2026-09-02", Slot: "09:00", Status: store.AppointmentConfirmed,
		})
		require.NoError(t, err)
	}

	res, err := f.Step(ctx, currentState(t, m, "s1"), textCmd("yes"))
	require.NoError(t, err)
	require.False(t, res.Done, "flow stays live for another slot choice")
	require.Contains(t, res.Message, "just taken")
	for _, o := range res.Options {
		require.NotEqual(t, "09:00", o.ID, "filled slot must not be re-offered")
	}
	require.NotEmpty(t, res.Options)

	// The slot never exceeds capacity.
	count, err := s.CountAppointments(ctx, "permits", "2026-09-02", "09:00")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Back at the time prompt; picking a free slot proceeds normally.
	require.Equal(t, apptStepSelectTime, currentState(t, m, "s1").Step)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("09:30"))
	require.NoError(t, err)
	require.Equal(t, apptStepCollectInfo, currentState(t, m, "s1").Step)
}

func TestAppointmentFlow_LastDaySlotFillsWhileConfirming(t *testing.T) {
	f, m, s := newAppointmentFixture(t)
	ctx := context.Background()

	_, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), OptionCommand("permits"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("2026-09-02"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("09:00"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("John Doe, john@email.com, 305-555-1234"))
	require.NoError(t, err)

	// The whole day sells out before the user confirms.
	seq := 0
	for _, slot := range []string{"09:00", "09:30", "10:00", "10:30"} {
		for i := 0; i < 2; i++ {
			seq++
			_, err := s.CreateAppointment(ctx, &store.Appointment{
				ID: fmt.Sprintf("book-9%02d", seq), ServiceID: "permits",
				Date: "2026-09-02", Slot: slot, Status: store.AppointmentConfirmed,
			})
			require.NoError(t, err)
		}
	}

	res, err := f.Step(ctx, currentState(t, m, "s1"), textCmd("yes"))
	require.NoError(t, err)
	require.False(t, res.Done)
	require.Contains(t, res.Message, "another date")
	require.Equal(t, apptStepSelectDate, currentState(t, m, "s1").Step)

	count, err := s.CountAppointments(ctx, "permits", "2026-09-02", "09:00")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestAppointmentFlow_ContactRetry(t *testing.T) {
	f, m, _ := newAppointmentFixture(t)
	ctx := context.Background()

	_, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), OptionCommand("permits"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("2026-09-02"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("09:00"))
	require.NoError(t, err)

	res, err := f.Step(ctx, currentState(t, m, "s1"), textCmd("just my name"))
	require.NoError(t, err)
	require.Contains(t, res.Message, "Name, Email, Phone")

	// Step unchanged, ready for another attempt.
	require.Equal(t, apptStepCollectInfo, currentState(t, m, "s1").Step)
}

func TestAppointmentFlow_DeclineAtConfirm(t *testing.T) {
	f, m, s := newAppointmentFixture(t)
	ctx := context.Background()

	_, err := f.Start(ctx, "s1", langdetect.English)
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), OptionCommand("permits"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("2026-09-02"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("09:00"))
	require.NoError(t, err)
	_, err = f.Step(ctx, currentState(t, m, "s1"), textCmd("Jane Roe, jane@email.com, 305-555-9999"))
	require.NoError(t, err)

	res, err := f.Step(ctx, currentState(t, m, "s1"), textCmd("no"))
	require.NoError(t, err)
	require.True(t, res.Done)

	bookings, err := s.ListAppointments(ctx, &store.FindAppointment{})
	require.NoError(t, err)
	require.Empty(t, bookings)
	require.False(t, currentState(t, m, "s1").InWorkflow())
}

func TestParseContact(t *testing.T) {
	tests := []struct {
		input string
		name  string
		email string
		phone string
		ok    bool
	}{
		{"John Doe, john@email.com, 305-555-1234", "John Doe", "john@email.com", "305-555-1234", true},
		{"jane@email.com Jane Roe", "Jane Roe", "jane@email.com", "", true},
		{"no contact information here", "", "", "", false},
		{"onlyemail@email.com", "", "", "", false},
	}
	for _, tt := range tests {
		name, email, phone, ok := parseContact(tt.input)
		require.Equal(t, tt.ok, ok, "input %q", tt.input)
		if tt.ok {
			require.Equal(t, tt.name, name)
			require.Equal(t, tt.email, email)
			require.Equal(t, tt.phone, phone)
		}
	}
}
