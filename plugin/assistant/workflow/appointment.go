// Package workflow implements the guided multi-step flows (appointment
// booking, service-request submission) as step interpreters over the
// conversation state machine. Given a step and a user command each flow
// either re-renders the current prompt, advances, or persists the final
// record and clears the workflow.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/solmari/civassist/plugin/assistant/langdetect"
	"github.com/solmari/civassist/plugin/assistant/state"
	"github.com/solmari/civassist/store"
)

// Option is a selectable choice rendered by channel adapters as buttons,
// numbered menus or plain lines depending on the channel.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Result is one workflow turn's outcome.
type Result struct {
	Message string
	Options []Option
	// Done reports that the workflow is no longer active after this turn,
	// whether completed, cancelled or never entered.
	Done bool
}

const (
	dateLayout = "2006-01-02"
	slotLayout = "15:04"

	// dateScanDays bounds how far ahead candidate dates are searched.
	dateScanDays = 14
	// maxDateOptions caps the choices offered in one prompt.
	maxDateOptions = 7
)

// Appointment flow steps. The step number is "prompt rendered, awaiting
// input for".
const (
	apptStepSelectService = 1
	apptStepSelectDate    = 2
	apptStepSelectTime    = 3
	apptStepCollectInfo   = 4
	apptStepConfirm       = 5
)

// AppointmentFlow interprets the appointment booking workflow.
type AppointmentFlow struct {
	store   *store.Store
	machine *state.Machine
	now     func() time.Time
}

// NewAppointmentFlow creates the appointment flow.
func NewAppointmentFlow(s *store.Store, m *state.Machine) *AppointmentFlow {
	return &AppointmentFlow{store: s, machine: m, now: time.Now}
}

// Start enters the workflow and renders the service menu. When no services
// are configured the workflow is never entered and Done is set.
func (f *AppointmentFlow) Start(ctx context.Context, sessionID string, lang langdetect.Language) (*Result, error) {
	p := promptsFor(lang)
	services, err := f.store.ListActiveAppointmentConfigs(ctx)
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return &Result{Message: p.appointmentUnavailable, Done: true}, nil
	}

	_, err = f.machine.Start(ctx, sessionID, state.WorkflowAppointment, state.Data{Appointment: &state.AppointmentData{}}, lang)
	if err != nil {
		return nil, err
	}
	return &Result{Message: p.selectService, Options: serviceOptions(services)}, nil
}

// Step interprets one user command against the current step.
func (f *AppointmentFlow) Step(ctx context.Context, st *state.State, cmd Command) (*Result, error) {
	p := promptsFor(st.Language)
	data := st.Data.Appointment
	if data == nil {
		// State was written by something other than this flow. Reset.
		if err := f.machine.ClearWorkflow(ctx, st.SessionID); err != nil {
			return nil, err
		}
		return &Result{Message: p.cancelled, Done: true}, nil
	}

	switch st.Step {
	case apptStepSelectService:
		return f.stepSelectService(ctx, st, cmd, p)
	case apptStepSelectDate:
		return f.stepSelectDate(ctx, st, cmd, p)
	case apptStepSelectTime:
		return f.stepSelectTime(ctx, st, cmd, p)
	case apptStepCollectInfo:
		return f.stepCollectInfo(ctx, st, cmd, p)
	case apptStepConfirm:
		return f.stepConfirm(ctx, st, cmd, p)
	default:
		if err := f.machine.ClearWorkflow(ctx, st.SessionID); err != nil {
			return nil, err
		}
		return &Result{Message: p.cancelled, Done: true}, nil
	}
}

func (f *AppointmentFlow) stepSelectService(ctx context.Context, st *state.State, cmd Command, p promptSet) (*Result, error) {
	services, err := f.store.ListActiveAppointmentConfigs(ctx)
	if err != nil {
		return nil, err
	}
	cfg := pickService(services, cmd.Input())
	if cfg == nil {
		return &Result{Message: p.invalidChoice + p.selectService, Options: serviceOptions(services)}, nil
	}

	dates := f.candidateDates(cfg)
	if len(dates) == 0 {
		if err := f.machine.ClearWorkflow(ctx, st.SessionID); err != nil {
			return nil, err
		}
		return &Result{Message: p.noDates, Done: true}, nil
	}

	if _, err := f.machine.Advance(ctx, st.SessionID, func(d *state.Data) {
		d.Appointment.ServiceID = cfg.ID
		d.Appointment.ServiceName = cfg.Name
		d.Appointment.DateOptions = dates
	}); err != nil {
		return nil, err
	}
	return &Result{
		Message: fmt.Sprintf(p.selectDate, cfg.Name),
		Options: stringOptions(dates),
	}, nil
}

func (f *AppointmentFlow) stepSelectDate(ctx context.Context, st *state.State, cmd Command, p promptSet) (*Result, error) {
	data := st.Data.Appointment
	date := pickString(data.DateOptions, cmd.Input())
	if date == "" {
		return &Result{
			Message: p.invalidChoice + fmt.Sprintf(p.selectDate, data.ServiceName),
			Options: stringOptions(data.DateOptions),
		}, nil
	}

	cfg, err := f.serviceConfig(ctx, data.ServiceID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		if err := f.machine.ClearWorkflow(ctx, st.SessionID); err != nil {
			return nil, err
		}
		return &Result{Message: p.appointmentUnavailable, Done: true}, nil
	}

	slots, err := f.availableSlots(ctx, cfg, date)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return &Result{
			Message: p.noSlots,
			Options: stringOptions(data.DateOptions),
		}, nil
	}

	if _, err := f.machine.Advance(ctx, st.SessionID, func(d *state.Data) {
		d.Appointment.Date = date
		d.Appointment.SlotOptions = slots
	}); err != nil {
		return nil, err
	}
	return &Result{
		Message: fmt.Sprintf(p.selectTime, date),
		Options: stringOptions(slots),
	}, nil
}

func (f *AppointmentFlow) stepSelectTime(ctx context.Context, st *state.State, cmd Command, p promptSet) (*Result, error) {
	data := st.Data.Appointment
	slot := pickString(data.SlotOptions, cmd.Input())
	if slot == "" {
		return &Result{
			Message: p.invalidChoice + fmt.Sprintf(p.selectTime, data.Date),
			Options: stringOptions(data.SlotOptions),
		}, nil
	}

	if _, err := f.machine.Advance(ctx, st.SessionID, func(d *state.Data) {
		d.Appointment.Slot = slot
	}); err != nil {
		return nil, err
	}
	return &Result{Message: p.collectInfo}, nil
}

func (f *AppointmentFlow) stepCollectInfo(ctx context.Context, st *state.State, cmd Command, p promptSet) (*Result, error) {
	name, email, phone, ok := parseContact(cmd.Input())
	if !ok {
		return &Result{Message: p.contactRetry}, nil
	}

	data := st.Data.Appointment
	if _, err := f.machine.Advance(ctx, st.SessionID, func(d *state.Data) {
		d.Appointment.Name = name
		d.Appointment.Email = email
		d.Appointment.Phone = phone
	}); err != nil {
		return nil, err
	}
	return &Result{
		Message: fmt.Sprintf(p.confirmAppointment, data.ServiceName, data.Date, data.Slot, name),
		Options: []Option{{ID: "yes", Label: p.yesLabel}, {ID: "no", Label: p.noLabel}},
	}, nil
}

func (f *AppointmentFlow) stepConfirm(ctx context.Context, st *state.State, cmd Command, p promptSet) (*Result, error) {
	data := st.Data.Appointment
	input := cmd.Input()
	switch {
	case isYes(input):
		cfg, err := f.serviceConfig(ctx, data.ServiceID)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			if err := f.machine.ClearWorkflow(ctx, st.SessionID); err != nil {
				return nil, err
			}
			return &Result{Message: p.appointmentUnavailable, Done: true}, nil
		}

		// The slot was free when offered, but it can fill while the user
		// sits at the confirmation prompt. Re-check before persisting.
		count, err := f.store.CountAppointments(ctx, cfg.ID, data.Date, data.Slot)
		if err != nil {
			return nil, err
		}
		if count >= cfg.MaxPerSlot {
			return f.rerouteFilledSlot(ctx, st, cfg, p)
		}

		result, err := f.createAppointment(ctx, data, p)
		if err != nil {
			return nil, err
		}
		if clearErr := f.machine.ClearWorkflow(ctx, st.SessionID); clearErr != nil {
			return nil, clearErr
		}
		return result, nil
	case isNo(input):
		if err := f.machine.ClearWorkflow(ctx, st.SessionID); err != nil {
			return nil, err
		}
		return &Result{Message: p.cancelled, Done: true}, nil
	default:
		return &Result{
			Message: fmt.Sprintf(p.confirmAppointment, data.ServiceName, data.Date, data.Slot, data.Name),
			Options: []Option{{ID: "yes", Label: p.yesLabel}, {ID: "no", Label: p.noLabel}},
		}, nil
	}
}

// rerouteFilledSlot sends the user back to pick another time after their
// chosen slot reached capacity, or back to the date menu when the whole day
// sold out.
func (f *AppointmentFlow) rerouteFilledSlot(ctx context.Context, st *state.State, cfg *store.AppointmentConfig, p promptSet) (*Result, error) {
	data := st.Data.Appointment
	slots, err := f.availableSlots(ctx, cfg, data.Date)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		if err := f.machine.SetStep(ctx, st.SessionID, apptStepSelectDate, func(d *state.Data) {
			d.Appointment.Slot = ""
			d.Appointment.SlotOptions = nil
		}); err != nil {
			return nil, err
		}
		return &Result{Message: p.slotTaken + p.noSlots, Options: stringOptions(data.DateOptions)}, nil
	}

	if err := f.machine.SetStep(ctx, st.SessionID, apptStepSelectTime, func(d *state.Data) {
		d.Appointment.Slot = ""
		d.Appointment.SlotOptions = slots
	}); err != nil {
		return nil, err
	}
	return &Result{
		Message: p.slotTaken + fmt.Sprintf(p.selectTime, data.Date),
		Options: stringOptions(slots),
	}, nil
}

func (f *AppointmentFlow) createAppointment(ctx context.Context, data *state.AppointmentData, p promptSet) (*Result, error) {
	seq, err := f.store.NextAppointmentSeq(ctx)
	if err != nil {
		slog.Warn("failed to allocate booking sequence", "error", err)
		return &Result{Message: p.persistFailed, Done: true}, nil
	}
	appointment := &store.Appointment{
		ID:          fmt.Sprintf("book-%03d", seq),
		ServiceID:   data.ServiceID,
		ServiceName: data.ServiceName,
		Date:        data.Date,
		Slot:        data.Slot,
		Name:        data.Name,
		Email:       data.Email,
		Phone:       data.Phone,
		Status:      store.AppointmentConfirmed,
		CreatedTs:   f.now().Unix(),
	}
	if _, err := f.store.CreateAppointment(ctx, appointment); err != nil {
		slog.Warn("failed to persist appointment", "error", err)
		return &Result{Message: p.persistFailed, Done: true}, nil
	}
	return &Result{Message: fmt.Sprintf(p.appointmentCreated, appointment.ID), Done: true}, nil
}

// candidateDates returns up to maxDateOptions bookable dates, scanning
// dateScanDays ahead starting at the lead-time horizon.
func (f *AppointmentFlow) candidateDates(cfg *store.AppointmentConfig) []string {
	earliest := f.now().Add(time.Duration(cfg.LeadTimeHours) * time.Hour)
	allowed := make(map[string]bool, len(cfg.AvailableDays))
	for _, d := range cfg.AvailableDays {
		allowed[strings.ToLower(d)] = true
	}

	var dates []string
	for offset := 0; offset < dateScanDays && len(dates) < maxDateOptions; offset++ {
		day := earliest.AddDate(0, 0, offset)
		if allowed[strings.ToLower(day.Weekday().String())] {
			dates = append(dates, day.Format(dateLayout))
		}
	}
	return dates
}

// availableSlots enumerates fixed-duration slots within the configured time
// ranges, excluding slots already at capacity and, on the lead-time boundary
// day, slots before the horizon.
func (f *AppointmentFlow) availableSlots(ctx context.Context, cfg *store.AppointmentConfig, date string) ([]string, error) {
	earliest := f.now().Add(time.Duration(cfg.LeadTimeHours) * time.Hour)
	boundaryDay := earliest.Format(dateLayout) == date
	step := time.Duration(cfg.SlotMinutes) * time.Minute
	if step <= 0 {
		step = 30 * time.Minute
	}

	var slots []string
	for _, tr := range cfg.TimeRanges {
		start, err := time.Parse(slotLayout, tr.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(slotLayout, tr.End)
		if err != nil {
			continue
		}
		for t := start; !t.Add(step).After(end); t = t.Add(step) {
			slot := t.Format(slotLayout)
			if boundaryDay && slot < earliest.Format(slotLayout) {
				continue
			}
			count, err := f.store.CountAppointments(ctx, cfg.ID, date, slot)
			if err != nil {
				return nil, err
			}
			if count >= cfg.MaxPerSlot {
				continue
			}
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

func (f *AppointmentFlow) serviceConfig(ctx context.Context, id string) (*store.AppointmentConfig, error) {
	services, err := f.store.ListActiveAppointmentConfigs(ctx)
	if err != nil {
		return nil, err
	}
	for _, cfg := range services {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return nil, nil
}

func serviceOptions(services []*store.AppointmentConfig) []Option {
	options := make([]Option, 0, len(services))
	for _, s := range services {
		options = append(options, Option{ID: s.ID, Label: s.Name})
	}
	return options
}

func stringOptions(values []string) []Option {
	options := make([]Option, 0, len(values))
	for _, v := range values {
		options = append(options, Option{ID: v, Label: v})
	}
	return options
}

// pickService resolves user input against the service list by ID first,
// then by name containment.
func pickService(services []*store.AppointmentConfig, input string) *store.AppointmentConfig {
	normalized := normalizeAnswer(input)
	if normalized == "" {
		return nil
	}
	for _, s := range services {
		if normalizeAnswer(s.ID) == normalized {
			return s
		}
	}
	for _, s := range services {
		name := normalizeAnswer(s.Name)
		if name == normalized || strings.Contains(normalized, name) || strings.Contains(name, normalized) {
			return s
		}
	}
	return nil
}

// pickString resolves input against offered options by exact match.
func pickString(options []string, input string) string {
	normalized := normalizeAnswer(input)
	for _, o := range options {
		if normalizeAnswer(o) == normalized {
			return o
		}
	}
	return ""
}

func normalizeAnswer(input string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(input), ".!?"))
}

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)
)

// parseContact extracts name, email and phone from free text like
// "John Doe, john@email.com, 305-555-1234". Email and phone are pulled by
// pattern, whatever remains is the name. Name and email are required.
func parseContact(input string) (name, email, phone string, ok bool) {
	email = emailRe.FindString(input)
	rest := strings.Replace(input, email, "", 1)
	phone = phoneRe.FindString(rest)
	rest = strings.Replace(rest, phone, "", 1)

	var parts []string
	for _, part := range strings.Split(rest, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	name = strings.Join(parts, " ")

	if name == "" || email == "" {
		return "", "", "", false
	}
	return name, email, strings.TrimSpace(phone), true
}
