// Package state provides the per-session conversation state machine that
// tracks the active workflow, its current step and accumulated data.
//
// State transitions are explicit calls, never implicit. An unknown or
// expired session is not an error: it reads as "no active workflow", which
// routes the turn back to intent detection.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solmari/civassist/plugin/assistant/langdetect"
	"github.com/solmari/civassist/store/kv"
)

// Workflow identifies a guided multi-step interaction.
type Workflow string

const (
	WorkflowNone           Workflow = ""
	WorkflowAppointment    Workflow = "appointment"
	WorkflowServiceRequest Workflow = "service_request"
)

// AppointmentData accumulates appointment booking progress.
type AppointmentData struct {
	ServiceID   string   `json:"service_id,omitempty"`
	ServiceName string   `json:"service_name,omitempty"`
	Date        string   `json:"date,omitempty"`
	Slot        string   `json:"slot,omitempty"`
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	DateOptions []string `json:"date_options,omitempty"`
	SlotOptions []string `json:"slot_options,omitempty"`
}

// RequestData accumulates service-request submission progress.
type RequestData struct {
	RuleID      int32  `json:"rule_id,omitempty"`
	Category    string `json:"category,omitempty"`
	Department  string `json:"department,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

// Data is the workflow-specific payload, a variant keyed by the active
// workflow so each flow reads and writes its own typed fields.
type Data struct {
	Appointment *AppointmentData `json:"appointment,omitempty"`
	Request     *RequestData     `json:"request,omitempty"`
}

// State is the conversation state for one session key.
type State struct {
	SessionID   string              `json:"session_id"`
	Workflow    Workflow            `json:"workflow"`
	Step        int                 `json:"step"`
	Data        Data                `json:"data"`
	Language    langdetect.Language `json:"language"`
	LastUpdated time.Time           `json:"last_updated"`
}

// InWorkflow reports whether a workflow is active.
func (s *State) InWorkflow() bool {
	return s.Workflow != WorkflowNone
}

const (
	// TTL is the soft expiry for workflow state. A state older than this is
	// treated as freshly created on next access.
	TTL = 5 * time.Minute

	stateKeyPrefix = "state:"
)

// Machine manages conversation states over a KV store.
type Machine struct {
	kv kv.KV
}

// NewMachine creates a state machine over the given KV.
func NewMachine(store kv.KV) *Machine {
	return &Machine{kv: store}
}

func stateKey(sessionID string) string {
	return stateKeyPrefix + sessionID
}

func freshState(sessionID string) *State {
	return &State{SessionID: sessionID, LastUpdated: time.Now()}
}

// decodeLive returns the stored state, or nil when it is absent, expired or
// undecodable.
func decodeLive(raw []byte, found bool) *State {
	if !found {
		return nil
	}
	st := &State{}
	if json.Unmarshal(raw, st) != nil {
		return nil
	}
	if time.Since(st.LastUpdated) > TTL {
		return nil
	}
	return st
}

// Get returns the current state, lazily creating a fresh one for unknown or
// expired sessions.
func (m *Machine) Get(ctx context.Context, sessionID string) (*State, error) {
	raw, found, err := m.kv.Get(ctx, stateKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if st := decodeLive(raw, found); st != nil {
		return st, nil
	}
	return freshState(sessionID), nil
}

// Start begins a workflow at step 1 with seed data, replacing whatever was
// active before.
func (m *Machine) Start(ctx context.Context, sessionID string, workflow Workflow, seed Data, lang langdetect.Language) (*State, error) {
	st := freshState(sessionID)
	st.Workflow = workflow
	st.Step = 1
	st.Data = seed
	st.Language = lang
	if err := m.put(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Advance increments the step and applies merge to the workflow data. The
// merge runs under the key's lock; later writes win field by field.
func (m *Machine) Advance(ctx context.Context, sessionID string, merge func(*Data)) (*State, error) {
	var result *State
	err := m.kv.Update(ctx, stateKey(sessionID), TTL, func(current []byte, found bool) ([]byte, error) {
		st := decodeLive(current, found)
		if st == nil {
			st = freshState(sessionID)
		}
		st.Step++
		if merge != nil {
			merge(&st.Data)
		}
		st.LastUpdated = time.Now()
		result = st
		return json.Marshal(st)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to advance workflow: %w", err)
	}
	return result, nil
}

// SetStep rewinds or repositions the flow, optionally merging data. Used
// when a validation failure rolls a turn back to a prior step.
func (m *Machine) SetStep(ctx context.Context, sessionID string, step int, merge func(*Data)) error {
	err := m.kv.Update(ctx, stateKey(sessionID), TTL, func(current []byte, found bool) ([]byte, error) {
		st := decodeLive(current, found)
		if st == nil {
			return nil, nil
		}
		st.Step = step
		if merge != nil {
			merge(&st.Data)
		}
		st.LastUpdated = time.Now()
		return json.Marshal(st)
	})
	if err != nil {
		return fmt.Errorf("failed to set workflow step: %w", err)
	}
	return nil
}

// ClearWorkflow returns the session to no-workflow/step 0/empty data.
func (m *Machine) ClearWorkflow(ctx context.Context, sessionID string) error {
	return m.put(ctx, freshState(sessionID))
}

func (m *Machine) put(ctx context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := m.kv.Set(ctx, stateKey(st.SessionID), data, TTL); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

// ReapExpired prunes expired state entries. Lookups self-expire, so this is
// housekeeping only.
func (m *Machine) ReapExpired(ctx context.Context) (int, error) {
	// Listing prunes expired entries in the KV layer.
	keys, err := m.kv.Keys(ctx, stateKeyPrefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
