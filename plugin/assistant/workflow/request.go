package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solmari/civassist/plugin/assistant/intent"
	"github.com/solmari/civassist/plugin/assistant/langdetect"
	"github.com/solmari/civassist/plugin/assistant/state"
	"github.com/solmari/civassist/store"
)

// Service request flow steps.
const (
	requestStepCollectDetails  = 1
	requestStepCollectLocation = 2
	requestStepConfirm         = 3
)

// ServiceRequestFlow interprets the service-request submission workflow.
type ServiceRequestFlow struct {
	store   *store.Store
	machine *state.Machine
	now     func() time.Time
}

// NewServiceRequestFlow creates the service request flow.
func NewServiceRequestFlow(s *store.Store, m *state.Machine) *ServiceRequestFlow {
	return &ServiceRequestFlow{store: s, machine: m, now: time.Now}
}

// Start enters the workflow, optionally pre-seeding the category from the
// matcher's routing-rule hit. With no configured categories the workflow is
// never entered.
func (f *ServiceRequestFlow) Start(ctx context.Context, sessionID string, lang langdetect.Language, rule *store.RoutingRule) (*Result, error) {
	p := promptsFor(lang)
	rules, err := f.store.ListActiveRoutingRules(ctx)
	if err != nil {
		return nil, err
	}
	if !anyRoutable(rules) {
		return &Result{Message: p.requestUnavailable, Done: true}, nil
	}

	seed := state.Data{Request: &state.RequestData{}}
	if rule != nil {
		seed.Request.RuleID = rule.ID
		seed.Request.Category = rule.Name
		seed.Request.Department = rule.Department
		seed.Request.Priority = string(rule.Priority)
	}
	if _, err := f.machine.Start(ctx, sessionID, state.WorkflowServiceRequest, seed, lang); err != nil {
		return nil, err
	}
	return &Result{Message: p.collectDetails}, nil
}

// Step interprets one user command against the current step.
func (f *ServiceRequestFlow) Step(ctx context.Context, st *state.State, cmd Command) (*Result, error) {
	p := promptsFor(st.Language)
	data := st.Data.Request
	if data == nil {
		if err := f.machine.ClearWorkflow(ctx, st.SessionID); err != nil {
			return nil, err
		}
		return &Result{Message: p.cancelled, Done: true}, nil
	}

	switch st.Step {
	case requestStepCollectDetails:
		return f.stepCollectDetails(ctx, st, cmd, p)
	case requestStepCollectLocation:
		return f.stepCollectLocation(ctx, st, cmd, p)
	case requestStepConfirm:
		return f.stepConfirm(ctx, st, cmd, p)
	default:
		if err := f.machine.ClearWorkflow(ctx, st.SessionID); err != nil {
			return nil, err
		}
		return &Result{Message: p.cancelled, Done: true}, nil
	}
}

func (f *ServiceRequestFlow) stepCollectDetails(ctx context.Context, st *state.State, cmd Command, p promptSet) (*Result, error) {
	description := cmd.Input()
	if description == "" {
		return &Result{Message: p.collectDetails}, nil
	}

	data := st.Data.Request
	category, department, priority := data.Category, data.Department, data.Priority
	if category == "" {
		// Category was not pre-seeded by the matcher. Re-detect from the
		// description, falling back to the catch-all rule.
		rules, err := f.store.ListActiveRoutingRules(ctx)
		if err != nil {
			return nil, err
		}
		rule := intent.ResolveRule(description, rules)
		if rule == nil {
			rule = catchAllRule(rules)
		}
		if rule != nil {
			category = rule.Name
			department = rule.Department
			priority = string(rule.Priority)
		}
	}
	if priority == "" {
		priority = string(store.PriorityMedium)
	}

	if _, err := f.machine.Advance(ctx, st.SessionID, func(d *state.Data) {
		d.Request.Description = description
		d.Request.Category = category
		d.Request.Department = department
		d.Request.Priority = priority
	}); err != nil {
		return nil, err
	}
	return &Result{Message: p.collectLocation}, nil
}

func (f *ServiceRequestFlow) stepCollectLocation(ctx context.Context, st *state.State, cmd Command, p promptSet) (*Result, error) {
	location := ""
	if cmd.Kind != CommandSkip {
		location = cmd.Input()
	}

	data := st.Data.Request
	if _, err := f.machine.Advance(ctx, st.SessionID, func(d *state.Data) {
		d.Request.Location = location
	}); err != nil {
		return nil, err
	}

	shownLocation := location
	if shownLocation == "" {
		shownLocation = p.notProvided
	}
	return &Result{
		Message: fmt.Sprintf(p.confirmRequest, data.Category, data.Description, shownLocation),
		Options: []Option{{ID: "yes", Label: p.yesLabel}, {ID: "no", Label: p.noLabel}},
	}, nil
}

func (f *ServiceRequestFlow) stepConfirm(ctx context.Context, st *state.State, cmd Command, p promptSet) (*Result, error) {
	data := st.Data.Request
	input := cmd.Input()
	switch {
	case isYes(input):
		result, err := f.createTicket(ctx, data, p)
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
		shownLocation := data.Location
		if shownLocation == "" {
			shownLocation = p.notProvided
		}
		return &Result{
			Message: fmt.Sprintf(p.confirmRequest, data.Category, data.Description, shownLocation),
			Options: []Option{{ID: "yes", Label: p.yesLabel}, {ID: "no", Label: p.noLabel}},
		}, nil
	}
}

func (f *ServiceRequestFlow) createTicket(ctx context.Context, data *state.RequestData, p promptSet) (*Result, error) {
	year := f.now().Year()
	seq, err := f.store.NextServiceRequestSeq(ctx, year)
	if err != nil {
		slog.Warn("failed to allocate ticket sequence", "error", err)
		return &Result{Message: p.persistFailed, Done: true}, nil
	}

	priority := store.Priority(data.Priority)
	ticket := &store.ServiceRequest{
		TicketID:    fmt.Sprintf("SR-%d-%05d", year, seq),
		Category:    data.Category,
		Department:  data.Department,
		Priority:    priority,
		Description: data.Description,
		Location:    data.Location,
		Contact:     data.Contact,
		Status:      store.ServiceRequestOpen,
		SLAHours:    priority.SLAHours(),
		CreatedTs:   f.now().Unix(),
	}
	if _, err := f.store.CreateServiceRequest(ctx, ticket); err != nil {
		slog.Warn("failed to persist service request", "error", err)
		return &Result{Message: p.persistFailed, Done: true}, nil
	}
	return &Result{Message: fmt.Sprintf(p.requestCreated, ticket.TicketID, ticket.SLAHours), Done: true}, nil
}

func anyRoutable(rules []*store.RoutingRule) bool {
	for _, r := range rules {
		if !r.CatchAll {
			return true
		}
	}
	return false
}

func catchAllRule(rules []*store.RoutingRule) *store.RoutingRule {
	for _, r := range rules {
		if r.CatchAll {
			return r
		}
	}
	return nil
}
