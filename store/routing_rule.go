package store

// Priority is the urgency classification of a routed service request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// SLAHours returns the target response time for a priority.
func (p Priority) SLAHours() int {
	switch p {
	case PriorityHigh:
		return 24
	case PriorityMedium:
		return 48
	default:
		return 72
	}
}

// RoutingRule maps report keywords to a city department. Rules are managed
// by administrators and consumed read-only by the intent matcher.
type RoutingRule struct {
	ID         int32
	Name       string
	Keywords   []string
	Department string
	Priority   Priority
	SLAHours   int
	// CatchAll marks the fallback rule that matches anything. It is skipped
	// during keyword-overlap scoring.
	CatchAll bool
	Active   bool
}

// FAQ is a configured question/answer pair. An FAQ may carry a workflow
// action that turns a close question match into a workflow entry point.
type FAQ struct {
	ID       int32
	Question string
	Answer   string
	Language string
	// WorkflowAction, when non-empty, names the workflow this FAQ triggers
	// ("appointment" or "service_request").
	WorkflowAction string
	Active         bool
}
