package store

// ServiceRequestStatus is the lifecycle state of a ticket.
type ServiceRequestStatus string

const (
	ServiceRequestOpen     ServiceRequestStatus = "open"
	ServiceRequestClosed   ServiceRequestStatus = "closed"
	ServiceRequestResolved ServiceRequestStatus = "resolved"
)

// ServiceRequest is a submitted resident report routed to a department.
type ServiceRequest struct {
	ID int32
	// TicketID has the form "SR-<year>-<5-digit sequence>".
	TicketID    string
	Category    string
	Department  string
	Priority    Priority
	Description string
	Location    string
	Contact     string
	Status      ServiceRequestStatus
	SLAHours    int
	CreatedTs   int64
}

type FindServiceRequest struct {
	TicketID   *string
	Department *string
	Status     *ServiceRequestStatus
}

// ConversationLog is one audited conversational turn. Writes are
// fire-and-forget; a failed write never surfaces to the user.
type ConversationLog struct {
	ID               int32
	Channel          string
	UserID           string
	UserMessage      string
	AssistantMessage string
	Language         string
	Sentiment        string
	Escalated        bool
	CreatedTs        int64
}
