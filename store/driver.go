package store

import (
	"context"
)

// Driver is an interface for store driver.
// It contains all methods that a store database driver should implement.
type Driver interface {
	Close() error

	// RoutingRule model related methods.
	ListRoutingRules(ctx context.Context) ([]*RoutingRule, error)
	UpsertRoutingRule(ctx context.Context, upsert *RoutingRule) (*RoutingRule, error)

	// FAQ model related methods.
	ListFAQs(ctx context.Context) ([]*FAQ, error)
	UpsertFAQ(ctx context.Context, upsert *FAQ) (*FAQ, error)

	// AppointmentConfig model related methods.
	ListAppointmentConfigs(ctx context.Context) ([]*AppointmentConfig, error)
	UpsertAppointmentConfig(ctx context.Context, upsert *AppointmentConfig) (*AppointmentConfig, error)

	// Appointment model related methods.
	CreateAppointment(ctx context.Context, create *Appointment) (*Appointment, error)
	ListAppointments(ctx context.Context, find *FindAppointment) ([]*Appointment, error)
	// CountAppointments returns the number of non-cancelled bookings for one
	// (service, date, slot) triple. Used to enforce slot capacity.
	CountAppointments(ctx context.Context, serviceID, date, slot string) (int, error)
	// NextAppointmentSeq returns the next booking sequence number.
	NextAppointmentSeq(ctx context.Context) (int, error)

	// ServiceRequest model related methods.
	CreateServiceRequest(ctx context.Context, create *ServiceRequest) (*ServiceRequest, error)
	ListServiceRequests(ctx context.Context, find *FindServiceRequest) ([]*ServiceRequest, error)
	// NextServiceRequestSeq returns the next ticket sequence number for the
	// given year.
	NextServiceRequestSeq(ctx context.Context, year int) (int, error)

	// ConversationLog model related methods.
	CreateConversationLog(ctx context.Context, create *ConversationLog) error
}
