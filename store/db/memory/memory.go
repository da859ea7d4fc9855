// Package memory provides a process-local store driver for development and
// tests, and as the write-failure fallback tier.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/solmari/civassist/store"
)

// DB is an in-memory store driver. All methods are safe for concurrent use.
type DB struct {
	mu sync.Mutex

	rules        []*store.RoutingRule
	faqs         []*store.FAQ
	configs      []*store.AppointmentConfig
	appointments []*store.Appointment
	requests     []*store.ServiceRequest
	logs         []*store.ConversationLog

	nextRuleID    int32
	nextFAQID     int32
	nextRequestID int32
	nextLogID     int32
}

// NewDB creates an empty in-memory driver.
func NewDB() *DB {
	return &DB{}
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) ListRoutingRules(_ context.Context) ([]*store.RoutingRule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*store.RoutingRule, len(d.rules))
	copy(out, d.rules)
	return out, nil
}

func (d *DB) UpsertRoutingRule(_ context.Context, upsert *store.RoutingRule) (*store.RoutingRule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if upsert.ID == 0 {
		d.nextRuleID++
		upsert.ID = d.nextRuleID
		d.rules = append(d.rules, upsert)
		return upsert, nil
	}
	for i, r := range d.rules {
		if r.ID == upsert.ID {
			d.rules[i] = upsert
			return upsert, nil
		}
	}
	d.rules = append(d.rules, upsert)
	return upsert, nil
}

func (d *DB) ListFAQs(_ context.Context) ([]*store.FAQ, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*store.FAQ, len(d.faqs))
	copy(out, d.faqs)
	return out, nil
}

func (d *DB) UpsertFAQ(_ context.Context, upsert *store.FAQ) (*store.FAQ, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if upsert.ID == 0 {
		d.nextFAQID++
		upsert.ID = d.nextFAQID
		d.faqs = append(d.faqs, upsert)
		return upsert, nil
	}
	for i, f := range d.faqs {
		if f.ID == upsert.ID {
			d.faqs[i] = upsert
			return upsert, nil
		}
	}
	d.faqs = append(d.faqs, upsert)
	return upsert, nil
}

func (d *DB) ListAppointmentConfigs(_ context.Context) ([]*store.AppointmentConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*store.AppointmentConfig, len(d.configs))
	copy(out, d.configs)
	return out, nil
}

func (d *DB) UpsertAppointmentConfig(_ context.Context, upsert *store.AppointmentConfig) (*store.AppointmentConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, c := range d.configs {
		if c.ID == upsert.ID {
			d.configs[i] = upsert
			return upsert, nil
		}
	}
	d.configs = append(d.configs, upsert)
	return upsert, nil
}

func (d *DB) CreateAppointment(_ context.Context, create *store.Appointment) (*store.Appointment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.appointments {
		if a.ID == create.ID {
			return nil, fmt.Errorf("appointment %s already exists", create.ID)
		}
	}
	d.appointments = append(d.appointments, create)
	return create, nil
}

func (d *DB) ListAppointments(_ context.Context, find *store.FindAppointment) ([]*store.Appointment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Appointment
	for _, a := range d.appointments {
		if find.ServiceID != nil && a.ServiceID != *find.ServiceID {
			continue
		}
		if find.Date != nil && a.Date != *find.Date {
			continue
		}
		if find.Status != nil && a.Status != *find.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (d *DB) CountAppointments(_ context.Context, serviceID, date, slot string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	for _, a := range d.appointments {
		if a.ServiceID == serviceID && a.Date == date && a.Slot == slot && a.Status != store.AppointmentCancelled {
			count++
		}
	}
	return count, nil
}

func (d *DB) NextAppointmentSeq(_ context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	max := 0
	for _, a := range d.appointments {
		var seq int
		if _, err := fmt.Sscanf(a.ID, "book-%d", &seq); err == nil && seq > max {
			max = seq
		}
	}
	return max + 1, nil
}

func (d *DB) CreateServiceRequest(_ context.Context, create *store.ServiceRequest) (*store.ServiceRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextRequestID++
	create.ID = d.nextRequestID
	d.requests = append(d.requests, create)
	return create, nil
}

func (d *DB) ListServiceRequests(_ context.Context, find *store.FindServiceRequest) ([]*store.ServiceRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.ServiceRequest
	for _, r := range d.requests {
		if find.TicketID != nil && r.TicketID != *find.TicketID {
			continue
		}
		if find.Department != nil && r.Department != *find.Department {
			continue
		}
		if find.Status != nil && r.Status != *find.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (d *DB) NextServiceRequestSeq(_ context.Context, year int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	prefix := fmt.Sprintf("SR-%d-", year)
	for _, r := range d.requests {
		if len(r.TicketID) >= len(prefix) && r.TicketID[:len(prefix)] == prefix {
			count++
		}
	}
	return count + 1, nil
}

func (d *DB) CreateConversationLog(_ context.Context, create *store.ConversationLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextLogID++
	create.ID = d.nextLogID
	d.logs = append(d.logs, create)
	return nil
}

// ConversationLogs returns the captured audit records. Test helper.
func (d *DB) ConversationLogs() []*store.ConversationLog {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*store.ConversationLog, len(d.logs))
	copy(out, d.logs)
	return out
}
