// Package store provides access to the durable record collections consumed
// by the conversation engine: routing rules, FAQ definitions, appointment
// configuration and bookings, service-request tickets and the conversation
// audit log.
package store

import (
	"context"
	"sync"
	"time"
)

// configCacheTTL bounds staleness of the externally managed collections
// (routing rules, FAQs, appointment configs). They change rarely and are
// read on every turn, so they are cached in-process.
const configCacheTTL = 1 * time.Minute

// Store provides database access to all raw objects.
type Store struct {
	driver Driver

	mu           sync.RWMutex
	ruleCache    *listCache[RoutingRule]
	faqCache     *listCache[FAQ]
	serviceCache *listCache[AppointmentConfig]
}

type listCache[T any] struct {
	items     []*T
	refreshed time.Time
}

func (c *listCache[T]) fresh(now time.Time) bool {
	return c != nil && now.Sub(c.refreshed) < configCacheTTL
}

// New creates a new instance of Store.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// ListActiveRoutingRules returns active routing rules, cached.
func (s *Store) ListActiveRoutingRules(ctx context.Context) ([]*RoutingRule, error) {
	now := time.Now()
	s.mu.RLock()
	cached := s.ruleCache
	s.mu.RUnlock()
	if cached.fresh(now) {
		return cached.items, nil
	}

	rules, err := s.driver.ListRoutingRules(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*RoutingRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}

	s.mu.Lock()
	s.ruleCache = &listCache[RoutingRule]{items: active, refreshed: now}
	s.mu.Unlock()
	return active, nil
}

// ListActiveFAQs returns active FAQ definitions, cached.
func (s *Store) ListActiveFAQs(ctx context.Context) ([]*FAQ, error) {
	now := time.Now()
	s.mu.RLock()
	cached := s.faqCache
	s.mu.RUnlock()
	if cached.fresh(now) {
		return cached.items, nil
	}

	faqs, err := s.driver.ListFAQs(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*FAQ, 0, len(faqs))
	for _, f := range faqs {
		if f.Active {
			active = append(active, f)
		}
	}

	s.mu.Lock()
	s.faqCache = &listCache[FAQ]{items: active, refreshed: now}
	s.mu.Unlock()
	return active, nil
}

// ListActiveAppointmentConfigs returns active appointment services, cached.
func (s *Store) ListActiveAppointmentConfigs(ctx context.Context) ([]*AppointmentConfig, error) {
	now := time.Now()
	s.mu.RLock()
	cached := s.serviceCache
	s.mu.RUnlock()
	if cached.fresh(now) {
		return cached.items, nil
	}

	configs, err := s.driver.ListAppointmentConfigs(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*AppointmentConfig, 0, len(configs))
	for _, c := range configs {
		if c.Active {
			active = append(active, c)
		}
	}

	s.mu.Lock()
	s.serviceCache = &listCache[AppointmentConfig]{items: active, refreshed: now}
	s.mu.Unlock()
	return active, nil
}

// CreateAppointment persists a confirmed booking.
func (s *Store) CreateAppointment(ctx context.Context, create *Appointment) (*Appointment, error) {
	return s.driver.CreateAppointment(ctx, create)
}

// ListAppointments returns bookings matching find.
func (s *Store) ListAppointments(ctx context.Context, find *FindAppointment) ([]*Appointment, error) {
	return s.driver.ListAppointments(ctx, find)
}

// CountAppointments returns the number of non-cancelled bookings for one
// (service, date, slot) triple.
func (s *Store) CountAppointments(ctx context.Context, serviceID, date, slot string) (int, error) {
	return s.driver.CountAppointments(ctx, serviceID, date, slot)
}

// NextAppointmentSeq returns the next booking sequence number.
func (s *Store) NextAppointmentSeq(ctx context.Context) (int, error) {
	return s.driver.NextAppointmentSeq(ctx)
}

// CreateServiceRequest persists a confirmed ticket.
func (s *Store) CreateServiceRequest(ctx context.Context, create *ServiceRequest) (*ServiceRequest, error) {
	return s.driver.CreateServiceRequest(ctx, create)
}

// ListServiceRequests returns tickets matching find.
func (s *Store) ListServiceRequests(ctx context.Context, find *FindServiceRequest) ([]*ServiceRequest, error) {
	return s.driver.ListServiceRequests(ctx, find)
}

// NextServiceRequestSeq returns the next ticket sequence number for the year.
func (s *Store) NextServiceRequestSeq(ctx context.Context, year int) (int, error) {
	return s.driver.NextServiceRequestSeq(ctx, year)
}

// CreateConversationLog appends an audit record. Best effort for callers,
// errors are returned but typically only logged.
func (s *Store) CreateConversationLog(ctx context.Context, create *ConversationLog) error {
	return s.driver.CreateConversationLog(ctx, create)
}

// InvalidateConfigCaches drops the cached config collections. Called after
// administrative updates so the next turn sees fresh data.
func (s *Store) InvalidateConfigCaches() {
	s.mu.Lock()
	s.ruleCache, s.faqCache, s.serviceCache = nil, nil, nil
	s.mu.Unlock()
}
