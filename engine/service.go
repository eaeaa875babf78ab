/*
service.go - The single-writer facade over the reimbursement engine

PURPOSE:
  Service is the entry point the presentation layer talks to. It owns the
  single-logical-writer discipline: every mutating operation (submission,
  configuration save, HR mutation, export) runs under one mutex, so a ride
  accepted concurrently with an in-flight export lands entirely before or
  entirely after the batch boundary, never half-in.

  All state lives behind the Store interface; the service itself is
  stateless apart from the lock and the clock.

CLOCK:
  "Today" drives the future check and the submission window, so it is
  injectable for tests. Production uses the real calendar.
*/
package engine

import (
	"context"
	"sync"
)

type Service struct {
	mu    sync.Mutex
	store Store
	now   func() Date
}

func NewService(store Store) *Service {
	return &Service{store: store, now: Today}
}

// NewServiceWithClock fixes "today" for deterministic validation tests.
func NewServiceWithClock(store Store, now func() Date) *Service {
	return &Service{store: store, now: now}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func (s *Service) Config(ctx context.Context) (Config, error) {
	return s.store.LoadConfig(ctx)
}

// SaveConfig validates and persists a full configuration. Takes effect
// immediately for all subsequent validations.
func (s *Service) SaveConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SaveConfig(ctx, cfg)
}

// =============================================================================
// READ VIEWS
// =============================================================================

func (s *Service) Employees(ctx context.Context) ([]Employee, error) {
	return s.store.ListEmployees(ctx)
}

func (s *Service) Employee(ctx context.Context, id EmployeeID) (*Employee, error) {
	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &NotFoundError{Kind: "employee", Ref: string(id)}
	}
	return e, nil
}

func (s *Service) Rides(ctx context.Context, id EmployeeID) ([]Ride, error) {
	if _, err := s.Employee(ctx, id); err != nil {
		return nil, err
	}
	return s.store.RidesByEmployee(ctx, id)
}
