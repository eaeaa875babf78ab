/*
directory.go - Master directory mutations (HR actions only)

PURPOSE:
  Employees and their approved trajectories are read-mostly master data.
  The only mutations are the HR actions here: adding an employee,
  approving a trajectory after the declaration-on-honor check, and
  granting a deadline exception. Employees never write to this data;
  at submission time they only select from the approved trajectory set.
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AddEmployee registers a new employee, optionally with an initial
// trajectory. IDs are immutable once assigned; duplicates are rejected.
func (s *Service) AddEmployee(ctx context.Context, e Employee) error {
	if e.ID == "" || e.Name == "" {
		return fmt.Errorf("employee id and name are required")
	}
	if !e.Country.Valid() {
		return fmt.Errorf("country must be BE or NL, got %q", e.Country)
	}
	if !e.BikeType.Valid() {
		return fmt.Errorf("bike type must be own or company, got %q", e.BikeType)
	}
	for name, km := range e.Trajectories {
		if name == "" || !km.IsPositive() {
			return fmt.Errorf("trajectory %q: distance must be positive", name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetEmployee(ctx, e.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateEmployee, e.ID)
	}

	if e.Trajectories == nil {
		e.Trajectories = map[string]decimal.Decimal{}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return s.store.SaveEmployee(ctx, e)
}

// ApproveTrajectory appends a trajectory to an employee's approved set.
// The declarationReceived flag represents the signed declaration-on-honor;
// without it the approval is refused.
func (s *Service) ApproveTrajectory(ctx context.Context, id EmployeeID, name string, oneWayKM decimal.Decimal, declarationReceived bool) error {
	if !declarationReceived {
		return ErrUnapprovedDeclaration
	}
	if name == "" {
		return fmt.Errorf("trajectory name is required")
	}
	if !oneWayKM.IsPositive() {
		return fmt.Errorf("trajectory distance must be positive, got %s", oneWayKM)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return &NotFoundError{Kind: "employee", Ref: string(id)}
	}
	if _, exists := e.Trajectories[name]; exists {
		return fmt.Errorf("%w: %q for employee %s", ErrDuplicateTrajectory, name, id)
	}

	e.Trajectories[name] = oneWayKM
	return s.store.SaveEmployee(ctx, *e)
}

// GrantDeadlineException allows one employee to keep entering prior-month
// rides after the global deadline, until the expiry date (inclusive).
// Re-granting overwrites the previous expiry. Exceptions never unlock an
// exported period.
func (s *Service) GrantDeadlineException(ctx context.Context, id EmployeeID, expiresOn Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return &NotFoundError{Kind: "employee", Ref: string(id)}
	}
	if expiresOn.Before(s.now()) {
		return fmt.Errorf("exception expiry %s is already in the past", expiresOn)
	}

	return s.store.SaveDeadlineException(ctx, DeadlineException{
		EmployeeID: id,
		ExpiresOn:  expiresOn,
		GrantedAt:  time.Now().UTC(),
	})
}

// DeadlineExceptionFor returns the employee's active exception, or nil.
// Expired entries are pruned by the store on read.
func (s *Service) DeadlineExceptionFor(ctx context.Context, id EmployeeID) (*DeadlineException, error) {
	return s.store.ActiveDeadlineException(ctx, id, s.now())
}
