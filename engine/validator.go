/*
validator.go - Ride submission: validate, price, append

PURPOSE:
  Runs a candidate ride through the rule chain (rules.go) and, for
  SubmitRide, appends the accepted ride to the ledger under the service
  mutex so submissions serialize with exports.

RESULT SEMANTICS:
  - Business rejections return a Result with Accepted=false, the ordered
    messages, amount zero, and the typed reason in Err - and a nil error.
    The ledger is untouched; there are no partial writes on rejection.
  - Broken references (unknown employee or trajectory) are contract
    violations by the caller and return a NotFoundError, not a Result.
  - Store failures return an error.
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidateRide runs the full rule chain and computes the amount without
// touching the ledger. Useful for previews; SubmitRide is the real thing.
func (s *Service) ValidateRide(ctx context.Context, id EmployeeID, date Date, trajectoryName string, rideType RideType) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, _, err := s.validate(ctx, id, date, trajectoryName, rideType)
	return result, err
}

// SubmitRide validates a candidate ride and, when accepted, appends it to
// the ledger atomically. The returned Result carries the appended ride.
func (s *Service) SubmitRide(ctx context.Context, id EmployeeID, date Date, trajectoryName string, rideType RideType) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, rc, err := s.validate(ctx, id, date, trajectoryName, rideType)
	if err != nil || !result.Accepted {
		return result, err
	}

	ride := Ride{
		ID:           RideID(uuid.NewString()),
		EmployeeID:   rc.employee.ID,
		EmployeeName: rc.employee.Name,
		Country:      rc.employee.Country,
		BikeType:     rc.employee.BikeType,
		Date:         date,
		Trajectory:   trajectoryName,
		RideType:     rideType,
		DistanceKM:   rc.distanceKM,
		Amount:       rc.amount,
		RateApplied:  rc.rate,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.AppendRide(ctx, ride); err != nil {
		return nil, fmt.Errorf("append ride: %w", err)
	}
	result.Ride = &ride
	return result, nil
}

// validate resolves the references, then executes the chain in order.
// Callers hold s.mu.
func (s *Service) validate(ctx context.Context, id EmployeeID, date Date, trajectoryName string, rideType RideType) (*Result, *ruleContext, error) {
	if !rideType.Valid() {
		return nil, nil, fmt.Errorf("ride type must be ONE_WAY or ROUND_TRIP, got %q", rideType)
	}

	employee, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if employee == nil {
		return nil, nil, &NotFoundError{Kind: "employee", Ref: string(id)}
	}
	oneWayKM, ok := employee.TrajectoryKM(trajectoryName)
	if !ok {
		return nil, nil, &NotFoundError{Kind: "trajectory", Ref: trajectoryName}
	}

	cfg, err := s.store.LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	rc := &ruleContext{
		store:      s.store,
		cfg:        cfg,
		today:      s.now(),
		employee:   employee,
		date:       date,
		trajectory: trajectoryName,
		rideType:   rideType,
		oneWayKM:   oneWayKM,
	}

	for _, r := range submissionRules {
		if err := r.check(ctx, rc); err != nil {
			if IsRejection(err) {
				return &Result{
					Accepted: false,
					Messages: rc.messages,
					Amount:   decimal.Zero,
					Err:      err,
				}, rc, nil
			}
			return nil, nil, fmt.Errorf("rule %s: %w", r.name, err)
		}
	}

	rc.say("ride validated: %s for %s km", euro(rc.amount), rc.distanceKM.String())
	return &Result{
		Accepted: true,
		Messages: rc.messages,
		Amount:   rc.amount,
	}, rc, nil
}
