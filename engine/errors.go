/*
errors.go - Centralized error types for the reimbursement engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Rejections are recoverable and local: they produce a rejection Result
  with explanatory messages and never corrupt ledger state. Contract
  violations from the presentation layer (unknown employee, unknown
  trajectory) surface as distinct not-found errors.

ERROR CATEGORIES:
  1. Rejection errors - business rule failures on a ride submission
  2. Master data errors - HR mutation failures (duplicates, approval gate)
  3. Contract errors - bad references from callers

USAGE:
  if errors.Is(result.Err, engine.ErrWindowExpired) { ... }
*/
package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrFutureDate is returned when a ride is dated after today.
	ErrFutureDate = errors.New("ride date is in the future")

	// ErrPeriodLocked is returned when the ride date falls inside an
	// already-exported period. No override mechanism exists.
	ErrPeriodLocked = errors.New("period already exported and locked")

	// ErrWindowExpired is returned when the submission window for the ride
	// date has closed (older than the previous month, or previous month
	// after the deadline without an active exception).
	ErrWindowExpired = errors.New("submission window expired")

	// ErrDailyCapExceeded is returned when the employee already reached the
	// configured maximum number of rides on that date.
	ErrDailyCapExceeded = errors.New("daily ride cap exceeded")

	// ErrFiscalLimitExceeded is returned in BLOCK mode when the ride would
	// push the period total over the Belgian ceiling.
	ErrFiscalLimitExceeded = errors.New("fiscal limit exceeded")

	// ErrFiscalLimitConsumed is returned in CAP mode when no allowance
	// remains at all.
	ErrFiscalLimitConsumed = errors.New("fiscal limit fully consumed")

	// ErrDuplicateEmployee is returned when an employee ID already exists.
	ErrDuplicateEmployee = errors.New("employee already exists")

	// ErrDuplicateTrajectory is returned when a trajectory name already
	// exists for the employee.
	ErrDuplicateTrajectory = errors.New("trajectory already exists")

	// ErrUnapprovedDeclaration is returned when a trajectory approval is
	// attempted without the declaration-on-honor confirmation.
	ErrUnapprovedDeclaration = errors.New("declaration on honor not confirmed")

	// ErrEmptyExport is returned when an export is requested with zero
	// unprocessed rides. Explicit error rather than silent no-op so
	// automated callers notice.
	ErrEmptyExport = errors.New("no unprocessed rides to export")

	// ErrEmployeeNotFound is returned for references to unknown employees.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrTrajectoryNotFound is returned for references to unknown trajectories.
	ErrTrajectoryNotFound = errors.New("trajectory not found")

	// ErrInvalidConfig is returned when a configuration edit fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FiscalLimitError reports a Belgian ceiling violation with the numbers
// involved. It unwraps to ErrFiscalLimitExceeded (BLOCK) or
// ErrFiscalLimitConsumed (CAP with zero allowance left).
type FiscalLimitError struct {
	LimitType LimitType
	Limit     decimal.Decimal
	Existing  decimal.Decimal
	Requested decimal.Decimal
	Mode      EnforceMode
}

func (e *FiscalLimitError) Error() string {
	return fmt.Sprintf("%s limit %s exceeded: %s already reimbursed, %s requested",
		e.LimitType, e.Limit.StringFixed(2), e.Existing.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *FiscalLimitError) Unwrap() error {
	if e.Mode == EnforceCap {
		return ErrFiscalLimitConsumed
	}
	return ErrFiscalLimitExceeded
}

// NotFoundError identifies which reference was broken by the caller.
type NotFoundError struct {
	Kind string // "employee" or "trajectory"
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Ref)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "trajectory" {
		return ErrTrajectoryNotFound
	}
	return ErrEmployeeNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRejection returns true if the error is a ride submission rejection,
// i.e. a business rule failure that yields a rejection Result rather than
// an internal fault.
func IsRejection(err error) bool {
	return errors.Is(err, ErrFutureDate) ||
		errors.Is(err, ErrPeriodLocked) ||
		errors.Is(err, ErrWindowExpired) ||
		errors.Is(err, ErrDailyCapExceeded) ||
		errors.Is(err, ErrFiscalLimitExceeded) ||
		errors.Is(err, ErrFiscalLimitConsumed)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return IsRejection(err) ||
		errors.Is(err, ErrDuplicateEmployee) ||
		errors.Is(err, ErrDuplicateTrajectory) ||
		errors.Is(err, ErrUnapprovedDeclaration) ||
		errors.Is(err, ErrEmptyExport) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsNotFound returns true if the error indicates a broken reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrTrajectoryNotFound)
}
