/*
Package engine implements the bicycle commuting reimbursement core.

PURPOSE:
  This package contains the domain types and algorithms for validating and
  pricing commute rides under the Belgian and Dutch rule sets: submission
  windows, per-day ride caps, fiscal ceilings with BLOCK/CAP enforcement,
  and the export batching that permanently locks paid-out periods.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: HR-owned master data with approved trajectories
  - Ride: an accepted, immutable reimbursement entry (the ledger row)
  - ExportBatch: an append-only payroll export record that locks its period
  - DeadlineException: per-employee permission for late corrections
  - Result: outcome of a ride submission (decision, messages, amount)

DESIGN PRINCIPLES:
  1. Immutability: accepted rides are never edited; export flips one flag once
  2. Precision: uses decimal.Decimal for all currency and distance arithmetic
  3. Type safety: strong typing for IDs and enumerations
  4. Auditability: rides snapshot the rate, name, and bike policy at
     submission time so later configuration edits cannot rewrite history

SEE ALSO:
  - rules.go: the ordered validation rule chain
  - config.go: tunable rates, ceilings, and deadlines
  - export.go: batch creation and period locking
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS AND ENUMERATIONS
// =============================================================================

type EmployeeID string
type RideID string

type Country string

const (
	CountryBE Country = "BE"
	CountryNL Country = "NL"
)

func (c Country) Valid() bool { return c == CountryBE || c == CountryNL }

type BikeType string

const (
	BikeOwn     BikeType = "own"
	BikeCompany BikeType = "company"
)

func (b BikeType) Valid() bool { return b == BikeOwn || b == BikeCompany }

type RideType string

const (
	RideOneWay    RideType = "ONE_WAY"
	RideRoundTrip RideType = "ROUND_TRIP"
)

func (rt RideType) Valid() bool { return rt == RideOneWay || rt == RideRoundTrip }

// Factor returns the distance multiplier for the ride type.
func (rt RideType) Factor() decimal.Decimal {
	if rt == RideRoundTrip {
		return decimal.NewFromInt(2)
	}
	return decimal.NewFromInt(1)
}

// =============================================================================
// EMPLOYEE - Master data, mutated only by HR actions
// =============================================================================

// Employee is HR-owned master data. Trajectories map an approved route name
// to its one-way distance in km; employees only select from this set, the
// distance itself is never user input at submission time.
type Employee struct {
	ID       EmployeeID
	Name     string
	Country  Country
	BikeType BikeType

	// Route name -> one-way km, appended only via trajectory approval.
	Trajectories map[string]decimal.Decimal

	CreatedAt time.Time
}

// TrajectoryKM returns the declared one-way distance for a route name.
func (e *Employee) TrajectoryKM(name string) (decimal.Decimal, bool) {
	km, ok := e.Trajectories[name]
	return km, ok
}

// Clone returns a deep copy so callers cannot mutate stored master data.
func (e *Employee) Clone() *Employee {
	cp := *e
	cp.Trajectories = make(map[string]decimal.Decimal, len(e.Trajectories))
	for name, km := range e.Trajectories {
		cp.Trajectories[name] = km
	}
	return &cp
}

// =============================================================================
// RIDE - Immutable ledger entry for an accepted submission
// =============================================================================

// Ride is an accepted reimbursement entry. EmployeeName, Country, BikeType
// and RateApplied are snapshots taken at submission time for audit purposes;
// they do not change when HR later edits master data or configuration.
//
// Once Processed is true the ride belongs to an export batch and must never
// be edited, deleted, or counted into a later batch.
type Ride struct {
	ID           RideID
	EmployeeID   EmployeeID
	EmployeeName string
	Country      Country
	BikeType     BikeType

	Date       Date
	Trajectory string
	RideType   RideType
	DistanceKM decimal.Decimal
	Amount     decimal.Decimal

	// Currency per km actually used for this ride.
	RateApplied decimal.Decimal

	Processed     bool
	ExportBatchID int
	ExportedAt    time.Time

	CreatedAt time.Time
}

// =============================================================================
// EXPORT BATCH - Append-only payroll export history
// =============================================================================

// ExportBatch records one payroll export. Its [PeriodStart, PeriodEnd]
// interval is permanently read-only for ride submission afterwards; the
// lock is derived by scanning history, not by flagging individual dates.
type ExportBatch struct {
	BatchID     int
	ExportedAt  time.Time
	PeriodStart Date
	PeriodEnd   Date
	RideCount   int
	TotalAmount decimal.Decimal
}

// Period returns the locked date interval covered by this batch.
func (b ExportBatch) Period() Period {
	return Period{Start: b.PeriodStart, End: b.PeriodEnd}
}

// =============================================================================
// DEADLINE EXCEPTION - Per-employee late-entry permission
// =============================================================================

// DeadlineException lets one employee submit prior-month rides after the
// global deadline has passed, until ExpiresOn (inclusive). It never
// overrides an export lock.
type DeadlineException struct {
	EmployeeID EmployeeID
	ExpiresOn  Date
	GrantedAt  time.Time
}

// Active reports whether the exception still applies on the given day.
func (ex DeadlineException) Active(today Date) bool {
	return ex.ExpiresOn.AfterOrEqual(today)
}

// =============================================================================
// RESULT - Outcome of a ride submission
// =============================================================================

// Result is returned for every submission attempt. Callers must not infer
// acceptance from Amount alone: a free company-bike ride is accepted with
// amount zero, and so is every rejection.
type Result struct {
	Accepted bool
	Messages []string
	Amount   decimal.Decimal

	// Err carries the typed rejection reason when Accepted is false.
	Err error

	// Ride is the appended ledger entry when the submission was accepted
	// and persisted.
	Ride *Ride
}

// EmployeeTotals is the dashboard view of an employee's reimbursement state.
type EmployeeTotals struct {
	EmployeeID EmployeeID
	Rate       decimal.Decimal
	MonthTotal decimal.Decimal
	YearTotal  decimal.Decimal

	// Belgian employees only: the active ceiling and what is left of it.
	Limit     *decimal.Decimal
	Remaining *decimal.Decimal
}
