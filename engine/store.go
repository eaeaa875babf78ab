/*
store.go - Persistence interface for the five entity collections

PURPOSE:
  Defines the interface between the domain logic and storage. The Store
  provides load/save of configuration, employees, rides, export batches,
  and deadline exceptions. Different implementations can use SQLite or
  in-memory storage.

APPEND-ONLY CONTRACT:
  The ride collection is append-only until export: AppendRide is the only
  way a ride enters the ledger, and MarkProcessed is the only mutation
  that ever touches an existing ride. It flips the processed flag exactly
  once and stamps the batch id and export timestamp. No other ride field
  is ever updated, and nothing is ever deleted.

ATOMIC EXPORT:
  TxStore.WithTx gives the export manager all-or-nothing semantics:
  selecting the unprocessed rides, marking them processed, and appending
  the batch record either all happen or none do.

IMPLEMENTATIONS:
  - engine/store/memory.go: in-memory, for tests and development
  - store/sqlite/sqlite.go:  production SQLite
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Load/save for the entity collections
// =============================================================================

type Store interface {
	// Configuration (singleton).
	LoadConfig(ctx context.Context) (Config, error)
	SaveConfig(ctx context.Context, cfg Config) error

	// Master directory. SaveEmployee upserts; uniqueness of new IDs is
	// enforced by the service before the call.
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	// Ride ledger. Append-only; see file header.
	AppendRide(ctx context.Context, r Ride) error
	RidesByEmployee(ctx context.Context, id EmployeeID) ([]Ride, error)
	RidesInRange(ctx context.Context, id EmployeeID, p Period) ([]Ride, error)
	RidesOnDate(ctx context.Context, id EmployeeID, d Date) ([]Ride, error)
	UnprocessedRides(ctx context.Context) ([]Ride, error)
	RidesByBatch(ctx context.Context, batchID int) ([]Ride, error)
	MarkProcessed(ctx context.Context, ids []RideID, batchID int, at time.Time) error

	// Export history, append-only.
	AppendExportBatch(ctx context.Context, b ExportBatch) error
	ListExportBatches(ctx context.Context) ([]ExportBatch, error)

	// Deadline exceptions. ActiveDeadlineException returns nil for a
	// missing or expired entry; expired entries are pruned on read.
	SaveDeadlineException(ctx context.Context, ex DeadlineException) error
	ActiveDeadlineException(ctx context.Context, id EmployeeID, today Date) (*DeadlineException, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For the atomic export
// =============================================================================

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction is rolled back, otherwise committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// withTx runs fn transactionally when the store supports it, and directly
// otherwise (the in-memory store under the service mutex is already atomic
// from the caller's point of view).
func withTx(ctx context.Context, s Store, fn func(Store) error) error {
	if ts, ok := s.(TxStore); ok {
		return ts.WithTx(ctx, fn)
	}
	return fn(s)
}
