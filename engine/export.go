/*
export.go - Payroll export batching and period locking

PURPOSE:
  Export collects every unprocessed ride into a numbered batch, marks the
  rides processed, and appends a history record. From that moment the
  batch's [PeriodStart, PeriodEnd] interval is permanently read-only for
  submissions: the lock is derived by scanning export history, never by
  flagging dates.

ATOMICITY:
  The selection, the marking, and the history append run inside one store
  transaction, under the same service mutex that serializes submissions.
  A ride accepted concurrently with an export therefore lands entirely
  before the batch (and is included) or entirely after it (and waits for
  the next one) - it is never silently left half-flagged.

IDEMPOTENCE:
  An export request with zero unprocessed rides fails with ErrEmptyExport
  instead of silently doing nothing, so automated callers get a clear
  signal.
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IsLocked reports whether the date falls inside the covered interval of
// any export batch. Checked before all other submission rules; deadline
// exceptions do not override it.
func (s *Service) IsLocked(ctx context.Context, d Date) (bool, error) {
	return dateLocked(ctx, s.store, d)
}

func dateLocked(ctx context.Context, store Store, d Date) (bool, error) {
	batches, err := store.ListExportBatches(ctx)
	if err != nil {
		return false, err
	}
	for _, b := range batches {
		if b.Period().Contains(d) {
			return true, nil
		}
	}
	return false, nil
}

// PendingExport returns the rides the next batch would contain, with their
// total. Used for the export preview.
func (s *Service) PendingExport(ctx context.Context) ([]Ride, decimal.Decimal, error) {
	rides, err := s.store.UnprocessedRides(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range rides {
		total = total.Add(r.Amount)
	}
	return rides, total, nil
}

// Export batches all unprocessed rides, locks their date range, and
// returns the batch record together with the rides as exported (flagged
// with the batch id and timestamp). Batch ids are 1-based and strictly
// increasing.
func (s *Service) Export(ctx context.Context) (*ExportBatch, []Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch ExportBatch
	var exported []Ride

	err := withTx(ctx, s.store, func(store Store) error {
		rides, err := store.UnprocessedRides(ctx)
		if err != nil {
			return err
		}
		if len(rides) == 0 {
			return ErrEmptyExport
		}

		periodStart := rides[0].Date
		periodEnd := rides[0].Date
		total := decimal.Zero
		ids := make([]RideID, 0, len(rides))
		for _, r := range rides {
			if r.Date.Before(periodStart) {
				periodStart = r.Date
			}
			if r.Date.After(periodEnd) {
				periodEnd = r.Date
			}
			total = total.Add(r.Amount)
			ids = append(ids, r.ID)
		}

		history, err := store.ListExportBatches(ctx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		batch = ExportBatch{
			BatchID:     len(history) + 1,
			ExportedAt:  now,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			RideCount:   len(rides),
			TotalAmount: total,
		}

		if err := store.MarkProcessed(ctx, ids, batch.BatchID, now); err != nil {
			return fmt.Errorf("mark rides processed: %w", err)
		}
		if err := store.AppendExportBatch(ctx, batch); err != nil {
			return fmt.Errorf("append export batch: %w", err)
		}

		exported = rides
		for i := range exported {
			exported[i].Processed = true
			exported[i].ExportBatchID = batch.BatchID
			exported[i].ExportedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &batch, exported, nil
}

// ExportHistory lists all batches, oldest first.
func (s *Service) ExportHistory(ctx context.Context) ([]ExportBatch, error) {
	return s.store.ListExportBatches(ctx)
}

// ExportedRides returns the rides of a past batch, for re-downloading the
// payroll artifact.
func (s *Service) ExportedRides(ctx context.Context, batchID int) (*ExportBatch, []Ride, error) {
	batches, err := s.store.ListExportBatches(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, b := range batches {
		if b.BatchID == batchID {
			rides, err := s.store.RidesByBatch(ctx, batchID)
			if err != nil {
				return nil, nil, err
			}
			return &b, rides, nil
		}
	}
	return nil, nil, fmt.Errorf("export batch %d not found", batchID)
}
