package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD AGGREGATOR - Sums accepted amounts over an inclusive date range
// =============================================================================

// periodTotal sums the amounts of all rides for the employee with
// period.Start <= date <= period.End, regardless of processed state:
// exported rides still count toward month and year ceilings, they were
// legitimately earned. Pure read, no side effects.
func periodTotal(ctx context.Context, store Store, id EmployeeID, p Period) (decimal.Decimal, error) {
	rides, err := store.RidesInRange(ctx, id, p)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range rides {
		total = total.Add(r.Amount)
	}
	return total, nil
}

// PeriodTotal exposes the aggregator to callers (dashboards, reports).
func (s *Service) PeriodTotal(ctx context.Context, id EmployeeID, p Period) (decimal.Decimal, error) {
	if _, err := s.Employee(ctx, id); err != nil {
		return decimal.Zero, err
	}
	return periodTotal(ctx, s.store, id, p)
}

// Totals builds the dashboard view: the employee's current rate, the
// running month and year totals, and - for Belgian employees - the active
// ceiling and remaining allowance.
func (s *Service) Totals(ctx context.Context, id EmployeeID) (*EmployeeTotals, error) {
	e, err := s.Employee(ctx, id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.store.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}

	today := s.now()
	monthTotal, err := periodTotal(ctx, s.store, id, MonthOf(today))
	if err != nil {
		return nil, err
	}
	yearTotal, err := periodTotal(ctx, s.store, id, YearOf(today))
	if err != nil {
		return nil, err
	}

	totals := &EmployeeTotals{
		EmployeeID: id,
		Rate:       cfg.RateFor(e),
		MonthTotal: monthTotal,
		YearTotal:  yearTotal,
	}

	if e.Country == CountryBE {
		limit := cfg.ActiveLimit()
		used := yearTotal
		if cfg.BELimitType == LimitMonthly {
			used = monthTotal
		}
		remaining := limit.Sub(used)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		totals.Limit = &limit
		totals.Remaining = &remaining
	}
	return totals, nil
}
