/*
rules.go - The ordered validation rule chain

PURPOSE:
  A candidate ride passes through a fixed, short-circuiting chain of named
  rules. Each rule either passes (possibly adding an informational message)
  or rejects with a typed error and a user-facing message. The chain order
  is load-bearing and must not change:

    1. future      - no rides dated after today
    2. export-lock - exported periods are permanently closed
    3. window      - current month always; previous month until the
                     deadline or under an active exception; older never
    4. daily-cap   - at most MaxRidesPerDay rides per employee per date
    5. pricing     - distance x rate, then the Belgian ceiling check

  Making the chain an explicit list keeps every rule independently
  unit-testable and the ordering visible in one place.

INVARIANTS:
  - The deadline compares today against day DeadlineDay of TODAY's month,
    never the ride's month.
  - The daily cap counts rides in any processed state.
  - The ceiling window is the ride date's own month/year, and the existing
    total includes processed rides (they were legitimately earned).
  - A deadline exception relaxes the window only; it never overrides an
    export lock.
*/
package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULE CONTEXT - Carried through the chain
// =============================================================================

// ruleContext holds the candidate submission plus everything the rules
// need to read. Pricing fills in distance, rate, and amount.
type ruleContext struct {
	store Store
	cfg   Config
	today Date

	employee   *Employee
	date       Date
	trajectory string
	rideType   RideType
	oneWayKM   decimal.Decimal

	distanceKM decimal.Decimal
	rate       decimal.Decimal
	amount     decimal.Decimal
	messages   []string
}

func (rc *ruleContext) say(format string, args ...any) {
	rc.messages = append(rc.messages, fmt.Sprintf(format, args...))
}

// =============================================================================
// THE CHAIN - Fixed order, short-circuiting
// =============================================================================

type rule struct {
	name  string
	check func(ctx context.Context, rc *ruleContext) error
}

var submissionRules = []rule{
	{"future", checkFuture},
	{"export-lock", checkExportLock},
	{"window", checkWindow},
	{"daily-cap", checkDailyCap},
	{"pricing", priceRide},
}

// =============================================================================
// RULES
// =============================================================================

func checkFuture(_ context.Context, rc *ruleContext) error {
	if rc.date.After(rc.today) {
		rc.say("rides cannot be registered in the future")
		return ErrFutureDate
	}
	return nil
}

func checkExportLock(ctx context.Context, rc *ruleContext) error {
	locked, err := dateLocked(ctx, rc.store, rc.date)
	if err != nil {
		return err
	}
	if locked {
		rc.say("this period has already been exported and can no longer be changed")
		return ErrPeriodLocked
	}
	return nil
}

func checkWindow(ctx context.Context, rc *ruleContext) error {
	currentMonthStart := rc.today.StartOfMonth()
	if rc.date.AfterOrEqual(currentMonthStart) {
		return nil
	}

	// Deadline is always day N of today's month, regardless of which prior
	// month is being corrected.
	deadline := NewDate(rc.today.Year(), rc.today.Month(), rc.cfg.DeadlineDay)
	previousMonthStart := currentMonthStart.AddMonths(-1)

	if rc.date.Before(previousMonthStart) {
		rc.say("this date can no longer be entered (current month plus previous month until %s)", deadline)
		return ErrWindowExpired
	}

	if rc.today.BeforeOrEqual(deadline) {
		rc.say("note: you are correcting a ride from the previous month (deadline %s)", deadline)
		return nil
	}

	ex, err := rc.store.ActiveDeadlineException(ctx, rc.employee.ID, rc.today)
	if err != nil {
		return err
	}
	if ex != nil {
		rc.say("note: you are correcting a ride from the previous month (late entry granted until %s)", ex.ExpiresOn)
		return nil
	}

	rc.say("this date can no longer be entered (current month plus previous month until %s)", deadline)
	return ErrWindowExpired
}

func checkDailyCap(ctx context.Context, rc *ruleContext) error {
	// Counts rides in any processed state.
	rides, err := rc.store.RidesOnDate(ctx, rc.employee.ID, rc.date)
	if err != nil {
		return err
	}
	if len(rides) >= rc.cfg.MaxRidesPerDay {
		rc.say("you have reached the maximum of %d rides for this date", rc.cfg.MaxRidesPerDay)
		return ErrDailyCapExceeded
	}
	return nil
}

// =============================================================================
// PRICING - Distance, rate, and the Belgian ceiling
// =============================================================================

func priceRide(ctx context.Context, rc *ruleContext) error {
	rc.distanceKM = rc.oneWayKM.Mul(rc.rideType.Factor())

	switch rc.employee.Country {
	case CountryBE:
		rc.rate = rc.cfg.BERate
		rc.amount = rc.distanceKM.Mul(rc.rate)
		return applyFiscalCeiling(ctx, rc)

	case CountryNL:
		if rc.employee.BikeType == BikeCompany {
			rc.rate = rc.cfg.NLCompanyRate
			rc.amount = rc.distanceKM.Mul(rc.rate)
			if rc.amount.IsZero() {
				rc.say("company bike (NL): no reimbursement")
			} else {
				rc.say("company bike (NL): reimbursement of %s is taxable", euro(rc.amount))
			}
			return nil
		}
		rc.rate = rc.cfg.NLOwnRate
		rc.amount = rc.distanceKM.Mul(rc.rate)
		return nil

	default:
		return fmt.Errorf("employee %s has unknown country %q", rc.employee.ID, rc.employee.Country)
	}
}

// applyFiscalCeiling checks the new amount against the active Belgian
// ceiling over the ride date's own month or year. Processed rides count
// toward the existing total.
func applyFiscalCeiling(ctx context.Context, rc *ruleContext) error {
	limit := rc.cfg.ActiveLimit()
	period := rc.cfg.LimitPeriod(rc.date)

	existing, err := periodTotal(ctx, rc.store, rc.employee.ID, period)
	if err != nil {
		return err
	}

	if existing.Add(rc.amount).LessThanOrEqual(limit) {
		return nil
	}

	limitErr := &FiscalLimitError{
		LimitType: rc.cfg.BELimitType,
		Limit:     limit,
		Existing:  existing,
		Requested: rc.amount,
		Mode:      rc.cfg.BEEnforceMode,
	}

	if rc.cfg.BEEnforceMode == EnforceBlock {
		rc.say("%s limit (%s) exceeded", limitWord(rc.cfg.BELimitType), euro(limit))
		return limitErr
	}

	allowed := limit.Sub(existing)
	if allowed.IsNegative() {
		allowed = decimal.Zero
	}
	if allowed.IsZero() {
		rc.say("%s limit (%s) fully consumed", limitWord(rc.cfg.BELimitType), euro(limit))
		return limitErr
	}

	rc.say("amount capped to %s: only %s of the %s limit (%s) remained",
		euro(allowed), euro(allowed), limitWord(rc.cfg.BELimitType), euro(limit))
	rc.amount = allowed
	return nil
}

func limitWord(lt LimitType) string {
	if lt == LimitMonthly {
		return "monthly"
	}
	return "yearly"
}

func euro(d decimal.Decimal) string {
	return "€" + d.StringFixed(2)
}
