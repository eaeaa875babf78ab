/*
config.go - Tunable rates, ceilings, and submission policy

PURPOSE:
  Holds the HR-owned configuration: per-km rates for both countries, the
  Belgian fiscal ceiling (monthly or yearly, BLOCK or CAP enforcement),
  the entry deadline for prior-month corrections, and the daily ride cap.

  Edits take effect immediately for all subsequent validations. Rides keep
  their own RateApplied snapshot, so history is never rewritten.

  Both limit values are always retained: switching BELimitType between
  monthly and yearly preserves the other value.
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

type LimitType string

const (
	LimitYearly  LimitType = "YEARLY"
	LimitMonthly LimitType = "MONTHLY"
)

func (lt LimitType) Valid() bool { return lt == LimitYearly || lt == LimitMonthly }

// EnforceMode controls what happens when a Belgian ride would cross the
// ceiling: BLOCK rejects it entirely, CAP pays out the remaining allowance.
type EnforceMode string

const (
	EnforceBlock EnforceMode = "BLOCK"
	EnforceCap   EnforceMode = "CAP"
)

func (m EnforceMode) Valid() bool { return m == EnforceBlock || m == EnforceCap }

// =============================================================================
// CONFIG - Singleton, HR-owned, mutated only via an explicit save
// =============================================================================

type Config struct {
	BERate         decimal.Decimal
	BELimitType    LimitType
	BEYearlyLimit  decimal.Decimal
	BEMonthlyLimit decimal.Decimal
	BEEnforceMode  EnforceMode

	NLOwnRate     decimal.Decimal
	NLCompanyRate decimal.Decimal

	// Day of month (1..28) until which prior-month rides may be entered.
	DeadlineDay int

	MaxRidesPerDay int
}

// DefaultConfig returns the initial configuration: the statutory Belgian
// rate and yearly ceiling, the statutory Dutch own-bike rate, a zero
// company-bike rate, and the usual mid-month deadline.
func DefaultConfig() Config {
	return Config{
		BERate:         decimal.NewFromFloat(0.27),
		BELimitType:    LimitYearly,
		BEYearlyLimit:  decimal.NewFromFloat(3160.00),
		BEMonthlyLimit: decimal.NewFromFloat(265.00),
		BEEnforceMode:  EnforceBlock,
		NLOwnRate:      decimal.NewFromFloat(0.23),
		NLCompanyRate:  decimal.Zero,
		DeadlineDay:    15,
		MaxRidesPerDay: 2,
	}
}

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	if c.BERate.IsNegative() || c.NLOwnRate.IsNegative() || c.NLCompanyRate.IsNegative() {
		return fmt.Errorf("%w: rates must be >= 0", ErrInvalidConfig)
	}
	if !c.BELimitType.Valid() {
		return fmt.Errorf("%w: limit type must be YEARLY or MONTHLY", ErrInvalidConfig)
	}
	if !c.BEYearlyLimit.IsPositive() || !c.BEMonthlyLimit.IsPositive() {
		return fmt.Errorf("%w: limits must be > 0", ErrInvalidConfig)
	}
	if !c.BEEnforceMode.Valid() {
		return fmt.Errorf("%w: enforce mode must be BLOCK or CAP", ErrInvalidConfig)
	}
	if c.DeadlineDay < 1 || c.DeadlineDay > 28 {
		return fmt.Errorf("%w: deadline day must be in 1..28", ErrInvalidConfig)
	}
	if c.MaxRidesPerDay < 1 {
		return fmt.Errorf("%w: max rides per day must be positive", ErrInvalidConfig)
	}
	return nil
}

// ActiveLimit returns whichever ceiling value the limit type selects.
func (c Config) ActiveLimit() decimal.Decimal {
	if c.BELimitType == LimitMonthly {
		return c.BEMonthlyLimit
	}
	return c.BEYearlyLimit
}

// LimitPeriod returns the ceiling window containing the ride date: the
// date's own month or year, not today's.
func (c Config) LimitPeriod(d Date) Period {
	if c.BELimitType == LimitMonthly {
		return MonthOf(d)
	}
	return YearOf(d)
}

// RateFor returns the per-km rate that applies to an employee right now.
func (c Config) RateFor(e *Employee) decimal.Decimal {
	switch {
	case e.Country == CountryBE:
		return c.BERate
	case e.BikeType == BikeCompany:
		return c.NLCompanyRate
	default:
		return c.NLOwnRate
	}
}

// =============================================================================
// FISCAL ADVISORIES - Warnings shown to HR, never a hard block
// =============================================================================

// Statutory tax-free maxima and a sanity floor. Rates beyond these are
// legal to configure, but the surplus becomes taxable for the employee.
var (
	beTaxFreeMax = decimal.NewFromFloat(0.35)
	beUnusualLow = decimal.NewFromFloat(0.10)
	nlTaxFreeMax = decimal.NewFromFloat(0.23)
)

// Warnings returns advisory notices about the configured rates. A save is
// never blocked by these.
func (c Config) Warnings() []string {
	var w []string
	if c.BERate.GreaterThan(beTaxFreeMax) {
		w = append(w, fmt.Sprintf(
			"BE rate %s/km exceeds the tax-free maximum of %s/km; the surplus is taxable for the employee",
			c.BERate.StringFixed(2), beTaxFreeMax.StringFixed(2)))
	} else if c.BERate.LessThan(beUnusualLow) {
		w = append(w, fmt.Sprintf(
			"BE rate %s/km is unusually low (advisory minimum %s/km)",
			c.BERate.StringFixed(2), beUnusualLow.StringFixed(2)))
	}
	if c.NLOwnRate.GreaterThan(nlTaxFreeMax) {
		w = append(w, fmt.Sprintf(
			"NL rate %s/km exceeds the tax-free maximum of %s/km; the surplus is taxable for the employee",
			c.NLOwnRate.StringFixed(2), nlTaxFreeMax.StringFixed(2)))
	}
	return w
}
