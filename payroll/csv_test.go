package payroll_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commute-engine/engine"
	"github.com/warp/commute-engine/payroll"
)

func sampleRide(country engine.Country, bike engine.BikeType, amount float64) engine.Ride {
	return engine.Ride{
		ID:           "ride-1",
		EmployeeID:   "emp-1",
		EmployeeName: "An Peeters",
		Country:      country,
		BikeType:     bike,
		Date:         engine.NewDate(2025, time.June, 3),
		Trajectory:   "home-office",
		RideType:     engine.RideRoundTrip,
		DistanceKM:   decimal.NewFromInt(20),
		Amount:       decimal.NewFromFloat(amount),
		RateApplied:  decimal.NewFromFloat(0.27),
	}
}

// =============================================================================
// FISCAL STATUS TAGGING
// =============================================================================

func TestFiscalStatus_TaxableOnlyForDutchCompanyBikes(t *testing.T) {
	assert.Equal(t, payroll.StatusNonTaxable, payroll.FiscalStatus(engine.CountryBE, engine.BikeOwn))
	assert.Equal(t, payroll.StatusNonTaxable, payroll.FiscalStatus(engine.CountryBE, engine.BikeCompany))
	assert.Equal(t, payroll.StatusNonTaxable, payroll.FiscalStatus(engine.CountryNL, engine.BikeOwn))
	assert.Equal(t, payroll.StatusTaxable, payroll.FiscalStatus(engine.CountryNL, engine.BikeCompany))
}

func TestWrite_TaxableTagIgnoresAmount(t *testing.T) {
	// A zero-amount NL company-bike ride is still tagged taxable: the tag
	// follows the bike policy, not the paid amount.
	data, err := payroll.Render([]engine.Ride{sampleRide(engine.CountryNL, engine.BikeCompany, 0)})
	require.NoError(t, err)
	assert.Contains(t, string(data), ";0.00;0.27;taxable")
}

// =============================================================================
// FILE FORMAT
// =============================================================================

func TestWrite_SemicolonRowsAndDayMonthYearDates(t *testing.T) {
	data, err := payroll.Render([]engine.Ride{sampleRide(engine.CountryBE, engine.BikeOwn, 5.40)})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	assert.Equal(t,
		"date;employee_id;employee_name;trajectory;ride_type;distance_km;amount;rate_applied;fiscal_status",
		lines[0])
	assert.Equal(t,
		"03-06-2025;emp-1;An Peeters;home-office;ROUND_TRIP;20;5.40;0.27;non-taxable",
		lines[1])
}

func TestWrite_EmptyBatchStillHasHeader(t *testing.T) {
	data, err := payroll.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.True(t, strings.HasPrefix(string(data), "date;"))
}

func TestFilename_EncodesBatchAndTimestamp(t *testing.T) {
	b := engine.ExportBatch{
		BatchID:    7,
		ExportedAt: time.Date(2025, time.June, 20, 14, 30, 5, 0, time.UTC),
	}
	assert.Equal(t, "payroll_batch_7_20250620_143005.csv", payroll.Filename(b))
}
