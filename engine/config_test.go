package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commute-engine/engine"
)

// =============================================================================
// VALIDATION
// =============================================================================

func TestConfig_Validate_DefaultIsValid(t *testing.T) {
	assert.NoError(t, engine.DefaultConfig().Validate())
}

func TestConfig_Validate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*engine.Config)
	}{
		{"negative rate", func(c *engine.Config) { c.BERate = decimal.NewFromFloat(-0.01) }},
		{"zero yearly limit", func(c *engine.Config) { c.BEYearlyLimit = decimal.Zero }},
		{"zero monthly limit", func(c *engine.Config) { c.BEMonthlyLimit = decimal.Zero }},
		{"bad limit type", func(c *engine.Config) { c.BELimitType = "WEEKLY" }},
		{"bad enforce mode", func(c *engine.Config) { c.BEEnforceMode = "WARN" }},
		{"deadline day zero", func(c *engine.Config) { c.DeadlineDay = 0 }},
		{"deadline day 29", func(c *engine.Config) { c.DeadlineDay = 29 }},
		{"zero daily cap", func(c *engine.Config) { c.MaxRidesPerDay = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := engine.DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, engine.ErrInvalidConfig)
		})
	}
}

func TestSaveConfig_RejectsInvalidWithoutPersisting(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	svc, _ := newTestService(t, today)

	bad := engine.DefaultConfig()
	bad.DeadlineDay = 31
	err := svc.SaveConfig(context.Background(), bad)
	require.ErrorIs(t, err, engine.ErrInvalidConfig)

	cfg, err := svc.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.DeadlineDay, "invalid save must not stick")
}

// =============================================================================
// LIMIT SELECTION
// =============================================================================

func TestConfig_ActiveLimit_FollowsLimitType(t *testing.T) {
	cfg := engine.DefaultConfig()
	assert.True(t, cfg.ActiveLimit().Equal(cfg.BEYearlyLimit))

	cfg.BELimitType = engine.LimitMonthly
	assert.True(t, cfg.ActiveLimit().Equal(cfg.BEMonthlyLimit))
}

func TestConfig_LimitPeriod_UsesRideDateCalendar(t *testing.T) {
	cfg := engine.DefaultConfig()
	d := engine.NewDate(2025, time.May, 14)

	year := cfg.LimitPeriod(d)
	assert.Equal(t, engine.NewDate(2025, time.January, 1), year.Start)
	assert.Equal(t, engine.NewDate(2025, time.December, 31), year.End)

	cfg.BELimitType = engine.LimitMonthly
	month := cfg.LimitPeriod(d)
	assert.Equal(t, engine.NewDate(2025, time.May, 1), month.Start)
	assert.Equal(t, engine.NewDate(2025, time.May, 31), month.End)
}

func TestConfig_SwitchingLimitType_KeepsBothValues(t *testing.T) {
	// GIVEN: A custom monthly limit saved under YEARLY mode
	// WHEN: Switching to MONTHLY and back
	// THEN: Neither value is lost

	today := engine.NewDate(2025, time.June, 20)
	svc, _ := newTestService(t, today)
	ctx := context.Background()

	cfg := engine.DefaultConfig()
	cfg.BEMonthlyLimit = decimal.NewFromFloat(300.00)
	require.NoError(t, svc.SaveConfig(ctx, cfg))

	cfg.BELimitType = engine.LimitMonthly
	require.NoError(t, svc.SaveConfig(ctx, cfg))

	got, err := svc.Config(ctx)
	require.NoError(t, err)
	assert.True(t, got.BEYearlyLimit.Equal(decimal.NewFromFloat(3160.00)))
	assert.True(t, got.BEMonthlyLimit.Equal(decimal.NewFromFloat(300.00)))
}

// =============================================================================
// FISCAL ADVISORIES
// =============================================================================

func TestConfig_Warnings(t *testing.T) {
	cfg := engine.DefaultConfig()
	assert.Empty(t, cfg.Warnings(), "defaults are within all advisories")

	cfg.BERate = decimal.NewFromFloat(0.40)
	cfg.NLOwnRate = decimal.NewFromFloat(0.30)
	w := cfg.Warnings()
	require.Len(t, w, 2)
	assert.Contains(t, w[0], "tax-free maximum")
	assert.Contains(t, w[1], "tax-free maximum")

	cfg = engine.DefaultConfig()
	cfg.BERate = decimal.NewFromFloat(0.05)
	w = cfg.Warnings()
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "unusually low")
}

func TestConfig_Warnings_NeverBlockSave(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	svc, _ := newTestService(t, today)

	cfg := engine.DefaultConfig()
	cfg.BERate = decimal.NewFromFloat(0.50)
	assert.NoError(t, svc.SaveConfig(context.Background(), cfg))
}

// =============================================================================
// CONFIG EDITS AND EXISTING RIDES
// =============================================================================

func TestSaveConfig_AffectsOnlySubsequentSubmissions(t *testing.T) {
	// GIVEN: A ride accepted at 0.27/km
	// WHEN: HR raises the BE rate and a second ride is submitted
	// THEN: Only the second ride uses the new rate

	today := engine.NewDate(2025, time.June, 20)
	svc, _ := newTestService(t, today)
	addEmployee(t, svc, "emp-be", engine.CountryBE, engine.BikeOwn, 10)
	ctx := context.Background()

	first, err := svc.SubmitRide(ctx, "emp-be", today.AddDays(-1), "home-office", engine.RideOneWay)
	require.NoError(t, err)
	require.True(t, first.Accepted)

	setConfig(t, svc, func(c *engine.Config) { c.BERate = decimal.NewFromFloat(0.30) })

	second, err := svc.SubmitRide(ctx, "emp-be", today, "home-office", engine.RideOneWay)
	require.NoError(t, err)
	require.True(t, second.Accepted)

	assert.True(t, first.Ride.Amount.Equal(decimal.NewFromFloat(2.70)))
	assert.True(t, second.Ride.Amount.Equal(decimal.NewFromFloat(3.00)))
}
