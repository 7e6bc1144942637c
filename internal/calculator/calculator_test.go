package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StakeLedger/internal/errs"
	"StakeLedger/internal/model"
)

const day = model.SecondsPerDay

func TestEqualTranches(t *testing.T) {
	s := EqualTranches(10, 3)
	assert.Equal(t, []uint64{3, 3, 4}, s.Budgets)
	assert.Equal(t, uint64(3), s.MonthlyBudget(0))
	assert.Equal(t, uint64(4), s.MonthlyBudget(89))
	assert.Zero(t, s.MonthlyBudget(90))
	assert.Zero(t, s.MonthlyBudget(-1))

	total, err := s.Total()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), total)

	assert.Empty(t, EqualTranches(10, 0).Budgets)
}

func TestDayIndex(t *testing.T) {
	tests := []struct {
		now  int64
		want int64
		err  bool
	}{
		{1000, 0, false},
		{1000 + day - 1, 0, false},
		{1000 + day, 1, false},
		{1000 + 369*day + 5, 369, false},
		{1000 + 370*day, 0, true},
		{999, 0, true},
	}
	for _, tt := range tests {
		got, err := DayIndex(tt.now, 1000)
		if tt.err {
			assert.ErrorIs(t, err, errs.OutOfHorizon, "now=%d", tt.now)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "now=%d", tt.now)
	}
}

func TestCalculateDailyRate(t *testing.T) {
	rate, err := CalculateDailyRate(1_000_000, 10, 99)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), rate)

	// An empty pool still divides by k.
	rate, err = CalculateDailyRate(1_000, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), rate)

	_, err = CalculateDailyRate(1, 0, 0)
	assert.ErrorIs(t, err, errs.InvalidNormalizationK)

	_, err = CalculateDailyRate(math.MaxUint64, 1, 0)
	assert.ErrorIs(t, err, errs.ArithmeticOverflow)
}

func TestRecomputeOnlyTouchesCurrentDay(t *testing.T) {
	pool := &model.Pool{NormalizationK: 10, TotalStaked: 99}
	pool.DailyRates[4] = 7
	sched := EqualTranches(12_000_000, 12)

	d, err := Recompute(pool, sched, 5*day+30)
	require.NoError(t, err)
	assert.Equal(t, int64(5), d)
	assert.Equal(t, uint64(10_000_000), pool.DailyRates[5])
	assert.Equal(t, uint64(7), pool.DailyRates[4])
	assert.Zero(t, pool.DailyRates[6])
	assert.Equal(t, 5*day+30, pool.LastUpdateTime)

	_, err = Recompute(pool, sched, 400*day)
	assert.ErrorIs(t, err, errs.OutOfHorizon)
}

func TestWeight(t *testing.T) {
	for months, want := range map[uint8]uint64{3: 10, 6: 15, 9: 20, 12: 30} {
		w, err := Weight(months)
		require.NoError(t, err)
		assert.Equal(t, want, w)
		assert.True(t, ValidDuration(months))
	}
	for _, months := range []uint8{0, 1, 4, 24} {
		_, err := Weight(months)
		assert.ErrorIs(t, err, errs.InvalidDuration)
		assert.False(t, ValidDuration(months))
	}
}

func newPool() *model.Pool {
	return &model.Pool{ProgramEndDate: 1000 * day, NormalizationK: 1}
}

func newPosition(months uint8, settled int64) *model.Position {
	return &model.Position{
		Amount:         1000,
		DurationMonths: months,
		IsActive:       true,
		LastSettledAt:  settled,
	}
}

func TestAccrualCarriesRateForward(t *testing.T) {
	pool := newPool()
	pool.DailyRates[0] = 10_000
	pool.DailyRates[3] = 20_000

	pos := newPosition(3, 0)
	a, err := CalculateAccrual(pos, pool, 5*day+100)
	require.NoError(t, err)
	// 1.0 + 1.0 + 1.0 + 2.0 + 2.0 per unit over five days.
	assert.Equal(t, uint64(7000), a.Reward)
	assert.Equal(t, int64(5), a.Days)
	assert.Equal(t, 5*day, a.SettledAt(pos))

	// A window that starts on an unwritten day inherits the rate before it.
	pos = newPosition(3, 2*day)
	a, err = CalculateAccrual(pos, pool, 3*day+1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), a.Reward)
}

func TestAccrualAppliesWeight(t *testing.T) {
	pool := newPool()
	pool.DailyRates[0] = 10_000

	for months, want := range map[uint8]uint64{3: 1000, 6: 1500, 9: 2000, 12: 3000} {
		a, err := CalculateAccrual(newPosition(months, 0), pool, day)
		require.NoError(t, err)
		assert.Equal(t, want, a.Reward, "%d months", months)
	}
}

func TestAccrualPartialDayIsNotConsumed(t *testing.T) {
	pool := newPool()
	pool.DailyRates[0] = 10_000

	pos := newPosition(3, day/2)
	a, err := CalculateAccrual(pos, pool, day)
	require.NoError(t, err)
	assert.Zero(t, a.Reward)
	assert.Zero(t, a.Days)
	assert.Equal(t, day/2, a.SettledAt(pos))
}

func TestAccrualStopsAtProgramEnd(t *testing.T) {
	pool := newPool()
	pool.ProgramEndDate = 2 * day
	pool.DailyRates[0] = 10_000

	a, err := CalculateAccrual(newPosition(3, 0), pool, 10*day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.Days)
	assert.Equal(t, uint64(2000), a.Reward)

	a, err = CalculateAccrual(newPosition(3, 2*day), pool, 10*day)
	require.NoError(t, err)
	assert.Zero(t, a.Days)
}

func TestAccrualPastHorizonEarnsNothing(t *testing.T) {
	pool := newPool()
	pool.DailyRates[369] = 10_000

	a, err := CalculateAccrual(newPosition(3, 369*day), pool, 375*day)
	require.NoError(t, err)
	assert.Equal(t, int64(6), a.Days)
	assert.Equal(t, uint64(1000), a.Reward)
}

func TestAccrualRejectsInactive(t *testing.T) {
	pos := newPosition(3, 0)
	pos.IsActive = false
	_, err := CalculateAccrual(pos, newPool(), 10*day)
	assert.ErrorIs(t, err, errs.StakeNotActive)
}

func TestAccrualOverflow(t *testing.T) {
	pool := newPool()
	for i := range pool.DailyRates {
		pool.DailyRates[i] = math.MaxUint64
	}
	pos := newPosition(12, 0)
	pos.Amount = math.MaxUint64

	_, err := CalculateAccrual(pos, pool, 370*day)
	assert.ErrorIs(t, err, errs.ArithmeticOverflow)
}

func TestAccrualIsPure(t *testing.T) {
	pool := newPool()
	pool.DailyRates[0] = 10_000
	pos := newPosition(6, 0)
	before := *pos

	a1, err := CalculateAccrual(pos, pool, 3*day)
	require.NoError(t, err)
	a2, err := CalculateAccrual(pos, pool, 3*day)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, before, *pos)
}

func TestCalculatePenalty(t *testing.T) {
	pos := &model.Position{Amount: 1_000_000, DurationMonths: 3}

	tests := []struct {
		name    string
		now     int64
		bps     uint64
		penalty uint64
	}{
		{"immediate", 0, 2000, 200_000},
		{"clock skew", -day, 2000, 200_000},
		{"half term", 45 * day, 1000, 100_000},
		{"last day", 89 * day, 22, 2_200},
		{"full term", 90 * day, 0, 0},
		{"after term", 400 * day, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CalculatePenalty(pos, tt.now)
			require.NoError(t, err)
			assert.Equal(t, int64(90), p.LockDays)
			assert.Equal(t, tt.bps, p.RateBps)
			assert.Equal(t, tt.penalty, p.PenaltyAmount)
			assert.Equal(t, pos.Amount, p.PenaltyAmount+p.ReturnAmount)
		})
	}
}

func TestCalculatePenaltyRoundsInFavourOfStaker(t *testing.T) {
	p, err := CalculatePenalty(&model.Position{Amount: 9, DurationMonths: 3}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.PenaltyAmount)
	assert.Equal(t, uint64(8), p.ReturnAmount)

	p, err = CalculatePenalty(&model.Position{Amount: 1_000_000, DurationMonths: 12}, day)
	require.NoError(t, err)
	assert.Equal(t, int64(360), p.LockDays)
	assert.Equal(t, uint64(1994), p.RateBps)
}

func TestEffectiveRate(t *testing.T) {
	pool := newPool()
	pool.DailyRates[2] = 500
	pool.DailyRates[5] = 900

	assert.Zero(t, EffectiveRate(pool, 0))
	assert.Equal(t, uint64(500), EffectiveRate(pool, 2))
	assert.Equal(t, uint64(500), EffectiveRate(pool, 4))
	assert.Equal(t, uint64(900), EffectiveRate(pool, 5))
	assert.Equal(t, uint64(900), EffectiveRate(pool, 400))
	assert.Zero(t, EffectiveRate(pool, -1))
}
