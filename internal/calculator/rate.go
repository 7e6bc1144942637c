package calculator

import (
	"StakeLedger/internal/errs"
	"StakeLedger/internal/fixed"
	"StakeLedger/internal/model"
)

// DayIndex returns the program day containing now. Days before the program
// start or past the rate horizon are rejected.
func DayIndex(now, programStart int64) (int64, error) {
	elapsed := now - programStart
	if elapsed < 0 {
		return 0, errs.OutOfHorizon.WithFormat("time %d is before program start %d", now, programStart)
	}
	day := elapsed / model.SecondsPerDay
	if day >= model.HorizonDays {
		return 0, errs.OutOfHorizon.WithFormat("day %d is past the %d-day horizon", day, model.HorizonDays)
	}
	return day, nil
}

// CalculateDailyRate computes budget * Scale / (k * (totalStaked + 1)).
// The +1 keeps an empty pool from dividing by zero.
func CalculateDailyRate(budget, k, totalStaked uint64) (uint64, error) {
	if k == 0 {
		return 0, errs.InvalidNormalizationK.With("normalization K must be positive")
	}
	denom := fixed.Int(k).Mul(fixed.Int(totalStaked).AddRaw(1))
	rate, err := fixed.ToUint64(fixed.Int(budget).Mul(fixed.Int(fixed.Scale)).Quo(denom))
	if err != nil {
		return 0, errs.ArithmeticOverflow.WithFormat("daily rate: %w", err)
	}
	return rate, nil
}

// Recompute overwrites the rate of the day containing now from the pool's
// current total stake. Earlier days are never touched.
func Recompute(pool *model.Pool, sched RewardSchedule, now int64) (int64, error) {
	day, err := DayIndex(now, pool.ProgramStartTime)
	if err != nil {
		return 0, err
	}
	rate, err := CalculateDailyRate(sched.MonthlyBudget(day), pool.NormalizationK, pool.TotalStaked)
	if err != nil {
		return 0, err
	}
	pool.DailyRates[day] = rate
	pool.LastUpdateTime = now
	return day, nil
}

// lastKnownRate returns the most recent non-zero rate strictly before day.
func lastKnownRate(pool *model.Pool, day int64) uint64 {
	if day > model.HorizonDays {
		day = model.HorizonDays
	}
	for d := day - 1; d >= 0; d-- {
		if r := pool.DailyRates[d]; r > 0 {
			return r
		}
	}
	return 0
}

// EffectiveRate returns the rate that accrues on day: the day's own entry, or
// the most recent one before it when the day was never written.
func EffectiveRate(pool *model.Pool, day int64) uint64 {
	if day >= 0 && day < model.HorizonDays {
		if r := pool.DailyRates[day]; r > 0 {
			return r
		}
	}
	if day < 0 {
		return 0
	}
	return lastKnownRate(pool, day)
}
