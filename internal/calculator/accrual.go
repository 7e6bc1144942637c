package calculator

import (
	sdkmath "cosmossdk.io/math"

	"StakeLedger/internal/errs"
	"StakeLedger/internal/fixed"
	"StakeLedger/internal/model"
)

// WeightBase is the denominator of term weights: a weight of 15 is 1.5x.
const WeightBase uint64 = 10

var weights = map[uint8]uint64{
	3:  10,
	6:  15,
	9:  20,
	12: 30,
}

// ValidDuration reports whether months is an accepted lock term.
func ValidDuration(months uint8) bool {
	_, ok := weights[months]
	return ok
}

// Weight returns the reward multiplier for a lock term, in tenths.
func Weight(months uint8) (uint64, error) {
	w, ok := weights[months]
	if !ok {
		return 0, errs.InvalidDuration.WithFormat("%d months", months)
	}
	return w, nil
}

// Accrual is the reward owed to a position and the whole days it covers.
type Accrual struct {
	Reward uint64
	Days   int64
}

// SettledAt returns the position's new settlement time once the accrual is
// paid. Only whole days are consumed, so a partial day keeps accruing.
func (a Accrual) SettledAt(pos *model.Position) int64 {
	return pos.LastSettledAt + a.Days*model.SecondsPerDay
}

// CalculateAccrual computes the reward owed to pos as of now. It does not
// modify pos or pool, so the same call backs settlement and previews.
//
// Every whole day since the last settlement (capped at the program end)
// earns that day's rate. A day whose rate was never written inherits the
// most recent rate before it; days past the horizon earn nothing.
func CalculateAccrual(pos *model.Position, pool *model.Pool, now int64) (Accrual, error) {
	if !pos.IsActive {
		return Accrual{}, errs.StakeNotActive.WithFormat("position %d of %s", pos.StakeIndex, pos.Owner)
	}

	end := now
	if pool.ProgramEndDate < end {
		end = pool.ProgramEndDate
	}
	if end <= pos.LastSettledAt {
		return Accrual{}, nil
	}
	elapsed := (end - pos.LastSettledAt) / model.SecondsPerDay
	if elapsed == 0 {
		return Accrual{}, nil
	}

	w, err := Weight(pos.DurationMonths)
	if err != nil {
		return Accrual{}, err
	}

	startDay := floorDiv(pos.LastSettledAt-pool.ProgramStartTime, model.SecondsPerDay)
	endDay := startDay + elapsed

	from, to := startDay, endDay
	if from < 0 {
		from = 0
	}
	if to > model.HorizonDays {
		to = model.HorizonDays
	}

	sum := sdkmath.ZeroInt()
	last := lastKnownRate(pool, from)
	for d := from; d < to; d++ {
		if r := pool.DailyRates[d]; r > 0 {
			last = r
		}
		sum = sum.Add(fixed.Int(last))
	}

	reward, err := fixed.ToUint64(sum.
		Mul(fixed.Int(pos.Amount)).
		Mul(fixed.Int(w)).
		Quo(fixed.Int(WeightBase * fixed.Scale)))
	if err != nil {
		return Accrual{}, errs.ArithmeticOverflow.WithFormat("accrual for position %d: %w", pos.StakeIndex, err)
	}
	return Accrual{Reward: reward, Days: elapsed}, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
