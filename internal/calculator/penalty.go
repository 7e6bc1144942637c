package calculator

import (
	"StakeLedger/internal/errs"
	"StakeLedger/internal/fixed"
	"StakeLedger/internal/model"
)

// MaxPenaltyBps is the haircut for exiting on the day of deposit.
const MaxPenaltyBps uint64 = 2000

// Penalty splits a position's principal on exit.
type Penalty struct {
	LockDays      int64
	ElapsedDays   int64
	RateBps       uint64
	PenaltyAmount uint64 // to the treasury
	ReturnAmount  uint64 // to the owner
}

// CalculatePenalty returns the early-exit split for pos at now. The rate
// decays linearly from MaxPenaltyBps to zero over the lock term. Both
// divisions round down, so the staker keeps any fractional unit.
func CalculatePenalty(pos *model.Position, now int64) (Penalty, error) {
	if !ValidDuration(pos.DurationMonths) {
		return Penalty{}, errs.InvalidDuration.WithFormat("%d months", pos.DurationMonths)
	}

	lock := int64(pos.DurationMonths) * DaysPerMonth
	elapsed := (now - pos.CreatedAt) / model.SecondsPerDay
	switch {
	case elapsed < 0:
		elapsed = 0
	case elapsed > lock:
		elapsed = lock
	}

	bps := MaxPenaltyBps * uint64(lock-elapsed) / uint64(lock)
	penalty, err := fixed.Bps(pos.Amount, bps)
	if err != nil {
		return Penalty{}, err
	}
	ret, err := fixed.Sub(pos.Amount, penalty)
	if err != nil {
		return Penalty{}, err
	}

	return Penalty{
		LockDays:      lock,
		ElapsedDays:   elapsed,
		RateBps:       bps,
		PenaltyAmount: penalty,
		ReturnAmount:  ret,
	}, nil
}
