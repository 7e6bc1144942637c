package calculator

import (
	"StakeLedger/internal/errs"
	"StakeLedger/internal/fixed"
)

// DaysPerMonth is the length of one reward tranche.
const DaysPerMonth = 30

// RewardSchedule partitions the reward pool into monthly budgets. Month m
// covers program days [30m, 30m+30).
type RewardSchedule struct {
	Budgets []uint64
}

// EqualTranches splits total into months equal budgets; the last budget
// takes the division remainder.
func EqualTranches(total uint64, months int) RewardSchedule {
	if months <= 0 {
		return RewardSchedule{}
	}
	n := uint64(months)
	b := make([]uint64, months)
	for i := range b {
		b[i] = total / n
	}
	b[months-1] += total % n
	return RewardSchedule{Budgets: b}
}

// MonthlyBudget returns the budget in force on the given program day, or
// zero once the schedule has run out.
func (s RewardSchedule) MonthlyBudget(day int64) uint64 {
	if day < 0 {
		return 0
	}
	m := day / DaysPerMonth
	if m >= int64(len(s.Budgets)) {
		return 0
	}
	return s.Budgets[m]
}

// Total returns the sum of all budgets.
func (s RewardSchedule) Total() (uint64, error) {
	var total uint64
	for _, b := range s.Budgets {
		var err error
		total, err = fixed.Add(total, b)
		if err != nil {
			return 0, errs.ArithmeticOverflow.WithFormat("reward schedule total: %w", err)
		}
	}
	return total, nil
}
