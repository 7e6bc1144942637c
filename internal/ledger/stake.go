package ledger

import (
	"context"
	"errors"

	"StakeLedger/internal/address"
	"StakeLedger/internal/calculator"
	"StakeLedger/internal/errs"
	"StakeLedger/internal/model"
	"StakeLedger/internal/store"
)

// StakeRequest describes a deposit. Index must be the owner's next free
// stake index.
type StakeRequest struct {
	Amount         uint64
	DurationMonths uint8
	Index          uint64
}

// Stake locks req.Amount of the caller's balance in a new position.
func (m *Manager) Stake(ctx context.Context, c Caller, req StakeRequest) (*model.Position, error) {
	var pos *model.Position
	err := m.update(ctx, func(tx store.Tx, j *journal) error {
		if err := requireOwner(c); err != nil {
			return err
		}
		if req.Amount == 0 {
			return errs.InvalidAmount.With("stake amount must be positive")
		}
		if !calculator.ValidDuration(req.DurationMonths) {
			return errs.InvalidDuration.WithFormat("%d months", req.DurationMonths)
		}

		pool, err := loadPool(tx)
		if err != nil {
			return err
		}
		if pool.Closed {
			return errs.ProgramClosed
		}
		day, err := calculator.DayIndex(j.now, pool.ProgramStartTime)
		if err != nil {
			return err
		}
		if m.scheduleOf(pool).MonthlyBudget(day) == 0 {
			return errs.RewardPoolExhausted.WithFormat("no reward budget for day %d", day)
		}

		set, err := tx.PositionSet(c.Account)
		switch {
		case errors.Is(err, store.ErrNotFound):
			set = &model.PositionSet{Owner: c.Account, Pool: pool.ID}
		case err != nil:
			return err
		}

		switch {
		case req.Index < set.StakeCount:
			return errs.StakeEntryAlreadyExists.WithFormat("index %d is taken", req.Index)
		case req.Index > set.StakeCount:
			return errs.InvalidStakeIndex.WithFormat("next index is %d, got %d", set.StakeCount, req.Index)
		}
		if _, err := tx.PositionByIndex(c.Account, req.Index); err == nil {
			return errs.StakeEntryAlreadyExists.WithFormat("index %d is taken", req.Index)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if err := store.Transfer(tx, c.Account, model.StakeVault, req.Amount); err != nil {
			return err
		}

		pos = &model.Position{
			Address:        address.Position(c.Account, pool.ID, req.Index),
			Owner:          c.Account,
			Pool:           pool.ID,
			StakeIndex:     req.Index,
			Amount:         req.Amount,
			DurationMonths: req.DurationMonths,
			IsActive:       true,
			CreatedAt:      j.now,
			LastSettledAt:  j.now,
		}
		if err := tx.InsertPosition(pos); errors.Is(err, store.ErrExists) {
			return errs.StakeEntryAlreadyExists.WithFormat("index %d is taken", req.Index)
		} else if err != nil {
			return err
		}

		set.StakeCount++
		if err := addTo(&set.TotalStaked, req.Amount); err != nil {
			return err
		}
		if err := addTo(&pool.TotalStaked, req.Amount); err != nil {
			return err
		}
		if _, err := calculator.Recompute(pool, m.scheduleOf(pool), j.now); err != nil {
			return err
		}

		if err := tx.PutPositionSet(set); err != nil {
			return err
		}
		if err := tx.PutPool(pool); err != nil {
			return err
		}
		return j.record(model.Event{
			Type:           model.EventStake,
			Account:        c.Account,
			StakeIndex:     req.Index,
			Amount:         req.Amount,
			DurationMonths: req.DurationMonths,
		})
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("stake", "owner", pos.Owner, "index", pos.StakeIndex,
		"amount", pos.Amount, "months", pos.DurationMonths)
	return pos, nil
}

// UnstakeResult is the settlement of an exit.
type UnstakeResult struct {
	Position *model.Position
	Reward   uint64
	Penalty  calculator.Penalty
}

// Unstake closes the caller's position at index. Accrued rewards are paid in
// full from the reward vault, then the principal is split between the caller
// and the treasury by the early-exit penalty.
func (m *Manager) Unstake(ctx context.Context, c Caller, index uint64) (*UnstakeResult, error) {
	var res UnstakeResult
	err := m.update(ctx, func(tx store.Tx, j *journal) error {
		if err := requireOwner(c); err != nil {
			return err
		}
		pool, err := loadPool(tx)
		if err != nil {
			return err
		}
		set, err := tx.PositionSet(c.Account)
		if errors.Is(err, store.ErrNotFound) {
			return errs.InvalidStakeIndex.WithFormat("%s has no positions", c.Account)
		} else if err != nil {
			return err
		}
		pos, err := tx.PositionByIndex(c.Account, index)
		if errors.Is(err, store.ErrNotFound) {
			return errs.InvalidStakeIndex.WithFormat("%s has no position %d", c.Account, index)
		} else if err != nil {
			return err
		}
		if pos.Pool != pool.ID || !address.Matches(pos.Address, c.Account, pool.ID, index) {
			return errs.InvalidStakeIndex.WithFormat("position %d does not belong to %s", index, c.Account)
		}
		if !pos.IsActive {
			return errs.StakeNotActive.WithFormat("position %d is already closed", index)
		}

		// A closed program has swept its rewards; exits return principal only.
		var acc calculator.Accrual
		if !pool.Closed {
			acc, err = calculator.CalculateAccrual(pos, pool, j.now)
			if err != nil {
				return err
			}
			if err := checkRewardFunds(tx, acc.Reward); err != nil {
				return err
			}
			if err := store.Transfer(tx, model.RewardVault, c.Account, acc.Reward); err != nil {
				return err
			}
		}

		pen, err := calculator.CalculatePenalty(pos, j.now)
		if err != nil {
			return err
		}
		if err := store.Transfer(tx, model.StakeVault, c.Account, pen.ReturnAmount); err != nil {
			return err
		}
		if err := store.Transfer(tx, model.StakeVault, pool.Treasury, pen.PenaltyAmount); err != nil {
			return err
		}

		pos.LastSettledAt = acc.SettledAt(pos)
		pos.IsActive = false
		if err := addTo(&pos.TotalClaimed, acc.Reward); err != nil {
			return err
		}
		if err := subFrom(&set.TotalStaked, pos.Amount); err != nil {
			return err
		}
		if err := addTo(&set.TotalClaimed, acc.Reward); err != nil {
			return err
		}
		if err := subFrom(&pool.TotalStaked, pos.Amount); err != nil {
			return err
		}
		if err := addTo(&pool.TotalRewardsDistributed, acc.Reward); err != nil {
			return err
		}
		if err := m.refreshRate(pool, j.now); err != nil {
			return err
		}

		if err := tx.UpdatePosition(pos); err != nil {
			return err
		}
		if err := tx.PutPositionSet(set); err != nil {
			return err
		}
		if err := tx.PutPool(pool); err != nil {
			return err
		}

		res = UnstakeResult{Position: pos, Reward: acc.Reward, Penalty: pen}
		return j.record(model.Event{
			Type:           model.EventUnstake,
			Account:        c.Account,
			StakeIndex:     index,
			Amount:         pen.ReturnAmount,
			Rewards:        acc.Reward,
			Penalty:        pen.PenaltyAmount,
			DurationMonths: pos.DurationMonths,
		})
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("unstake", "owner", c.Account, "index", index, "returned", res.Penalty.ReturnAmount,
		"penalty", res.Penalty.PenaltyAmount, "reward", res.Reward)
	return &res, nil
}
