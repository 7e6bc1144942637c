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

// PositionReward is one position's share of a claim.
type PositionReward struct {
	Ref        model.Ref
	StakeIndex uint64
	Reward     uint64
	Days       int64
}

// ClaimResult is the outcome of a claim or preview.
type ClaimResult struct {
	Total     uint64
	Positions []PositionReward // active positions only, in ref order
}

type claimLine struct {
	pos *model.Position
	acc calculator.Accrual
}

// aggregate resolves refs to owner's positions and sums their accruals.
// Any ref that is unknown, repeated or not owner's own fails the whole call.
func aggregate(tx store.Tx, pool *model.Pool, owner string, refs []model.Ref, now int64) (uint64, []claimLine, error) {
	var total uint64
	var lines []claimLine
	seen := make(map[model.Ref]bool, len(refs))

	for i, ref := range refs {
		if seen[ref] {
			return 0, nil, errs.InvalidStakeIndex.WithFormat("ref %d repeats %s", i, ref)
		}
		seen[ref] = true

		pos, err := tx.Position(string(ref))
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil, errs.InvalidStakeIndex.WithFormat("ref %d: no position at %s", i, ref)
		} else if err != nil {
			return 0, nil, err
		}
		if pos.Owner != owner || pos.Pool != pool.ID || !address.Matches(string(ref), owner, pool.ID, pos.StakeIndex) {
			return 0, nil, errs.InvalidStakeIndex.WithFormat("ref %d: %s is not a position of %s", i, ref, owner)
		}
		if !pos.IsActive {
			continue
		}

		acc, err := calculator.CalculateAccrual(pos, pool, now)
		if err != nil {
			return 0, nil, err
		}
		if err := addTo(&total, acc.Reward); err != nil {
			return 0, nil, err
		}
		lines = append(lines, claimLine{pos: pos, acc: acc})
	}
	return total, lines, nil
}

func (r *ClaimResult) fill(total uint64, lines []claimLine) {
	r.Total = total
	r.Positions = make([]PositionReward, 0, len(lines))
	for _, l := range lines {
		r.Positions = append(r.Positions, PositionReward{
			Ref:        model.Ref(l.pos.Address),
			StakeIndex: l.pos.StakeIndex,
			Reward:     l.acc.Reward,
			Days:       l.acc.Days,
		})
	}
}

// ClaimAll settles the accrued rewards of the referenced positions and pays
// the total from the reward vault to the caller.
func (m *Manager) ClaimAll(ctx context.Context, c Caller, refs []model.Ref) (*ClaimResult, error) {
	var res ClaimResult
	var paid int
	err := m.update(ctx, func(tx store.Tx, j *journal) error {
		if err := requireOwner(c); err != nil {
			return err
		}
		pool, err := loadPool(tx)
		if err != nil {
			return err
		}
		if pool.Closed {
			return errs.ProgramClosed
		}

		total, lines, err := aggregate(tx, pool, c.Account, refs, j.now)
		if err != nil {
			return err
		}
		if total == 0 {
			return errs.NoRewardsAvailable
		}
		if err := checkRewardFunds(tx, total); err != nil {
			return err
		}
		if err := store.Transfer(tx, model.RewardVault, c.Account, total); err != nil {
			return err
		}

		// Positions that earned nothing keep their settlement time so that
		// sub-unit accruals are not lost.
		paid = 0
		for _, l := range lines {
			if l.acc.Reward == 0 {
				continue
			}
			l.pos.LastSettledAt = l.acc.SettledAt(l.pos)
			if err := addTo(&l.pos.TotalClaimed, l.acc.Reward); err != nil {
				return err
			}
			if err := tx.UpdatePosition(l.pos); err != nil {
				return err
			}
			paid++
		}

		set, err := tx.PositionSet(c.Account)
		if err != nil {
			return err
		}
		if err := addTo(&set.TotalClaimed, total); err != nil {
			return err
		}
		if err := addTo(&pool.TotalRewardsDistributed, total); err != nil {
			return err
		}
		if err := m.refreshRate(pool, j.now); err != nil {
			return err
		}
		if err := tx.PutPositionSet(set); err != nil {
			return err
		}
		if err := tx.PutPool(pool); err != nil {
			return err
		}

		res.fill(total, lines)
		return j.record(model.Event{
			Type:        model.EventClaimAll,
			Account:     c.Account,
			Rewards:     total,
			StakesCount: uint64(paid),
		})
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("claim_all", "owner", c.Account, "total", res.Total, "positions", paid)
	return &res, nil
}

// GetTotalClaimableRewards previews what ClaimAll would pay owner for refs.
// It validates refs the same way, fails on a closed program the same way,
// but needs no authorization and changes nothing.
func (m *Manager) GetTotalClaimableRewards(ctx context.Context, owner string, refs []model.Ref) (*ClaimResult, error) {
	var res ClaimResult
	err := m.store.View(ctx, func(tx store.Tx) error {
		pool, err := loadPool(tx)
		if err != nil {
			return err
		}
		if pool.Closed {
			return errs.ProgramClosed
		}
		total, lines, err := aggregate(tx, pool, owner, refs, m.now())
		if err != nil {
			return err
		}
		res.fill(total, lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
