package ledger

import (
	"context"
	"errors"

	"StakeLedger/internal/address"
	"StakeLedger/internal/calculator"
	"StakeLedger/internal/model"
	"StakeLedger/internal/store"
)

// Status is a read-only summary of the pool and its vaults.
type Status struct {
	Pool     model.Pool
	Day      int64 // -1 outside the horizon
	Rate     uint64
	Balances map[string]uint64
}

// Status reads the pool and the balances of its custody accounts.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	var st Status
	err := m.store.View(ctx, func(tx store.Tx) error {
		pool, err := loadPool(tx)
		if err != nil {
			return err
		}
		st.Pool = *pool
		st.Day = -1
		if day, err := calculator.DayIndex(m.now(), pool.ProgramStartTime); err == nil {
			st.Day = day
			st.Rate = calculator.EffectiveRate(pool, day)
		}

		st.Balances = map[string]uint64{}
		for _, acct := range []string{model.StakeVault, model.RewardVault, pool.Treasury} {
			if st.Balances[acct], err = tx.Balance(acct); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Snapshot builds the pool snapshot as of now without storing it.
func (m *Manager) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	var snap *model.Snapshot
	err := m.store.View(ctx, func(tx store.Tx) error {
		var err error
		snap, err = m.snapshot(tx)
		return err
	})
	return snap, err
}

// RecordSnapshot builds the pool snapshot and stores it.
func (m *Manager) RecordSnapshot(ctx context.Context) (*model.Snapshot, error) {
	var snap *model.Snapshot
	err := m.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if snap, err = m.snapshot(tx); err != nil {
			return err
		}
		return tx.RecordSnapshot(snap)
	})
	return snap, err
}

func (m *Manager) snapshot(tx store.Tx) (*model.Snapshot, error) {
	pool, err := loadPool(tx)
	if err != nil {
		return nil, err
	}
	vault, err := tx.Balance(model.RewardVault)
	if err != nil {
		return nil, err
	}

	now := m.now()
	snap := &model.Snapshot{
		Timestamp:               now,
		Day:                     -1,
		TotalStaked:             pool.TotalStaked,
		TotalRewardsDistributed: pool.TotalRewardsDistributed,
		NormalizationK:          pool.NormalizationK,
		RewardVaultBalance:      vault,
	}
	if day, err := calculator.DayIndex(now, pool.ProgramStartTime); err == nil {
		snap.Day = day
		snap.Rate = calculator.EffectiveRate(pool, day)
	}
	return snap, nil
}

// Pool returns the pool.
func (m *Manager) Pool(ctx context.Context) (*model.Pool, error) {
	var pool *model.Pool
	err := m.store.View(ctx, func(tx store.Tx) error {
		var err error
		pool, err = loadPool(tx)
		return err
	})
	return pool, err
}

// Account is one owner's view of the ledger.
type Account struct {
	Set       model.PositionSet
	Positions []*model.Position
	Balance   uint64
}

// Account returns owner's position set, positions and wallet balance. An
// owner who never staked gets an empty set.
func (m *Manager) Account(ctx context.Context, owner string) (*Account, error) {
	var a Account
	err := m.store.View(ctx, func(tx store.Tx) error {
		pool, err := loadPool(tx)
		if err != nil {
			return err
		}
		set, err := tx.PositionSet(owner)
		switch {
		case errors.Is(err, store.ErrNotFound):
			a.Set = model.PositionSet{Owner: owner, Pool: pool.ID}
		case err != nil:
			return err
		default:
			a.Set = *set
		}
		if a.Positions, err = tx.Positions(owner); err != nil {
			return err
		}
		a.Balance, err = tx.Balance(owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Refs derives the position refs of owner's stake indices.
func (m *Manager) Refs(ctx context.Context, owner string, indices []uint64) ([]model.Ref, error) {
	pool, err := m.Pool(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]model.Ref, len(indices))
	for i, idx := range indices {
		refs[i] = model.Ref(address.Position(owner, pool.ID, idx))
	}
	return refs, nil
}

// ActiveRefs returns the refs of all of owner's active positions.
func (m *Manager) ActiveRefs(ctx context.Context, owner string) ([]model.Ref, error) {
	a, err := m.Account(ctx, owner)
	if err != nil {
		return nil, err
	}
	var refs []model.Ref
	for _, p := range a.Positions {
		if p.IsActive {
			refs = append(refs, model.Ref(p.Address))
		}
	}
	return refs, nil
}

// Events returns the most recent journal entries, newest first.
func (m *Manager) Events(ctx context.Context, limit int) ([]model.Event, error) {
	var events []model.Event
	err := m.store.View(ctx, func(tx store.Tx) error {
		var err error
		events, err = tx.Events(limit)
		return err
	})
	return events, err
}
