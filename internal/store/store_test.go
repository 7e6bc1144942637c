package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StakeLedger/internal/errs"
	"StakeLedger/internal/model"
)

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func testPool() *model.Pool {
	p := &model.Pool{
		ID:               "pool",
		Authority:        "admin",
		Asset:            "STAKE",
		Treasury:         "treasury",
		TotalStaked:      math.MaxUint64,
		ProgramStartTime: 100,
		ProgramEndDate:   200,
		NormalizationK:   45,
		RewardBudgets:    []uint64{5, math.MaxUint64, 0},
	}
	p.DailyRates[0] = 10_000
	p.DailyRates[369] = math.MaxUint64
	return p
}

func TestPoolRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		err := s.View(ctx, func(tx Tx) error {
			_, err := tx.Pool()
			return err
		})
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.PutPool(testPool())
		}))

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			p, err := tx.Pool()
			if err != nil {
				return err
			}
			p.DailyRates[5] = 77
			p.Closed = true
			p.RewardBudgets[0] = 999 // ignored: budgets are fixed
			return tx.PutPool(p)
		}))

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			p, err := tx.Pool()
			require.NoError(t, err)
			want := testPool()
			want.DailyRates[5] = 77
			want.Closed = true
			assert.Equal(t, want, p)
			return nil
		}))
	})
}

func TestPositions(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		pos := func(owner string, idx uint64) *model.Position {
			return &model.Position{
				Address:        owner + string(rune('a'+idx)),
				Owner:          owner,
				Pool:           "pool",
				StakeIndex:     idx,
				Amount:         1_000 * (idx + 1),
				DurationMonths: 6,
				IsActive:       true,
				CreatedAt:      100,
				LastSettledAt:  100,
			}
		}

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			for _, p := range []*model.Position{pos("alice", 1), pos("alice", 0), pos("bob", 0)} {
				if err := tx.InsertPosition(p); err != nil {
					return err
				}
			}
			return tx.PutPositionSet(&model.PositionSet{Owner: "alice", Pool: "pool", StakeCount: 2, TotalStaked: 3_000})
		}))

		err := s.Update(ctx, func(tx Tx) error {
			return tx.InsertPosition(pos("alice", 0))
		})
		assert.ErrorIs(t, err, ErrExists)

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			p, err := tx.PositionByIndex("alice", 1)
			if err != nil {
				return err
			}
			p.IsActive = false
			p.TotalClaimed = 42
			p.LastSettledAt = 86_500
			return tx.UpdatePosition(p)
		}))

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			list, err := tx.Positions("alice")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, uint64(0), list[0].StakeIndex)
			assert.Equal(t, uint64(1), list[1].StakeIndex)
			assert.False(t, list[1].IsActive)
			assert.Equal(t, uint64(42), list[1].TotalClaimed)
			assert.Equal(t, int64(86_500), list[1].LastSettledAt)
			assert.Equal(t, uint8(6), list[1].DurationMonths)

			p, err := tx.Position("bob" + "a")
			require.NoError(t, err)
			assert.Equal(t, "bob", p.Owner)

			_, err = tx.Position("nobody")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = tx.PositionByIndex("alice", 2)
			assert.ErrorIs(t, err, ErrNotFound)

			set, err := tx.PositionSet("alice")
			require.NoError(t, err)
			assert.Equal(t, uint64(2), set.StakeCount)
			_, err = tx.PositionSet("bob")
			assert.ErrorIs(t, err, ErrNotFound)
			return nil
		}))
	})
}

func TestCustody(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			if err := tx.Credit("alice", 100); err != nil {
				return err
			}
			return Transfer(tx, "alice", model.StakeVault, 60)
		}))

		err := s.Update(ctx, func(tx Tx) error {
			return Transfer(tx, "alice", model.StakeVault, 41)
		})
		assert.ErrorIs(t, err, errs.InsufficientFunds)

		err = s.Update(ctx, func(tx Tx) error {
			return tx.Credit("alice", math.MaxUint64)
		})
		assert.ErrorIs(t, err, errs.ArithmeticOverflow)

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			a, _ := tx.Balance("alice")
			v, _ := tx.Balance(model.StakeVault)
			n, _ := tx.Balance("nobody")
			assert.Equal(t, uint64(40), a)
			assert.Equal(t, uint64(60), v)
			assert.Zero(t, n)
			return nil
		}))
	})
}

func TestFailedUpdateRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		boom := errors.New("boom")

		err := s.Update(ctx, func(tx Tx) error {
			if err := tx.PutPool(testPool()); err != nil {
				return err
			}
			if err := tx.Credit("alice", 5); err != nil {
				return err
			}
			if err := tx.AppendEvent(&model.Event{ID: "e1", Type: model.EventFunded}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			_, err := tx.Pool()
			assert.ErrorIs(t, err, ErrNotFound)
			bal, _ := tx.Balance("alice")
			assert.Zero(t, bal)
			events, err := tx.Events(0)
			require.NoError(t, err)
			assert.Empty(t, events)
			return nil
		}))
	})
}

func TestViewIsReadOnly(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		err := s.View(context.Background(), func(tx Tx) error {
			return tx.Credit("alice", 1)
		})
		assert.ErrorIs(t, err, ErrReadOnly)
	})
}

func TestEventsNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			for i, typ := range []model.EventType{model.EventStake, model.EventClaimAll, model.EventUnstake} {
				e := &model.Event{
					ID:         string(typ),
					Type:       typ,
					Account:    "alice",
					StakeIndex: uint64(i),
					Rewards:    math.MaxUint64,
					Timestamp:  int64(i),
				}
				if err := tx.AppendEvent(e); err != nil {
					return err
				}
			}
			return tx.RecordSnapshot(&model.Snapshot{Timestamp: 1, Day: 1, Rate: 10})
		}))

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			events, err := tx.Events(2)
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, model.EventUnstake, events[0].Type)
			assert.Equal(t, model.EventClaimAll, events[1].Type)
			assert.Equal(t, uint64(math.MaxUint64), events[0].Rewards)

			all, err := tx.Events(0)
			require.NoError(t, err)
			assert.Len(t, all, 3)
			return nil
		}))
	})
}

// creditBoth moves one unit into each of two accounts in one transaction, so
// any consistent read sees equal balances.
func creditBoth(ctx context.Context, s Store) error {
	return s.Update(ctx, func(tx Tx) error {
		if err := tx.Credit("alice", 1); err != nil {
			return err
		}
		return tx.Credit("bob", 1)
	})
}

func TestConcurrentUpdates(t *testing.T) {
	const workers, rounds = 8, 25

	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 0; i < rounds; i++ {
					assert.NoError(t, creditBoth(ctx, s))
				}
			}()
			go func() {
				defer wg.Done()
				for i := 0; i < rounds; i++ {
					assert.NoError(t, s.View(ctx, func(tx Tx) error {
						a, err := tx.Balance("alice")
						if err != nil {
							return err
						}
						b, err := tx.Balance("bob")
						if err != nil {
							return err
						}
						assert.Equal(t, a, b)
						return nil
					}))
				}
			}()
		}
		wg.Wait()

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			a, _ := tx.Balance("alice")
			assert.Equal(t, uint64(workers*rounds), a)
			return nil
		}))
	})
}

func TestSQLiteStoresShareFile(t *testing.T) {
	const rounds = 25
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	var stores []*SQLiteStore
	for i := 0; i < 2; i++ {
		s, err := NewSQLiteStore(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		stores = append(stores, s)
	}

	// Separate handles serialize only through SQLite's own locking, like
	// the server and a CLI command writing the same file.
	var wg sync.WaitGroup
	for _, s := range stores {
		wg.Add(1)
		go func(s Store) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				assert.NoError(t, creditBoth(ctx, s))
			}
		}(s)
	}
	wg.Wait()

	require.NoError(t, stores[0].View(ctx, func(tx Tx) error {
		a, _ := tx.Balance("alice")
		b, _ := tx.Balance("bob")
		assert.Equal(t, uint64(2*rounds), a)
		assert.Equal(t, uint64(2*rounds), b)
		return nil
	}))
}
