// Package ledger runs the staking operations. Each mutating operation is one
// store transaction: it validates, moves custody balances, updates the pool
// and positions, recomputes the day's rate and journals an event, or does
// none of it.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"StakeLedger/internal/calculator"
	"StakeLedger/internal/errs"
	"StakeLedger/internal/model"
	"StakeLedger/internal/store"
)

// Caller identifies who is invoking an operation. Authorized is the verdict
// of whatever authenticated the call; the ledger only trusts it.
type Caller struct {
	Account    string
	Authorized bool
}

// Publisher receives journal events after their transaction commits.
type Publisher interface {
	Publish(ctx context.Context, events []model.Event)
}

// Options configures a Manager.
type Options struct {
	Store     store.Store
	Schedule  calculator.RewardSchedule
	Clock     func() time.Time // defaults to time.Now
	Publisher Publisher        // optional
	Logger    *slog.Logger     // defaults to slog.Default()
}

// Manager executes ledger operations against a store.
type Manager struct {
	store     store.Store
	schedule  calculator.RewardSchedule
	clock     func() time.Time
	publisher Publisher
	log       *slog.Logger
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		store:     opts.Store,
		schedule:  opts.Schedule,
		clock:     opts.Clock,
		publisher: opts.Publisher,
		log:       opts.Logger,
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Schedule returns the reward schedule new pools are initialized with.
func (m *Manager) Schedule() calculator.RewardSchedule {
	return m.schedule
}

// scheduleOf returns the budgets stored with pool. Pools written before
// budgets were stored fall back to the configured schedule.
func (m *Manager) scheduleOf(pool *model.Pool) calculator.RewardSchedule {
	if len(pool.RewardBudgets) > 0 {
		return calculator.RewardSchedule{Budgets: pool.RewardBudgets}
	}
	return m.schedule
}

func (m *Manager) now() int64 {
	return m.clock().Unix()
}

// journal collects the events of one transaction.
type journal struct {
	tx     store.Tx
	now    int64
	events []model.Event
}

func (j *journal) record(e model.Event) error {
	e.ID = uuid.NewString()
	e.Timestamp = j.now
	if err := j.tx.AppendEvent(&e); err != nil {
		return err
	}
	j.events = append(j.events, e)
	return nil
}

// update runs fn in one write transaction and publishes its events once the
// transaction has committed.
func (m *Manager) update(ctx context.Context, fn func(tx store.Tx, j *journal) error) error {
	var committed []model.Event
	err := m.store.Update(ctx, func(tx store.Tx) error {
		j := &journal{tx: tx, now: m.now()}
		if err := fn(tx, j); err != nil {
			return err
		}
		committed = j.events
		return nil
	})
	if err != nil {
		return err
	}
	if m.publisher != nil && len(committed) > 0 {
		m.publisher.Publish(ctx, committed)
	}
	return nil
}

func loadPool(tx store.Tx) (*model.Pool, error) {
	pool, err := tx.Pool()
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.PoolNotInitialized
	}
	return pool, err
}

func requireOwner(c Caller) error {
	if !c.Authorized || c.Account == "" {
		return errs.Unauthorized.WithFormat("caller %q is not authorized", c.Account)
	}
	return nil
}

func requireAuthority(c Caller, pool *model.Pool) error {
	if !c.Authorized || c.Account != pool.Authority {
		return errs.Unauthorized.WithFormat("%q is not the pool authority", c.Account)
	}
	return nil
}

// refreshRate recomputes the current day's rate. Past the horizon there is no
// day to write, which must not block exits or claims.
func (m *Manager) refreshRate(pool *model.Pool, now int64) error {
	_, err := calculator.Recompute(pool, m.scheduleOf(pool), now)
	if errors.Is(err, errs.OutOfHorizon) {
		return nil
	}
	return err
}
