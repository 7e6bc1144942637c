package ledger

import (
	"context"
	"errors"

	"StakeLedger/internal/address"
	"StakeLedger/internal/calculator"
	"StakeLedger/internal/errs"
	"StakeLedger/internal/fixed"
	"StakeLedger/internal/model"
	"StakeLedger/internal/store"
)

// InitParams configures a new pool.
type InitParams struct {
	Asset          string
	Treasury       string // defaults to the authority
	ProgramEndDate int64  // unix seconds
	NormalizationK uint64
}

// Initialize creates the pool with the caller as its authority. The program
// starts now, the reward schedule is fixed for the life of the pool and day
// 0's rate is seeded for an empty pool.
func (m *Manager) Initialize(ctx context.Context, c Caller, p InitParams) (*model.Pool, error) {
	var pool *model.Pool
	err := m.update(ctx, func(tx store.Tx, j *journal) error {
		if err := requireOwner(c); err != nil {
			return err
		}
		if _, err := tx.Pool(); err == nil {
			return errs.PoolAlreadyInitialized
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if p.ProgramEndDate <= j.now {
			return errs.InvalidProgramEndDate.WithFormat("end date %d is not after %d", p.ProgramEndDate, j.now)
		}
		if p.NormalizationK == 0 {
			return errs.InvalidNormalizationK.With("normalization K must be positive")
		}

		treasury := p.Treasury
		if treasury == "" {
			treasury = c.Account
		}
		pool = &model.Pool{
			ID:               address.Pool(p.Asset),
			Authority:        c.Account,
			Asset:            p.Asset,
			Treasury:         treasury,
			ProgramStartTime: j.now,
			ProgramEndDate:   p.ProgramEndDate,
			NormalizationK:   p.NormalizationK,
			RewardBudgets:    append([]uint64(nil), m.schedule.Budgets...),
		}
		if _, err := calculator.Recompute(pool, m.scheduleOf(pool), j.now); err != nil {
			return err
		}
		if err := tx.PutPool(pool); err != nil {
			return err
		}
		return j.record(model.Event{
			Type:     model.EventInitialized,
			Account:  c.Account,
			NewValue: pool.DailyRates[0],
		})
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("pool initialized", "pool", pool.ID, "authority", pool.Authority,
		"end", pool.ProgramEndDate, "k", pool.NormalizationK, "rate", pool.DailyRates[0])
	return pool, nil
}

// UpdateNormalizationK replaces the rate divisor and recomputes today's rate.
func (m *Manager) UpdateNormalizationK(ctx context.Context, c Caller, k uint64) error {
	var old uint64
	err := m.update(ctx, func(tx store.Tx, j *journal) error {
		pool, err := loadPool(tx)
		if err != nil {
			return err
		}
		if err := requireAuthority(c, pool); err != nil {
			return err
		}
		if k == 0 {
			return errs.InvalidNormalizationK.With("normalization K must be positive")
		}

		old = pool.NormalizationK
		pool.NormalizationK = k
		if err := m.refreshRate(pool, j.now); err != nil {
			return err
		}
		if err := tx.PutPool(pool); err != nil {
			return err
		}
		return j.record(model.Event{
			Type:     model.EventNormalizationK,
			Account:  c.Account,
			OldValue: old,
			NewValue: k,
		})
	})
	if err != nil {
		return err
	}

	m.log.Info("normalization k updated", "old", old, "new", k)
	return nil
}

// SetDailyRate overrides the rate of the current or a future day. Past days
// are settled history and cannot be rewritten.
func (m *Manager) SetDailyRate(ctx context.Context, c Caller, day int64, rate uint64) error {
	var old uint64
	err := m.update(ctx, func(tx store.Tx, j *journal) error {
		pool, err := loadPool(tx)
		if err != nil {
			return err
		}
		if err := requireAuthority(c, pool); err != nil {
			return err
		}
		if day >= model.HorizonDays {
			return errs.OutOfHorizon.WithFormat("day %d is past the %d-day horizon", day, model.HorizonDays)
		}
		today, err := calculator.DayIndex(j.now, pool.ProgramStartTime)
		if err != nil {
			return err
		}
		if day < today {
			return errs.InvalidDayIndex.WithFormat("day %d has already elapsed (today is %d)", day, today)
		}

		old = pool.DailyRates[day]
		pool.DailyRates[day] = rate
		pool.LastUpdateTime = j.now
		if err := tx.PutPool(pool); err != nil {
			return err
		}
		return j.record(model.Event{
			Type:     model.EventDailyRateSet,
			Account:  c.Account,
			Day:      day,
			OldValue: old,
			NewValue: rate,
		})
	})
	if err != nil {
		return err
	}

	m.log.Info("daily rate set", "day", day, "old", old, "new", rate)
	return nil
}

// CloseProgram sweeps the reward vault to the treasury once the program has
// ended. Deposits and claims are refused afterwards; exits still return
// principal.
func (m *Manager) CloseProgram(ctx context.Context, c Caller) (uint64, error) {
	var swept uint64
	err := m.update(ctx, func(tx store.Tx, j *journal) error {
		pool, err := loadPool(tx)
		if err != nil {
			return err
		}
		if err := requireAuthority(c, pool); err != nil {
			return err
		}
		if pool.Closed {
			return errs.ProgramClosed
		}
		if j.now < pool.ProgramEndDate {
			return errs.ProgramNotEnded.WithFormat("program ends at %d", pool.ProgramEndDate)
		}

		swept, err = tx.Balance(model.RewardVault)
		if err != nil {
			return err
		}
		if err := store.Transfer(tx, model.RewardVault, pool.Treasury, swept); err != nil {
			return err
		}
		pool.Closed = true
		pool.LastUpdateTime = j.now
		if err := tx.PutPool(pool); err != nil {
			return err
		}
		return j.record(model.Event{
			Type:    model.EventProgramClosed,
			Account: pool.Treasury,
			Amount:  swept,
		})
	})
	if err != nil {
		return 0, err
	}

	m.log.Info("program closed", "swept", swept)
	return swept, nil
}

// Fund credits amount to account from outside the ledger, e.g. topping up
// the reward vault or a staker's wallet.
func (m *Manager) Fund(ctx context.Context, c Caller, account string, amount uint64) (uint64, error) {
	var balance uint64
	err := m.update(ctx, func(tx store.Tx, j *journal) error {
		pool, err := loadPool(tx)
		if err != nil {
			return err
		}
		if err := requireAuthority(c, pool); err != nil {
			return err
		}
		if amount == 0 {
			return errs.InvalidAmount.With("fund amount must be positive")
		}
		if account == model.StakeVault {
			return errs.Unauthorized.With("the stake vault only holds staked principal")
		}

		if err := tx.Credit(account, amount); err != nil {
			return err
		}
		if balance, err = tx.Balance(account); err != nil {
			return err
		}
		return j.record(model.Event{
			Type:    model.EventFunded,
			Account: account,
			Amount:  amount,
		})
	})
	if err != nil {
		return 0, err
	}

	m.log.Info("account funded", "account", account, "amount", amount, "balance", balance)
	return balance, nil
}

// checkRewardFunds fails unless the reward vault can pay amount in full.
func checkRewardFunds(tx store.Tx, amount uint64) error {
	bal, err := tx.Balance(model.RewardVault)
	if err != nil {
		return err
	}
	if bal < amount {
		return errs.InsufficientRewardFunds.WithFormat("reward vault holds %d, owed %d", bal, amount)
	}
	return nil
}

func addTo(dst *uint64, v uint64) error {
	s, err := fixed.Add(*dst, v)
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

func subFrom(dst *uint64, v uint64) error {
	s, err := fixed.Sub(*dst, v)
	if err != nil {
		return err
	}
	*dst = s
	return nil
}
