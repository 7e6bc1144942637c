package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"StakeLedger/internal/errs"
	"StakeLedger/internal/fixed"
	"StakeLedger/internal/model"
)

// SQLiteStore persists ledger state to a SQLite database. Each Update is one
// SQL transaction; writers are serialized.
type SQLiteStore struct {
	db *sql.DB // writes; transactions take the write lock at BEGIN
	ro *sql.DB // reads
	mu sync.Mutex
}

// Connection pragmas go in the DSN so every pooled connection gets them.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// BEGIN IMMEDIATE makes a writer in another process wait on busy_timeout
	// instead of failing when its read snapshot goes stale.
	db, err := sql.Open("sqlite", dbPath+"?"+sqlitePragmas+"&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets report readers run while a ledger write is in flight.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if s.ro, err = sql.Open("sqlite", dbPath+"?"+sqlitePragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite reader: %w", err)
	}

	slog.Info("sqlite store opened", "path", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pools (
			id                        TEXT PRIMARY KEY,
			authority                 TEXT NOT NULL,
			asset                     TEXT NOT NULL,
			treasury                  TEXT NOT NULL,
			total_staked              INTEGER NOT NULL,
			total_rewards_distributed INTEGER NOT NULL,
			program_start_time        INTEGER NOT NULL,
			program_end_date          INTEGER NOT NULL,
			last_update_time          INTEGER NOT NULL,
			normalization_k           INTEGER NOT NULL,
			closed                    INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS daily_rates (
			pool_id TEXT    NOT NULL REFERENCES pools(id),
			day     INTEGER NOT NULL,
			rate    INTEGER NOT NULL,
			PRIMARY KEY (pool_id, day)
		)`,

		`CREATE TABLE IF NOT EXISTS reward_budgets (
			pool_id TEXT    NOT NULL REFERENCES pools(id),
			month   INTEGER NOT NULL,
			budget  INTEGER NOT NULL,
			PRIMARY KEY (pool_id, month)
		)`,

		`CREATE TABLE IF NOT EXISTS position_sets (
			owner         TEXT PRIMARY KEY,
			pool_id       TEXT    NOT NULL,
			stake_count   INTEGER NOT NULL,
			total_staked  INTEGER NOT NULL,
			total_claimed INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS positions (
			address         TEXT PRIMARY KEY,
			owner           TEXT    NOT NULL,
			pool_id         TEXT    NOT NULL,
			stake_index     INTEGER NOT NULL,
			amount          INTEGER NOT NULL,
			duration_months INTEGER NOT NULL,
			is_active       INTEGER NOT NULL,
			total_claimed   INTEGER NOT NULL,
			created_at      INTEGER NOT NULL,
			last_settled_at INTEGER NOT NULL,
			UNIQUE (owner, pool_id, stake_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_owner ON positions(owner, stake_index)`,

		`CREATE TABLE IF NOT EXISTS balances (
			account TEXT PRIMARY KEY,
			amount  INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_events (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			id              TEXT    NOT NULL UNIQUE,
			timestamp       INTEGER NOT NULL,
			event_type      TEXT    NOT NULL,
			account         TEXT,
			stake_index     INTEGER,
			day             INTEGER,
			amount          INTEGER,
			rewards         INTEGER,
			penalty         INTEGER,
			duration_months INTEGER,
			stakes_count    INTEGER,
			old_value       INTEGER,
			new_value       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON ledger_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS pool_snapshots (
			id                        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp                 INTEGER NOT NULL,
			day                       INTEGER,
			total_staked              INTEGER,
			total_rewards_distributed INTEGER,
			rate                      INTEGER,
			normalization_k           INTEGER,
			reward_vault_balance      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON pool_snapshots(timestamp)`,
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", strings.TrimSpace(st)[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.ro.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&sqliteTx{ctx: ctx, tx: tx, readOnly: true})
}

func (s *SQLiteStore) Close() error {
	slog.Info("closing sqlite store")
	return errors.Join(s.ro.Close(), s.db.Close())
}

// SQLite integers are signed; uint64 values are stored bit for bit.
func i64(v uint64) int64 { return int64(v) }
func u64(v int64) uint64 { return uint64(v) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type sqliteTx struct {
	ctx      context.Context
	tx       *sql.Tx
	readOnly bool

	// rates as last read or written, so PutPool only rewrites changed days
	rates map[string]*[model.HorizonDays]uint64
	// pools whose reward budgets are already stored
	budgets map[string]bool
}

func (t *sqliteTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *sqliteTx) exec(query string, args ...any) (sql.Result, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	return t.tx.ExecContext(t.ctx, query, args...)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (t *sqliteTx) Pool() (*model.Pool, error) {
	var p model.Pool
	var total, distributed, k int64
	var closed int
	err := t.tx.QueryRowContext(t.ctx, `SELECT id, authority, asset, treasury, total_staked,
		total_rewards_distributed, program_start_time, program_end_date, last_update_time,
		normalization_k, closed FROM pools LIMIT 1`).Scan(
		&p.ID, &p.Authority, &p.Asset, &p.Treasury, &total, &distributed,
		&p.ProgramStartTime, &p.ProgramEndDate, &p.LastUpdateTime, &k, &closed)
	if err != nil {
		return nil, notFound(err)
	}
	p.TotalStaked, p.TotalRewardsDistributed, p.NormalizationK = u64(total), u64(distributed), u64(k)
	p.Closed = closed != 0

	rows, err := t.tx.QueryContext(t.ctx, `SELECT day, rate FROM daily_rates WHERE pool_id = ?`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var day, rate int64
		if err := rows.Scan(&day, &rate); err != nil {
			return nil, err
		}
		if day >= 0 && day < model.HorizonDays {
			p.DailyRates[day] = u64(rate)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if p.RewardBudgets, err = t.rewardBudgets(p.ID); err != nil {
		return nil, err
	}

	t.remember(&p)
	return &p, nil
}

func (t *sqliteTx) rewardBudgets(poolID string) ([]uint64, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT budget FROM reward_budgets
		WHERE pool_id = ? ORDER BY month`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var budgets []uint64
	for rows.Next() {
		var b int64
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		budgets = append(budgets, u64(b))
	}
	return budgets, rows.Err()
}

func (t *sqliteTx) remember(p *model.Pool) {
	if t.rates == nil {
		t.rates = map[string]*[model.HorizonDays]uint64{}
		t.budgets = map[string]bool{}
	}
	r := p.DailyRates
	t.rates[p.ID] = &r
	t.budgets[p.ID] = true
}

func (t *sqliteTx) PutPool(p *model.Pool) error {
	_, err := t.exec(`INSERT INTO pools
		(id, authority, asset, treasury, total_staked, total_rewards_distributed,
		 program_start_time, program_end_date, last_update_time, normalization_k, closed)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			total_staked = excluded.total_staked,
			total_rewards_distributed = excluded.total_rewards_distributed,
			last_update_time = excluded.last_update_time,
			normalization_k = excluded.normalization_k,
			closed = excluded.closed`,
		p.ID, p.Authority, p.Asset, p.Treasury, i64(p.TotalStaked), i64(p.TotalRewardsDistributed),
		p.ProgramStartTime, p.ProgramEndDate, p.LastUpdateTime, i64(p.NormalizationK), boolInt(p.Closed),
	)
	if err != nil {
		return fmt.Errorf("put pool: %w", err)
	}

	// Budgets are written once, with the pool.
	if !t.budgets[p.ID] {
		for month, b := range p.RewardBudgets {
			if _, err := t.exec(`INSERT INTO reward_budgets (pool_id, month, budget) VALUES (?,?,?)
				ON CONFLICT(pool_id, month) DO NOTHING`, p.ID, month, i64(b)); err != nil {
				return fmt.Errorf("put reward budget %d: %w", month, err)
			}
		}
	}

	prev := t.rates[p.ID]
	for day, rate := range p.DailyRates {
		if prev != nil && prev[day] == rate {
			continue
		}
		if _, err := t.exec(`INSERT INTO daily_rates (pool_id, day, rate) VALUES (?,?,?)
			ON CONFLICT(pool_id, day) DO UPDATE SET rate = excluded.rate`,
			p.ID, day, i64(rate)); err != nil {
			return fmt.Errorf("put daily rate %d: %w", day, err)
		}
	}
	t.remember(p)
	return nil
}

func (t *sqliteTx) PositionSet(owner string) (*model.PositionSet, error) {
	s := model.PositionSet{Owner: owner}
	var count, staked, claimed int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT pool_id, stake_count, total_staked, total_claimed
		FROM position_sets WHERE owner = ?`, owner).Scan(&s.Pool, &count, &staked, &claimed)
	if err != nil {
		return nil, notFound(err)
	}
	s.StakeCount, s.TotalStaked, s.TotalClaimed = u64(count), u64(staked), u64(claimed)
	return &s, nil
}

func (t *sqliteTx) PutPositionSet(s *model.PositionSet) error {
	_, err := t.exec(`INSERT INTO position_sets (owner, pool_id, stake_count, total_staked, total_claimed)
		VALUES (?,?,?,?,?)
		ON CONFLICT(owner) DO UPDATE SET
			stake_count = excluded.stake_count,
			total_staked = excluded.total_staked,
			total_claimed = excluded.total_claimed`,
		s.Owner, s.Pool, i64(s.StakeCount), i64(s.TotalStaked), i64(s.TotalClaimed))
	if err != nil {
		return fmt.Errorf("put position set: %w", err)
	}
	return nil
}

const positionColumns = `address, owner, pool_id, stake_index, amount, duration_months,
	is_active, total_claimed, created_at, last_settled_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (*model.Position, error) {
	var p model.Position
	var idx, amount, claimed int64
	var active int
	if err := row.Scan(&p.Address, &p.Owner, &p.Pool, &idx, &amount, &p.DurationMonths,
		&active, &claimed, &p.CreatedAt, &p.LastSettledAt); err != nil {
		return nil, err
	}
	p.StakeIndex, p.Amount, p.TotalClaimed = u64(idx), u64(amount), u64(claimed)
	p.IsActive = active != 0
	return &p, nil
}

func (t *sqliteTx) Position(addr string) (*model.Position, error) {
	p, err := scanPosition(t.tx.QueryRowContext(t.ctx,
		`SELECT `+positionColumns+` FROM positions WHERE address = ?`, addr))
	return p, notFound(err)
}

func (t *sqliteTx) PositionByIndex(owner string, index uint64) (*model.Position, error) {
	p, err := scanPosition(t.tx.QueryRowContext(t.ctx,
		`SELECT `+positionColumns+` FROM positions WHERE owner = ? AND stake_index = ?`, owner, i64(index)))
	return p, notFound(err)
}

func (t *sqliteTx) Positions(owner string) ([]*model.Position, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT `+positionColumns+` FROM positions WHERE owner = ? ORDER BY stake_index`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *sqliteTx) InsertPosition(p *model.Position) error {
	if err := t.writable(); err != nil {
		return err
	}
	var n int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM positions
		WHERE address = ? OR (owner = ? AND pool_id = ? AND stake_index = ?)`,
		p.Address, p.Owner, p.Pool, i64(p.StakeIndex)).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrExists
	}

	_, err = t.exec(`INSERT INTO positions (`+positionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.Address, p.Owner, p.Pool, i64(p.StakeIndex), i64(p.Amount), p.DurationMonths,
		boolInt(p.IsActive), i64(p.TotalClaimed), p.CreatedAt, p.LastSettledAt)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdatePosition(p *model.Position) error {
	res, err := t.exec(`UPDATE positions SET is_active = ?, total_claimed = ?, last_settled_at = ?
		WHERE address = ?`,
		boolInt(p.IsActive), i64(p.TotalClaimed), p.LastSettledAt, p.Address)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) Balance(account string) (uint64, error) {
	var v int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT amount FROM balances WHERE account = ?`, account).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return u64(v), err
}

func (t *sqliteTx) setBalance(account string, v uint64) error {
	_, err := t.exec(`INSERT INTO balances (account, amount) VALUES (?,?)
		ON CONFLICT(account) DO UPDATE SET amount = excluded.amount`, account, i64(v))
	return err
}

func (t *sqliteTx) Debit(account string, amount uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	bal, err := t.Balance(account)
	if err != nil {
		return err
	}
	if bal < amount {
		return errs.InsufficientFunds.WithFormat("%s holds %d, needs %d", account, bal, amount)
	}
	return t.setBalance(account, bal-amount)
}

func (t *sqliteTx) Credit(account string, amount uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	bal, err := t.Balance(account)
	if err != nil {
		return err
	}
	bal, err = fixed.Add(bal, amount)
	if err != nil {
		return err
	}
	return t.setBalance(account, bal)
}

func (t *sqliteTx) AppendEvent(e *model.Event) error {
	_, err := t.exec(`INSERT INTO ledger_events
		(id, timestamp, event_type, account, stake_index, day, amount, rewards, penalty,
		 duration_months, stakes_count, old_value, new_value)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Timestamp, string(e.Type), e.Account, i64(e.StakeIndex), e.Day, i64(e.Amount),
		i64(e.Rewards), i64(e.Penalty), e.DurationMonths, i64(e.StakesCount),
		i64(e.OldValue), i64(e.NewValue))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (t *sqliteTx) Events(limit int) ([]model.Event, error) {
	q := `SELECT id, timestamp, event_type, account, stake_index, day, amount, rewards, penalty,
		duration_months, stakes_count, old_value, new_value FROM ledger_events ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := t.tx.QueryContext(t.ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var typ string
		var idx, amount, rewards, penalty, count, oldV, newV int64
		if err := rows.Scan(&e.ID, &e.Timestamp, &typ, &e.Account, &idx, &e.Day, &amount, &rewards,
			&penalty, &e.DurationMonths, &count, &oldV, &newV); err != nil {
			return nil, err
		}
		e.Type = model.EventType(typ)
		e.StakeIndex, e.Amount, e.Rewards, e.Penalty = u64(idx), u64(amount), u64(rewards), u64(penalty)
		e.StakesCount, e.OldValue, e.NewValue = u64(count), u64(oldV), u64(newV)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *sqliteTx) RecordSnapshot(s *model.Snapshot) error {
	_, err := t.exec(`INSERT INTO pool_snapshots
		(timestamp, day, total_staked, total_rewards_distributed, rate, normalization_k, reward_vault_balance)
		VALUES (?,?,?,?,?,?,?)`,
		s.Timestamp, s.Day, i64(s.TotalStaked), i64(s.TotalRewardsDistributed),
		i64(s.Rate), i64(s.NormalizationK), i64(s.RewardVaultBalance))
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}
