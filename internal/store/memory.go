package store

import (
	"context"
	"sort"
	"sync"

	"StakeLedger/internal/errs"
	"StakeLedger/internal/fixed"
	"StakeLedger/internal/model"
)

// MemoryStore keeps ledger state in process. Writers are serialized and
// work on a copy that replaces the live state only when fn succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	pool      *model.Pool
	sets      map[string]model.PositionSet
	positions map[string]model.Position // by address
	index     map[string]map[uint64]string
	balances  map[string]uint64
	events    []model.Event
	snapshots []model.Snapshot
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		sets:      map[string]model.PositionSet{},
		positions: map[string]model.Position{},
		index:     map[string]map[uint64]string{},
		balances:  map[string]uint64{},
	}}
}

func (m *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	if err := fn(&memTx{s: next}); err != nil {
		return err
	}
	m.state = next
	return nil
}

func (m *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{s: m.state, readOnly: true})
}

// Snapshots returns the recorded pool snapshots, oldest first.
func (m *MemoryStore) Snapshots() []model.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Snapshot(nil), m.state.snapshots...)
}

func (m *MemoryStore) Close() error { return nil }

func (s *memState) clone() *memState {
	c := &memState{
		sets:      make(map[string]model.PositionSet, len(s.sets)),
		positions: make(map[string]model.Position, len(s.positions)),
		index:     make(map[string]map[uint64]string, len(s.index)),
		balances:  make(map[string]uint64, len(s.balances)),
		events:    append([]model.Event(nil), s.events...),
		snapshots: append([]model.Snapshot(nil), s.snapshots...),
	}
	if s.pool != nil {
		c.pool = copyPool(s.pool)
	}
	for k, v := range s.sets {
		c.sets[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	for owner, idx := range s.index {
		m := make(map[uint64]string, len(idx))
		for i, a := range idx {
			m[i] = a
		}
		c.index[owner] = m
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	return c
}

type memTx struct {
	s        *memState
	readOnly bool
}

func (t *memTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *memTx) Pool() (*model.Pool, error) {
	if t.s.pool == nil {
		return nil, ErrNotFound
	}
	return copyPool(t.s.pool), nil
}

func (t *memTx) PutPool(p *model.Pool) error {
	if err := t.writable(); err != nil {
		return err
	}
	c := copyPool(p)
	// Budgets are written once, with the pool.
	if t.s.pool != nil && t.s.pool.ID == p.ID {
		c.RewardBudgets = t.s.pool.RewardBudgets
	}
	t.s.pool = c
	return nil
}

func copyPool(p *model.Pool) *model.Pool {
	c := *p
	c.RewardBudgets = append([]uint64(nil), p.RewardBudgets...)
	return &c
}

func (t *memTx) PositionSet(owner string) (*model.PositionSet, error) {
	s, ok := t.s.sets[owner]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (t *memTx) PutPositionSet(s *model.PositionSet) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.s.sets[s.Owner] = *s
	return nil
}

func (t *memTx) Position(addr string) (*model.Position, error) {
	p, ok := t.s.positions[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memTx) PositionByIndex(owner string, index uint64) (*model.Position, error) {
	addr, ok := t.s.index[owner][index]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Position(addr)
}

func (t *memTx) Positions(owner string) ([]*model.Position, error) {
	var out []*model.Position
	for _, addr := range t.s.index[owner] {
		p := t.s.positions[addr]
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StakeIndex < out[j].StakeIndex })
	return out, nil
}

func (t *memTx) InsertPosition(p *model.Position) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.s.positions[p.Address]; ok {
		return ErrExists
	}
	if _, ok := t.s.index[p.Owner][p.StakeIndex]; ok {
		return ErrExists
	}
	t.s.positions[p.Address] = *p
	if t.s.index[p.Owner] == nil {
		t.s.index[p.Owner] = map[uint64]string{}
	}
	t.s.index[p.Owner][p.StakeIndex] = p.Address
	return nil
}

func (t *memTx) UpdatePosition(p *model.Position) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.s.positions[p.Address]; !ok {
		return ErrNotFound
	}
	t.s.positions[p.Address] = *p
	return nil
}

func (t *memTx) Balance(account string) (uint64, error) {
	return t.s.balances[account], nil
}

func (t *memTx) Debit(account string, amount uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	bal := t.s.balances[account]
	if bal < amount {
		return errs.InsufficientFunds.WithFormat("%s holds %d, needs %d", account, bal, amount)
	}
	t.s.balances[account] = bal - amount
	return nil
}

func (t *memTx) Credit(account string, amount uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	bal, err := fixed.Add(t.s.balances[account], amount)
	if err != nil {
		return err
	}
	t.s.balances[account] = bal
	return nil
}

func (t *memTx) AppendEvent(e *model.Event) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.s.events = append(t.s.events, *e)
	return nil
}

func (t *memTx) Events(limit int) ([]model.Event, error) {
	n := len(t.s.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, t.s.events[i])
	}
	return out, nil
}

func (t *memTx) RecordSnapshot(s *model.Snapshot) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.s.snapshots = append(t.s.snapshots, *s)
	return nil
}
