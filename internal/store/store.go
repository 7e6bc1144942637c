// Package store hosts the ledger state. Every mutating ledger operation runs
// inside one Update call, which commits all of its writes (ledger records,
// custody balances and journal entries) or none of them.
package store

import (
	"context"
	"errors"

	"StakeLedger/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExists is returned when inserting a record that already exists.
	ErrExists = errors.New("already exists")

	// ErrReadOnly is returned when writing inside a View transaction.
	ErrReadOnly = errors.New("read-only transaction")
)

// Store is a transactional host for ledger state.
type Store interface {
	// Update runs fn in a writable transaction. The transaction commits if
	// fn returns nil and rolls back otherwise.
	Update(ctx context.Context, fn func(Tx) error) error

	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error

	Close() error
}

// Tx is the view of the store inside one transaction.
type Tx interface {
	Custody

	Pool() (*model.Pool, error)
	PutPool(p *model.Pool) error

	// PositionSet returns the owner's set, or ErrNotFound.
	PositionSet(owner string) (*model.PositionSet, error)
	PutPositionSet(s *model.PositionSet) error

	// Position returns the position stored at addr, or ErrNotFound.
	Position(addr string) (*model.Position, error)
	// PositionByIndex returns the owner's position at index, or ErrNotFound.
	PositionByIndex(owner string, index uint64) (*model.Position, error)
	// Positions lists the owner's positions in index order.
	Positions(owner string) ([]*model.Position, error)
	// InsertPosition stores a new position; ErrExists if the address or
	// (owner, index) is taken.
	InsertPosition(p *model.Position) error
	UpdatePosition(p *model.Position) error

	AppendEvent(e *model.Event) error
	// Events returns the most recent events, newest first.
	Events(limit int) ([]model.Event, error)

	RecordSnapshot(s *model.Snapshot) error
}

// Custody moves asset balances between accounts.
type Custody interface {
	Balance(account string) (uint64, error)
	// Debit removes amount from account; errs.InsufficientFunds if short.
	Debit(account string, amount uint64) error
	Credit(account string, amount uint64) error
}

// Transfer debits from and credits to within the same transaction.
func Transfer(c Custody, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := c.Debit(from, amount); err != nil {
		return err
	}
	return c.Credit(to, amount)
}
