package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is a READ COMMITTED transaction with a queue of hooks that run only
// after a successful commit. Commit and Rollback always hand the connection
// back to the pool, even when the COMMIT or ROLLBACK statement fails.
type Tx struct {
	*sql.Tx
	onCommit []func()
}

var _ Querier = (*Tx)(nil)

// Begin opens a transaction at the store's default READ COMMITTED level.
func Begin(ctx context.Context, db *sql.DB) (*Tx, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{Tx: tx}, nil
}

// OnCommit queues fn to run after Commit succeeds. Hooks are dropped on
// rollback, so they must not carry state the transaction depends on.
func (t *Tx) OnCommit(fn func()) {
	if fn != nil {
		t.onCommit = append(t.onCommit, fn)
	}
}

// Commit commits the transaction and then runs the queued hooks in order.
func (t *Tx) Commit() error {
	if err := t.Tx.Commit(); err != nil {
		t.onCommit = nil
		return fmt.Errorf("commit tx: %w", err)
	}
	hooks := t.onCommit
	t.onCommit = nil
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Rollback aborts the transaction and discards queued hooks.
func (t *Tx) Rollback() error {
	t.onCommit = nil
	return t.Tx.Rollback()
}

// WithTx runs fn inside a new transaction. The transaction is committed when
// fn returns nil and rolled back on error or panic; the error from fn is
// returned unchanged so callers can still match it with errors.Is/As.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *Tx) error) (err error) {
	tx, err := Begin(ctx, db)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
