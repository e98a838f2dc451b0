package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func newBeginBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second
	return bo
}

// RunInTx executes fn inside a write transaction on a dedicated connection.
//
// BEGIN IMMEDIATE takes the write lock up front and is retried with
// exponential backoff while the database is busy. fn returning an error or
// panicking rolls the transaction back.
func (db *DB) RunInTx(ctx context.Context, fn func(q Querier) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for transaction: %w", err)
	}
	defer func() { _ = conn.Close() }()

	begin := func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusyErr(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(begin, backoff.WithContext(newBeginBackoff(), ctx)); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so rollback completes even if ctx is cancelled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}
