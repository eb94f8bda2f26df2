package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Writes from the pipeline and the background store writer can land on
// the same database concurrently, so SQLITE_BUSY is an expected transient
// condition, retried with a short linear backoff.
const (
	busyRetries = 3
	busyBackoff = 100 * time.Millisecond
)

// IsBusy reports whether err indicates an SQLite BUSY condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx runs fn inside a transaction, retrying the whole transaction when
// SQLite reports busy. Any other error from fn rolls back and returns
// unchanged, so callers can match their own sentinel errors.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var err error
	for attempt := range busyRetries {
		if err = runTxOnce(ctx, db, fn); err == nil {
			return nil
		}
		if !IsBusy(err) {
			return err
		}
		if werr := waitBackoff(ctx, attempt); werr != nil {
			return fmt.Errorf("dbopen: tx retry interrupted: %w", werr)
		}
	}
	return fmt.Errorf("dbopen: tx still busy after %d attempts: %w", busyRetries, err)
}

func runTxOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

// Exec runs a single statement with the same busy-retry policy as RunTx.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var err error
	for attempt := range busyRetries {
		var result sql.Result
		if result, err = db.ExecContext(ctx, query, args...); err == nil {
			return result, nil
		}
		if !IsBusy(err) {
			return nil, err
		}
		if werr := waitBackoff(ctx, attempt); werr != nil {
			return nil, fmt.Errorf("dbopen: exec retry interrupted: %w", werr)
		}
	}
	return nil, fmt.Errorf("dbopen: exec still busy after %d attempts: %w", busyRetries, err)
}

// waitBackoff sleeps 100/200/300ms for attempts 0/1/2, honoring ctx.
func waitBackoff(ctx context.Context, attempt int) error {
	t := time.NewTimer(time.Duration(attempt+1) * busyBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
