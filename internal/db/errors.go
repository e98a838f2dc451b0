package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound indicates a view-native record or link row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation indicates a duplicate link: the (view, original id)
	// pair is already linked, or the group already has a link for that view.
	ErrConstraintViolation = errors.New("constraint violation")
)

// primaryCode strips the extended part of a SQLite result code.
func primaryCode(err error) (int, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.Code() & 0xff, true
}

func isConstraintErr(err error) bool {
	code, ok := primaryCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT
}

func isBusyErr(err error) bool {
	code, ok := primaryCode(err)
	return ok && (code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED)
}

// wrapNotFound converts sql.ErrNoRows into ErrNotFound with context.
func wrapNotFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s not found: %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func checkAffected(res sql.Result, what, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found: %s: %w", what, id, ErrNotFound)
	}
	return nil
}

// timeLayout is RFC3339 with a fixed nine-digit fraction. Stored timestamps
// are UTC and all the same width, so ORDER BY on the TEXT column is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime accepts any fraction width.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
