// Package store persists tickets, ticket types and the platform fee ledger.
// Every invariant that must survive concurrent requests is enforced by a
// single conditional write or a unique index, never by a read followed by a write.
package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Store struct {
	db  DB
	now func() time.Time

	releaseFailedInventory bool
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithReleaseFailedInventory returns reserved units to the ticket type when
// a ticket fails.
func WithReleaseFailedInventory(release bool) Option {
	return func(s *Store) { s.releaseFailedInventory = release }
}

func New(db DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) timestamp() int64 {
	return s.now().UTC().UnixMilli()
}

func newID() string {
	return uuid.NewString()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure mentioning column.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
