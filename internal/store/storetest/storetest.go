// Package storetest opens throwaway in-memory stores for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"

	"ticket-ledger/internal/store"
)

func New(tb testing.TB, opts ...store.Option) *store.Store {
	tb.Helper()

	db, err := dbx.Open("sqlite", ":memory:")
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	db.DB().SetMaxOpenConns(1)
	tb.Cleanup(func() { db.Close() })

	if err := store.ApplySchema(context.Background(), db); err != nil {
		tb.Fatalf("apply schema: %v", err)
	}
	return store.New(store.NewSQLDB(db), opts...)
}
