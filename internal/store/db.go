package store

import (
	"context"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// DB gives the store a read builder and serialized write transactions.
type DB interface {
	Builder() dbx.Builder
	Transactional(ctx context.Context, fn func(tx dbx.Builder) error) error
}

// SQLDB runs the store against a plain dbx connection.
type SQLDB struct {
	db *dbx.DB
}

func NewSQLDB(db *dbx.DB) *SQLDB {
	return &SQLDB{db: db}
}

func (s *SQLDB) Builder() dbx.Builder {
	return s.db
}

func (s *SQLDB) Transactional(ctx context.Context, fn func(tx dbx.Builder) error) error {
	return s.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		return fn(tx)
	})
}

// AppDB runs the store inside the PocketBase data database so ledger tables
// share transactions and backups with the app collections.
type AppDB struct {
	app core.App
}

func NewAppDB(app core.App) *AppDB {
	return &AppDB{app: app}
}

func (a *AppDB) Builder() dbx.Builder {
	return a.app.DB()
}

func (a *AppDB) Transactional(ctx context.Context, fn func(tx dbx.Builder) error) error {
	return a.app.RunInTransaction(func(txApp core.App) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(txApp.DB())
	})
}
