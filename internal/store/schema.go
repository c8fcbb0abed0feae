package store

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
)

// Schema creates the ticketing and ledger tables. Timestamps are unix
// milliseconds and money columns hold decimal strings.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS ticket_types (
		id          TEXT PRIMARY KEY NOT NULL,
		event_id    TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price       TEXT NOT NULL DEFAULT '0',
		quantity    INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		sold_count  INTEGER NOT NULL DEFAULT 0 CHECK (sold_count >= 0),
		is_active   INTEGER NOT NULL DEFAULT 1,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ticket_types_event ON ticket_types (event_id)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id                TEXT PRIMARY KEY NOT NULL,
		user_id           TEXT NOT NULL,
		event_id          TEXT NOT NULL,
		ticket_type_id    TEXT NOT NULL DEFAULT '',
		quantity          INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 1),
		total_amount      TEXT NOT NULL DEFAULT '0',
		payment_reference TEXT NOT NULL,
		payment_status    TEXT NOT NULL CHECK (payment_status IN ('pending', 'completed', 'failed')),
		purchase_date     INTEGER NOT NULL,
		created_at        INTEGER NOT NULL,
		updated_at        INTEGER NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_reference ON tickets (payment_reference)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_active_holder ON tickets (user_id, event_id)
		WHERE payment_status IN ('pending', 'completed')`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets (payment_status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets (user_id)`,
	`CREATE TABLE IF NOT EXISTS platform_balances (
		account_id TEXT PRIMARY KEY NOT NULL,
		balance    TEXT NOT NULL DEFAULT '0',
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fee_credits (
		id            TEXT PRIMARY KEY NOT NULL,
		ticket_id     TEXT NOT NULL UNIQUE,
		account_id    TEXT NOT NULL,
		ticket_amount TEXT NOT NULL,
		fee           TEXT NOT NULL,
		exempt        INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fee_credits_account ON fee_credits (account_id, created_at)`,
}

var dropSchema = []string{
	`DROP TABLE IF EXISTS fee_credits`,
	`DROP TABLE IF EXISTS platform_balances`,
	`DROP TABLE IF EXISTS tickets`,
	`DROP TABLE IF EXISTS ticket_types`,
}

func ApplySchema(ctx context.Context, b dbx.Builder) error {
	return execAll(ctx, b, Schema)
}

func DropSchema(ctx context.Context, b dbx.Builder) error {
	return execAll(ctx, b, dropSchema)
}

func execAll(ctx context.Context, b dbx.Builder, statements []string) error {
	for _, stmt := range statements {
		if _, err := b.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}
