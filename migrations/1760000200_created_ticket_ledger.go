package migrations

import (
	"context"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"

	"ticket-ledger/internal/store"
)

// The ticket and ledger tables live outside the collections API so the store
// can run its conditional updates in plain SQL.
func init() {
	m.Register(func(app core.App) error {
		return store.ApplySchema(context.Background(), app.DB())
	}, func(app core.App) error {
		return store.DropSchema(context.Background(), app.DB())
	})
}
