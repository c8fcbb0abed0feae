package directory

import (
	"log/slog"

	"github.com/pocketbase/pocketbase/core"

	"ticket-ledger/models"
)

// BindHooks keeps event records consistent when they are written through
// the collections API.
func BindHooks(app core.App) {
	normalize := func(e *core.RecordRequestEvent) error {
		NormalizeEvent(e.Record)
		slog.Info("Event saved", "event_id", e.Record.Id, "is_free", e.Record.GetBool("is_free"))
		return e.Next()
	}

	app.OnRecordCreateRequest(EventsCollection).BindFunc(normalize)
	app.OnRecordUpdateRequest(EventsCollection).BindFunc(normalize)
}

// NormalizeEvent makes a zero price and the free flag agree and fills in the
// default gender restriction.
func NormalizeEvent(rec *core.Record) {
	switch {
	case rec.GetBool("is_free"):
		rec.Set("price", 0)
	case rec.GetFloat("price") <= 0:
		rec.Set("is_free", true)
		rec.Set("price", 0)
	}

	if rec.GetString("gender_restriction") == "" {
		rec.Set("gender_restriction", string(models.GenderRestrictionNone))
	}
}
