package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("events", "pbc_events_001")

		listRule := ""
		collection.ListRule = &listRule
		collection.ViewRule = &listRule

		fields := []string{
			`{
				"id": "text_name",
				"name": "name",
				"type": "text",
				"required": true,
				"max": 200,
				"presentable": true
			}`,
			`{
				"id": "number_price",
				"name": "price",
				"type": "number",
				"required": false,
				"min": 0,
				"onlyInt": false
			}`,
			`{
				"id": "bool_is_free",
				"name": "is_free",
				"type": "bool"
			}`,
			`{
				"id": "select_gender_restriction",
				"name": "gender_restriction",
				"type": "select",
				"maxSelect": 1,
				"values": ["none", "male-only", "female-only"]
			}`,
			`{
				"id": "select_age_restriction",
				"name": "age_restriction",
				"type": "select",
				"maxSelect": 4,
				"values": ["under 18", "20s", "30s", "40plus"]
			}`,
			`{
				"id": "bool_multiple_ticket_types",
				"name": "has_multiple_ticket_types",
				"type": "bool"
			}`,
			`{
				"id": "autodate_created",
				"name": "created",
				"type": "autodate",
				"onCreate": true,
				"onUpdate": false
			}`,
			`{
				"id": "autodate_updated",
				"name": "updated",
				"type": "autodate",
				"onCreate": true,
				"onUpdate": true
			}`,
		}
		for _, f := range fields {
			if err := collection.Fields.AddMarshaledJSON([]byte(f)); err != nil {
				return err
			}
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
