package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

var userProfileFields = []string{"gender", "date_of_birth", "is_admin"}

func init() {
	m.Register(func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		fields := []string{
			`{
				"id": "select_gender",
				"name": "gender",
				"type": "select",
				"maxSelect": 1,
				"values": ["male", "female"]
			}`,
			`{
				"id": "date_date_of_birth",
				"name": "date_of_birth",
				"type": "date"
			}`,
			`{
				"id": "bool_is_admin",
				"name": "is_admin",
				"type": "bool"
			}`,
		}
		for _, f := range fields {
			if err := collection.Fields.AddMarshaledJSON([]byte(f)); err != nil {
				return err
			}
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		for _, name := range userProfileFields {
			collection.Fields.RemoveByName(name)
		}

		return app.Save(collection)
	})
}
