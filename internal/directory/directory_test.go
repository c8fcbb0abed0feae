package directory

import (
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-ledger/models"
)

func eventsCollection() *core.Collection {
	c := core.NewBaseCollection(EventsCollection)
	c.Fields.Add(
		&core.TextField{Name: "name"},
		&core.NumberField{Name: "price"},
		&core.BoolField{Name: "is_free"},
		&core.SelectField{Name: "gender_restriction", MaxSelect: 1, Values: []string{"none", "male-only", "female-only"}},
		&core.SelectField{Name: "age_restriction", MaxSelect: 4, Values: []string{"under 18", "20s", "30s", "40plus"}},
		&core.BoolField{Name: "has_multiple_ticket_types"},
	)
	return c
}

func usersCollection() *core.Collection {
	c := core.NewAuthCollection(UsersCollection)
	c.Fields.Add(
		&core.TextField{Name: "gender"},
		&core.DateField{Name: "date_of_birth"},
		&core.BoolField{Name: "is_admin"},
	)
	return c
}

func TestEventFromRecord(t *testing.T) {
	rec := core.NewRecord(eventsCollection())
	rec.Id = "evt1"
	rec.Set("name", "Afrobeats Night")
	rec.Set("price", 1500.5)
	rec.Set("gender_restriction", "female-only")
	rec.Set("age_restriction", []string{"under 18", "40plus"})
	rec.Set("has_multiple_ticket_types", true)

	e := EventFromRecord(rec)
	assert.Equal(t, "evt1", e.ID)
	assert.Equal(t, "Afrobeats Night", e.Name)
	assert.Equal(t, "1500.5", e.Price.String())
	assert.False(t, e.IsFree)
	assert.Equal(t, models.GenderFemaleOnly, e.GenderRestriction)
	assert.Equal(t, []string{"under 18", "40plus"}, e.AgeRestriction)
	assert.True(t, e.HasMultipleTicketTypes)
}

func TestEventFromRecord_Defaults(t *testing.T) {
	rec := core.NewRecord(eventsCollection())
	rec.Id = "evt2"
	rec.Set("is_free", true)

	e := EventFromRecord(rec)
	assert.True(t, e.IsFree)
	assert.True(t, e.Price.IsZero())
	assert.Equal(t, models.GenderRestrictionNone, e.GenderRestriction)
	assert.Empty(t, e.AgeRestriction)
}

func TestUserFromRecord(t *testing.T) {
	rec := core.NewRecord(usersCollection())
	rec.Id = "usr1"
	rec.SetEmail("ada@example.com")
	rec.Set("gender", "female")
	rec.Set("date_of_birth", "1990-05-17 00:00:00.000Z")
	rec.Set("is_admin", true)

	u := UserFromRecord(rec)
	assert.Equal(t, "usr1", u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, models.GenderFemale, u.Gender)
	assert.True(t, u.IsAdmin)
	require.NotNil(t, u.DateOfBirth)
	assert.True(t, time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC).Equal(*u.DateOfBirth))

	noDOB := core.NewRecord(usersCollection())
	noDOB.Id = "usr2"
	assert.Nil(t, UserFromRecord(noDOB).DateOfBirth)
}
