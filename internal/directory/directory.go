// Package directory reads events and users from the PocketBase collections
// they live in.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

const (
	EventsCollection = "events"
	UsersCollection  = "users"
)

type Directory struct {
	app core.App
}

func New(app core.App) *Directory {
	return &Directory{app: app}
}

func (d *Directory) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	rec, err := d.findOne(ctx, EventsCollection, dbx.HashExp{"id": id})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", status.ErrEventNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find event %s: %w", id, err)
	}
	return EventFromRecord(rec), nil
}

func (d *Directory) GetUser(ctx context.Context, id string) (*models.User, error) {
	rec, err := d.findOne(ctx, UsersCollection, dbx.HashExp{"id": id})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", status.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return UserFromRecord(rec), nil
}

// GetAdminAccount returns the oldest user flagged as admin. Platform fees
// are credited to it.
func (d *Directory) GetAdminAccount(ctx context.Context) (*models.User, error) {
	rec, err := d.findOne(ctx, UsersCollection, dbx.HashExp{"is_admin": true}, "created ASC")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrAdminAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find admin account: %w", err)
	}
	return UserFromRecord(rec), nil
}

func (d *Directory) findOne(ctx context.Context, collection string, where dbx.Expression, orderBy ...string) (*core.Record, error) {
	rec := &core.Record{}
	err := d.app.RecordQuery(collection).
		WithContext(ctx).
		AndWhere(where).
		OrderBy(orderBy...).
		Limit(1).
		One(rec)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func EventFromRecord(rec *core.Record) *models.Event {
	restriction := models.GenderRestriction(rec.GetString("gender_restriction"))
	if restriction == "" {
		restriction = models.GenderRestrictionNone
	}

	return &models.Event{
		ID:                     rec.Id,
		Name:                   rec.GetString("name"),
		Price:                  decimal.NewFromFloat(rec.GetFloat("price")),
		IsFree:                 rec.GetBool("is_free"),
		GenderRestriction:      restriction,
		AgeRestriction:         rec.GetStringSlice("age_restriction"),
		HasMultipleTicketTypes: rec.GetBool("has_multiple_ticket_types"),
	}
}

func UserFromRecord(rec *core.Record) *models.User {
	u := &models.User{
		ID:      rec.Id,
		Email:   rec.GetString("email"),
		Gender:  rec.GetString("gender"),
		IsAdmin: rec.GetBool("is_admin"),
	}
	if dob := rec.GetDateTime("date_of_birth"); !dob.IsZero() {
		t := dob.Time()
		u.DateOfBirth = &t
	}
	return u
}
