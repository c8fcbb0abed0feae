package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

const ticketTypeColumns = "id, event_id, name, description, price, quantity, sold_count, is_active, created_at, updated_at"

type ticketTypeRow struct {
	ID          string          `db:"id"`
	EventID     string          `db:"event_id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	Quantity    int             `db:"quantity"`
	SoldCount   int             `db:"sold_count"`
	IsActive    int             `db:"is_active"`
	CreatedAt   int64           `db:"created_at"`
	UpdatedAt   sql.NullInt64   `db:"updated_at"`
}

func (r *ticketTypeRow) toModel() *models.TicketType {
	return &models.TicketType{
		ID:          r.ID,
		EventID:     r.EventID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Quantity:    r.Quantity,
		SoldCount:   r.SoldCount,
		IsActive:    r.IsActive != 0,
		CreatedAt:   fromMillis(r.CreatedAt),
		UpdatedAt:   fromNullMillis(r.UpdatedAt),
	}
}

// InsertTicketType stores tt as given; the caller owns id and defaults.
// CreatedAt is set to now.
func (s *Store) InsertTicketType(ctx context.Context, tt *models.TicketType) error {
	now := s.timestamp()

	err := s.db.Transactional(ctx, func(tx dbx.Builder) error {
		_, err := tx.NewQuery(`INSERT INTO ticket_types (` + ticketTypeColumns + `)
			VALUES ({:id}, {:event}, {:name}, {:description}, {:price}, {:qty}, {:sold}, {:active}, {:created}, NULL)`).
			Bind(dbx.Params{
				"id":          tt.ID,
				"event":       tt.EventID,
				"name":        tt.Name,
				"description": tt.Description,
				"price":       tt.Price.String(),
				"qty":         tt.Quantity,
				"sold":        tt.SoldCount,
				"active":      boolToInt(tt.IsActive),
				"created":     now,
			}).
			WithContext(ctx).
			Execute()
		return err
	})
	if err != nil {
		return fmt.Errorf("insert ticket type: %w", err)
	}

	tt.CreatedAt = fromMillis(now)
	tt.UpdatedAt = nil
	return nil
}

func (s *Store) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	return getTicketType(ctx, s.db.Builder(), id)
}

func getTicketType(ctx context.Context, b dbx.Builder, id string) (*models.TicketType, error) {
	var row ticketTypeRow
	err := b.NewQuery("SELECT " + ticketTypeColumns + " FROM ticket_types WHERE id = {:id} LIMIT 1").
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket type %s: %w", id, err)
	}
	return row.toModel(), nil
}

func (s *Store) ListTicketTypes(ctx context.Context, eventID string) ([]*models.TicketType, error) {
	var rows []ticketTypeRow
	err := s.db.Builder().NewQuery("SELECT " + ticketTypeColumns + " FROM ticket_types WHERE event_id = {:event} ORDER BY created_at ASC").
		Bind(dbx.Params{"event": eventID}).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}

	types := make([]*models.TicketType, 0, len(rows))
	for i := range rows {
		types = append(types, rows[i].toModel())
	}
	return types, nil
}
