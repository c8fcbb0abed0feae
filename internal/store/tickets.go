package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

const ticketColumns = "id, user_id, event_id, ticket_type_id, quantity, total_amount, payment_reference, payment_status, purchase_date, created_at, updated_at"

type ticketRow struct {
	ID               string          `db:"id"`
	UserID           string          `db:"user_id"`
	EventID          string          `db:"event_id"`
	TicketTypeID     string          `db:"ticket_type_id"`
	Quantity         int             `db:"quantity"`
	TotalAmount      decimal.Decimal `db:"total_amount"`
	PaymentReference string          `db:"payment_reference"`
	PaymentStatus    string          `db:"payment_status"`
	PurchaseDate     int64           `db:"purchase_date"`
	CreatedAt        int64           `db:"created_at"`
	UpdatedAt        sql.NullInt64   `db:"updated_at"`
}

func (r *ticketRow) toModel() *models.Ticket {
	return &models.Ticket{
		ID:               r.ID,
		UserID:           r.UserID,
		EventID:          r.EventID,
		TicketTypeID:     r.TicketTypeID,
		Quantity:         r.Quantity,
		TotalAmount:      r.TotalAmount,
		PaymentReference: r.PaymentReference,
		PaymentStatus:    models.PaymentStatus(r.PaymentStatus),
		PurchaseDate:     fromMillis(r.PurchaseDate),
		CreatedAt:        fromMillis(r.CreatedAt),
		UpdatedAt:        fromNullMillis(r.UpdatedAt),
	}
}

// NewTicket is the input of CreateTicket.
type NewTicket struct {
	UserID       string
	EventID      string
	TicketTypeID string
	Quantity     int
	TotalAmount  decimal.Decimal
	Reference    string
	Status       models.PaymentStatus
}

// Transition is the outcome of UpdateStatus. Changed is true only for the
// single caller whose write moved the ticket out of its previous status.
type Transition struct {
	Ticket  *models.Ticket
	From    models.PaymentStatus
	Changed bool
}

// HasActiveTicket reports whether the user holds a pending or completed
// ticket for the event.
func (s *Store) HasActiveTicket(ctx context.Context, userID, eventID string) (bool, error) {
	return hasActiveTicket(ctx, s.db.Builder(), userID, eventID)
}

func hasActiveTicket(ctx context.Context, b dbx.Builder, userID, eventID string) (bool, error) {
	var count int
	err := b.NewQuery(`SELECT COUNT(*) FROM tickets
		WHERE user_id = {:user} AND event_id = {:event} AND payment_status IN ('pending', 'completed')`).
		Bind(dbx.Params{"user": userID, "event": eventID}).
		WithContext(ctx).
		Row(&count)
	if err != nil {
		return false, fmt.Errorf("count active tickets: %w", err)
	}
	return count > 0, nil
}

// CreateTicket reserves inventory (when a ticket type is given) and inserts
// the ticket in one transaction.
func (s *Store) CreateTicket(ctx context.Context, in NewTicket) (*models.Ticket, error) {
	if in.Status != models.PaymentPending && in.Status != models.PaymentCompleted {
		return nil, fmt.Errorf("%w: tickets cannot be created as %q", status.ErrInvalidTransition, in.Status)
	}
	if in.Quantity < 1 {
		in.Quantity = 1
	}

	now := s.timestamp()
	row := ticketRow{
		ID:               newID(),
		UserID:           in.UserID,
		EventID:          in.EventID,
		TicketTypeID:     in.TicketTypeID,
		Quantity:         in.Quantity,
		TotalAmount:      in.TotalAmount,
		PaymentReference: in.Reference,
		PaymentStatus:    string(in.Status),
		PurchaseDate:     now,
		CreatedAt:        now,
	}

	err := s.db.Transactional(ctx, func(tx dbx.Builder) error {
		active, err := hasActiveTicket(ctx, tx, in.UserID, in.EventID)
		if err != nil {
			return err
		}
		if active {
			return status.ErrDuplicateTicket
		}

		var refs int
		err = tx.NewQuery("SELECT COUNT(*) FROM tickets WHERE payment_reference = {:ref}").
			Bind(dbx.Params{"ref": in.Reference}).
			WithContext(ctx).
			Row(&refs)
		if err != nil {
			return fmt.Errorf("check reference: %w", err)
		}
		if refs > 0 {
			return status.ErrReferenceCollision
		}

		if in.TicketTypeID != "" {
			if err := reserveUnits(ctx, tx, in.TicketTypeID, in.EventID, in.Quantity, now); err != nil {
				return err
			}
		}

		_, err = tx.NewQuery(`INSERT INTO tickets (` + ticketColumns + `)
			VALUES ({:id}, {:user}, {:event}, {:type}, {:qty}, {:amount}, {:ref}, {:status}, {:purchased}, {:created}, NULL)`).
			Bind(dbx.Params{
				"id":        row.ID,
				"user":      row.UserID,
				"event":     row.EventID,
				"type":      row.TicketTypeID,
				"qty":       row.Quantity,
				"amount":    row.TotalAmount.String(),
				"ref":       row.PaymentReference,
				"status":    row.PaymentStatus,
				"purchased": row.PurchaseDate,
				"created":   row.CreatedAt,
			}).
			WithContext(ctx).
			Execute()
		switch {
		case isUniqueViolation(err, "payment_reference"):
			return status.ErrReferenceCollision
		case isUniqueViolation(err, "tickets.user_id"):
			return status.ErrDuplicateTicket
		case err != nil:
			return fmt.Errorf("insert ticket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return row.toModel(), nil
}

func reserveUnits(ctx context.Context, tx dbx.Builder, ticketTypeID, eventID string, qty int, now int64) error {
	res, err := tx.NewQuery(`UPDATE ticket_types
		SET sold_count = sold_count + {:qty}, updated_at = {:now}
		WHERE id = {:id} AND event_id = {:event} AND is_active = 1 AND sold_count + {:qty} <= quantity`).
		Bind(dbx.Params{"qty": qty, "now": now, "id": ticketTypeID, "event": eventID}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("reserve ticket type %s: %w", ticketTypeID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("reserve ticket type %s: %w", ticketTypeID, err)
	} else if n == 1 {
		return nil
	}

	tt, err := getTicketType(ctx, tx, ticketTypeID)
	if err != nil {
		return err
	}
	switch {
	case tt.EventID != eventID:
		return fmt.Errorf("%w: %s does not belong to event %s", status.ErrTicketTypeNotFound, ticketTypeID, eventID)
	case !tt.IsActive:
		return status.ErrTicketTypeInactive
	}
	return status.ErrTicketTypeSoldOut
}

func releaseUnits(ctx context.Context, tx dbx.Builder, ticketTypeID string, qty int, now int64) error {
	_, err := tx.NewQuery(`UPDATE ticket_types
		SET sold_count = MAX(sold_count - {:qty}, 0), updated_at = {:now}
		WHERE id = {:id}`).
		Bind(dbx.Params{"qty": qty, "now": now, "id": ticketTypeID}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("release ticket type %s: %w", ticketTypeID, err)
	}
	return nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	return findTicket(ctx, s.db.Builder(), "id", id)
}

func (s *Store) GetByReference(ctx context.Context, reference string) (*models.Ticket, error) {
	return findTicket(ctx, s.db.Builder(), "payment_reference", reference)
}

func findTicket(ctx context.Context, b dbx.Builder, column, value string) (*models.Ticket, error) {
	var row ticketRow
	err := b.NewQuery("SELECT " + ticketColumns + " FROM tickets WHERE " + column + " = {:value} LIMIT 1").
		Bind(dbx.Params{"value": value}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket by %s: %w", column, err)
	}
	return row.toModel(), nil
}

func (s *Store) ListTicketsByUser(ctx context.Context, userID string) ([]*models.Ticket, error) {
	return s.listTickets(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE user_id = {:user} ORDER BY created_at DESC",
		dbx.Params{"user": userID})
}

// ListStalePending returns pending tickets created before olderThan, oldest first.
func (s *Store) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Ticket, error) {
	return s.listTickets(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE payment_status = 'pending' AND created_at < {:before}
		ORDER BY created_at ASC LIMIT {:limit}`,
		dbx.Params{"before": olderThan.UTC().UnixMilli(), "limit": limit})
}

// ListUncreditedCompleted returns completed tickets that have no fee credit row.
func (s *Store) ListUncreditedCompleted(ctx context.Context, limit int) ([]*models.Ticket, error) {
	return s.listTickets(ctx, `SELECT `+prefixColumns("t", ticketColumns)+` FROM tickets t
		LEFT JOIN fee_credits f ON f.ticket_id = t.id
		WHERE t.payment_status = 'completed' AND f.id IS NULL
		ORDER BY t.created_at ASC LIMIT {:limit}`,
		dbx.Params{"limit": limit})
}

func (s *Store) listTickets(ctx context.Context, query string, params dbx.Params) ([]*models.Ticket, error) {
	var rows []ticketRow
	if err := s.db.Builder().NewQuery(query).Bind(params).WithContext(ctx).All(&rows); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	tickets := make([]*models.Ticket, 0, len(rows))
	for i := range rows {
		tickets = append(tickets, rows[i].toModel())
	}
	return tickets, nil
}

// CountByStatus returns the number of tickets per payment status.
func (s *Store) CountByStatus(ctx context.Context) (map[models.PaymentStatus]int, error) {
	var rows []struct {
		Status string `db:"payment_status"`
		Total  int    `db:"total"`
	}
	err := s.db.Builder().NewQuery("SELECT payment_status, COUNT(*) AS total FROM tickets GROUP BY payment_status").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}

	counts := make(map[models.PaymentStatus]int, len(rows))
	for _, r := range rows {
		counts[models.PaymentStatus(r.Status)] = r.Total
	}
	return counts, nil
}

// UpdateStatus moves a ticket to a new payment status. Setting the current
// status again is a no-op; leaving a terminal status fails with ErrInvalidTransition.
func (s *Store) UpdateStatus(ctx context.Context, ticketID string, to models.PaymentStatus) (*Transition, error) {
	return s.updateStatus(ctx, ticketID, to, s.releaseFailedInventory)
}

// FailUninitialized fails a pending ticket whose payment never reached the
// gateway and always returns its reserved units.
func (s *Store) FailUninitialized(ctx context.Context, ticketID string) (*Transition, error) {
	return s.updateStatus(ctx, ticketID, models.PaymentFailed, true)
}

func (s *Store) updateStatus(ctx context.Context, ticketID string, to models.PaymentStatus, releaseInventory bool) (*Transition, error) {
	var result *Transition

	err := s.db.Transactional(ctx, func(tx dbx.Builder) error {
		ticket, err := findTicket(ctx, tx, "id", ticketID)
		if err != nil {
			return err
		}

		from := ticket.PaymentStatus
		if from == to {
			result = &Transition{Ticket: ticket, From: from}
			return nil
		}
		if !from.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, from, to)
		}

		now := s.timestamp()
		res, err := tx.NewQuery(`UPDATE tickets SET payment_status = {:to}, updated_at = {:now}
			WHERE id = {:id} AND payment_status = {:from}`).
			Bind(dbx.Params{"to": string(to), "now": now, "id": ticketID, "from": string(from)}).
			WithContext(ctx).
			Execute()
		if err != nil {
			return fmt.Errorf("update ticket status: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update ticket status: %w", err)
		} else if n != 1 {
			return fmt.Errorf("%w: %s changed concurrently", status.ErrInvalidTransition, ticketID)
		}

		if to == models.PaymentFailed && releaseInventory && ticket.TicketTypeID != "" {
			if err := releaseUnits(ctx, tx, ticket.TicketTypeID, ticket.Quantity, now); err != nil {
				return err
			}
		}

		updatedAt := fromMillis(now)
		ticket.PaymentStatus = to
		ticket.UpdatedAt = &updatedAt
		result = &Transition{Ticket: ticket, From: from, Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
