// Package events carries ticket completion notices from the purchase flow to
// the fee ledger.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"ticket-ledger/models"
)

var ErrBusClosed = errors.New("events: bus closed")

// TicketCompleted is published once for every ticket that reaches the
// completed status.
type TicketCompleted struct {
	TicketID    string          `json:"ticket_id"`
	UserID      string          `json:"user_id"`
	EventID     string          `json:"event_id"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	CompletedAt time.Time       `json:"completed_at"`
}

func NewTicketCompleted(t *models.Ticket) *TicketCompleted {
	completedAt := t.CreatedAt
	if t.UpdatedAt != nil {
		completedAt = *t.UpdatedAt
	}
	return &TicketCompleted{
		TicketID:    t.ID,
		UserID:      t.UserID,
		EventID:     t.EventID,
		Reference:   t.PaymentReference,
		Amount:      t.TotalAmount,
		CompletedAt: completedAt,
	}
}

type Handler func(ctx context.Context, evt *TicketCompleted) error

type Publisher interface {
	Publish(ctx context.Context, evt *TicketCompleted) error
}

// Bus delivers published events to every subscribed handler at least once.
type Bus interface {
	Publisher
	Subscribe(h Handler)
	Close() error
}
