package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the payment state of a ticket.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return PaymentStatus(s), nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// IsActive reports whether a ticket in this status blocks another purchase
// of the same event by the same user.
func (s PaymentStatus) IsActive() bool {
	return s == PaymentPending || s == PaymentCompleted
}

// CanTransitionTo reports whether s -> to changes the ticket. Only
// pending -> completed and pending -> failed qualify.
func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	return s == PaymentPending && (to == PaymentCompleted || to == PaymentFailed)
}

type Ticket struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	EventID          string          `json:"event_id"`
	TicketTypeID     string          `json:"ticket_type_id,omitempty"`
	Quantity         int             `json:"quantity"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentReference string          `json:"payment_reference"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PurchaseDate     time.Time       `json:"purchase_date"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

type TicketType struct {
	ID          string          `json:"id"`
	EventID     string          `json:"event_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	SoldCount   int             `json:"sold_count"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// Remaining is the number of units still for sale.
func (t *TicketType) Remaining() int {
	if r := t.Quantity - t.SoldCount; r > 0 {
		return r
	}
	return 0
}
