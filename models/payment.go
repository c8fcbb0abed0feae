package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlatformBalance is the running total of platform fees held by the admin account.
type PlatformBalance struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// FeeCredit records the fee taken for one completed ticket.
type FeeCredit struct {
	ID           string          `json:"id"`
	TicketID     string          `json:"ticket_id"`
	AccountID    string          `json:"account_id"`
	TicketAmount decimal.Decimal `json:"ticket_amount"`
	Fee          decimal.Decimal `json:"fee"`
	Exempt       bool            `json:"exempt"`
	CreatedAt    time.Time       `json:"created_at"`
}
