// Package gateway defines the payment gateway contract used by the purchase
// flow and builds the configured provider.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Provider represents different payment gateways
type Provider string

const (
	ProviderPaystack Provider = "paystack"
	ProviderSandbox  Provider = "sandbox"
)

// ErrTransactionNotFound is returned by VerifyTransaction when the gateway
// has no transaction for the reference.
var ErrTransactionNotFound = errors.New("gateway: transaction not found")

// Transaction statuses reported by VerifyTransaction.
const (
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusAbandoned  = "abandoned"
	StatusReversed   = "reversed"
	StatusOngoing    = "ongoing"
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusQueued     = "queued"
)

type InitializeRequest struct {
	Email       string         `json:"email"`
	AmountMinor int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type Transaction struct {
	Reference   string         `json:"reference"`
	Status      string         `json:"status"`
	AmountMinor int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (t *Transaction) Succeeded() bool {
	return t.Status == StatusSuccess
}

// InFlight reports whether the payer may still complete the transaction.
func (t *Transaction) InFlight() bool {
	switch t.Status {
	case StatusOngoing, StatusPending, StatusProcessing, StatusQueued:
		return true
	}
	return false
}

// Amount is the transaction amount in major currency units.
func (t *Transaction) Amount() decimal.Decimal {
	return FromMinorUnits(t.AmountMinor)
}

// Gateway defines the operations every payment provider must support
type Gateway interface {
	Provider() Provider

	// InitializeTransaction registers the reference with the gateway and
	// returns where the payer completes the payment.
	InitializeTransaction(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error)

	// VerifyTransaction returns the gateway's view of the reference.
	VerifyTransaction(ctx context.Context, reference string) (*Transaction, error)
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts an amount to the smallest currency unit, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}
