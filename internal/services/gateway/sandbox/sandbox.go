// Package sandbox is an in-memory payment gateway for local development and tests.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"ticket-ledger/internal/services/gateway"
)

var _ gateway.Gateway = (*Gateway)(nil)

type Gateway struct {
	checkoutURL string

	mu  sync.Mutex
	txs map[string]*gateway.Transaction
}

func New(checkoutURL string) *Gateway {
	return &Gateway{
		checkoutURL: strings.TrimRight(checkoutURL, "/"),
		txs:         make(map[string]*gateway.Transaction),
	}
}

func (g *Gateway) Provider() gateway.Provider {
	return gateway.ProviderSandbox
}

func (g *Gateway) InitializeTransaction(ctx context.Context, req *gateway.InitializeRequest) (*gateway.InitializeResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Reference == "" {
		return nil, fmt.Errorf("sandbox: reference is required")
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("sandbox: amount must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.txs[req.Reference]; ok {
		return nil, fmt.Errorf("sandbox: duplicate transaction reference %s", req.Reference)
	}
	g.txs[req.Reference] = &gateway.Transaction{
		Reference:   req.Reference,
		Status:      gateway.StatusOngoing,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
	}

	return &gateway.InitializeResponse{
		AuthorizationURL: g.checkoutURL + "/" + req.Reference,
		AccessCode:       req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *Gateway) VerifyTransaction(ctx context.Context, reference string) (*gateway.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	tx, ok := g.txs[reference]
	if !ok {
		return nil, gateway.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

// Complete marks the transaction as paid.
func (g *Gateway) Complete(reference string) error {
	return g.SetStatus(reference, gateway.StatusSuccess)
}

// Fail marks the transaction as declined.
func (g *Gateway) Fail(reference string) error {
	return g.SetStatus(reference, gateway.StatusFailed)
}

func (g *Gateway) SetStatus(reference, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, ok := g.txs[reference]
	if !ok {
		return gateway.ErrTransactionNotFound
	}
	tx.Status = status
	return nil
}
