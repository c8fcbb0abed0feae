package gateway

import (
	"context"
	"errors"
	"time"

	"ticket-ledger/monitoring"
	"ticket-ledger/utils"
)

// guarded routes every call through a circuit breaker and records its latency.
type guarded struct {
	next    Gateway
	cb      *utils.CircuitBreaker
	monitor *monitoring.Monitor
}

func WithCircuitBreaker(next Gateway, cb *utils.CircuitBreaker, monitor *monitoring.Monitor) Gateway {
	return &guarded{next: next, cb: cb, monitor: monitor}
}

func (g *guarded) Provider() Provider {
	return g.next.Provider()
}

func (g *guarded) InitializeTransaction(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error) {
	start := time.Now()
	res, err := g.cb.Execute(ctx, func() (any, error) {
		return g.next.InitializeTransaction(ctx, req)
	})
	g.monitor.TrackGatewayCall("initialize", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return res.(*InitializeResponse), nil
}

func (g *guarded) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	start := time.Now()
	res, err := g.cb.Execute(ctx, func() (any, error) {
		tx, err := g.next.VerifyTransaction(ctx, reference)
		if errors.Is(err, ErrTransactionNotFound) {
			// an unknown reference is an answer, not an outage
			return nil, nil
		}
		return tx, err
	})
	g.monitor.TrackGatewayCall("verify", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	tx, _ := res.(*Transaction)
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}
