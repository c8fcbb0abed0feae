package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ticket-ledger/internal/lock"
	"ticket-ledger/internal/services/gateway"
	"ticket-ledger/models"
)

// PendingReaper resolves tickets whose buyers never came back from the
// gateway checkout.
type PendingReaper struct {
	tickets *TicketService
	timeout time.Duration
	batch   int
}

func NewPendingReaper(tickets *TicketService, timeout time.Duration, batch int) *PendingReaper {
	if batch <= 0 {
		batch = 100
	}
	return &PendingReaper{tickets: tickets, timeout: timeout, batch: batch}
}

// Run re-verifies one batch of tickets pending for longer than the timeout
// and returns how many changed status.
func (r *PendingReaper) Run(ctx context.Context) (int, error) {
	s := r.tickets

	stale, err := s.store.ListStalePending(ctx, s.now().Add(-r.timeout), r.batch)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, ticket := range stale {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}

		outcome, err := r.resolve(ctx, ticket)
		s.monitor.TrackReaper(outcome)
		if err != nil {
			slog.Warn("Pending ticket left for next run", "reference", ticket.PaymentReference, "error", err)
			continue
		}
		if outcome == string(models.PaymentCompleted) || outcome == string(models.PaymentFailed) {
			resolved++
		}
	}

	if len(stale) > 0 {
		slog.Info("Pending reaper finished", "checked", len(stale), "resolved", resolved)
	}
	return resolved, nil
}

func (r *PendingReaper) resolve(ctx context.Context, ticket *models.Ticket) (string, error) {
	s := r.tickets

	l, err := s.locker.TryLock(ctx, verifyLockName(ticket.PaymentReference))
	if errors.Is(err, lock.ErrNotAcquired) {
		return "locked", nil
	}
	if err != nil {
		return "error", err
	}
	defer s.release(ctx, l)

	var to models.PaymentStatus
	tx, err := s.gateway.VerifyTransaction(ctx, ticket.PaymentReference)
	switch {
	case errors.Is(err, gateway.ErrTransactionNotFound):
		to = models.PaymentFailed
	case err != nil:
		return "error", err
	default:
		var ok bool
		if to, ok = resolution(ticket, tx); !ok {
			return "in_flight", nil
		}
	}

	res, err := s.transition(ctx, ticket, to)
	if err != nil {
		return "error", err
	}
	if res.AlreadyProcessed {
		return "already_processed", nil
	}
	return string(res.Ticket.PaymentStatus), nil
}
