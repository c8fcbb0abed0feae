// Package ledger credits the platform fee of completed tickets to the admin
// account. Crediting is idempotent per ticket and never affects the ticket.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"ticket-ledger/internal/events"
	"ticket-ledger/internal/status"
	"ticket-ledger/models"
	"ticket-ledger/monitoring"
)

type Store interface {
	CreditPlatformFee(ctx context.Context, credit *models.FeeCredit) (bool, error)
	PlatformBalance(ctx context.Context, accountID string) (*models.PlatformBalance, error)
	ListFeeCredits(ctx context.Context, accountID string, limit int) ([]*models.FeeCredit, error)
	ListUncreditedCompleted(ctx context.Context, limit int) ([]*models.Ticket, error)
}

type AccountLookup interface {
	GetAdminAccount(ctx context.Context) (*models.User, error)
}

type Ledger struct {
	store    Store
	accounts AccountLookup
	monitor  *monitoring.Monitor
}

func New(store Store, accounts AccountLookup, monitor *monitoring.Monitor) *Ledger {
	return &Ledger{store: store, accounts: accounts, monitor: monitor}
}

// CreditPlatformAccount adds 15% of the ticket amount to the admin balance.
// Tickets bought by the admin account are recorded as exempt and credit nothing.
func (l *Ledger) CreditPlatformAccount(ctx context.Context, evt *events.TicketCompleted) error {
	admin, err := l.accounts.GetAdminAccount(ctx)
	if err != nil {
		l.monitor.TrackFeeCredit("failed", 0)
		slog.Error("Platform fee credit failed", "error", err, "ticket_id", evt.TicketID, "reference", evt.Reference)
		return fmt.Errorf("%w: ticket %s: %w", status.ErrFeeCredit, evt.TicketID, err)
	}

	credit := &models.FeeCredit{
		TicketID:     evt.TicketID,
		AccountID:    admin.ID,
		TicketAmount: evt.Amount,
		Fee:          ComputeFee(evt.Amount),
	}
	if evt.UserID == admin.ID {
		credit.Exempt = true
		credit.Fee = decimal.Zero
	}

	credited, err := l.store.CreditPlatformFee(ctx, credit)
	if err != nil {
		l.monitor.TrackFeeCredit("failed", 0)
		slog.Error("Platform fee credit failed", "error", err, "ticket_id", evt.TicketID, "reference", evt.Reference)
		return fmt.Errorf("%w: ticket %s: %w", status.ErrFeeCredit, evt.TicketID, err)
	}

	switch {
	case !credited:
		l.monitor.TrackFeeCredit("duplicate", 0)
		slog.Debug("Platform fee already credited", "ticket_id", evt.TicketID)
	case credit.Exempt:
		l.monitor.TrackFeeCredit("exempt", 0)
		slog.Info("Admin purchase exempt from platform fee", "ticket_id", evt.TicketID)
	default:
		fee, _ := credit.Fee.Float64()
		l.monitor.TrackFeeCredit("credited", fee)
		slog.Info("Platform fee credited",
			"ticket_id", evt.TicketID,
			"amount", evt.Amount.String(),
			"fee", credit.Fee.String(),
			"account_id", admin.ID)
	}
	return nil
}

func (l *Ledger) Balance(ctx context.Context) (*models.PlatformBalance, error) {
	admin, err := l.accounts.GetAdminAccount(ctx)
	if err != nil {
		return nil, err
	}
	return l.store.PlatformBalance(ctx, admin.ID)
}

func (l *Ledger) RecentCredits(ctx context.Context, limit int) ([]*models.FeeCredit, error) {
	admin, err := l.accounts.GetAdminAccount(ctx)
	if err != nil {
		return nil, err
	}
	return l.store.ListFeeCredits(ctx, admin.ID, limit)
}

// Reconcile credits completed tickets whose completion event was lost.
// It returns the number of tickets processed.
func (l *Ledger) Reconcile(ctx context.Context, limit int) (int, error) {
	tickets, err := l.store.ListUncreditedCompleted(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list uncredited tickets: %w", err)
	}

	for i, t := range tickets {
		if err := l.CreditPlatformAccount(ctx, events.NewTicketCompleted(t)); err != nil {
			return i, err
		}
	}
	if len(tickets) > 0 {
		slog.Info("Reconciled platform fees", "tickets", len(tickets))
	}
	return len(tickets), nil
}
