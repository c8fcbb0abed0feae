package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"

	"ticket-ledger/models"
)

type feeCreditRow struct {
	ID           string          `db:"id"`
	TicketID     string          `db:"ticket_id"`
	AccountID    string          `db:"account_id"`
	TicketAmount decimal.Decimal `db:"ticket_amount"`
	Fee          decimal.Decimal `db:"fee"`
	Exempt       int             `db:"exempt"`
	CreatedAt    int64           `db:"created_at"`
}

func (r *feeCreditRow) toModel() *models.FeeCredit {
	return &models.FeeCredit{
		ID:           r.ID,
		TicketID:     r.TicketID,
		AccountID:    r.AccountID,
		TicketAmount: r.TicketAmount,
		Fee:          r.Fee,
		Exempt:       r.Exempt != 0,
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

// CreditPlatformFee records the fee for credit.TicketID and adds it to the
// account balance. It returns false without touching the balance when the
// ticket has already been credited.
func (s *Store) CreditPlatformFee(ctx context.Context, credit *models.FeeCredit) (bool, error) {
	credited := false
	now := s.timestamp()
	if credit.ID == "" {
		credit.ID = newID()
	}

	err := s.db.Transactional(ctx, func(tx dbx.Builder) error {
		res, err := tx.NewQuery(`INSERT INTO fee_credits (id, ticket_id, account_id, ticket_amount, fee, exempt, created_at)
			VALUES ({:id}, {:ticket}, {:account}, {:amount}, {:fee}, {:exempt}, {:created})
			ON CONFLICT (ticket_id) DO NOTHING`).
			Bind(dbx.Params{
				"id":      credit.ID,
				"ticket":  credit.TicketID,
				"account": credit.AccountID,
				"amount":  credit.TicketAmount.String(),
				"fee":     credit.Fee.String(),
				"exempt":  boolToInt(credit.Exempt),
				"created": now,
			}).
			WithContext(ctx).
			Execute()
		if err != nil {
			return fmt.Errorf("insert fee credit: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("insert fee credit: %w", err)
		} else if n == 0 {
			return nil
		}

		credited = true
		if credit.Exempt || credit.Fee.IsZero() {
			return nil
		}
		return addToBalance(ctx, tx, credit.AccountID, credit.Fee, now)
	})
	if err != nil {
		return false, err
	}

	credit.CreatedAt = fromMillis(now)
	return credited, nil
}

func addToBalance(ctx context.Context, tx dbx.Builder, accountID string, amount decimal.Decimal, now int64) error {
	_, err := tx.NewQuery(`INSERT INTO platform_balances (account_id, balance, updated_at)
		VALUES ({:account}, '0', {:now}) ON CONFLICT (account_id) DO NOTHING`).
		Bind(dbx.Params{"account": accountID, "now": now}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("init platform balance: %w", err)
	}

	var raw string
	err = tx.NewQuery("SELECT balance FROM platform_balances WHERE account_id = {:account}").
		Bind(dbx.Params{"account": accountID}).
		WithContext(ctx).
		Row(&raw)
	if err != nil {
		return fmt.Errorf("read platform balance: %w", err)
	}
	current, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("parse platform balance %q: %w", raw, err)
	}

	res, err := tx.NewQuery(`UPDATE platform_balances SET balance = {:balance}, updated_at = {:now}
		WHERE account_id = {:account} AND balance = {:old}`).
		Bind(dbx.Params{
			"balance": current.Add(amount).String(),
			"now":     now,
			"account": accountID,
			"old":     raw,
		}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("update platform balance: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return fmt.Errorf("update platform balance: concurrent modification of %s", accountID)
	}
	return nil
}

// PlatformBalance returns the account balance, zero when nothing was credited yet.
func (s *Store) PlatformBalance(ctx context.Context, accountID string) (*models.PlatformBalance, error) {
	var row struct {
		Balance   decimal.Decimal `db:"balance"`
		UpdatedAt int64           `db:"updated_at"`
	}
	err := s.db.Builder().NewQuery("SELECT balance, updated_at FROM platform_balances WHERE account_id = {:account}").
		Bind(dbx.Params{"account": accountID}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.PlatformBalance{AccountID: accountID, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get platform balance: %w", err)
	}

	updated := fromMillis(row.UpdatedAt)
	return &models.PlatformBalance{AccountID: accountID, Balance: row.Balance, UpdatedAt: &updated}, nil
}

// GetFeeCredit returns nil when the ticket has not been credited.
func (s *Store) GetFeeCredit(ctx context.Context, ticketID string) (*models.FeeCredit, error) {
	var row feeCreditRow
	err := s.db.Builder().NewQuery(`SELECT id, ticket_id, account_id, ticket_amount, fee, exempt, created_at
		FROM fee_credits WHERE ticket_id = {:ticket}`).
		Bind(dbx.Params{"ticket": ticketID}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fee credit: %w", err)
	}
	return row.toModel(), nil
}

// ListFeeCredits returns the most recent credits for the account.
func (s *Store) ListFeeCredits(ctx context.Context, accountID string, limit int) ([]*models.FeeCredit, error) {
	var rows []feeCreditRow
	err := s.db.Builder().NewQuery(`SELECT id, ticket_id, account_id, ticket_amount, fee, exempt, created_at
		FROM fee_credits WHERE account_id = {:account} ORDER BY created_at DESC LIMIT {:limit}`).
		Bind(dbx.Params{"account": accountID, "limit": limit}).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list fee credits: %w", err)
	}

	credits := make([]*models.FeeCredit, 0, len(rows))
	for i := range rows {
		credits = append(credits, rows[i].toModel())
	}
	return credits, nil
}
