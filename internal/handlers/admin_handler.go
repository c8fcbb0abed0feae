package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/core"

	"ticket-ledger/internal/ledger"
)

type AdminHandler struct {
	ledger *ledger.Ledger
}

func NewAdminHandler(l *ledger.Ledger) *AdminHandler {
	return &AdminHandler{ledger: l}
}

// GetPlatformBalance - Platform fee balance and the latest credits
func (h *AdminHandler) GetPlatformBalance(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	limit := 20
	if v, err := strconv.Atoi(e.Request.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}

	balance, err := h.ledger.Balance(ctx)
	if err != nil {
		return toAPIError(err)
	}
	credits, err := h.ledger.RecentCredits(ctx, limit)
	if err != nil {
		return toAPIError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"account_id":     balance.AccountID,
		"balance":        balance.Balance,
		"updated_at":     balance.UpdatedAt,
		"recent_credits": credits,
	})
}
