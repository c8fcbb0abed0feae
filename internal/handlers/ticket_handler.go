package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/skip2/go-qrcode"

	"ticket-ledger/internal/services"
	"ticket-ledger/internal/services/gateway/paystack"
	"ticket-ledger/internal/services/gateway/sandbox"
	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

type TicketHandler struct {
	tickets   *services.TicketService
	inventory *services.InventoryService

	// sandbox is nil unless the sandbox gateway is active.
	sandbox *sandbox.Gateway
}

func NewTicketHandler(tickets *services.TicketService, inventory *services.InventoryService, sb *sandbox.Gateway) *TicketHandler {
	return &TicketHandler{
		tickets:   tickets,
		inventory: inventory,
		sandbox:   sb,
	}
}

// Purchase - Buy a ticket for an event
func (h *TicketHandler) Purchase(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req services.PurchaseRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}
	req.UserID = e.Auth.Id

	res, err := h.tickets.Purchase(e.Request.Context(), req)
	if err != nil {
		return toAPIError(err)
	}

	code := http.StatusCreated
	if res.PaymentURL != "" {
		code = http.StatusOK
	}
	return e.JSON(code, res)
}

// Verify - Resolve a payment reference against the gateway
func (h *TicketHandler) Verify(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	reference := e.Request.PathValue("reference")
	ref, err := services.ParseReference(reference)
	if err != nil {
		return toAPIError(err)
	}
	if ref.UserID != e.Auth.Id && !e.HasSuperuserAuth() {
		return apis.NewForbiddenError("Access denied", nil)
	}

	res, err := h.tickets.Verify(e.Request.Context(), reference)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, res)
}

// Webhook - Gateway payment notifications
func (h *TicketHandler) Webhook(e *core.RequestEvent) error {
	body, err := io.ReadAll(io.LimitReader(e.Request.Body, 1<<20))
	if err != nil {
		return apis.NewBadRequestError("invalid hook request body", err)
	}

	res, err := h.tickets.HandleWebhook(e.Request.Context(), body, e.Request.Header.Get(paystack.SignatureHeader))
	switch {
	case errors.Is(err, status.ErrInvalidSignature):
		return apis.NewUnauthorizedError("invalid signature", nil)
	case err != nil && retryable(err):
		return toAPIError(err)
	case err != nil:
		// the gateway cannot fix these by retrying
		slog.Warn("Webhook ignored", "error", err)
		return e.JSON(http.StatusOK, map[string]any{"status": "ignored"})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"payment_status": res.Ticket.PaymentStatus,
	})
}

func retryable(err error) bool {
	switch status.CategoryOf(err) {
	case status.CategoryInternal, status.CategoryUpstream:
		return !errors.Is(err, status.ErrFailedPayment)
	}
	return errors.Is(err, status.ErrVerificationInProgress)
}

// GetTicket - Ticket details for its owner
func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	ticket, err := h.ownedTicket(e)
	if err != nil {
		return err
	}
	return e.JSON(http.StatusOK, ticket)
}

// TicketQRCode - PNG QR code of a completed ticket's reference
func (h *TicketHandler) TicketQRCode(e *core.RequestEvent) error {
	ticket, err := h.ownedTicket(e)
	if err != nil {
		return err
	}
	if ticket.PaymentStatus != models.PaymentCompleted {
		return apis.NewApiError(http.StatusConflict, "Ticket is not paid", nil)
	}

	png, err := qrcode.Encode(ticket.PaymentReference, qrcode.Medium, 256)
	if err != nil {
		return toAPIError(err)
	}

	e.Response.Header().Set("Cache-Control", "private, max-age=3600")
	return e.Blob(http.StatusOK, "image/png", png)
}

// ListTickets - Tickets of the current user, optionally filtered by ?status=
func (h *TicketHandler) ListTickets(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var want models.PaymentStatus
	if raw := e.Request.URL.Query().Get("status"); raw != "" {
		s, err := models.ParsePaymentStatus(raw)
		if err != nil {
			return apis.NewBadRequestError(err.Error(), nil)
		}
		want = s
	}

	tickets, err := h.tickets.ListUserTickets(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return toAPIError(err)
	}

	items := make([]*models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if want == "" || t.PaymentStatus == want {
			items = append(items, t)
		}
	}
	return e.JSON(http.StatusOK, map[string]any{"items": items})
}

// ListTicketTypes - Ticket tiers of an event
func (h *TicketHandler) ListTicketTypes(e *core.RequestEvent) error {
	types, err := h.inventory.ListTicketTypes(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return toAPIError(err)
	}

	items := make([]map[string]any, 0, len(types))
	for _, tt := range types {
		items = append(items, map[string]any{
			"ticket_type": tt,
			"remaining":   tt.Remaining(),
			"available":   tt.IsActive && services.IsAvailable(tt),
		})
	}
	return e.JSON(http.StatusOK, map[string]any{"items": items})
}

// CreateTicketType - Add a ticket tier to an event
func (h *TicketHandler) CreateTicketType(e *core.RequestEvent) error {
	var req services.CreateTicketTypeRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	req.EventID = e.Request.PathValue("eventId")

	tt, err := h.inventory.CreateTicketType(e.Request.Context(), req)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusCreated, tt)
}

type simulatePaymentRequest struct {
	Reference string `json:"reference" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=success failed abandoned reversed ongoing"`
}

// SimulatePayment - Settle a sandbox transaction and verify it
func (h *TicketHandler) SimulatePayment(e *core.RequestEvent) error {
	if h.sandbox == nil {
		return apis.NewNotFoundError("Sandbox gateway is not enabled", nil)
	}

	var req simulatePaymentRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}

	// free tickets never reach the gateway
	if services.IsFreeReference(req.Reference) {
		return apis.NewBadRequestError("Free tickets have no payment to simulate", nil)
	}

	if err := h.sandbox.SetStatus(req.Reference, strings.ToLower(req.Status)); err != nil {
		return apis.NewNotFoundError("Transaction not found", nil)
	}

	res, err := h.tickets.Verify(e.Request.Context(), req.Reference)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, res)
}

// ownedTicket loads the ticket in the path, hiding tickets of other users.
func (h *TicketHandler) ownedTicket(e *core.RequestEvent) (*models.Ticket, error) {
	if e.Auth == nil {
		return nil, apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ticket, err := h.tickets.GetTicket(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return nil, toAPIError(err)
	}
	if ticket.UserID != e.Auth.Id && !e.HasSuperuserAuth() {
		return nil, apis.NewNotFoundError("Ticket not found", nil)
	}
	return ticket, nil
}
