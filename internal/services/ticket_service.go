package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"ticket-ledger/internal/events"
	"ticket-ledger/internal/lock"
	"ticket-ledger/internal/restriction"
	"ticket-ledger/internal/services/gateway"
	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/models"
	"ticket-ledger/monitoring"
)

// Notifier tells a buyer that one of their tickets changed status.
type Notifier interface {
	TicketStatusChanged(ctx context.Context, t *models.Ticket) error
}

// WebhookParser authenticates a gateway webhook and returns the payment
// reference it carries.
type WebhookParser interface {
	ParseWebhook(body []byte, signature string) (string, error)
}

type PaymentConfig struct {
	Currency    string
	CallbackURL string

	// TestPayments enables -test references for amounts up to
	// TestAmountCeiling and lets them complete when the gateway is unreachable.
	TestPayments      bool
	TestAmountCeiling decimal.Decimal
}

type TicketService struct {
	store     *store.Store
	eventDir  EventLookup
	userDir   UserLookup
	gateway   gateway.Gateway
	publisher events.Publisher
	locker    lock.Locker
	monitor   *monitoring.Monitor
	cfg       PaymentConfig

	notifier Notifier
	webhooks WebhookParser
	now      func() time.Time
}

type TicketOption func(*TicketService)

func WithNotifier(n Notifier) TicketOption {
	return func(s *TicketService) { s.notifier = n }
}

func WithWebhookParser(p WebhookParser) TicketOption {
	return func(s *TicketService) { s.webhooks = p }
}

func WithServiceClock(now func() time.Time) TicketOption {
	return func(s *TicketService) { s.now = now }
}

func NewTicketService(
	s *store.Store,
	eventDir EventLookup,
	userDir UserLookup,
	gw gateway.Gateway,
	publisher events.Publisher,
	locker lock.Locker,
	monitor *monitoring.Monitor,
	cfg PaymentConfig,
	opts ...TicketOption,
) *TicketService {
	svc := &TicketService{
		store:     s,
		eventDir:  eventDir,
		userDir:   userDir,
		gateway:   gw,
		publisher: publisher,
		locker:    locker,
		monitor:   monitor,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type PurchaseRequest struct {
	UserID       string `json:"-"`
	EventID      string `json:"event_id" validate:"required"`
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity" validate:"omitempty,min=1,max=10"`
	CallbackURL  string `json:"callback_url" validate:"omitempty,url"`
}

type PurchaseResult struct {
	Ticket     *models.Ticket `json:"ticket"`
	Reference  string         `json:"reference"`
	PaymentURL string         `json:"payment_url,omitempty"`
	AccessCode string         `json:"access_code,omitempty"`
	Free       bool           `json:"free"`
	TestBypass bool           `json:"test_bypass,omitempty"`
}

type VerifyResult struct {
	Ticket           *models.Ticket `json:"ticket"`
	AlreadyProcessed bool           `json:"already_processed"`
	Recovered        bool           `json:"recovered,omitempty"`
}

// Purchase validates the request, records the ticket and, for paid tickets,
// starts a gateway transaction.
func (s *TicketService) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	res, err := s.purchase(ctx, req)
	switch {
	case err != nil && status.CategoryOf(err) == status.CategoryInternal:
		s.monitor.TrackPurchase("error")
	case err != nil:
		s.monitor.TrackPurchase("rejected")
	case res.Free:
		s.monitor.TrackPurchase("free")
	case res.TestBypass:
		s.monitor.TrackPurchase("test_bypass")
	default:
		s.monitor.TrackPurchase("pending")
	}
	return res, err
}

func (s *TicketService) purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}

	user, err := s.userDir.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	event, err := s.eventDir.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	var ticketType *models.TicketType
	if req.TicketTypeID != "" {
		ticketType, err = s.ticketTypeFor(ctx, event, req.TicketTypeID)
		if err != nil {
			return nil, err
		}
		if !ticketType.IsActive {
			return nil, fmt.Errorf("%w: %s", status.ErrTicketTypeInactive, ticketType.ID)
		}
		if ticketType.Remaining() < quantity {
			return nil, fmt.Errorf("%w: %s has %d left", status.ErrTicketTypeSoldOut, ticketType.ID, ticketType.Remaining())
		}
	} else if event.HasMultipleTicketTypes {
		return nil, status.ErrTicketTypeRequired
	}

	if err := restriction.Check(event, user, s.now()); err != nil {
		return nil, err
	}

	active, err := s.store.HasActiveTicket(ctx, user.ID, event.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, status.ErrDuplicateTicket
	}

	unitPrice := event.Price
	if ticketType != nil {
		unitPrice = ticketType.Price
	}
	amount := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	free := event.IsFree || amount.IsZero()
	if free {
		amount = decimal.Zero
	}

	ref := Reference{
		EventID:      event.ID,
		UserID:       user.ID,
		TicketTypeID: req.TicketTypeID,
		IssuedAt:     s.now(),
		Free:         free,
		Test:         !free && s.isTestAmount(amount),
	}.String()

	newTicket := store.NewTicket{
		UserID:       user.ID,
		EventID:      event.ID,
		TicketTypeID: req.TicketTypeID,
		Quantity:     quantity,
		TotalAmount:  amount,
		Reference:    ref,
		Status:       models.PaymentPending,
	}

	if free {
		newTicket.Status = models.PaymentCompleted
		ticket, err := s.store.CreateTicket(ctx, newTicket)
		if err != nil {
			return nil, err
		}
		s.afterTransition(ctx, ticket)

		slog.Info("Free ticket issued", "ticket_id", ticket.ID, "event_id", event.ID, "user_id", user.ID)
		return &PurchaseResult{Ticket: ticket, Reference: ref, Free: true}, nil
	}

	ticket, err := s.store.CreateTicket(ctx, newTicket)
	if err != nil {
		return nil, err
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = s.cfg.CallbackURL
	}

	session, err := s.gateway.InitializeTransaction(ctx, &gateway.InitializeRequest{
		Email:       user.Email,
		AmountMinor: gateway.ToMinorUnits(amount),
		Currency:    s.cfg.Currency,
		Reference:   ref,
		CallbackURL: callbackURL,
		Metadata: map[string]any{
			"ticket_id":      ticket.ID,
			"event_id":       event.ID,
			"user_id":        user.ID,
			"ticket_type_id": req.TicketTypeID,
			"quantity":       quantity,
		},
	})
	if err != nil {
		if s.bypassAllowed(ref) {
			slog.Warn("Gateway initialize failed, completing test payment", "reference", ref, "error", err)
			res, terr := s.transition(ctx, ticket, models.PaymentCompleted)
			if terr != nil {
				return nil, terr
			}
			return &PurchaseResult{Ticket: res.Ticket, Reference: ref, TestBypass: true}, nil
		}

		// no gateway transaction exists, so the ticket can never be paid
		// and its units go back on sale
		if _, terr := s.apply(ctx, ticket, s.store.FailUninitialized); terr != nil {
			slog.Error("Failed to fail ticket after gateway error", "reference", ref, "error", terr)
		}
		return nil, fmt.Errorf("%w: initialize %s: %w", status.ErrGateway, ref, err)
	}

	slog.Info("Payment initialized", "reference", ref, "ticket_id", ticket.ID, "amount", amount.String())

	return &PurchaseResult{
		Ticket:     ticket,
		Reference:  ref,
		PaymentURL: session.AuthorizationURL,
		AccessCode: session.AccessCode,
	}, nil
}

// Verify resolves the ticket behind reference against the gateway. Tickets
// already completed or failed are returned unchanged.
func (s *TicketService) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	res, err := s.verify(ctx, reference)
	switch {
	case err != nil:
		s.monitor.TrackVerification("error")
	case res.AlreadyProcessed:
		s.monitor.TrackVerification("already_processed")
	case res.Recovered:
		s.monitor.TrackVerification("recovered")
	default:
		s.monitor.TrackVerification(string(res.Ticket.PaymentStatus))
	}
	return res, err
}

func (s *TicketService) verify(ctx context.Context, reference string) (*VerifyResult, error) {
	l, err := s.locker.TryLock(ctx, verifyLockName(reference))
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, fmt.Errorf("%w: %s", status.ErrVerificationInProgress, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", reference, err)
	}
	defer s.release(ctx, l)

	ticket, err := s.store.GetByReference(ctx, reference)
	if errors.Is(err, status.ErrTicketNotFound) {
		return s.recoverTicket(ctx, reference)
	}
	if err != nil {
		return nil, err
	}
	if ticket.PaymentStatus.IsTerminal() {
		return &VerifyResult{Ticket: ticket, AlreadyProcessed: true}, nil
	}

	tx, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		if s.bypassAllowed(reference) {
			slog.Warn("Gateway verify failed, completing test payment", "reference", reference, "error", err)
			return s.transition(ctx, ticket, models.PaymentCompleted)
		}
		return nil, fmt.Errorf("%w: verify %s: %w", status.ErrGateway, reference, err)
	}

	to, ok := resolution(ticket, tx)
	if !ok {
		return &VerifyResult{Ticket: ticket}, nil
	}
	return s.transition(ctx, ticket, to)
}

// recoverTicket issues a completed ticket for a reference that has no local
// ticket, provided the payment is confirmed.
func (s *TicketService) recoverTicket(ctx context.Context, reference string) (*VerifyResult, error) {
	ref, err := ParseReference(reference)
	if err != nil {
		return nil, err
	}

	event, err := s.eventDir.GetEvent(ctx, ref.EventID)
	if err != nil {
		return nil, err
	}

	unitPrice := event.Price
	if ref.TicketTypeID != "" {
		tt, err := s.ticketTypeFor(ctx, event, ref.TicketTypeID)
		if err != nil {
			return nil, err
		}
		unitPrice = tt.Price
	}

	quantity := 1
	amount := unitPrice
	switch {
	case ref.Free:
		if !event.IsFree && !unitPrice.IsZero() {
			return nil, fmt.Errorf("%w: free reference %s for a paid event", status.ErrFailedPayment, reference)
		}
		amount = decimal.Zero

	default:
		tx, err := s.gateway.VerifyTransaction(ctx, reference)
		switch {
		case err != nil && s.bypassAllowed(reference):
			slog.Warn("Gateway verify failed, recovering test payment", "reference", reference, "error", err)
		case err != nil:
			return nil, fmt.Errorf("%w: verify %s: %w", status.ErrGateway, reference, err)
		case !tx.Succeeded():
			return nil, fmt.Errorf("%w: %s is %s", status.ErrFailedPayment, reference, tx.Status)
		default:
			amount = tx.Amount()
			quantity = quantityFrom(tx.Metadata)
		}
	}

	ticket, err := s.store.CreateTicket(ctx, store.NewTicket{
		UserID:       ref.UserID,
		EventID:      event.ID,
		TicketTypeID: ref.TicketTypeID,
		Quantity:     quantity,
		TotalAmount:  amount,
		Reference:    reference,
		Status:       models.PaymentCompleted,
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, ticket)

	slog.Info("Ticket recovered from payment reference", "reference", reference, "ticket_id", ticket.ID)
	return &VerifyResult{Ticket: ticket, Recovered: true}, nil
}

// HandleWebhook verifies the reference carried by an authenticated gateway webhook.
func (s *TicketService) HandleWebhook(ctx context.Context, body []byte, signature string) (*VerifyResult, error) {
	if s.webhooks == nil {
		return nil, fmt.Errorf("%w: %s gateway has no webhooks", status.ErrInvalidSignature, s.gateway.Provider())
	}

	reference, err := s.webhooks.ParseWebhook(body, signature)
	if errors.Is(err, status.ErrInvalidSignature) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", status.ErrReferenceParse, err)
	}
	return s.Verify(ctx, reference)
}

func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	return s.store.GetTicket(ctx, id)
}

func (s *TicketService) ListUserTickets(ctx context.Context, userID string) ([]*models.Ticket, error) {
	return s.store.ListTicketsByUser(ctx, userID)
}

// transition applies to and runs the completion side effects when this call
// made the change. Losing a race to another writer is not an error.
func (s *TicketService) transition(ctx context.Context, ticket *models.Ticket, to models.PaymentStatus) (*VerifyResult, error) {
	return s.apply(ctx, ticket, func(ctx context.Context, id string) (*store.Transition, error) {
		return s.store.UpdateStatus(ctx, id, to)
	})
}

func (s *TicketService) apply(ctx context.Context, ticket *models.Ticket, update func(ctx context.Context, id string) (*store.Transition, error)) (*VerifyResult, error) {
	tr, err := update(ctx, ticket.ID)
	if errors.Is(err, status.ErrInvalidTransition) {
		current, gerr := s.store.GetTicket(ctx, ticket.ID)
		if gerr != nil {
			return nil, err
		}
		return &VerifyResult{Ticket: current, AlreadyProcessed: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if tr.Changed {
		s.afterTransition(ctx, tr.Ticket)
	}
	return &VerifyResult{Ticket: tr.Ticket, AlreadyProcessed: !tr.Changed}, nil
}

// afterTransition runs once per ticket status change. Neither step can
// undo the change; failures are logged.
func (s *TicketService) afterTransition(ctx context.Context, ticket *models.Ticket) {
	if ticket.PaymentStatus == models.PaymentCompleted {
		if err := s.publisher.Publish(ctx, events.NewTicketCompleted(ticket)); err != nil {
			slog.Error("Failed to publish ticket completion", "ticket_id", ticket.ID, "reference", ticket.PaymentReference, "error", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.TicketStatusChanged(ctx, ticket); err != nil {
			slog.Warn("Failed to notify buyer", "ticket_id", ticket.ID, "user_id", ticket.UserID, "error", err)
		}
	}
}

func (s *TicketService) release(ctx context.Context, l *lock.Lock) {
	if err := l.Release(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("Failed to release lock", "lock", l.Name(), "error", err)
	}
}

func (s *TicketService) ticketTypeFor(ctx context.Context, event *models.Event, id string) (*models.TicketType, error) {
	tt, err := s.store.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}
	if tt.EventID != event.ID {
		return nil, fmt.Errorf("%w: %s does not belong to event %s", status.ErrTicketTypeNotFound, id, event.ID)
	}
	return tt, nil
}

func (s *TicketService) isTestAmount(amount decimal.Decimal) bool {
	return s.cfg.TestPayments && amount.LessThanOrEqual(s.cfg.TestAmountCeiling)
}

// bypassAllowed gates completing a payment without gateway confirmation.
func (s *TicketService) bypassAllowed(reference string) bool {
	return s.cfg.TestPayments && IsTestReference(reference)
}

// resolution maps a gateway transaction onto the status the pending ticket
// should move to. ok is false while the payer can still finish paying.
func resolution(ticket *models.Ticket, tx *gateway.Transaction) (to models.PaymentStatus, ok bool) {
	switch {
	case tx.Succeeded():
		if expected := gateway.ToMinorUnits(ticket.TotalAmount); tx.AmountMinor < expected {
			slog.Warn("Payment amount below ticket total", "reference", ticket.PaymentReference,
				"paid_minor", tx.AmountMinor, "expected_minor", expected)
			return models.PaymentFailed, true
		}
		return models.PaymentCompleted, true
	case tx.InFlight():
		return "", false
	default:
		return models.PaymentFailed, true
	}
}

func quantityFrom(metadata map[string]any) int {
	switch q := metadata["quantity"].(type) {
	case int:
		if q > 0 {
			return q
		}
	case float64:
		if q >= 1 {
			return int(q)
		}
	}
	return 1
}

func verifyLockName(reference string) string {
	return "verify:" + reference
}
