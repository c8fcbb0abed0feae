package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/models"
	"ticket-ledger/utils"
)

var validate = validator.New()

type EventLookup interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type InventoryService struct {
	store  *store.Store
	events EventLookup
}

func NewInventoryService(s *store.Store, events EventLookup) *InventoryService {
	return &InventoryService{store: s, events: events}
}

type CreateTicketTypeRequest struct {
	EventID     string          `json:"event_id" validate:"required"`
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=1000"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	IsActive    *bool           `json:"is_active"`
}

func (s *InventoryService) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	return s.store.GetTicketType(ctx, id)
}

// IsAvailable reports whether at least one unit of tt is unsold.
func IsAvailable(tt *models.TicketType) bool {
	return tt.Quantity-tt.SoldCount > 0
}

// CreateTicketType adds a tier to an event. New tiers start with nothing
// sold and are on sale unless IsActive says otherwise.
func (s *InventoryService) CreateTicketType(ctx context.Context, req CreateTicketTypeRequest) (*models.TicketType, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", status.ErrInvalidTicketType, err)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", status.ErrInvalidTicketType)
	}

	if _, err := s.events.GetEvent(ctx, req.EventID); err != nil {
		return nil, err
	}

	tt := &models.TicketType{
		ID:          utils.NewRecordID(),
		EventID:     req.EventID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		SoldCount:   0,
		IsActive:    true,
	}
	if req.IsActive != nil {
		tt.IsActive = *req.IsActive
	}

	if err := s.store.InsertTicketType(ctx, tt); err != nil {
		return nil, err
	}
	return tt, nil
}

func (s *InventoryService) ListTicketTypes(ctx context.Context, eventID string) ([]*models.TicketType, error) {
	return s.store.ListTicketTypes(ctx, eventID)
}
