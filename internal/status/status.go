package status

import "errors"

var (
	ErrDuplicateTicket        = errors.New("ticket: user already holds an active ticket for this event")
	ErrReferenceCollision     = errors.New("ticket: payment reference already exists")
	ErrInvalidTransition      = errors.New("ticket: invalid payment status transition")
	ErrTicketNotFound         = errors.New("ticket: ticket not found")
	ErrEventNotFound          = errors.New("event: event not found")
	ErrUserNotFound           = errors.New("user: user not found")
	ErrTicketTypeNotFound     = errors.New("ticket type: ticket type not found")
	ErrTicketTypeSoldOut      = errors.New("ticket type: sold out")
	ErrTicketTypeInactive     = errors.New("ticket type: not on sale")
	ErrTicketTypeRequired     = errors.New("ticket type: event requires a ticket type")
	ErrInvalidTicketType      = errors.New("ticket type: invalid ticket type")
	ErrRestrictionViolation   = errors.New("restriction: user is not eligible for this event")
	ErrGateway                = errors.New("gateway: payment gateway error")
	ErrFailedPayment          = errors.New("payment: payment failed")
	ErrInvalidSignature       = errors.New("payment: invalid webhook signature")
	ErrReferenceParse         = errors.New("ref code: malformed payment reference")
	ErrVerificationInProgress = errors.New("ref code: verification already in progress")
	ErrFeeCredit              = errors.New("ledger: fee credit failed")
	ErrAdminAccountNotFound   = errors.New("ledger: platform admin account not found")
)

// Category groups errors by how callers should react to them.
type Category int

const (
	CategoryInternal Category = iota
	CategoryNotFound
	CategoryForbidden
	CategoryConflict
	CategoryBadRequest
	CategoryUpstream
)

func (c Category) String() string {
	switch c {
	case CategoryNotFound:
		return "not-found"
	case CategoryForbidden:
		return "forbidden"
	case CategoryConflict:
		return "conflict"
	case CategoryBadRequest:
		return "bad-request"
	case CategoryUpstream:
		return "upstream-failure"
	}
	return "internal"
}

var categories = []struct {
	err      error
	category Category
}{
	{ErrTicketNotFound, CategoryNotFound},
	{ErrEventNotFound, CategoryNotFound},
	{ErrUserNotFound, CategoryNotFound},
	{ErrTicketTypeNotFound, CategoryNotFound},
	{ErrRestrictionViolation, CategoryForbidden},
	{ErrInvalidSignature, CategoryForbidden},
	{ErrDuplicateTicket, CategoryConflict},
	{ErrReferenceCollision, CategoryConflict},
	{ErrInvalidTransition, CategoryConflict},
	{ErrTicketTypeSoldOut, CategoryConflict},
	{ErrTicketTypeInactive, CategoryConflict},
	{ErrVerificationInProgress, CategoryConflict},
	{ErrTicketTypeRequired, CategoryBadRequest},
	{ErrInvalidTicketType, CategoryBadRequest},
	{ErrReferenceParse, CategoryBadRequest},
	{ErrGateway, CategoryUpstream},
	{ErrFailedPayment, CategoryUpstream},
	{ErrFeeCredit, CategoryInternal},
	{ErrAdminAccountNotFound, CategoryInternal},
}

// CategoryOf returns the category of the first known error in err's chain.
func CategoryOf(err error) Category {
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.category
		}
	}
	return CategoryInternal
}
