package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ticket-ledger/internal/status"
)

const (
	freeMarker = "free"
	testMarker = "test"
)

// Reference is the decoded form of a payment reference:
// [free-]<eventId>-<unixMillis>-<userId>[-<ticketTypeId>][-test]
type Reference struct {
	EventID      string
	UserID       string
	TicketTypeID string
	IssuedAt     time.Time
	Free         bool
	Test         bool
}

func (r Reference) String() string {
	parts := make([]string, 0, 6)
	if r.Free {
		parts = append(parts, freeMarker)
	}
	parts = append(parts, r.EventID, strconv.FormatInt(r.IssuedAt.UnixMilli(), 10), r.UserID)
	if r.TicketTypeID != "" {
		parts = append(parts, r.TicketTypeID)
	}
	if r.Test {
		parts = append(parts, testMarker)
	}
	return strings.Join(parts, "-")
}

// ParseReference decodes a reference built by Reference.String.
func ParseReference(ref string) (*Reference, error) {
	parts := strings.Split(ref, "-")

	var r Reference
	if len(parts) > 0 && parts[0] == freeMarker {
		r.Free = true
		parts = parts[1:]
	}
	if n := len(parts); n > 0 && parts[n-1] == testMarker {
		r.Test = true
		parts = parts[:n-1]
	}
	if len(parts) != 3 && len(parts) != 4 {
		return nil, fmt.Errorf("%w: %q", status.ErrReferenceParse, ref)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", status.ErrReferenceParse, ref)
		}
	}

	millis, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || millis <= 0 {
		return nil, fmt.Errorf("%w: %q has no timestamp", status.ErrReferenceParse, ref)
	}

	r.EventID = parts[0]
	r.IssuedAt = time.UnixMilli(millis)
	r.UserID = parts[2]
	if len(parts) == 4 {
		r.TicketTypeID = parts[3]
	}
	return &r, nil
}

// IsTestReference reports whether ref was issued for a test payment.
func IsTestReference(ref string) bool {
	return strings.HasSuffix(ref, "-"+testMarker)
}

// IsFreeReference reports whether ref was issued for a free ticket.
func IsFreeReference(ref string) bool {
	return strings.HasPrefix(ref, freeMarker+"-")
}
