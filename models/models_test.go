package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		allowed  bool
	}{
		{PaymentPending, PaymentCompleted, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentPending, false},
		{PaymentCompleted, PaymentFailed, false},
		{PaymentCompleted, PaymentPending, false},
		{PaymentCompleted, PaymentCompleted, false},
		{PaymentFailed, PaymentCompleted, false},
		{PaymentFailed, PaymentPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPaymentStatus_Flags(t *testing.T) {
	assert.False(t, PaymentPending.IsTerminal())
	assert.True(t, PaymentCompleted.IsTerminal())
	assert.True(t, PaymentFailed.IsTerminal())

	assert.True(t, PaymentPending.IsActive())
	assert.True(t, PaymentCompleted.IsActive())
	assert.False(t, PaymentFailed.IsActive())
}

func TestParsePaymentStatus(t *testing.T) {
	s, err := ParsePaymentStatus("completed")
	require.NoError(t, err)
	assert.Equal(t, PaymentCompleted, s)

	_, err = ParsePaymentStatus("refunded")
	assert.Error(t, err)
}

func TestTicketType_Remaining(t *testing.T) {
	tt := TicketType{Quantity: 10, SoldCount: 4}
	assert.Equal(t, 6, tt.Remaining())

	tt.SoldCount = 10
	assert.Equal(t, 0, tt.Remaining())

	tt.SoldCount = 12
	assert.Equal(t, 0, tt.Remaining())
}
