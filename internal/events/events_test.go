package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-ledger/models"
)

func TestNewTicketCompleted(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Minute)

	ticket := &models.Ticket{
		ID:               "t1",
		UserID:           "u1",
		EventID:          "e1",
		TotalAmount:      decimal.NewFromInt(250),
		PaymentReference: "e1-1-u1",
		CreatedAt:        created,
		UpdatedAt:        &updated,
	}

	evt := NewTicketCompleted(ticket)
	assert.Equal(t, "t1", evt.TicketID)
	assert.Equal(t, "e1-1-u1", evt.Reference)
	assert.True(t, evt.Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, updated, evt.CompletedAt)

	ticket.UpdatedAt = nil
	assert.Equal(t, created, NewTicketCompleted(ticket).CompletedAt)
}

func TestLocalBus_DeliversToSubscribers(t *testing.T) {
	bus := NewLocalBus(8)

	var (
		mu  sync.Mutex
		got []string
	)
	bus.Subscribe(func(ctx context.Context, evt *TicketCompleted) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt.TicketID)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, &TicketCompleted{TicketID: "t1"}))
	require.NoError(t, bus.Publish(ctx, &TicketCompleted{TicketID: "t2"}))
	require.NoError(t, bus.Close())

	assert.Equal(t, []string{"t1", "t2"}, got)
}

func TestLocalBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewLocalBus(4)

	var calls int
	bus.Subscribe(func(ctx context.Context, evt *TicketCompleted) error {
		calls++
		return errors.New("ledger unavailable")
	})

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, &TicketCompleted{TicketID: "t1"}))
	require.NoError(t, bus.Publish(ctx, &TicketCompleted{TicketID: "t2"}))
	require.NoError(t, bus.Close())

	assert.Equal(t, 2, calls)
}

func TestLocalBus_PublishAfterClose(t *testing.T) {
	bus := NewLocalBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), &TicketCompleted{TicketID: "t1"})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestLocalBus_PublishHonoursContext(t *testing.T) {
	bus := NewLocalBus(1)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// no subscriber: the first event fills the buffer, the second blocks
	require.NoError(t, bus.Publish(ctx, &TicketCompleted{TicketID: "t1"}))
	err := bus.Publish(ctx, &TicketCompleted{TicketID: "t2"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKafkaMessage_KeyedByTicket(t *testing.T) {
	evt := &TicketCompleted{
		TicketID:    "t1",
		UserID:      "u1",
		EventID:     "e1",
		Reference:   "e1-1700000000000-u1",
		Amount:      decimal.RequireFromString("99.99"),
		CompletedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	msg, err := encodeMessage(evt)
	require.NoError(t, err)
	assert.Equal(t, []byte("t1"), msg.Key)

	decoded, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, evt.Reference, decoded.Reference)
	assert.True(t, evt.Amount.Equal(decoded.Amount))

	_, err = decodeMessage(kafka.Message{Value: []byte(`{"user_id":"u1"}`)})
	assert.Error(t, err)
}
