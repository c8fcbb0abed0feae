package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

var testNow = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	db, err := dbx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// a single connection keeps every caller on the same in-memory database
	db.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, ApplySchema(context.Background(), db))

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(NewSQLDB(db), opts...)
}

func seedTicketType(t *testing.T, s *Store, id, eventID string, quantity int) *models.TicketType {
	t.Helper()

	tt := &models.TicketType{
		ID:       id,
		EventID:  eventID,
		Name:     "General",
		Price:    decimal.NewFromInt(100),
		Quantity: quantity,
		IsActive: true,
	}
	require.NoError(t, s.InsertTicketType(context.Background(), tt))
	return tt
}

func pendingTicket(userID, eventID, ref string) NewTicket {
	return NewTicket{
		UserID:      userID,
		EventID:     eventID,
		Quantity:    1,
		TotalAmount: decimal.NewFromInt(100),
		Reference:   ref,
		Status:      models.PaymentPending,
	}
}

func TestCreateTicket_Persists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := pendingTicket("u1", "e1", "e1-1700000000000-u1")
	in.TotalAmount = decimal.RequireFromString("150.50")

	ticket, err := s.CreateTicket(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, models.PaymentPending, ticket.PaymentStatus)
	assert.Nil(t, ticket.UpdatedAt)
	assert.True(t, ticket.CreatedAt.Equal(testNow))

	got, err := s.GetByReference(ctx, in.Reference)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("150.50")))
	assert.True(t, got.PurchaseDate.Equal(testNow))
	assert.Nil(t, got.UpdatedAt)

	active, err := s.HasActiveTicket(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = s.HasActiveTicket(ctx, "u1", "e2")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestCreateTicket_RejectsFailedStatus(t *testing.T) {
	s := newTestStore(t)

	in := pendingTicket("u1", "e1", "ref-1")
	in.Status = models.PaymentFailed

	_, err := s.CreateTicket(context.Background(), in)
	assert.ErrorIs(t, err, status.ErrInvalidTransition)
}

func TestCreateTicket_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-1"))
	require.NoError(t, err)

	_, err = s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-2"))
	assert.ErrorIs(t, err, status.ErrDuplicateTicket)

	// another user may still buy
	_, err = s.CreateTicket(ctx, pendingTicket("u2", "e1", "ref-3"))
	assert.NoError(t, err)
}

func TestCreateTicket_AllowedAfterFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-1"))
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, first.ID, models.PaymentFailed)
	require.NoError(t, err)

	second, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateTicket_ReferenceCollision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-1"))
	require.NoError(t, err)

	_, err = s.CreateTicket(ctx, pendingTicket("u2", "e2", "ref-1"))
	assert.ErrorIs(t, err, status.ErrReferenceCollision)
}

func TestCreateTicket_ConcurrentSameUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		dupes     atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", fmt.Sprintf("ref-%d", i)))
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, status.ErrDuplicateTicket):
				dupes.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(19), dupes.Load())
}

func TestCreateTicket_ReservesInventory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTicketType(t, s, "tt1", "e1", 2)

	in := pendingTicket("u1", "e1", "ref-1")
	in.TicketTypeID = "tt1"
	_, err := s.CreateTicket(ctx, in)
	require.NoError(t, err)

	tt, err := s.GetTicketType(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 1, tt.SoldCount)

	in = pendingTicket("u2", "e1", "ref-2")
	in.TicketTypeID = "tt1"
	in.Quantity = 2
	_, err = s.CreateTicket(ctx, in)
	assert.ErrorIs(t, err, status.ErrTicketTypeSoldOut)

	// the failed reservation did not leave a ticket or consume units
	active, err := s.HasActiveTicket(ctx, "u2", "e1")
	require.NoError(t, err)
	assert.False(t, active)

	tt, err = s.GetTicketType(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 1, tt.SoldCount)
}

func TestCreateTicket_TicketTypeOfOtherEvent(t *testing.T) {
	s := newTestStore(t)
	seedTicketType(t, s, "tt1", "e1", 5)

	in := pendingTicket("u1", "e2", "ref-1")
	in.TicketTypeID = "tt1"
	_, err := s.CreateTicket(context.Background(), in)
	assert.ErrorIs(t, err, status.ErrTicketTypeNotFound)

	in.TicketTypeID = "missing"
	_, err = s.CreateTicket(context.Background(), in)
	assert.ErrorIs(t, err, status.ErrTicketTypeNotFound)
}

func TestCreateTicket_InactiveTicketType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tt := &models.TicketType{ID: "tt1", EventID: "e1", Name: "VIP", Price: decimal.NewFromInt(50), Quantity: 5}
	require.NoError(t, s.InsertTicketType(ctx, tt))

	in := pendingTicket("u1", "e1", "ref-1")
	in.TicketTypeID = "tt1"
	_, err := s.CreateTicket(ctx, in)
	assert.ErrorIs(t, err, status.ErrTicketTypeInactive)
}

func TestCreateTicket_ConcurrentInventoryNeverOversells(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTicketType(t, s, "tt1", "e1", 5)

	var (
		wg      sync.WaitGroup
		sold    atomic.Int32
		soldOut atomic.Int32
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := pendingTicket(fmt.Sprintf("u%d", i), "e1", fmt.Sprintf("ref-%d", i))
			in.TicketTypeID = "tt1"
			_, err := s.CreateTicket(ctx, in)
			switch {
			case err == nil:
				sold.Add(1)
			case assert.ErrorIs(t, err, status.ErrTicketTypeSoldOut):
				soldOut.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(5), sold.Load())
	assert.Equal(t, int32(20), soldOut.Load())

	tt, err := s.GetTicketType(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 5, tt.SoldCount)
	assert.Equal(t, 0, tt.Remaining())
}

func TestGetByReference_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetByReference(context.Background(), "nope")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)

	_, err = s.GetTicket(context.Background(), "nope")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-1"))
	require.NoError(t, err)

	tr, err := s.UpdateStatus(ctx, ticket.ID, models.PaymentCompleted)
	require.NoError(t, err)
	assert.True(t, tr.Changed)
	assert.Equal(t, models.PaymentPending, tr.From)
	assert.Equal(t, models.PaymentCompleted, tr.Ticket.PaymentStatus)
	require.NotNil(t, tr.Ticket.UpdatedAt)

	// completed -> completed is a no-op
	tr, err = s.UpdateStatus(ctx, ticket.ID, models.PaymentCompleted)
	require.NoError(t, err)
	assert.False(t, tr.Changed)

	// terminal statuses never change
	_, err = s.UpdateStatus(ctx, ticket.ID, models.PaymentFailed)
	assert.ErrorIs(t, err, status.ErrInvalidTransition)
	_, err = s.UpdateStatus(ctx, ticket.ID, models.PaymentPending)
	assert.ErrorIs(t, err, status.ErrInvalidTransition)

	got, err := s.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.PaymentStatus)
}

func TestUpdateStatus_FailedIsTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-1"))
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, ticket.ID, models.PaymentFailed)
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, ticket.ID, models.PaymentCompleted)
	assert.ErrorIs(t, err, status.ErrInvalidTransition)

	tr, err := s.UpdateStatus(ctx, ticket.ID, models.PaymentFailed)
	require.NoError(t, err)
	assert.False(t, tr.Changed)
}

func TestUpdateStatus_ConcurrentCompletionChangesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-1"))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		changed atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := s.UpdateStatus(ctx, ticket.ID, models.PaymentCompleted)
			if assert.NoError(t, err) && tr.Changed {
				changed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), changed.Load())
}

func TestUpdateStatus_ReleaseFailedInventory(t *testing.T) {
	ctx := context.Background()

	for _, release := range []bool{false, true} {
		t.Run(fmt.Sprintf("release=%v", release), func(t *testing.T) {
			s := newTestStore(t, WithReleaseFailedInventory(release))
			seedTicketType(t, s, "tt1", "e1", 3)

			in := pendingTicket("u1", "e1", "ref-1")
			in.TicketTypeID = "tt1"
			in.Quantity = 2
			ticket, err := s.CreateTicket(ctx, in)
			require.NoError(t, err)

			_, err = s.UpdateStatus(ctx, ticket.ID, models.PaymentFailed)
			require.NoError(t, err)

			tt, err := s.GetTicketType(ctx, "tt1")
			require.NoError(t, err)
			if release {
				assert.Equal(t, 0, tt.SoldCount)
			} else {
				assert.Equal(t, 2, tt.SoldCount)
			}
		})
	}
}

func TestFailUninitialized_AlwaysReleasesInventory(t *testing.T) {
	s := newTestStore(t, WithReleaseFailedInventory(false))
	ctx := context.Background()
	seedTicketType(t, s, "tt1", "e1", 3)

	in := pendingTicket("u1", "e1", "ref-1")
	in.TicketTypeID = "tt1"
	in.Quantity = 2
	ticket, err := s.CreateTicket(ctx, in)
	require.NoError(t, err)

	tr, err := s.FailUninitialized(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, tr.Changed)
	assert.Equal(t, models.PaymentFailed, tr.Ticket.PaymentStatus)

	tt, err := s.GetTicketType(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 0, tt.SoldCount)

	_, err = s.FailUninitialized(ctx, ticket.ID)
	require.NoError(t, err)
	tt, err = s.GetTicketType(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 0, tt.SoldCount)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpdateStatus(context.Background(), "missing", models.PaymentCompleted)
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
}

func TestListStalePending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-1"))
	require.NoError(t, err)

	done, err := s.CreateTicket(ctx, pendingTicket("u2", "e1", "ref-2"))
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, done.ID, models.PaymentCompleted)
	require.NoError(t, err)

	stale, err := s.ListStalePending(ctx, testNow.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)

	stale, err = s.ListStalePending(ctx, testNow, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestCountByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-1"))
	require.NoError(t, err)
	t2, err := s.CreateTicket(ctx, pendingTicket("u2", "e1", "ref-2"))
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, t2.ID, models.PaymentCompleted)
	require.NoError(t, err)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.PaymentPending])
	assert.Equal(t, 1, counts[models.PaymentCompleted])
	assert.Equal(t, 0, counts[models.PaymentFailed])
}

func TestListTicketsByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTicket(ctx, pendingTicket("u1", "e1", "ref-1"))
	require.NoError(t, err)
	_, err = s.CreateTicket(ctx, pendingTicket("u1", "e2", "ref-2"))
	require.NoError(t, err)
	_, err = s.CreateTicket(ctx, pendingTicket("u2", "e1", "ref-3"))
	require.NoError(t, err)

	tickets, err := s.ListTicketsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func TestListTicketTypes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTicketType(t, s, "tt1", "e1", 10)
	seedTicketType(t, s, "tt2", "e1", 20)
	seedTicketType(t, s, "tt3", "e2", 30)

	types, err := s.ListTicketTypes(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, types, 2)

	_, err = s.GetTicketType(ctx, "missing")
	assert.ErrorIs(t, err, status.ErrTicketTypeNotFound)
}
