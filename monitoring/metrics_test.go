package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"ticket-ledger/models"
)

type fakeCounter struct {
	counts map[models.PaymentStatus]int
	err    error
}

func (f *fakeCounter) CountByStatus(ctx context.Context) (map[models.PaymentStatus]int, error) {
	return f.counts, f.err
}

func TestMonitor_CollectTicketGauges(t *testing.T) {
	m := NewMonitor(&fakeCounter{counts: map[models.PaymentStatus]int{
		models.PaymentPending:   3,
		models.PaymentCompleted: 7,
	}})

	m.collect(context.Background())

	assert.Equal(t, 3.0, testutil.ToFloat64(ticketsByStatus.WithLabelValues("pending")))
	assert.Equal(t, 7.0, testutil.ToFloat64(ticketsByStatus.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(ticketsByStatus.WithLabelValues("failed")))
}

func TestMonitor_CollectKeepsGaugesOnError(t *testing.T) {
	ticketsByStatus.WithLabelValues("pending").Set(5)

	m := NewMonitor(&fakeCounter{err: errors.New("db closed")})
	m.collect(context.Background())

	assert.Equal(t, 5.0, testutil.ToFloat64(ticketsByStatus.WithLabelValues("pending")))
}

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor(nil)

	before := testutil.ToFloat64(purchaseOperations.WithLabelValues("duplicate"))
	m.TrackPurchase("duplicate")
	assert.Equal(t, before+1, testutil.ToFloat64(purchaseOperations.WithLabelValues("duplicate")))

	beforeFee := testutil.ToFloat64(feeAmount)
	m.TrackFeeCredit("credited", 15)
	m.TrackFeeCredit("exempt", 0)
	assert.Equal(t, beforeFee+15, testutil.ToFloat64(feeAmount))

	m.TrackGatewayCall("verify", nil, 120*time.Millisecond)
	m.TrackGatewayCall("verify", errors.New("timeout"), time.Second)
	assert.Equal(t, 2, testutil.CollectAndCount(gatewayDuration))
}

func TestMonitor_NilRecordsNothing(t *testing.T) {
	var m *Monitor

	before := testutil.ToFloat64(purchaseOperations.WithLabelValues("disabled"))
	beforeFee := testutil.ToFloat64(feeAmount)
	beforeReaper := testutil.ToFloat64(reaperOperations.WithLabelValues("disabled"))

	m.TrackPurchase("disabled")
	m.TrackVerification("disabled")
	m.TrackFeeCredit("disabled", 40)
	m.TrackReaper("disabled")
	m.TrackGatewayCall("disabled", nil, time.Second)

	assert.Equal(t, before, testutil.ToFloat64(purchaseOperations.WithLabelValues("disabled")))
	assert.Equal(t, beforeFee, testutil.ToFloat64(feeAmount))
	assert.Equal(t, beforeReaper, testutil.ToFloat64(reaperOperations.WithLabelValues("disabled")))
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	m := NewMonitor(&fakeCounter{counts: map[models.PaymentStatus]int{}})
	m.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
