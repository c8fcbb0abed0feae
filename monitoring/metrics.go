package monitoring

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ticket-ledger/models"
)

var (
	ticketsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tickets_total",
			Help: "Current number of tickets per payment status",
		},
		[]string{"payment_status"},
	)

	purchaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_purchases_total",
			Help: "Total purchase attempts by outcome",
		},
		[]string{"outcome"},
	)

	verifyOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Total payment verifications by outcome",
		},
		[]string{"outcome"},
	)

	feeCredits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_fee_credits_total",
			Help: "Total platform fee credit attempts by outcome",
		},
		[]string{"outcome"},
	)

	feeAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "platform_fee_amount_total",
			Help: "Sum of platform fees credited",
		},
	)

	reaperOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pending_reaper_tickets_total",
			Help: "Stale pending tickets handled by the reaper by outcome",
		},
		[]string{"outcome"},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Duration of payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation", "outcome"},
	)
)

// StatusCounter reports how many tickets sit in each payment status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[models.PaymentStatus]int, error)
}

// Monitor records ticketing metrics. A nil *Monitor is valid and records
// nothing.
type Monitor struct {
	tickets  StatusCounter
	interval time.Duration
}

func NewMonitor(tickets StatusCounter) *Monitor {
	return &Monitor{tickets: tickets, interval: 30 * time.Second}
}

// Run collects gauges until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	goroutineCount.Set(float64(runtime.NumGoroutine()))

	if m.tickets == nil {
		return
	}
	counts, err := m.tickets.CountByStatus(ctx)
	if err != nil {
		slog.Error("Failed to collect ticket metrics", "error", err)
		return
	}
	for _, s := range []models.PaymentStatus{models.PaymentPending, models.PaymentCompleted, models.PaymentFailed} {
		ticketsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

func (m *Monitor) TrackPurchase(outcome string) {
	if m == nil {
		return
	}
	purchaseOperations.WithLabelValues(outcome).Inc()
}

func (m *Monitor) TrackVerification(outcome string) {
	if m == nil {
		return
	}
	verifyOperations.WithLabelValues(outcome).Inc()
}

func (m *Monitor) TrackFeeCredit(outcome string, fee float64) {
	if m == nil {
		return
	}
	feeCredits.WithLabelValues(outcome).Inc()
	if fee > 0 {
		feeAmount.Add(fee)
	}
}

func (m *Monitor) TrackReaper(outcome string) {
	if m == nil {
		return
	}
	reaperOperations.WithLabelValues(outcome).Inc()
}

func (m *Monitor) TrackGatewayCall(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	gatewayDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}
