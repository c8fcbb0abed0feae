package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"ticket-ledger/config"
	"ticket-ledger/internal/directory"
	"ticket-ledger/internal/events"
	"ticket-ledger/internal/handlers"
	"ticket-ledger/internal/jobs"
	"ticket-ledger/internal/ledger"
	"ticket-ledger/internal/lock"
	"ticket-ledger/internal/notify"
	"ticket-ledger/internal/services"
	"ticket-ledger/internal/services/gateway"
	"ticket-ledger/internal/services/gateway/paystack"
	"ticket-ledger/internal/store"
	_ "ticket-ledger/migrations"
	"ticket-ledger/monitoring"
	"ticket-ledger/security"
	"ticket-ledger/utils"
)

const (
	reaperBatch    = 100
	reconcileBatch = 500
)

func Start() error {
	cfg := config.LoadConfig()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	app := pocketbase.New()

	// Redis backs verification locks and rate limiting. Without it the
	// service still runs on a single node.
	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		slog.Warn("Redis unavailable, using in-process locks", "error", err)
	}

	ticketStore := store.New(store.NewAppDB(app), store.WithReleaseFailedInventory(cfg.ReleaseFailedInventory))
	dir := directory.New(app)

	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(ticketStore)
	}

	fees := ledger.New(ticketStore, dir, monitor)
	bus := newEventBus(cfg)
	bus.Subscribe(fees.CreditPlatformAccount)

	pg, err := newPaymentGateway(cfg, monitor)
	if err != nil {
		return err
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, cfg.VerifyLockTTL)
	}

	var notifier services.Notifier = notify.Noop{}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		notifier = notify.NewPubNubNotifier(notify.NewPubNub(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey))
	}

	opts := []services.TicketOption{services.WithNotifier(notifier)}
	if pg.Webhooks != nil {
		opts = append(opts, services.WithWebhookParser(pg.Webhooks))
	}

	ticketService := services.NewTicketService(ticketStore, dir, dir, pg, bus, locker, monitor,
		services.PaymentConfig{
			Currency:          cfg.PaymentCurrency,
			CallbackURL:       cfg.PaymentCallbackURL,
			TestPayments:      cfg.TestPayments,
			TestAmountCeiling: cfg.TestAmountCeiling,
		}, opts...)
	inventoryService := services.NewInventoryService(ticketStore, dir)
	reaper := services.NewPendingReaper(ticketService, cfg.PendingTimeout, reaperBatch)

	ticketHandler := handlers.NewTicketHandler(ticketService, inventoryService, pg.Sandbox)
	adminHandler := handlers.NewAdminHandler(fees)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	directory.BindHooks(app)

	ctx, cancel := context.WithCancel(context.Background())
	scheduler, err := jobs.NewScheduler()
	if err != nil {
		cancel()
		return err
	}

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if err := scheduler.Every("pending-reaper", cfg.ReaperInterval, reaper.Run); err != nil {
			return err
		}
		if err := scheduler.Every("fee-reconcile", cfg.LedgerReconcileInterval, func(ctx context.Context) (int, error) {
			return fees.Reconcile(ctx, reconcileBatch)
		}); err != nil {
			return err
		}
		scheduler.Start()

		if monitor != nil {
			go monitor.Run(ctx)
		}

		registerRoutes(e, cfg, redisClient, ticketHandler, adminHandler)
		slog.Info("Server routes registered", "gateway", pg.Provider(), "event_bus", cfg.EventBus)

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		slog.Info("Shutdown signal received, cleaning up...")
		cancel()
		if err := scheduler.Shutdown(); err != nil {
			slog.Error("Failed to stop job scheduler", "error", err)
		}
		if err := bus.Close(); err != nil {
			slog.Error("Failed to close event bus", "error", err)
		}
		if redisClient != nil {
			redisClient.Close()
		}
		return e.Next()
	})

	return app.Start()
}

func registerRoutes(
	e *core.ServeEvent,
	cfg *config.Config,
	redisClient *redis.Client,
	tickets *handlers.TicketHandler,
	admin *handlers.AdminHandler,
) {
	purchase := e.Router.POST("/api/v1/tickets/purchase", tickets.Purchase).
		Bind(apis.RequireAuth()).
		BindFunc(security.AntiBotMiddleware)
	if redisClient != nil {
		limiter := security.NewRateLimiter(redisClient, cfg.PurchaseRateLimit, time.Minute)
		purchase.BindFunc(limiter.Middleware("purchase"))
	}

	// Ticket endpoints
	e.Router.GET("/api/v1/tickets/verify/{reference}", tickets.Verify).Bind(apis.RequireAuth())
	e.Router.GET("/api/v1/tickets", tickets.ListTickets).Bind(apis.RequireAuth())
	e.Router.GET("/api/v1/tickets/{id}", tickets.GetTicket).Bind(apis.RequireAuth())
	e.Router.GET("/api/v1/tickets/{id}/qrcode", tickets.TicketQRCode).Bind(apis.RequireAuth())

	// Payment endpoints
	e.Router.POST("/api/v1/payments/webhook", tickets.Webhook)

	// Ticket type endpoints
	e.Router.GET("/api/v1/events/{eventId}/ticket-types", tickets.ListTicketTypes)
	e.Router.POST("/api/v1/events/{eventId}/ticket-types", tickets.CreateTicketType).Bind(apis.RequireSuperuserAuth())

	// Admin endpoints
	e.Router.GET("/api/v1/admin/platform-balance", admin.GetPlatformBalance).Bind(apis.RequireSuperuserAuth())

	// Test endpoint for payment simulation
	if cfg.IsDevelopment() && cfg.GatewayProvider == string(gateway.ProviderSandbox) {
		e.Router.POST("/api/v1/test/simulate-payment", tickets.SimulatePayment)
	}

	if cfg.EnableMetrics {
		e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
	}

	// Health check
	e.Router.GET("/health", func(e *core.RequestEvent) error {
		if redisClient != nil {
			if err := utils.RedisHealthCheck(e.Request.Context(), redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
		}
		return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
}

func newEventBus(cfg *config.Config) events.Bus {
	if cfg.EventBus == "kafka" {
		return events.NewKafkaBus(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		})
	}
	return events.NewLocalBus(256)
}

func newPaymentGateway(cfg *config.Config, monitor *monitoring.Monitor) (*services.PaymentGateway, error) {
	factory := services.NewGatewayFactory(monitor)

	switch gateway.Provider(cfg.GatewayProvider) {
	case gateway.ProviderPaystack:
		return factory.CreateGateway(gateway.ProviderPaystack, &paystack.Config{
			BaseURL:   cfg.PaystackBaseURL,
			SecretKey: cfg.PaystackSecretKey,
			Timeout:   15 * time.Second,
		})
	default:
		return factory.CreateGateway(gateway.Provider(cfg.GatewayProvider), cfg.SandboxCheckoutURL)
	}
}
