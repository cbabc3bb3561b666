package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frontdeskhq/receptionist-platform/cmd/mainconfig"
	"github.com/frontdeskhq/receptionist-platform/internal/api/router"
	"github.com/frontdeskhq/receptionist-platform/internal/app/bootstrap"
	"github.com/frontdeskhq/receptionist-platform/internal/appointments"
	"github.com/frontdeskhq/receptionist-platform/internal/calendar"
	"github.com/frontdeskhq/receptionist-platform/internal/calsync"
	appconfig "github.com/frontdeskhq/receptionist-platform/internal/config"
	"github.com/frontdeskhq/receptionist-platform/internal/contacts"
	"github.com/frontdeskhq/receptionist-platform/internal/http/handlers"
	"github.com/frontdeskhq/receptionist-platform/internal/notify"
	"github.com/frontdeskhq/receptionist-platform/internal/observability/metrics"
	"github.com/frontdeskhq/receptionist-platform/internal/org"
	"github.com/frontdeskhq/receptionist-platform/internal/providers"
	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

func main() {
	// .env is optional; deployed environments inject real variables.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting receptionist-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := bootstrap.BuildDBPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for org settings")
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	orgStore := org.NewStore(redisClient)

	// Postgres-backed stores.
	apptRepo := appointments.NewPostgresRepository(pool)
	providerRepo := providers.NewPostgresRepository(pool)
	contactStore := contacts.NewStore(pool)
	outbox := calsync.NewOutboxStore(pool)

	// External calendar gateway.
	gateway := calendar.NewGateway(calendar.OAuthConfig{
		TokenURL:     cfg.CalendarTokenURL,
		ClientID:     cfg.CalendarClientID,
		ClientSecret: cfg.CalendarClientSecret,
	}, cfg.CalendarAPIBaseURL, calendar.NewConnectionStore(pool), logger)

	metricsHandler, bookingMetrics := setupMetrics()

	// Notification transport: SQS in deployment, in-memory channel locally.
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	emailSender := bootstrap.BuildEmailSender(sesv2.NewFromConfig(awsCfg), cfg, logger)

	var (
		notifier     *notify.Service
		notifyWorker *notify.Worker
	)
	if cfg.UseMemoryQueue || cfg.NotifyQueueURL == "" {
		queue := notify.NewMemoryQueue(64)
		notifier = notify.NewMemoryService(queue, logger)
		notifyWorker = notify.NewWorker(queue, orgStore, emailSender, logger)
	} else {
		queue := notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL)
		notifier = notify.NewSQSService(queue, logger)
		notifyWorker = notify.NewWorker(queue, orgStore, emailSender, logger)
	}

	defaultDuration := time.Duration(cfg.DefaultAppointmentMinutes) * time.Minute
	bookingService := appointments.NewService(apptRepo, orgStore, providerRepo, logger,
		appointments.WithContacts(contactStore),
		appointments.WithSyncQueue(outbox),
		appointments.WithNotifier(notifier),
		appointments.WithMetrics(bookingMetrics),
		appointments.WithDefaultDuration(defaultDuration),
	)

	toolsHandler := handlers.NewToolsHandler(handlers.ToolsHandlerConfig{
		Bookings:        bookingService,
		Orgs:            orgStore,
		Calendar:        gateway,
		Busy:            apptRepo,
		Metrics:         bookingMetrics,
		Logger:          logger,
		DefaultDuration: defaultDuration,
		MaxSlots:        cfg.MaxSlotsPerSearch,
	})

	// Background loops: calendar push deliverer and notification workers.
	deliverer := calsync.NewDeliverer(outbox, gateway, apptRepo, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxInterval).
		WithMetrics(bookingMetrics)
	go deliverer.Start(ctx)
	for i := 0; i < cfg.WorkerCount; i++ {
		go notifyWorker.Start(ctx)
	}

	routerCfg := &router.Config{
		Logger:             logger,
		Tools:              toolsHandler,
		OrgHandler:         org.NewHandler(orgStore, logger),
		MetricsHandler:     metricsHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ToolRateLimit:      cfg.ToolRateLimit,
		ToolRateBurst:      cfg.ToolRateBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// setupMetrics builds an isolated registry so tests never trip duplicate
// registration on the global default.
func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return handler, bookingMetrics
}
