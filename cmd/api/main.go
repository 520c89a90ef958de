package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/vivaclin/agenda-platform/cmd/mainconfig"
	"github.com/vivaclin/agenda-platform/internal/api/router"
	"github.com/vivaclin/agenda-platform/internal/appointments"
	"github.com/vivaclin/agenda-platform/internal/availability"
	"github.com/vivaclin/agenda-platform/internal/calendar"
	"github.com/vivaclin/agenda-platform/internal/clients"
	"github.com/vivaclin/agenda-platform/internal/clinic"
	appconfig "github.com/vivaclin/agenda-platform/internal/config"
	"github.com/vivaclin/agenda-platform/internal/events"
	"github.com/vivaclin/agenda-platform/internal/leads"
	"github.com/vivaclin/agenda-platform/internal/notify"
	"github.com/vivaclin/agenda-platform/internal/observability/metrics"
	"github.com/vivaclin/agenda-platform/internal/procedures"
	"github.com/vivaclin/agenda-platform/internal/professionals"
	"github.com/vivaclin/agenda-platform/internal/returns"
	"github.com/vivaclin/agenda-platform/internal/scheduling"
	"github.com/vivaclin/agenda-platform/internal/unification"
	"github.com/vivaclin/agenda-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting agenda-platform API server", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	schedMetrics := metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)

	// Stores.
	apptStore := appointments.NewStore(pool)
	leadStore := leads.NewStore(pool)
	clientStore := clients.NewStore(pool)
	procedureStore := procedures.NewStore(pool)
	professionalStore := professionals.NewStore(pool)
	notifyStore := notify.NewStore(pool)
	outboxStore := events.NewOutboxStore(pool)
	settingsStore := clinic.NewStore(redisClient)

	// External calendar.
	var calendarAdapter calendar.Adapter = calendar.NoopAdapter{}
	if cfg.GoogleCalendarEnabled {
		adapter, err := calendar.NewGoogleAdapter(ctx, calendar.GoogleConfig{
			CalendarID:          cfg.GoogleCalendarID,
			CredentialsJSONPath: cfg.GoogleCredentialsJSONPath,
		}, logger)
		if err != nil {
			logger.Error("failed to init google calendar, falling back to noop", "error", err)
		} else {
			calendarAdapter = adapter
		}
	}

	// Email channel.
	var emailSender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			emailSender = sender
		}
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config, email disabled", "error", err)
		} else if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); sender != nil {
			emailSender = sender
		}
	}

	notifier := notify.NewService(notifyStore, emailSender, settingsStore, schedMetrics, logger)

	// Availability.
	calculator := availability.NewCalculator(settingsStore, professionalStore, apptStore)
	cachedCalculator := availability.NewCachedCalculator(calculator, redisClient, cfg.AvailabilityCacheTTL, logger)

	// Side-effect delivery.
	syncHandler := events.NewCalendarSyncHandler(calendarAdapter, apptStore, schedMetrics, logger)
	deliverer := events.NewDeliverer(outboxStore, syncHandler, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval)
	go deliverer.Start(ctx)

	// Domain services.
	returnScheduler := returns.NewScheduler(apptStore, settingsStore, cfg.ReturnTimeOfDay, cfg.ReturnChainLimit, schedMetrics, logger)
	unifier := unification.NewService(clientStore, leadStore, apptStore, schedMetrics, logger)
	schedulingService := scheduling.NewService(scheduling.Deps{
		Appointments: apptStore,
		Procedures:   procedureStore,
		Leads:        leadStore,
		Notifier:     notifier,
		Outbox:       outboxStore,
		Inline:       deliverer,
		Returns:      returnScheduler,
		Unifier:      unifier,
		SlotCache:    cachedCalculator,
		Metrics:      schedMetrics,
		Logger:       logger,
	})

	handler := router.New(&router.Config{
		Logger:              logger,
		SchedulingHandler:   scheduling.NewHandler(schedulingService, logger),
		AvailabilityHandler: availability.NewHandler(cachedCalculator, schedMetrics, logger),
		ClinicHandler:       clinic.NewHandler(settingsStore, logger),
		NotifyHandler:       notify.NewHandler(notifyStore, logger),
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
