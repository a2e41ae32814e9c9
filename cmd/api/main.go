package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vidacare-health/vidacare-backend/api"
	"github.com/vidacare-health/vidacare-backend/api/routes"
	"github.com/vidacare-health/vidacare-backend/internal/appointments"
	"github.com/vidacare-health/vidacare-backend/internal/caregivers"
	"github.com/vidacare-health/vidacare-backend/internal/chat"
	"github.com/vidacare-health/vidacare-backend/internal/dashboard"
	"github.com/vidacare-health/vidacare-backend/internal/ledger"
	"github.com/vidacare-health/vidacare-backend/internal/notifications"
	"github.com/vidacare-health/vidacare-backend/internal/payments"
	"github.com/vidacare-health/vidacare-backend/internal/users"
	"github.com/vidacare-health/vidacare-backend/pkg/auth/session"
	"github.com/vidacare-health/vidacare-backend/pkg/config"
	"github.com/vidacare-health/vidacare-backend/pkg/db"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
	"github.com/vidacare-health/vidacare-backend/pkg/metrics"
	"github.com/vidacare-health/vidacare-backend/pkg/migrate"
	"github.com/vidacare-health/vidacare-backend/pkg/outbox"
	"github.com/vidacare-health/vidacare-backend/pkg/redis"
)

const paymentExpiryInterval = time.Minute

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	paymentsRepo := payments.NewRepository(gormDB)

	usersService, err := users.NewService(
		users.NewRepository(gormDB),
		sessionManager,
		redisClient,
		cfg.JWT,
		cfg.Password,
		cfg.AuthRateLimit,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(paymentsRepo, users.NewRepository(gormDB), dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(
		ledger.NewRepository(gormDB),
		paymentsRepo,
		dbClient,
		outboxService,
		ledgerMetrics,
		logg,
		cfg.Ledger.ApplyMaxAttempts,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	caregiversService, err := caregivers.NewService(caregivers.NewRepository(gormDB), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create caregivers service", err)
		os.Exit(1)
	}

	appointmentsService, err := appointments.NewService(
		appointments.NewRepository(gormDB),
		caregiversService,
		paymentsService,
		ledgerService,
		dbClient,
		outboxService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create appointments service", err)
		os.Exit(1)
	}

	chatService, err := chat.NewService(chat.NewRepository(gormDB), appointmentsService, dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create chat service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(gormDB), dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	dashboardService, err := dashboard.NewService(gormDB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dashboard service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		SessionManager: sessionManager,
		Metrics:        registry,
		Users:          usersService,
		Payments:       paymentsService,
		Ledger:         ledgerService,
		Caregivers:     caregiversService,
		Appointments:   appointmentsService,
		Chat:           chatService,
		Notifications:  notificationsService,
		Dashboard:      dashboardService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go expirePendingPayments(ctx, logg, paymentsService)

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := api.NewServer(addr, router)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "api server shutdown failed", err)
		}
		logg.Info(runCtx, "api server shut down gracefully")
	}
}

// expirePendingPayments sweeps overdue pending payments until the context
// is canceled.
func expirePendingPayments(ctx context.Context, logg *logger.Logger, svc payments.Service) {
	ticker := time.NewTicker(paymentExpiryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := svc.ExpirePending(ctx, time.Now().UTC(), 100)
			if err != nil {
				logg.Error(ctx, "payment expiry sweep failed", err)
				continue
			}
			if count > 0 {
				logg.Info(logg.WithField(ctx, "expired", count), "expired pending payments")
			}
		}
	}
}
