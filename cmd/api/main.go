package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/payroll-sync/internal/api/http"
	"github.com/spec-kit/payroll-sync/internal/api/http/handlers"
	"github.com/spec-kit/payroll-sync/internal/auth"
	"github.com/spec-kit/payroll-sync/internal/config"
	"github.com/spec-kit/payroll-sync/internal/events"
	"github.com/spec-kit/payroll-sync/internal/observability"
	"github.com/spec-kit/payroll-sync/internal/persistence"
	"github.com/spec-kit/payroll-sync/internal/repository"
	"github.com/spec-kit/payroll-sync/internal/repository/memory"
	"github.com/spec-kit/payroll-sync/internal/reservation"
	"github.com/spec-kit/payroll-sync/internal/service"
	"github.com/spec-kit/payroll-sync/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.PoolHandle() != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	readiness := map[string]handlers.Pinger{}

	var (
		employeeRepo  repository.EmployeeRepository
		payrollRepo   repository.PayrollRepository
		dependentRepo repository.DependentRepository
		approvalRepo  repository.ApprovalRepository
		syncRunRepo   repository.SyncRunRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		tx := repository.NewTxRunner(pool, repository.RetryPolicy{
			MaxRetries: cfg.Sync.TxMaxRetries,
			BaseDelay:  cfg.Sync.TxRetryBase(),
		})
		employeeRepo = repository.NewEmployeeRepository(pool, tx)
		payrollRepo = repository.NewPayrollRepository(pool, tx)
		dependentRepo = repository.NewDependentRepository(pool, tx)
		approvalRepo = repository.NewApprovalRepository(pool)
		syncRunRepo = repository.NewSyncRunRepository(pool)
		readiness["postgres"] = pg
	} else {
		logger.Warn("running with the in-memory store; data is lost on restart")
		store := memory.NewStore()
		employeeRepo = store.Employees()
		payrollRepo = store.Payrolls()
		dependentRepo = store.Dependents()
		approvalRepo = store.Approvals()
		syncRunRepo = store.SyncRuns()
	}

	var reservations reservation.Lookup = reservation.NewRepositoryLookup(approvalRepo)
	if redis.Enabled() {
		reservations = reservation.NewCachedLookup(reservations, redis.Client, cfg.Sync.ReservationCacheKey, cfg.Sync.ReservationCacheTTL(), logger)
		readiness["redis"] = redis
	}

	deps := service.Dependencies{
		EmployeeRepo:  employeeRepo,
		PayrollRepo:   payrollRepo,
		DependentRepo: dependentRepo,
		SyncRunRepo:   syncRunRepo,
		Reservations:  reservations,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
	}
	syncService := service.NewSyncService(cfg.Sync, deps)
	queryService := service.NewQueryService(deps)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes), cfg.Auth.APIKeyHash)
	if authMiddleware.Disabled() {
		logger.Warn("no AUTH_API_KEY_HASH or AUTH_JWT_SECRET set; ingestion API is unauthenticated")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    32 * 1024 * 1024,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.App.CORSAllowedOrigins)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness, metrics),
		Sync:           handlers.NewSyncHandler(syncService),
		Employees:      handlers.NewEmployeesHandler(queryService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.ShutdownWithTimeout(10 * time.Second)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
