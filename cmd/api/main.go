package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/repair-case-service/internal/api/http"
	"github.com/spec-kit/repair-case-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-case-service/internal/auth"
	"github.com/spec-kit/repair-case-service/internal/config"
	"github.com/spec-kit/repair-case-service/internal/events"
	"github.com/spec-kit/repair-case-service/internal/observability"
	"github.com/spec-kit/repair-case-service/internal/persistence"
	"github.com/spec-kit/repair-case-service/internal/repository"
	"github.com/spec-kit/repair-case-service/internal/service"
	"github.com/spec-kit/repair-case-service/internal/worker"
	"github.com/spec-kit/repair-case-service/internal/workflow"
)

type repositories struct {
	cases       repository.CaseRepository
	staff       repository.StaffRepository
	attachments repository.AttachmentRepository
	snapshots   repository.CostSnapshotRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(ctx, cfg, pg, redis, logger)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartCaseEventWorker(service.NewCaseEventSubscriber(dispatcher, logger, metrics))

	authService := service.NewAuthService(*cfg, repos.staff)
	staffService := service.NewStaffService(*cfg, repos.staff, logger)
	caseService := service.NewCaseService(service.CaseDependencies{
		CaseRepo:       repos.cases,
		StaffRepo:      repos.staff,
		AttachmentRepo: repos.attachments,
		SnapshotRepo:   repos.snapshots,
		Dispatcher:     dispatcher,
		Engine:         workflow.NewEngine(),
		Logger:         logger,
	})

	if cfg.Workflow.BootstrapLeaderEmail != "" {
		if err := staffService.EnsureLeader(ctx, cfg.Workflow.BootstrapLeaderEmail, cfg.Workflow.BootstrapLeaderPassword); err != nil {
			logger.Fatal("failed to bootstrap leader", zap.Error(err))
		}
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.staff)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	dependencies := map[string]handlers.Pinger{"redis": redis, "postgres": nil}
	if pg.PoolHandle() != nil {
		dependencies["postgres"] = pg
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies, metrics),
		Cases:          handlers.NewCaseHandler(caseService),
		Staff:          handlers.NewStaffHandler(authService, staffService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// buildRepositories picks postgres-backed storage when a pool is configured
// and in-memory storage otherwise. Cost snapshots live in redis when it
// answers at startup.
func buildRepositories(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, redis *persistence.Redis, logger *zap.Logger) repositories {
	var repos repositories
	if pool := pg.PoolHandle(); pool != nil {
		repos.cases = repository.NewCaseRepository(pool)
		repos.staff = repository.NewStaffRepository(pool)
		repos.attachments = repository.NewAttachmentRepository(pool)
	} else {
		logger.Warn("running with in-memory storage")
		repos.cases = repository.NewMemoryCaseRepository()
		repos.staff = repository.NewMemoryStaffRepository()
		repos.attachments = repository.NewMemoryAttachmentRepository()
	}

	if err := redis.Ping(ctx); err != nil {
		logger.Warn("redis unavailable; cost snapshots kept in memory", zap.Error(err))
		repos.snapshots = repository.NewMemoryCostSnapshotRepository()
	} else {
		repos.snapshots = repository.NewRedisCostSnapshotRepository(redis.Client, cfg.Workflow.SnapshotTTL())
	}
	return repos
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
