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

	httptransport "github.com/spec-kit/helpdesk-engine/internal/api/http"
	"github.com/spec-kit/helpdesk-engine/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-engine/internal/auth"
	"github.com/spec-kit/helpdesk-engine/internal/config"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/observability"
	"github.com/spec-kit/helpdesk-engine/internal/persistence"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	"github.com/spec-kit/helpdesk-engine/internal/service"
	"github.com/spec-kit/helpdesk-engine/internal/worker"
)

type repositories struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	rules   repository.WorkflowRuleRepository
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(cfg, pg, logger)
	repos.rules = repository.NewCachedRuleRepository(repos.rules, redis.ClientHandle(), cfg.Workflow.RuleCacheTTL, logger)
	// Rules may have changed while the service was down.
	if cached, ok := repos.rules.(*repository.CachedRuleRepository); ok {
		if err := cached.Invalidate(ctx); err != nil {
			logger.Warn("failed to invalidate rule cache", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	rt := service.Runtime{
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
		StoreTimeout: cfg.Store.OperationTimeout,
	}

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		UserRepo:   repos.users,
		TicketRepo: repos.tickets,
		Policy:     service.NewSelectionPolicy(cfg.Workflow.AssignmentPolicy, repos.tickets),
		Runtime:    rt,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repos.tickets,
		UserRepo:   repos.users,
		Assignment: assignmentService,
		Runtime:    rt,
	})
	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		TicketRepo:  repos.tickets,
		RuleRepo:    repos.rules,
		UserRepo:    repos.users,
		Assignment:  assignmentService,
		MaxCapacity: cfg.Workflow.MaxCapacity,
		Runtime:     rt,
	})

	var publisher service.Publisher
	if redis.ClientHandle() != nil {
		publisher = redis
	}
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, publisher, cfg.Redis.NotificationChannel, logger))

	var workflowWorker *worker.WorkflowWorker
	if cfg.Workflow.AutoEvaluateOnCreate {
		workflowWorker = worker.NewWorkflowWorker(workflowService, logger, 256)
		workflowWorker.Register(dispatcher)
		workflowWorker.Start(ctx)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	if cfg.Workflow.SeedDemoData && pg.PoolHandle() == nil {
		logDemoTokens(tokens, logger)
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Workflow:       handlers.NewWorkflowHandler(workflowService, assignmentService),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.users),
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	if workflowWorker != nil {
		workflowWorker.Wait()
	}
}

// buildRepositories picks Postgres when a pool is available and falls back
// to in-memory stores otherwise.
func buildRepositories(cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) repositories {
	if pool := pg.PoolHandle(); pool != nil {
		return repositories{
			tickets: repository.NewTicketRepository(pool),
			users:   repository.NewUserRepository(pool),
			rules:   repository.NewWorkflowRuleRepository(pool),
		}
	}

	logger.Warn("using in-memory repositories; data is lost on restart")
	users := repository.NewMemoryUserRepository()
	rules := repository.NewMemoryRuleRepository()
	if cfg.Workflow.SeedDemoData {
		users = repository.NewMemoryUserRepository(repository.DemoUsers()...)
		rules = repository.NewMemoryRuleRepository(repository.DemoRules(time.Now())...)
	}
	return repositories{
		tickets: repository.NewMemoryTicketRepository(),
		users:   users,
		rules:   rules,
	}
}

func logDemoTokens(tokens *auth.TokenManager, logger *zap.Logger) {
	for _, user := range repository.DemoUsers() {
		token, _, err := tokens.GenerateToken(user)
		if err != nil {
			logger.Warn("demo token", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		logger.Info("demo token",
			zap.String("user_id", user.ID),
			zap.String("role", string(user.Role)),
			zap.String("token", token))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
