package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/automation"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/internal/worker"
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	windowRepo := repository.NewSlaWindowRepository(pool)
	policyRepo := repository.NewSlaPolicyRepository(pool)
	ruleRepo := repository.NewCachedRuleRepository(
		repository.NewRuleRepository(pool),
		redis.Client,
		cfg.Automation.RuleCacheTTL(),
		logger,
	)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	clock := sla.SystemClock{}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:  userRepo,
		StaffRepo: staffRepo,
	})
	authenticator := auth.NewAuthenticator(authService.Tokens(), userRepo, staffRepo)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    ticketRepo,
		SlaWindowRepo: windowRepo,
		MessageRepo:   messageRepo,
		HistoryRepo:   historyRepo,
		TeamRepo:      teamRepo,
		CategoryRepo:  categoryRepo,
		StaffRepo:     staffRepo,
		RuleRepo:      ruleRepo,
		Lifecycle:     lifecycle.NewLifecycle(policyRepo, logger),
		Locker:        lifecycle.NewTicketLocker(),
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Clock:         clock,
		RiskThreshold: cfg.Sla.RiskThreshold(),
		Logger:        logger,
	})
	ticketService.BindAutomation(automation.NewExecutor(
		ticketService,
		notificationService,
		cfg.Automation.MaxDepth,
		logger,
	))

	staffService := service.NewStaffService(*cfg, service.OrgDependencies{
		TeamRepo:     teamRepo,
		CategoryRepo: categoryRepo,
		StaffRepo:    staffRepo,
	})
	automationService := service.NewAutomationService(ruleRepo, policyRepo)

	sweeper := worker.NewSlaSweeper(worker.SweeperDependencies{
		SlaWindowRepo: windowRepo,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Clock:         clock,
		Interval:      cfg.Sla.SweepInterval(),
		RiskThreshold: cfg.Sla.RiskThreshold(),
		BatchSize:     cfg.Sla.SweepBatchSize,
		Logger:        logger,
	})
	go sweeper.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Users:        handlers.NewUsersHandler(authService),
		Staff:        handlers.NewStaffHandler(authService, staffService),
		Tickets:      handlers.NewTicketsHandler(ticketService),
		StaffTickets: handlers.NewStaffTicketsHandler(ticketService),
		Automation:   handlers.NewAutomationHandler(automationService),
		Auth:         authenticator,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
