package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-engine/internal/api/http"
	"github.com/spec-kit/ticket-engine/internal/api/http/handlers"
	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/clock"
	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/mail"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/persistence"
	"github.com/spec-kit/ticket-engine/internal/refdata"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/routing"
	"github.com/spec-kit/ticket-engine/internal/service"
	"github.com/spec-kit/ticket-engine/internal/sla"
	"github.com/spec-kit/ticket-engine/internal/storage"
	"github.com/spec-kit/ticket-engine/internal/worker"
)

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
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	clk := clock.System()
	metrics := observability.NewMetrics()

	policies, rules, err := loadReferenceData(ctx, cfg, pg.Pool, rdb, logger)
	if err != nil {
		logger.Fatal("failed to load reference data", zap.Error(err))
	}

	ticketRepo := repository.NewTicketRepository(pg.Pool)
	messageRepo := repository.NewTicketMessageRepository(pg.Pool)
	watcherRepo := repository.NewTicketWatcherRepository(pg.Pool)
	eventRepo := repository.NewTicketEventRepository(pg.Pool)
	viewRepo := repository.NewSavedViewRepository(pg.Pool)

	dispatcher := events.NewDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger))
	sink := events.MultiSink{
		dispatcher,
		events.NewRedisSink(rdb.Client, cfg.Redis.EventsChannel, logger),
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:        ticketRepo,
		MessageRepo:       messageRepo,
		WatcherRepo:       watcherRepo,
		EventRepo:         eventRepo,
		SLA:               sla.NewCalculator(policies),
		Router:            routing.NewEngine(rules),
		Sink:              sink,
		Clock:             clk,
		Logger:            logger,
		Metrics:           metrics,
		MessageIDDomain:   cfg.Mail.MessageIDDomain,
		OptimisticLocking: cfg.Tickets.OptimisticLocking,
	})

	messageDeps := service.MessageDependencies{
		TicketRepo:      ticketRepo,
		MessageRepo:     messageRepo,
		WatcherRepo:     watcherRepo,
		Sender:          mail.NewSender(cfg.Mail, logger),
		Clock:           clk,
		Logger:          logger,
		Metrics:         metrics,
		MailFrom:        cfg.Mail.From,
		MessageIDDomain: cfg.Mail.MessageIDDomain,
		SendTimeout:     cfg.Mail.SendTimeout(),
	}
	attachments, err := storage.NewS3(ctx, cfg.Storage, logger)
	switch {
	case err == nil:
		messageDeps.Attachments = attachments
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Info("attachment storage disabled")
	default:
		logger.Warn("attachment storage unavailable", zap.Error(err))
	}
	messageService := service.NewMessageService(messageDeps)
	watcherService := service.NewWatcherService(ticketRepo, watcherRepo, clk, logger)
	viewService := service.NewViewService(viewRepo, ticketRepo, clk, logger)

	relay := worker.NewOutboxRelay(eventRepo, sink, logger, worker.RelayOptions{
		Interval:  cfg.Events.RelayInterval(),
		BatchSize: cfg.Events.RelayBatchSize,
		Clock:     clk,
		Metrics:   metrics,
	})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(ctx)
	}()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    rdb,
		}, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService, clk),
		Messages:       handlers.NewMessagesHandler(messageService, ticketService, clk),
		Watchers:       handlers.NewWatchersHandler(watcherService),
		Views:          handlers.NewViewsHandler(viewService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	wg.Wait()
}

// loadReferenceData picks the SLA policy source and routing rules: the YAML
// file when REFDATA_FILE is set, Postgres otherwise. Postgres policies are
// cached in Redis.
func loadReferenceData(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, rdb *persistence.Redis, logger *zap.Logger) (sla.PolicySource, []domain.RoutingRule, error) {
	if cfg.RefData.File != "" {
		data, err := refdata.Load(cfg.RefData.File)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("reference data from file",
			zap.String("file", cfg.RefData.File),
			zap.Int("sla_policies", len(data.SLAPolicies)),
			zap.Int("routing_rules", len(data.RoutingRules)))
		return sla.NewStaticSource(data.SLAPolicies), data.RoutingRules, nil
	}

	rules, err := repository.NewRoutingRuleRepository(pool).List(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(rules) == 0 {
		logger.Info("no routing rules stored; using defaults")
	}
	source := sla.NewCachedSource(repository.NewSLAPolicyRepository(pool), rdb.Client, cfg.Redis.SLACacheTTL(), logger)
	return source, rules, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
