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

	httptransport "github.com/signaldesk/triage-service/internal/api/http"
	"github.com/signaldesk/triage-service/internal/api/http/handlers"
	"github.com/signaldesk/triage-service/internal/auth"
	"github.com/signaldesk/triage-service/internal/classifier"
	"github.com/signaldesk/triage-service/internal/config"
	"github.com/signaldesk/triage-service/internal/notify"
	"github.com/signaldesk/triage-service/internal/observability"
	"github.com/signaldesk/triage-service/internal/persistence"
	"github.com/signaldesk/triage-service/internal/ports"
	"github.com/signaldesk/triage-service/internal/repository"
	"github.com/signaldesk/triage-service/internal/service"
	"github.com/signaldesk/triage-service/internal/store"
	"github.com/signaldesk/triage-service/internal/tracker"
	"github.com/signaldesk/triage-service/internal/triage"
	"github.com/signaldesk/triage-service/internal/worker"
	"github.com/signaldesk/triage-service/pkg/resilience"
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

	metrics := observability.NewMetrics()

	var redisBackend *persistence.Redis
	var ticketStore store.TicketStore
	var ledger store.DeliveryLedger
	if cfg.Redis.Addr != "" {
		redisBackend = persistence.NewRedis(cfg.Redis, logger)
		defer redisBackend.Close()
		ticketStore = store.NewRedisTicketStore(redisBackend.Client)
		ledger = store.NewRedisDeliveryLedger(redisBackend.Client)
	} else {
		logger.Info("REDIS_ADDR not provided; keeping ticket state in memory")
		ticketStore = store.NewMemoryTicketStore()
		ledger = store.NewMemoryDeliveryLedger()
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var archive repository.ArchiveRepository
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		archive = repository.NewArchiveRepository(pool)
	}

	var ticketClassifier ports.Classifier
	if cfg.Classifier.Endpoint != "" {
		ticketClassifier = classifier.NewHTTPClassifier(cfg.Classifier, nil)
	} else {
		logger.Info("CLASSIFIER_ENDPOINT not provided; using keyword stub classifier")
		ticketClassifier = ports.NewStubClassifier()
	}

	var notifier ports.Notifier
	if cfg.Slack.WebhookURL != "" {
		notifier = notify.NewSlackNotifier(cfg.Slack, nil, ledger, logger)
	} else {
		notifier = notify.NewLogNotifier(ledger, logger)
	}

	var issueTracker ports.IssueTracker
	if cfg.Jira.BaseURL != "" {
		issueTracker = tracker.NewJiraTracker(cfg.Jira, nil, ledger, logger)
	} else {
		issueTracker = tracker.NewLogTracker(ledger, logger)
	}

	pipeline := triage.NewPipeline(
		triage.PipelineDependencies{
			Classifier: ticketClassifier,
			Notifier:   notifier,
			Tracker:    issueTracker,
			Store:      ticketStore,
			Policy: triage.NewPolicyEngine(triage.PolicyConfig{
				ConfidenceThreshold: cfg.Triage.ConfidenceThreshold,
				HighRiskKeywords:    cfg.Triage.HighRiskKeywords,
			}),
			Router:  triage.NewRouter(nil),
			Metrics: metrics,
			Logger:  logger,
		},
		triage.PipelineTimeouts{
			Classify: cfg.Triage.ClassifyTimeout(),
			Delivery: cfg.Triage.DeliveryTimeout(),
		},
		resilience.RetryConfig{MaxAttempts: cfg.Triage.DeliveryRetryAttempts},
	)

	pool := worker.NewPool(cfg.Worker.PoolSize, cfg.Worker.QueueCapacity, logger)
	pool.Start(cfg.Worker.PoolSize)

	triageService := service.NewTriageService(service.TriageDependencies{
		Store:    ticketStore,
		Pipeline: pipeline,
		Pool:     pool,
		Archive:  archive,
		Metrics:  metrics,
		Logger:   logger,
	})

	var tokenManager *auth.TokenManager
	if cfg.Auth.JWTSecret != "" {
		tokenManager = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisBackend, metrics)
	triageHandler := handlers.NewTriageHandler(triageService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       healthHandler,
		Triage:       triageHandler,
		TokenManager: tokenManager,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := pool.Stop(stopCtx); err != nil {
		logger.Warn("worker pool did not drain", zap.Error(err))
	}
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
