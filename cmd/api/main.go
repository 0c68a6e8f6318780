package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/api/dispatch"
	httptransport "github.com/spec-kit/field-service/internal/api/http"
	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/audit"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/internal/subscribers"
	"github.com/spec-kit/field-service/internal/worker"
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
		if err := persistence.RunMigrations(ctx, pg, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewDispatcher(logger, metrics)

	var extractor service.Extractor = service.NoopExtractor{}
	if cfg.Extraction.URL != "" {
		extractor = service.NewHTTPExtractor(cfg.Extraction.URL, cfg.Extraction.APIKey, cfg.Extraction.Timeout(), logger)
	} else {
		logger.Info("EXTRACTION_URL not provided; note extraction disabled")
	}

	deps := service.Dependencies{
		Events:    dispatcher,
		Logger:    logger,
		Now:       time.Now,
		Extractor: extractor,
	}
	auditRepo := wireStorage(&deps, pg, redis, logger)
	deps.Audit = audit.NewTrail(auditRepo, deps.Admin)

	services := dispatch.Services{
		Contacts:       service.NewContactService(deps),
		Addresses:      service.NewAddressService(deps),
		Catalog:        service.NewCatalogService(deps),
		Tickets:        service.NewTicketService(deps),
		LineItems:      service.NewLineItemService(deps),
		Invoices:       service.NewInvoiceService(deps),
		Notes:          service.NewNoteService(deps),
		Attributes:     service.NewAttributeService(deps),
		Messages:       service.NewMessageService(deps),
		Leads:          service.NewLeadService(deps),
		Authorizations: service.NewAuthorizationService(deps),
		Audit:          deps.Audit,
	}

	subscribers.Register(dispatcher, subscribers.Dependencies{
		Attributes:     services.Attributes,
		Authorizations: services.Authorizations,
		Messages:       services.Messages,
		Extractor:      extractor,
		Logger:         logger,
	})

	authService := service.NewAuthService(cfg.Auth, deps)
	bootstrapOwner(ctx, cfg.Auth, authService, logger)

	delivery := worker.NewDeliveryWorker(services.Messages, worker.NewLogSender(cfg.Messaging.EmailFrom, logger), logger, metrics, worker.DeliveryOptions{
		Interval: cfg.Messaging.PollInterval(),
		Batch:    cfg.Messaging.BatchSize,
	})
	go delivery.Run(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Data:           handlers.NewDataHandler(dispatch.NewReader(services)),
		Actions:        handlers.NewActionsHandler(dispatch.NewWriter(services)),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// bootstrapOwner seeds the first owner account when all bootstrap settings are present.
func bootstrapOwner(ctx context.Context, cfg config.AuthConfig, authService *service.AuthService, logger *zap.Logger) {
	if cfg.BootstrapTenantID == "" || cfg.BootstrapEmail == "" || cfg.BootstrapPassword == "" {
		return
	}
	tenantID, err := uuid.Parse(cfg.BootstrapTenantID)
	if err != nil {
		logger.Fatal("invalid AUTH_BOOTSTRAP_TENANT_ID", zap.Error(err))
	}
	account, err := authService.Bootstrap(ctx, tenantID, cfg.BootstrapEmail, cfg.BootstrapPassword)
	if err != nil {
		logger.Fatal("failed to bootstrap owner", zap.Error(err))
	}
	logger.Info("owner account ready", zap.String("tenant_id", account.TenantID.String()), zap.String("email", account.Email))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
