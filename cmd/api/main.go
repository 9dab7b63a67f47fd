package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ventaflow/scheduling/internal/adapters/cache"
	"github.com/ventaflow/scheduling/internal/adapters/database"
	"github.com/ventaflow/scheduling/internal/adapters/events"
	"github.com/ventaflow/scheduling/internal/adapters/providers/calendar"
	"github.com/ventaflow/scheduling/internal/api/handlers"
	"github.com/ventaflow/scheduling/internal/api/routes"
	"github.com/ventaflow/scheduling/internal/application/services"
	domainproviders "github.com/ventaflow/scheduling/internal/domain/providers"
	"github.com/ventaflow/scheduling/internal/infrastructure/clients/postgres"
	"github.com/ventaflow/scheduling/internal/infrastructure/clients/redis"
	"github.com/ventaflow/scheduling/internal/infrastructure/observability"
	"github.com/ventaflow/scheduling/pkg/config"
	"github.com/ventaflow/scheduling/pkg/secrets"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)
	logger := *observability.GetLogger()

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	logger.Info().Msg("PostgreSQL client initialized")

	// Initialize Redis client. The engine works without it: caching,
	// events and notifications degrade to no-ops.
	var cacheProvider domainproviders.CacheProvider
	var eventBus domainproviders.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize Redis client, continuing without cache and events")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		logger.Info().Msg("Redis client initialized")
	}

	// Repositories
	tenantRepo := database.NewTenantAdapter(pgClient)
	resourceRepo := database.NewResourceAdapter(pgClient)
	commitmentRepo := database.NewCommitmentAdapter(pgClient)
	blockRepo := database.NewExternalBlockAdapter(pgClient)
	cursorRepo := database.NewSyncCursorAdapter(pgClient)

	// Credential store: Vault in production, static otherwise
	var credentialStore domainproviders.CredentialStore
	vaultCfg := secrets.LoadVaultConfigFromEnv()
	if vaultCfg.Enabled {
		vaultStore, err := secrets.NewVaultStore(vaultCfg)
		if err != nil {
			log.Fatalf("Failed to initialize Vault credential store: %v", err)
		}
		credentialStore = vaultStore
		logger.Info().Msg("Vault credential store initialized")
	} else {
		credentialStore = secrets.NewStaticStore(nil)
		logger.Warn().Msg("Vault disabled, using static credential store")
	}

	providerFactory := calendar.NewFactory(credentialStore, cfg.Calendar.CallTimeout)

	// Services
	locker := services.NewResourceLocker()

	syncService := services.NewSyncService(
		tenantRepo, resourceRepo, commitmentRepo, blockRepo, cursorRepo,
		providerFactory, eventBus, cacheProvider, cfg.Sync, metrics, logger,
	)

	availabilityService := services.NewAvailabilityService(
		tenantRepo, resourceRepo, commitmentRepo, blockRepo,
		syncService, cacheProvider, logger,
	)

	var notifier services.Notifier
	notificationService, err := services.NewNotificationService(cfg.WhatsApp, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize notifications, continuing without them")
	} else {
		notifier = notificationService
	}

	bookingService := services.NewBookingService(
		tenantRepo, resourceRepo, commitmentRepo, availabilityService,
		providerFactory, locker, eventBus, cacheProvider, notifier, metrics, logger,
	)

	linkService := services.NewCalendarLinkService(
		tenantRepo, resourceRepo, blockRepo, cursorRepo,
		providerFactory, syncService, logger,
	)

	// Start the reconciliation scheduler
	syncService.Start(ctx)

	// Handlers
	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService)
	bookingHandler := handlers.NewBookingHandler(bookingService)
	calendarHandler := handlers.NewCalendarHandler(linkService)

	var eventsHandler *handlers.EventsHandler
	if eventBus != nil {
		eventsHandler = handlers.NewEventsHandler(eventBus, logger)
	}

	// Set up router
	router := routes.NewRouter(
		availabilityHandler,
		bookingHandler,
		calendarHandler,
		eventsHandler,
		metrics,
		logger,
	)
	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	// Stop the sync scheduler before the server drains
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event bus")
		}
	}

	logger.Info().Msg("server stopped")
}
