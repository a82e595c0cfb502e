package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ecogen/ecogen/backend/internal/adapters/auth"
	"github.com/ecogen/ecogen/backend/internal/adapters/cache"
	"github.com/ecogen/ecogen/backend/internal/adapters/database"
	"github.com/ecogen/ecogen/backend/internal/adapters/events"
	"github.com/ecogen/ecogen/backend/internal/api/handlers"
	"github.com/ecogen/ecogen/backend/internal/api/middleware"
	"github.com/ecogen/ecogen/backend/internal/api/routes"
	"github.com/ecogen/ecogen/backend/internal/application/services"
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/clients/postgres"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/clients/redis"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/observability"
	"github.com/ecogen/ecogen/backend/pkg/config"
)

const memoryCacheSize = 4096

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Log.Env, cfg.Log.Level)
	logger := log.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
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
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Cache and event bus: Redis when configured, in process otherwise
	var (
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, using in-memory cache and event bus")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient, logger)
			logger.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
		}
	}
	if cacheProvider == nil {
		memoryCache, err := cache.NewMemoryAdapter(memoryCacheSize)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create memory cache")
		}
		cacheProvider = memoryCache
	}
	if eventBus == nil {
		eventBus = events.NewMemoryEventBus(logger)
	}

	// Data store. Missing configuration or an unreachable store runs the API
	// degraded: every store call fails with a STORE error.
	storeErr := cfg.Validate()
	repos := database.NewUnavailableRepositories()
	if storeErr != nil {
		logger.Error().Err(storeErr).Msg("data store not configured, running degraded")
	} else {
		pgClient, err := postgres.NewClient(ctx, &cfg.Store)
		if err != nil {
			storeErr = err
			logger.Error().Err(err).Msg("data store unreachable, running degraded")
		} else {
			defer pgClient.Close()
			if err := pgClient.Migrate(ctx); err != nil {
				logger.Fatal().Err(err).Msg("failed to apply migrations")
			}
			repos = database.NewRepositories(pgClient, cacheProvider)
		}
	}

	authProvider := auth.NewStoreAuthProvider(
		repos.Credentials,
		repos.Sessions,
		eventBus,
		auth.NewTokenManager(cfg.Store.Key),
		cfg.Auth.SessionTTL,
		logger,
	)
	if storeErr == nil {
		go authProvider.RunSweeper(ctx, cfg.Auth.SweepInterval)
	}

	facilityService := services.NewFacilityService(repos.Facilities, cfg.Query.DefaultPageSize, cfg.Query.MaxPageSize)
	registry := services.NewWorkspaceRegistry(authProvider, func() *services.Workspace {
		return services.NewWorkspace(authProvider, repos.Users, facilityService, logger, metrics)
	}, logger)
	defer registry.Close()

	router := routes.NewRouter(routes.Options{
		AuthHandler:      handlers.NewAuthHandler(registry, logger),
		DashboardHandler: handlers.NewDashboardHandler(),
		FacilityHandler:  handlers.NewFacilityHandler(facilityService),
		SSEHandler:       handlers.NewSSEHandler(eventBus, 0, logger),
		Sessions:         registry,
		CacheMiddleware:  middleware.NewCacheMiddleware(cacheProvider, nil, logger),
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		StoreErr:         storeErr,
		Metrics:          metrics,
		Logger:           logger,
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// Streams on /api/dashboard/stream stay open, so no write timeout
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	// Open streams never finish on their own; end them when shutdown starts
	server.RegisterOnShutdown(cancel)

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}
	if err := eventBus.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing event bus")
	}

	logger.Info().Msg("server stopped")
}
