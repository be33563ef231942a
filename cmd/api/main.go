package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/field-service/internal/api/http"
	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/internal/worker"
)

// stores groups the repositories for the selected driver.
type stores struct {
	users    repository.UserRepository
	requests repository.ServiceRequestRepository
	history  repository.HistoryRepository
	postgres *persistence.Postgres
}

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if *migrateOnly {
		if cfg.Postgres.DSN == "" {
			logger.Fatal("--migrate-only requires POSTGRES_DSN")
		}
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.postgres.Close()

	redisClient := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redisClient.Close()

	metrics := observability.NewMetrics()

	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to init password hasher", zap.Error(err))
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL())
	lockout := auth.NewLoginLockout(redisClient.ClientHandle(), cfg.Auth.LockoutMaxAttempts, cfg.Auth.LockoutWindow)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartActivityWorker(service.NewActivityService(dispatcher, st.history, metrics, logger))

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo: st.users,
		Tokens:   tokens,
		Hasher:   hasher,
		Lockout:  lockout,
		Metrics:  metrics,
		Logger:   logger,
	})
	requestService := service.NewServiceRequestService(service.ServiceRequestDependencies{
		ServiceRequestRepo: st.requests,
		HistoryRepo:        st.history,
		Dispatcher:         dispatcher,
		Metrics:            metrics,
		Logger:             logger,
	})

	gaugeJob, err := worker.NewStatusGaugeJob(cfg.Jobs.StatusGaugeSpec, requestService, metrics, logger)
	if err != nil {
		logger.Fatal("failed to schedule status gauge job", zap.Error(err))
	}
	gaugeJob.Start()
	defer gaugeJob.Stop()

	dependencies := map[string]handlers.Pinger{}
	if st.postgres != nil {
		dependencies["postgres"] = st.postgres
	}
	if redisClient != nil {
		dependencies["redis"] = redisClient
	}

	app := httptransport.NewApp(httptransport.AppConfig{
		Name:      cfg.App.Name,
		BodyLimit: cfg.App.BodyLimit(),
		Logger:    logger,
		Metrics:   metrics,
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:           logger,
		Metrics:          metrics,
		Timeout:          cfg.App.RequestTimeout(),
		CORSAllowOrigins: cfg.App.CORSAllowOrigins,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:             handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Auth:               handlers.NewAuthHandler(authService),
		ServiceRequests:    handlers.NewServiceRequestsHandler(requestService),
		AuthMiddleware:     auth.NewAuthMiddleware(tokens),
		Metrics:            metrics,
		RateLimitPerMinute: cfg.Auth.RateLimitPerMinute,
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("store", cfg.Store.Driver),
			zap.String("version", cfg.App.Version))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// openStores connects the configured backend. The postgres driver applies
// migrations first when enabled.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{users: mem.Users(), requests: mem.ServiceRequests(), history: mem.History()}, nil
	case config.StoreDriverPostgres:
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
				return nil, err
			}
		}
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:    repository.NewUserRepository(pg.Pool),
			requests: repository.NewServiceRequestRepository(pg.Pool),
			history:  repository.NewHistoryRepository(pg.Pool),
			postgres: pg,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
