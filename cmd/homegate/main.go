package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/homegate/pkg/api"
	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/config"
	"github.com/platinummonkey/homegate/pkg/directory"
	"github.com/platinummonkey/homegate/pkg/headerauth"
	"github.com/platinummonkey/homegate/pkg/identity"
	"github.com/platinummonkey/homegate/pkg/middleware"
	"github.com/platinummonkey/homegate/pkg/observability"
	"github.com/platinummonkey/homegate/pkg/sso"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := setupLogger(cfg.Observability.LogLevel)
	logger.WithField("version", version).Info("Starting homegate")
	for k, v := range cfg.Redacted() {
		logger.WithField(k, v).Debug("configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("homegate exited: %v", err)
	}
	logger.Info("homegate stopped")
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	appLogger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)

	otel, err := observability.InitOTel(ctx, cfg.Observability.OTel(), appLogger)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Infof("Connected to %s user directory", cfg.Database.Driver)

	users := directory.NewSQLDirectory(db)
	if err := users.Migrate(ctx); err != nil {
		return err
	}
	keys := auth.NewSQLAPIKeyStore(db)
	if err := keys.Migrate(ctx); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		logger.Info("Using redis for oauth state and rate limiting")
	}

	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	metrics := observability.NewMetrics(registry)

	providers, err := sso.BuildRegistry(ctx, cfg.Providers, sso.ClientOptions{
		HTTPClient: sso.NewHTTPClient(cfg.Auth.ProviderTimeout),
		Retry: sso.RetryPolicy{
			MaxTries:        uint(cfg.Auth.ProviderRetries),
			InitialInterval: sso.DefaultRetryPolicy().InitialInterval,
			MaxInterval:     sso.DefaultRetryPolicy().MaxInterval,
		},
		Metrics: metrics,
	})
	if err != nil {
		return err
	}
	logger.Infof("OAuth providers: %v", providers.List())

	tokens, err := auth.NewTokenService([]byte(cfg.Auth.SecretKey), cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	allowlist, err := headerauth.NewAllowlist(cfg.HeaderAuth.TrustedProxies)
	if err != nil {
		return err
	}
	headerProviders, err := headerauth.NewProviders(cfg.HeaderAuth.EnabledSchemes(), allowlist)
	if err != nil {
		return err
	}
	if len(headerProviders) > 0 {
		logger.Infof("Header auth schemes %v trusted from %d proxies", cfg.HeaderAuth.EnabledSchemes(), allowlist.Len())
	}

	policy := directory.NewRolePolicy(cfg.Auth.AdminEmails)
	resolver, err := identity.NewResolver(identity.Config{
		Tokens:          tokens,
		Directory:       users,
		RolePolicy:      policy,
		HeaderProviders: headerProviders,
		APIKeys:         keys,
		TokenTTL:        cfg.Auth.TokenTTL,
		Metrics:         metrics,
	})
	if err != nil {
		return err
	}

	var states sso.StateStore
	var limiter middleware.Limiter
	limitCfg := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Server.LoginRateLimit,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Server.LoginRateLimit / 3,
	}
	if redisClient != nil {
		states = sso.NewRedisStateStore(redisClient, cfg.Auth.StateTTL)
		if cfg.Server.LoginRateLimit > 0 {
			limiter = middleware.NewRedisLimiter(redisClient, limitCfg, "")
		}
	} else {
		states = sso.NewMemoryStateStore(sso.DefaultStateCapacity, cfg.Auth.StateTTL)
		if cfg.Server.LoginRateLimit > 0 {
			memLimiter := middleware.NewMemoryLimiter(limitCfg)
			memLimiter.StartCleanup(ctx)
			limiter = memLimiter
		}
	}

	server, err := api.NewServer(api.Config{
		Providers:     providers,
		States:        states,
		Resolver:      resolver,
		Users:         users,
		RolePolicy:    policy,
		APIKeys:       keys,
		FrontendURL:   cfg.Server.FrontendURL,
		SecureCookies: cfg.Server.SecureCookies,
		Logger:        appLogger,
		Metrics:       metrics,
		Registry:      registry,
		Health:        observability.NewHealthChecker(db, redisClient, version),
		LoginLimiter:  limiter,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(appLogger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("database", func(context.Context) error { return db.Close() })
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otel, appLogger)
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = shutdown.Shutdown(context.Background())
			return err
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}
	return shutdown.Shutdown(context.Background())
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
