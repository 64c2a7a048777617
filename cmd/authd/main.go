// Command authd serves the authentication API over HTTP.
//
// Configuration comes from .env, an optional config file (-config) and the
// environment; see internal/settings. Only Jwt:SecretKey is required:
//
//	JWT__SECRETKEY=$(openssl rand -hex 32) go run ./cmd/authd
//
// Without Database:Url users live in memory and are lost on restart. With
// RateLimit:Backend=redis lockout state survives restarts. Run one replica
// per Redis keyspace; block transitions are serialized in process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/heartnote/authcore"
	"github.com/heartnote/authcore/clock"
	"github.com/heartnote/authcore/httpapi"
	"github.com/heartnote/authcore/internal/audit"
	"github.com/heartnote/authcore/internal/audit/kafka"
	"github.com/heartnote/authcore/internal/settings"
	"github.com/heartnote/authcore/logging"
	promexport "github.com/heartnote/authcore/metrics/export/prometheus"
	"github.com/heartnote/authcore/password"
	"github.com/heartnote/authcore/store/memory"
	"github.com/heartnote/authcore/store/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", "", "optional config file (json, yaml or toml)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := settings.Load(settings.Options{ConfigFile: configFile})
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Sentry.Dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.Dsn,
			Environment:      cfg.Sentry.Environment,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hasher, err := password.New(password.Config{
		Algorithm:  cfg.Password.Algorithm,
		BcryptCost: cfg.Password.BcryptCost,
		Argon2:     password.DefaultConfig().Argon2,
	})
	if err != nil {
		return fmt.Errorf("init password hasher: %w", err)
	}

	builder := authcore.New().
		WithConfig(cfg.AuthConfig()).
		WithPasswordHasher(hasher).
		WithLogger(logger)

	// -------- CREDENTIAL STORE --------
	var health func(context.Context) error
	if cfg.Database.Url != "" {
		if cfg.Database.Migrate {
			if err := postgres.Migrate(cfg.Database.Url); err != nil {
				return err
			}
		}
		pool, err := postgres.Connect(ctx, cfg.Database.Url)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := postgres.New(pool, hasher)
		builder.WithCredentialStore(store).WithRelationshipChecker(store)
		health = pool.Ping
		logger.Info("credential store: postgres")
	} else {
		store := memory.New(hasher, clock.System{})
		builder.WithCredentialStore(store).WithRelationshipChecker(store)
		logger.Warn("credential store: memory, users are not persisted")
	}

	// -------- RATE LIMIT STORE --------
	if cfg.RateLimit.Backend == settings.RateLimitRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		builder.WithRedis(rdb)
	}

	// -------- AUDIT --------
	sinks := audit.MultiSink{audit.NewZapSink(logger)}
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := kafka.Dial(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := ks.Close(); err != nil {
				logger.Warn("close kafka audit sink", zap.Error(err))
			}
		}()
		sinks = append(sinks, ks)
	}
	builder.WithAuditSink(sinks)

	svc, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build auth service: %w", err)
	}
	defer svc.Close()

	logSecurityReport(logger, svc.SecurityReport())

	// -------- HTTP --------
	metricsHandler, err := promexport.NewExporter(svc).Handler()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	throttle := httpapi.NewThrottle(httpapi.DefaultThrottleConfig(), logger)
	defer throttle.Stop()

	server := &http.Server{
		Addr: cfg.Http.Addr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Service:  svc,
			Logger:   logger,
			Throttle: throttle,
			Metrics:  metricsHandler,
			Health:   health,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Http.ReadTimeout,
		WriteTimeout:      cfg.Http.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Http.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Http.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func logSecurityReport(logger *zap.Logger, r authcore.SecurityReport) {
	logger.Info("security report",
		zap.String("signing_algorithm", r.SigningAlgorithm),
		zap.String("issuer", r.Issuer),
		zap.String("audience", r.Audience),
		zap.Duration("access_ttl", r.AccessTTL),
		zap.Duration("refresh_ttl", r.RefreshTTL),
		zap.Duration("leeway", r.Leeway),
		zap.Int("lockout_threshold", r.Lockout.Threshold),
		zap.Duration("lockout_window", r.Lockout.Window),
		zap.Duration("lockout_cooldown", r.Lockout.Cooldown),
		zap.String("rate_limit_backend", r.RateLimitBackend),
		zap.String("password_algorithm", r.PasswordAlgorithm),
		zap.Bool("audit_enabled", r.AuditEnabled),
		zap.Bool("metrics_enabled", r.MetricsEnabled),
	)
}
