package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/db/postgres"
	myRedisRepo "github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/db/redis"
	httptransport "github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/app/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/app/auth/password"
	appsvc "github.com/Miraines/MoonyAndStarry/account-service/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/repo"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/account-service/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/metrics"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/migrate"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const purgeInterval = time.Hour

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply migrations on startup")
	return cmd
}

func runServe(ctx context.Context, skipMigrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	if cfg.DebugAuth {
		level = "debug"
	}
	zapLog := lg.Must(level)
	defer func() { _ = zapLog.Sync() }()

	if cfg.DevSecret {
		zapLog.Warn("DEV_MODE: using a process-local JWT secret; tokens will not survive a restart")
	}
	if cfg.DebugAuthIgnored {
		zapLog.Warn("DEBUG_AUTH ignored: auth diagnostics require DEV_MODE")
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	if !skipMigrate {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("db handle: %w", err)
		}
		if err := migrate.Up(sqlDB); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	ready := map[string]httptransport.ReadinessCheck{
		"postgres": func(ctx context.Context) error {
			return db.WithContext(ctx).Exec("SELECT 1").Error
		},
	}

	var attempts repo.AttemptLimiter
	if cfg.RedisAddress != "" {
		redisCli := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = redisCli.Close() }()
		ready["redis"] = func(ctx context.Context) error {
			return redisCli.Ping(ctx).Err()
		}
		attempts = myRedisRepo.NewRedisAttemptRepo(redisCli, cfg.LoginMaxAttempts, cfg.LoginAttemptWindow)
	} else {
		zapLog.Info("REDIS_ADDRESS not set; login throttling disabled")
	}

	debugLog := lg.AuthDebug(zapLog, cfg.DebugAuth)

	jwtUtil, err := jwt.NewJWTUtil(jwt.Options{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		DebugLog:   debugLog,
	})
	if err != nil {
		return fmt.Errorf("init JWT util: %w", err)
	}

	tokenIndex := postgres.NewPostgresTokenIndex(db)
	svc := appsvc.New(appsvc.Deps{
		Users:    postgres.NewPostgresUserRepo(db),
		Tokens:   tokenIndex,
		Attempts: attempts,
		JWT:      jwtUtil,
		Hasher:   password.NewHasher(cfg.KDFConcurrency, debugLog),
		Log:      zapLog,
		Debug:    debugLog,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	g, ctx := errgroup.WithContext(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := httptransport.NewRouter(ctx, httptransport.NewHandler(svc, zapLog), zapLog, httptransport.RouterOptions{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: cfg.AllowCredentials,
		RateLimit:        cfg.HTTPRateLimit,
		RateBurst:        cfg.HTTPRateBurst,
		Gatherer:         reg,
		Ready:            ready,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		zapLog.Info("http listening", zap.String("addr", cfg.HTTPAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		zapLog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				n, err := tokenIndex.PurgeExpired(ctx, now)
				if err != nil {
					zapLog.Warn("purge expired tokens", zap.Error(err))
					continue
				}
				if n > 0 {
					zapLog.Info("purged expired tokens", zap.Int64("rows", n))
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
		return err
	}
	return nil
}
