// Package app wires the application together so the server binary and
// integration tests share one bootstrap path.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"wishstash/internal/auth"
	"wishstash/internal/config"
	"wishstash/internal/db"
	"wishstash/internal/maintenance"
	"wishstash/internal/observability"
	"wishstash/internal/wish"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Handler http.Handler
	Cron    *cron.Cron
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(os.Stdout)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error().Err(err).Msg("init_sentry_failed")
	}

	database, err := db.Open(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	userRepo := auth.NewRepository(database)
	revoked := auth.NewRevocationStore(database)
	codec := auth.NewCodec(auth.CodecConfig{
		CurrentKey:      cfg.JWTSecretCurrent,
		PreviousKey:     cfg.JWTSecretPrevious,
		RotationEnabled: cfg.JWTRotateKey,
		DefaultTTL:      cfg.AccessTokenTTL,
		MaxTTL:          cfg.AccessTokenMaxTTL,
	})
	limiter := auth.NewLoginRateLimiter(cfg.LoginMaxFailures, cfg.LoginFailureWindow)
	authService := auth.NewService(userRepo, revoked, codec, limiter, auth.NewHasher(), logger)
	authHandler := auth.NewHandler(authService)

	wishRepo := wish.NewRepository(database)
	wishHandler := wish.NewHandler(wishRepo)
	uploadHandler := wish.NewUploadHandler(cfg.UploadDir, cfg.UploadMaxSize)

	cleaner := maintenance.NewCleaner(revoked, logger, cfg.CleanupBatchSize)
	cleanupHandler := maintenance.NewHandler(cleaner, cfg.CronSecret)

	runner := cron.New()
	if err := cleaner.Schedule(runner, cfg.CleanupSchedule); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("schedule revocation cleanup: %w", err)
	}

	metrics := observability.NewMetrics()

	router := chi.NewRouter()
	router.Use(
		func(next http.Handler) http.Handler { return observability.RecoverMiddleware(logger, next) },
		observability.CorrelationIDMiddleware,
		func(next http.Handler) http.Handler { return observability.RequestLoggingMiddleware(logger, next) },
		metrics.Middleware,
	)

	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.Post("/logout", authHandler.Logout)
			a.With(auth.RequireUser(authService)).Post("/promote/{username}", authHandler.Promote)
		})

		api.Route("/wishes", func(ws chi.Router) {
			ws.Use(auth.RequireUser(authService))
			ws.Post("/", wishHandler.Create)
			ws.Get("/", wishHandler.List)
			ws.Post("/upload", uploadHandler.Upload)
			ws.Get("/{id}", wishHandler.Get)
			ws.Patch("/{id}", wishHandler.Update)
			ws.Delete("/{id}", wishHandler.Delete)
		})
	})

	router.Get("/health", healthHandler(database))
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	router.Get("/internal/maintenance/cleanup", cleanupHandler.Handle)
	router.Post("/internal/maintenance/cleanup", cleanupHandler.Handle)

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Handler: router,
		Cron:    runner,
		Close: func() error {
			runner.Stop()
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
