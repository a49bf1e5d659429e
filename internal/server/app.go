// Package server initializes and runs the authentication service: it opens
// the database and counter store, runs migrations, wires the services and
// HTTP API together, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/assimetria-ai/brix/internal/logging"
	"github.com/assimetria-ai/brix/internal/server/config"
	"github.com/assimetria-ai/brix/internal/server/counterstore"
	"github.com/assimetria-ai/brix/internal/server/httpapi"
	"github.com/assimetria-ai/brix/internal/server/lockout"
	"github.com/assimetria-ai/brix/internal/server/ratelimit"
	"github.com/assimetria-ai/brix/internal/server/repositories/repomanager"
	"github.com/assimetria-ai/brix/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	api    *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := counterstore.NewRedisStoreFromURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	if !store.Ready(context.Background()) {
		logger.Warn(context.Background(), "counter store unreachable, rate limiting and lockout run degraded")
	}

	guard := lockout.NewGuard(store, logger)
	limiter := ratelimit.New(store, logger, cfg.Environment)

	userService := services.NewUserService(db, rm, guard, logger, cfg)
	apiKeyService := services.NewAPIKeyService(db, rm)
	oauthService := services.NewOAuthService(db, rm)
	resolver := services.NewCredentialResolver(db, rm, logger, []byte(cfg.SecretKey))

	api := httpapi.NewServer(cfg, logger, userService, apiKeyService, oauthService, resolver, limiter)

	return &App{config: cfg, logger: logger, db: db, api: api}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until the context is cancelled or a signal arrives, then
// drains in-flight requests before returning.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.api.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		app.logger.Error(ctx, "http server failed", "error", err)
	case <-ctx.Done():
		app.logger.Info(ctx, "shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close error", "error", err)
	}
}
