// Package server initializes and runs the authentication server: database
// connection and migrations, service wiring, the HTTP endpoint, and the
// background retention sweeper, with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/akorchagin/authd/internal/logging"
	"github.com/akorchagin/authd/internal/obs"
	"github.com/akorchagin/authd/internal/server/audit"
	"github.com/akorchagin/authd/internal/server/config"
	"github.com/akorchagin/authd/internal/server/httpapi"
	"github.com/akorchagin/authd/internal/server/password"
	"github.com/akorchagin/authd/internal/server/ratelimit"
	"github.com/akorchagin/authd/internal/server/repositories/repomanager"
	"github.com/akorchagin/authd/internal/server/services"
)

// loginRateInterval and loginBurst shape the per-account lockout policy:
// a small burst of attempts, then one more try every interval.
const (
	loginRateInterval = 10 * time.Second
	loginBurst        = 5

	// a bucket idle this long has fully refilled and carries no
	// throttling state worth keeping
	lockoutIdleAfter = loginBurst * loginRateInterval
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	authService  *services.AuthService
	resetService *services.ResetService
	lockout      *ratelimit.Limiter
	lockoutIdle  time.Duration
	api          *httpapi.API
}

func NewApp(c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	obs.Init()

	hasher := password.NewArgon2Hasher(nil)
	lockout := ratelimit.NewLimiter(loginRateInterval, loginBurst)
	recorder := audit.NewLogRecorder(logger)

	authService, err := services.NewAuthService(db, m, hasher, lockout, recorder, c)
	if err != nil {
		return nil, fmt.Errorf("auth service init error: %w", err)
	}
	resetService := services.NewResetService(db, m, hasher, recorder, c)

	api := httpapi.New(authService, resetService, httpapi.NewLogNotifier(logger), db.PingContext, logger)

	return &App{
		config:       c,
		logger:       logger,
		db:           db,
		authService:  authService,
		resetService: resetService,
		lockout:      lockout,
		lockoutIdle:  lockoutIdleAfter,
		api:          api,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// runSweeper periodically deletes refresh records past the retention
// window, expired reset records, and idle lockout buckets.
func (app *App) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.sweepOnce(ctx)
		}
	}
}

func (app *App) sweepOnce(ctx context.Context) {
	nTokens, err := app.authService.SweepExpired(ctx, app.config.SessionRetention)
	if err != nil {
		app.logger.Error(ctx, "refresh token sweep error", "error", err.Error())
	}
	nResets, err := app.resetService.SweepExpired(ctx)
	if err != nil {
		app.logger.Error(ctx, "reset token sweep error", "error", err.Error())
	}
	nBuckets := app.lockout.Prune(app.lockoutIdle)
	if nTokens > 0 || nResets > 0 || nBuckets > 0 {
		app.logger.Info(ctx, "retention sweep",
			"refresh_tokens", nTokens, "reset_tokens", nResets, "lockout_buckets", nBuckets)
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSweeper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
