package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/stakeworks/wagerd/internal/api"
	"github.com/stakeworks/wagerd/internal/hooks"
	"github.com/stakeworks/wagerd/internal/infra/logging"
	"github.com/stakeworks/wagerd/internal/infra/pgutils"
	"github.com/stakeworks/wagerd/internal/services/wager"
	"github.com/stakeworks/wagerd/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	// A local .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Close database pool")

		return db.Close()
	})

	dispatcher := hooks.NewDispatcher(cfg.Engine.HookBuffer)
	dispatcher.Start()

	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Drain hook dispatcher")

		return dispatcher.Drain(c)
	})

	opts := wager.DefaultOptions()
	opts.LockWait = cfg.Engine.LockWait
	opts.IdleTimeout = cfg.Engine.SessionIdleTimeout
	opts.Risk = cfg.Risk
	opts.Slots = cfg.Slots
	opts.Mines = cfg.Mines
	opts.Baccarat = cfg.Baccarat
	opts.Blackjack = cfg.Blackjack
	opts.Hooks = dispatcher

	wagerSrv := wager.New(db, opts)

	// --- Idle-session sweeper ---
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})

	go func() {
		defer close(sweeperDone)
		wagerSrv.RunSweeper(sweepCtx, cfg.Engine.SweepInterval)
	}()

	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Stop session sweeper")

		stopSweeper()
		select {
		case <-sweeperDone:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, wagerSrv)

	// Register HTTP server graceful shutdown
	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
