// cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/config"
	"atlasgym/internal/server"
	"atlasgym/internal/store"
	"atlasgym/internal/telemetry"
	"atlasgym/pkg/eventstore"

	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: cfg.ServiceName, OTLPEndpoint: cfg.OTLPEndpoint})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	s, sinks, cleanup, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	accounts, err := operatorAccounts(cfg)
	if err != nil {
		return err
	}
	challenge, err := auth.ParseSecret(cfg.ChallengeHash)
	if err != nil {
		return fmt.Errorf("CHALLENGE_HASH: %w", err)
	}

	app, err := server.New(ctx, server.Options{
		Store:      s,
		Sinks:      sinks,
		Accounts:   accounts,
		Challenge:  challenge,
		JWTSecret:  cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
		LoginRate:  cfg.LoginRatePerMinute,
		Location:   cfg.Location,
		Metrics:    tel.MetricsHandler(),
	})
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("atlasgym listening", "port", cfg.Port, "timezone", cfg.Location.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStorage picks Postgres when DATABASE_URL is set and the in-memory
// store otherwise. The event log and the Redis stream are extra audit
// sinks.
func openStorage(ctx context.Context, cfg *config.Config) (store.Store, []audit.Log, func(), error) {
	var sinks []audit.Log
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var s store.Store
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set; data lives in memory and is lost on exit")
		s = store.NewMemory()
	} else {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
		closers = append(closers, func() { db.Close() })
		if err := db.PingContext(ctx); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("ping database: %w", err)
		}

		pg := store.NewPostgres(db, cfg.DatabaseURL)
		if err := pg.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		go func() {
			if err := pg.Listen(ctx); err != nil {
				slog.Error("store listener stopped", "error", err)
			}
		}()
		s = pg

		es := eventstore.NewEventStore(db)
		if err := es.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		sinks = append(sinks, audit.NewEventLog(es))
	}

	if cfg.RedisAddr != "" {
		stream, err := audit.NewStreamLog(ctx, cfg.RedisAddr, cfg.RedisPassword, audit.DefaultStream)
		if err != nil {
			slog.Warn("redis history stream disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			closers = append(closers, func() { stream.Close() })
			sinks = append(sinks, stream)
		}
	}
	return s, sinks, cleanup, nil
}

func operatorAccounts(cfg *config.Config) ([]auth.Account, error) {
	var accounts []auth.Account
	for _, a := range []struct {
		username, hash string
		role           auth.Role
	}{
		{cfg.AdminUsername, cfg.AdminPasswordHash, auth.RoleAdmin},
		{cfg.DevUsername, cfg.DevPasswordHash, auth.RoleDev},
	} {
		if a.hash == "" {
			slog.Warn("operator account disabled: no password hash", "username", a.username, "role", a.role)
			continue
		}
		secret, err := auth.ParseSecret(a.hash)
		if err != nil {
			return nil, fmt.Errorf("%s password hash: %w", a.role, err)
		}
		accounts = append(accounts, auth.Account{Username: a.username, Role: a.role, Secret: secret})
	}
	return accounts, nil
}
