// Command desk is the front desk check-in terminal. It reads member codes
// from stdin, one per line, and prints whether each one may enter. Denied
// entries made at other terminals are printed as they appear.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"atlasgym/internal/clients"
	"atlasgym/internal/visits"

	"github.com/joho/godotenv"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := clients.New(getEnv("ATLASGYM_URL", "http://localhost:8080"))
	if _, err := api.Login(ctx, getEnv("DESK_USERNAME", ""), os.Getenv("DESK_PASSWORD")); err != nil {
		slog.Error("login failed", "error", err)
		os.Exit(1)
	}

	go watchAlerts(ctx, api, os.Stdout, 5*time.Second)

	lines := bufio.NewScanner(os.Stdin)
	for lines.Scan() {
		code := strings.TrimSpace(lines.Text())
		if code == "" {
			continue
		}
		v, err := api.CheckIn(ctx, code)
		if err != nil {
			slog.Error("check-in failed", "code", code, "error", err)
			continue
		}
		if v.Status == visits.Success {
			fmt.Printf("OK      %s  %s\n", v.Code, v.Name)
		} else {
			fmt.Printf("DENIED  %s  %s (%s)\n", v.Code, v.Name, v.Reason)
		}
	}
}

type alertSource interface {
	Alerts(ctx context.Context, after visits.Cursor) ([]visits.Visit, visits.Cursor, error)
}

// watchAlerts polls denied check-ins. It starts from the latest alert so
// old ones are not replayed, and polls nothing until that starting point is
// known.
func watchAlerts(ctx context.Context, api alertSource, out io.Writer, every time.Duration) {
	cur, ok := latestCursor(ctx, api, every)
	if !ok {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			alerts, next, err := api.Alerts(ctx, cur)
			if err != nil {
				slog.Warn("poll alerts", "error", err)
				continue
			}
			for _, a := range alerts {
				fmt.Fprintf(out, "ALERT   %s  %s %s at %s\n", a.Code, a.Name, a.Reason, a.Date.Local().Format("15:04"))
			}
			cur = next
		}
	}
}

// latestCursor retries until the server reports its newest alert. It
// returns false when ctx ends first.
func latestCursor(ctx context.Context, api alertSource, every time.Duration) (visits.Cursor, bool) {
	for {
		_, cur, err := api.Alerts(ctx, visits.Cursor{})
		if err == nil {
			return cur, true
		}
		slog.Warn("alerts unavailable, retrying", "error", err)
		select {
		case <-ctx.Done():
			return visits.Cursor{}, false
		case <-time.After(every):
		}
	}
}
