// Command counterwatch follows the live waitlist count from a terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelforge/waitlist/internal/counterview"
)

func main() {
	var (
		baseURL   = flag.String("url", envOr("WAITLIST_URL", "http://localhost:8080"), "Waitlist service base URL")
		poll      = flag.Duration("poll", counterview.DefaultPollInterval, "Polling interval while disconnected")
		reconnect = flag.Duration("reconnect", counterview.DefaultReconnectDelay, "Delay before each reconnect attempt")
		verbose   = flag.Bool("v", false, "Log connection events to stderr")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	view, err := counterview.New(counterview.Config{
		BaseURL:        *baseURL,
		Logger:         logger,
		PollInterval:   *poll,
		ReconnectDelay: *reconnect,
		Render:         render,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := view.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println()
}

// render redraws a single status line.
func render(display int64, connected bool) {
	status := "live"
	if !connected {
		status = "polling"
	}
	fmt.Printf("\r%s  %d people on the waitlist  [%s]   ", time.Now().Format("15:04:05"), display, status)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
