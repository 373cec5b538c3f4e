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

	"github.com/taskdeck/taskdeck/internal/mockserver"
	"github.com/taskdeck/taskdeck/pkg/observability"
)

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	var (
		addr     = flag.String("addr", envOr("MOCKSERVER_ADDR", ":8080"), "Listen address")
		secret   = flag.String("jwt-secret", os.Getenv("MOCKSERVER_JWT_SECRET"), "JWT signing secret (random when empty)")
		failRate = flag.Float64("fail-rate", 0, "Inject random 500s with this probability (0..1)")
		latency  = flag.Duration("latency", 0, "Delay every response by this duration")
		logLevel = flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	)
	flag.Parse()

	logger := observability.NewStandardLogger("mockserver").(*observability.StandardLogger).
		WithLevel(observability.ParseLevel(*logLevel))

	srv := mockserver.New(mockserver.Config{
		JWTSecret: *secret,
		FailRate:  *failRate,
		Latency:   *latency,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("mock server listening", map[string]interface{}{
			"addr":      *addr,
			"fail_rate": *failRate,
			"latency":   latency.String(),
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "server error:", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown error:", err)
		os.Exit(1)
	}
}
