package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/grpcx"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/authority"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/console"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/session"
)

const calendarHealthService = "slotbook.calendar"

func main() {
	service := config.String("SERVICE_NAME", "booking-console")
	// stdout belongs to the console; logs go to stderr.
	logger := runtime.NewLoggerTo(os.Stderr, service, runtime.ParseLevel(config.String("LOG_LEVEL", "warn")))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service, false))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	if addr := config.String("AUTHORITY_GRPC_ADDR", ""); addr != "" {
		checkAuthority(ctx, logger, addr)
	}
	if addr := config.String("METRICS_ADDR", ""); addr != "" {
		serveMetrics(ctx, logger, addr)
	}

	client := authority.NewClient(logger, authority.Config{
		BaseURL: config.String("AUTHORITY_URL", "http://127.0.0.1:8000"),
		Timeout: time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		Token:   ingestToken(config.String("AUTHORITY_JWT_SECRET", "")),
	})

	sess := session.New(client, client, logger, session.Config{
		Limits: session.Limits{
			Min:     config.Int("DURATION_MIN", 5),
			Max:     config.Int("DURATION_MAX", 120),
			Default: config.Int("DURATION_DEFAULT", 30),
		},
		Step: config.Int("SLOT_STEP_MINUTES", 5),
	})

	if err := console.New(sess, client, logger, os.Stdout).Run(ctx, os.Stdin); err != nil {
		logger.Error("console stopped", "err", err)
		os.Exit(1)
	}
}

// ingestToken mints short-lived ingest tokens when a shared secret is configured.
func ingestToken(secret string) func() (string, error) {
	if secret == "" {
		return nil
	}
	return func() (string, error) {
		return auth.SignHS256(secret, "booking-console", auth.RoleIngest, 5*time.Minute, time.Now())
	}
}

// checkAuthority only warns; the HTTP API is still tried when the check fails.
func checkAuthority(ctx context.Context, logger *slog.Logger, addr string) {
	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		logger.Warn("authority grpc dial failed", "addr", addr, "err", err)
		return
	}
	defer conn.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := grpcx.CheckHealth(checkCtx, conn, calendarHealthService); err != nil {
		logger.Warn("authority not serving", "addr", addr, "err", err)
		return
	}
	logger.Info("authority healthy", "addr", addr)
}

func serveMetrics(ctx context.Context, logger *slog.Logger, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           runtime.NewBaseMuxWithReady(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
