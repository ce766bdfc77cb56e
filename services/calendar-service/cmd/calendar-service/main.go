package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "calendar-service")
	port, err := config.Port("PORT", "8000")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service, true))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	workday, err := workdayFromEnv()
	if err != nil {
		panic(err)
	}

	var checks []runtime.ReadyCheck
	var store storage.Store
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		pool, err := db.Open(ctx, dbURL, int32(config.Int("DB_MAX_CONNS", 10)))
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		if err := pool.EnsureSchema(ctx, storage.Schema); err != nil {
			logger.Error("schema setup failed", "err", err)
			panic(err)
		}

		outboxRepo := outbox.NewRepository()
		store = storage.NewPostgres(pool, outboxRepo)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		brokers := config.String("KAFKA_BROKERS", "")
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
		if brokers != "" {
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		}
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory calendar store")
		store = storage.NewMemory()
	}

	limiter, redisCheck := newLimiter(logger)
	if redisCheck != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisCheck})
	}

	calendar := handlers.NewCalendarHandler(store, logger, handlers.Config{
		Workday:      workday,
		SuggestLimit: config.Int("SUGGEST_LIMIT", 3),
	})

	jwtSecret := config.String("JWT_SECRET", "")
	if jwtSecret == "" {
		logger.Warn("JWT_SECRET not set; /slots accepts unauthenticated ingests")
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	calendar.Register(mux, auth.RequireRole(jwtSecret, auth.RoleIngest))

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", "*"),
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.RateLimit(limiter, logger, true),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10))*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "calendar")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	health, err := startGrpcServer(ctx, logger, grpcPort)
	if err != nil {
		logger.Error("grpc server failed to start", "err", err)
		panic(err)
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "workday", workday.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func workdayFromEnv() (timeofday.Interval, error) {
	start, err := config.TimeOfDay("WORKDAY_START", "09:00")
	if err != nil {
		return timeofday.Interval{}, err
	}
	end, err := config.TimeOfDay("WORKDAY_END", "18:00")
	if err != nil {
		return timeofday.Interval{}, err
	}
	return timeofday.NewInterval(start, end)
}

// newLimiter prefers Redis so every replica shares one budget.
func newLimiter(logger *slog.Logger) (httpx.Limiter, func(context.Context) error) {
	perMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		logger.Info("rate limiting enabled (memory)", "per_minute", perMinute)
		return httpx.NewMemoryRateLimiter(perMinute, time.Minute), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	logger.Info("rate limiting enabled (redis)", "per_minute", perMinute, "redis_addr", addr)
	limiter := httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "calendar-rl"))
	return limiter, func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}
