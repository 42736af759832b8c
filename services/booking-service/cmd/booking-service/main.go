package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/carbook/platform/libs/config"
	"github.com/carbook/platform/libs/db"
	"github.com/carbook/platform/libs/events"
	"github.com/carbook/platform/libs/grpcx"
	"github.com/carbook/platform/libs/httpx"
	"github.com/carbook/platform/libs/kafkax"
	otelx "github.com/carbook/platform/libs/otel"
	"github.com/carbook/platform/libs/redisx"
	"github.com/carbook/platform/libs/runtime"
	"github.com/carbook/platform/libs/sessions"
	"github.com/carbook/platform/services/booking-service/internal/booking"
	"github.com/carbook/platform/services/booking-service/internal/cache"
	"github.com/carbook/platform/services/booking-service/internal/handlers"
	"github.com/carbook/platform/services/booking-service/internal/reminders"
	"github.com/carbook/platform/services/booking-service/internal/storage"
	"github.com/carbook/platform/services/booking-service/internal/storage/memory"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type bookingStore interface {
	booking.Store
	reminders.Ledger
}

func openStore(ctx context.Context, logger *slog.Logger, defaultDuration time.Duration) (bookingStore, []runtime.ReadyCheck, func(), error) {
	if strings.EqualFold(config.String("STORAGE_BACKEND", "postgres"), "memory") {
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.New(defaultDuration), nil, func() {}, nil
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		return nil, nil, nil, err
	}
	store := storage.NewPostgres(pool, defaultDuration)
	if config.Bool("AUTO_MIGRATE", true) {
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
	}
	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	return store, checks, pool.Close, nil
}

func openCache(rdb *redis.Client, logger *slog.Logger) (*cache.Cache, error) {
	ttl, err := config.Duration("CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(config.String("CACHE_BACKEND", "redis")) {
	case "redis":
		return cache.New(cache.NewRedisStore(rdb), ttl, logger), nil
	case "memory":
		return cache.New(cache.NewMemoryStore(ttl), ttl, logger), nil
	case "none", "off":
		return nil, nil
	default:
		return nil, errors.New("CACHE_BACKEND must be redis, memory or none")
	}
}

func rateLimit(rdb *redis.Client, logger *slog.Logger) (httpx.Middleware, error) {
	perMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 600)
	if err != nil {
		return nil, err
	}
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	if strings.EqualFold(config.String("RATE_LIMIT_BACKEND", "memory"), "redis") {
		limiter := httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, "ratelimit:booking")
		return limiter.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), nil
	}
	burst, err := config.Int("RATE_LIMIT_BURST", perMinute/10+1)
	if err != nil {
		return nil, err
	}
	return httpx.NewRateLimiter(perMinute, burst).Middleware(), nil
}

func main() {
	_ = runtime.LoadDotenv()

	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service)
	fatal := func(msg string, err error) {
		logger.Error(msg, "err", err)
		panic(err)
	}

	port, err := config.Port("PORT", "8083")
	if err != nil {
		fatal("invalid config", err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		fatal("invalid config", err)
	}
	slotMinutes, err := config.Int("DEFAULT_SLOT_MINUTES", 60)
	if err != nil {
		fatal("invalid config", err)
	}
	lead, err := config.Duration("REMINDER_LEAD", reminders.DefaultLead)
	if err != nil {
		fatal("invalid config", err)
	}
	maxRetry, err := config.Int("REMINDER_MAX_RETRY", 5)
	if err != nil {
		fatal("invalid config", err)
	}
	sessionTTL, err := config.Duration("STAFF_SESSION_TTL", 720*time.Hour)
	if err != nil {
		fatal("invalid config", err)
	}
	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		fatal("invalid config", err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	store, checks, closeStore, err := openStore(ctx, logger, time.Duration(slotMinutes)*time.Minute)
	if err != nil {
		fatal("storage init failed", err)
	}
	defer closeStore()

	redisCfg := redisx.Config{
		Addr:     config.String("REDIS_ADDR", "localhost:6379"),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}
	rdb, err := redisx.Open(ctx, redisCfg)
	if err != nil {
		fatal("redis connection failed", err)
	}
	defer rdb.Close()
	checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})

	busCfg := events.BusConfig{
		Kind:         config.String("EVENT_BUS", "redis"),
		Channel:      config.String("NOTIFICATIONS_CHANNEL", events.DefaultChannel),
		KafkaBrokers: config.String("KAFKA_BROKERS", ""),
	}
	bus, closeBus, err := events.Open(busCfg, rdb, logger)
	if err != nil {
		fatal("event bus init failed", err)
	}
	defer func() { _ = closeBus() }()
	if strings.EqualFold(busCfg.Kind, "kafka") {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(busCfg.KafkaBrokers)})
	}

	asynqClient := asynq.NewClient(redisCfg.AsynqOpt())
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisCfg.AsynqOpt())
	defer inspector.Close()
	queue := reminders.NewAsynqQueue(asynqClient, inspector, reminders.AsynqConfig{
		Queue:    config.String("REMINDER_QUEUE", "default"),
		MaxRetry: maxRetry,
	})

	readCache, err := openCache(rdb, logger)
	if err != nil {
		fatal("cache init failed", err)
	}

	svc := booking.New(booking.Deps{
		Store:     store,
		Cache:     readCache,
		Reminders: reminders.NewScheduler(queue, store, lead, logger),
		Publisher: bus,
		Logger:    logger,
	})

	var staff *handlers.StaffHandler
	if hash := config.String("STAFF_PASSWORD_HASH", ""); hash != "" {
		staff = handlers.NewStaffHandler(sessions.NewStore(rdb, sessionTTL), sessions.NewPasswordChecker(hash), logger)
	} else {
		logger.Warn("STAFF_PASSWORD_HASH not set; staff login disabled")
	}

	limit, err := rateLimit(rdb, logger)
	if err != nil {
		fatal("invalid config", err)
	}
	timeout, err := config.Duration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		fatal("invalid config", err)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewAPI(svc, staff, logger).Register(mux)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		limit,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(timeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	health.SetServingStatus("booking", healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		fatal("grpc listen failed", err)
	}
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
	health.Shutdown()
	grpcSrv.GracefulStop()
	logger.Info("servers stopped")
}
