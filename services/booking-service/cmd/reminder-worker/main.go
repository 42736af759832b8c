// Command reminder-worker executes due reminder jobs from the asynq queue and publishes
// reminder_due for appointments that are still active.
package main

import (
	"context"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/carbook/platform/libs/config"
	"github.com/carbook/platform/libs/db"
	"github.com/carbook/platform/libs/events"
	"github.com/carbook/platform/libs/kafkax"
	otelx "github.com/carbook/platform/libs/otel"
	"github.com/carbook/platform/libs/redisx"
	"github.com/carbook/platform/libs/runtime"
	"github.com/carbook/platform/services/booking-service/internal/reminders"
	"github.com/carbook/platform/services/booking-service/internal/storage"
	"github.com/hibiken/asynq"
)

func main() {
	_ = runtime.LoadDotenv()

	service := config.String("SERVICE_NAME", "reminder-worker")
	logger := runtime.NewLogger(service)
	fatal := func(msg string, err error) {
		logger.Error(msg, "err", err)
		panic(err)
	}

	port, err := config.Port("PORT", "8084")
	if err != nil {
		fatal("invalid config", err)
	}
	concurrency, err := config.Int("WORKER_CONCURRENCY", 10)
	if err != nil {
		fatal("invalid config", err)
	}
	slotMinutes, err := config.Int("DEFAULT_SLOT_MINUTES", 60)
	if err != nil {
		fatal("invalid config", err)
	}
	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		fatal("invalid config", err)
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		fatal("db connection failed", err)
	}
	defer pool.Close()
	store := storage.NewPostgres(pool, time.Duration(slotMinutes)*time.Minute)

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

	queueName := config.String("REMINDER_QUEUE", "default")
	srv := asynq.NewServer(redisCfg.AsynqOpt(), asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{queueName: 1},
		ShutdownTimeout: 10 * time.Second,
		Logger:          asynqLogger{logger: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("reminder task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "err", err)
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(reminders.TaskType, reminders.NewFireHandler(store, store, bus, logger))

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "redis", Check: redisx.ReadyCheck(rdb)},
	}
	if strings.EqualFold(busCfg.Kind, "kafka") {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(busCfg.KafkaBrokers)})
	}
	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           runtime.NewBaseMuxWithReady(checks...),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.Start(mux); err != nil {
		fatal("asynq server start failed", err)
	}
	logger.Info("reminder worker started", "queue", queueName, "concurrency", concurrency)

	runtime.ServeHTTP(ctx, logger, httpSrv, 5*time.Second)
	srv.Shutdown()
	logger.Info("reminder worker stopped")
}
