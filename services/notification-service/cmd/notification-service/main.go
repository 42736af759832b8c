// Command notification-service subscribes to the notifications channel and delivers chat
// messages to one audience. Run one process with NOTIFY_AUDIENCE=staff and one with
// NOTIFY_AUDIENCE=customer.
package main

import (
	"context"
	"errors"
	"log/slog"
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
	"github.com/carbook/platform/services/notification-service/internal/bookingapi"
	"github.com/carbook/platform/services/notification-service/internal/consumer"
	"github.com/carbook/platform/services/notification-service/internal/delivery"
	"github.com/carbook/platform/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func openSender(logger *slog.Logger) (delivery.Sender, error) {
	token := config.String("TELEGRAM_BOT_TOKEN", "")
	provider := "noop"
	if token != "" {
		provider = "telegram"
	}
	switch strings.ToLower(config.String("DELIVERY_PROVIDER", provider)) {
	case "telegram":
		return delivery.NewTelegramSender(token)
	case "webhook":
		return delivery.NewWebhookSender(config.String("DELIVERY_WEBHOOK_URL", ""), config.String("DELIVERY_WEBHOOK_TOKEN", "")), nil
	case "noop":
		logger.Warn("no delivery provider configured; notifications are dropped")
		return delivery.NewNoopSender(), nil
	default:
		return nil, errors.New("DELIVERY_PROVIDER must be telegram, webhook or noop")
	}
}

// openDeliveryLog connects the optional delivery log. Without DATABASE_URL deliveries are
// only logged and counted.
func openDeliveryLog(ctx context.Context) (*storage.Repository, []runtime.ReadyCheck, func(), error) {
	dbURL := config.String("DATABASE_URL", "")
	if dbURL == "" {
		return nil, nil, func() {}, nil
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: 4})
	if err != nil {
		return nil, nil, nil, err
	}
	repo := storage.NewRepository(pool)
	if config.Bool("AUTO_MIGRATE", true) {
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
	}
	return repo, []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}, pool.Close, nil
}

func main() {
	_ = runtime.LoadDotenv()

	service := config.String("SERVICE_NAME", "notification-service")
	logger := runtime.NewLogger(service)
	fatal := func(msg string, err error) {
		logger.Error(msg, "err", err)
		panic(err)
	}

	audience, err := consumer.ParseAudience(config.String("NOTIFY_AUDIENCE", ""))
	if err != nil {
		fatal("invalid config", err)
	}
	logger = logger.With("audience", string(audience))

	port, err := config.Port("PORT", "8085")
	if err != nil {
		fatal("invalid config", err)
	}
	deliveryTimeout, err := config.Duration("DELIVERY_TIMEOUT", 10*time.Second)
	if err != nil {
		fatal("invalid config", err)
	}
	apiTimeout, err := config.Duration("BOOKING_API_TIMEOUT", 5*time.Second)
	if err != nil {
		fatal("invalid config", err)
	}
	staffChatIDs, err := config.Int64List("STAFF_CHAT_IDS")
	if err != nil {
		fatal("invalid config", err)
	}
	defaultLoc, err := time.LoadLocation(config.String("DEFAULT_TIMEZONE", consumer.DefaultTimezone))
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

	deliveryLog, checks, closeLog, err := openDeliveryLog(ctx)
	if err != nil {
		fatal("delivery log init failed", err)
	}
	defer closeLog()

	rdb, err := redisx.Open(ctx, redisx.Config{
		Addr:     config.String("REDIS_ADDR", "localhost:6379"),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	if err != nil {
		fatal("redis connection failed", err)
	}
	defer rdb.Close()
	checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})

	busCfg := events.BusConfig{
		Kind:         config.String("EVENT_BUS", "redis"),
		Channel:      config.String("NOTIFICATIONS_CHANNEL", events.DefaultChannel),
		KafkaBrokers: config.String("KAFKA_BROKERS", ""),
		// Each audience needs every event, so each gets its own consumer group.
		KafkaGroupID: config.String("KAFKA_GROUP_ID", service+"-"+string(audience)),
	}
	bus, closeBus, err := events.Open(busCfg, rdb, logger)
	if err != nil {
		fatal("event bus init failed", err)
	}
	defer func() { _ = closeBus() }()
	if strings.EqualFold(busCfg.Kind, "kafka") {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(busCfg.KafkaBrokers)})
	}

	api := bookingapi.New(config.String("BOOKING_API_URL", "http://localhost:8083"), apiTimeout)
	if addr := config.String("BOOKING_GRPC_ADDR", ""); addr != "" {
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
		if err != nil {
			fatal("booking grpc dial failed", err)
		}
		defer conn.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "booking", Check: grpcx.HealthReadyCheck(conn, "booking")})
	} else {
		checks = append(checks, runtime.ReadyCheck{Name: "booking", Check: api.Ping})
	}

	sender, err := openSender(logger)
	if err != nil {
		fatal("delivery init failed", err)
	}

	var staff consumer.StaffDirectory
	if audience == consumer.AudienceStaff {
		staff = sessions.NewStore(rdb, 0)
		if len(staffChatIDs) == 0 {
			logger.Warn("STAFF_CHAT_IDS not set; staff notifications need an active staff session")
		}
	}
	var recorder consumer.DeliveryLog
	if deliveryLog != nil {
		recorder = deliveryLog
	}

	c := consumer.New(consumer.Config{
		Audience:        audience,
		DefaultLocation: defaultLoc,
		DeliveryTimeout: deliveryTimeout,
		StaffChatIDs:    staffChatIDs,
	}, api, sender, staff, recorder, logger)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		logger.Info("consumer starting", "bus", busCfg.Kind, "channel", busCfg.Channel, "provider", sender.ProviderID())
		events.Run(ctx, logger, bus, c.Handle, events.RunOptions{})
	}()

	mux := runtime.NewBaseMuxWithReady(checks...)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
	select {
	case <-consumerDone:
	case <-time.After(5 * time.Second):
		logger.Warn("consumer did not stop before shutdown deadline")
	}
	logger.Info("notification service stopped")
}
