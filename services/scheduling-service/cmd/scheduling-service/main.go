package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/relaycrm/scheduling/libs/db"
	"github.com/relaycrm/scheduling/libs/grpcx"
	"github.com/relaycrm/scheduling/libs/httpx"
	"github.com/relaycrm/scheduling/libs/kafkax"
	otelx "github.com/relaycrm/scheduling/libs/otel"
	"github.com/relaycrm/scheduling/libs/runtime"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/booking"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/calendarsync"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/completion"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/consumer"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/handlers"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/inbox"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/outbox"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/storage"
	"github.com/relaycrm/scheduling/services/scheduling-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		runtime.NewLogger("scheduling-service").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Migrate {
		if err := db.Migrate(ctx, pool, migrations.FS, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	outboxRepo := outbox.NewRepository()
	store := storage.NewStore(pool, outboxRepo)
	service := booking.NewService(store, logger, time.Now)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPollEvery,
		BatchSize: cfg.OutboxBatchSize,
	})
	go publisher.Run(ctx)

	if cfg.KafkaBrokers != "" && cfg.CalendarSyncTopic != "" {
		syncHandler := calendarsync.NewHandler(storage.NewExternalBlockRepository(), logger)
		syncConsumer := consumer.New(pool, logger, inbox.NewRepository(), consumer.Config{
			Brokers:     cfg.KafkaBrokers,
			GroupID:     cfg.KafkaGroupID,
			Topic:       cfg.CalendarSyncTopic,
			IsPermanent: func(err error) bool {
				return errors.Is(err, calendarsync.ErrInvalidPayload) || storage.IsMissingReference(err)
			},
		}, syncHandler.Handle)
		go syncConsumer.Run(ctx)
	} else {
		logger.Warn("calendar sync consumer disabled (no kafka brokers configured)")
	}

	completer := completion.NewWorker(store, logger, time.Now, completion.WorkerConfig{
		Interval:  cfg.CompletionInterval,
		BatchSize: cfg.CompletionBatch,
	})
	go completer.Run(ctx)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	var limiter httpx.Middleware
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		redisLimiter := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.ServiceName)
		limiter = redisLimiter.Middleware(logger, true)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisLimiter.ReadyCheck})
	} else {
		limiter = httpx.NewRateLimiter(cfg.RateLimitPerMinute).Middleware()
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	public := http.NewServeMux()
	handlers.NewSchedulingHandler(service, logger).Register(public)
	mux.Handle("/api/v1/public/", httpx.Chain(public,
		limiter,
		httpx.WithBodyLimit(64<<10),
	))

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedHeaders: []string{"Content-Type", "Idempotency-Key", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")

	grpcServer, healthServer := grpcx.NewServer(logger)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go func() {
		if err := grpcx.Serve(ctx, logger, grpcServer, ":"+cfg.GRPCPort); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := runtime.RunHTTPServer(ctx, logger, srv, 10*time.Second); err != nil {
		logger.Error("http server error", "err", err)
	}
	healthServer.Shutdown()
}
