package main

import (
	"time"

	"github.com/relaycrm/scheduling/libs/config"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/calendarsync"
)

type serviceConfig struct {
	ServiceName string
	Port        string
	GRPCPort    string
	DatabaseURL string
	DBMaxConns  int
	Migrate     bool

	RedisAddr          string
	RateLimitPerMinute int
	CORSOrigins        []string

	KafkaBrokers      string
	KafkaGroupID      string
	CalendarSyncTopic string
	OutboxPollEvery   time.Duration
	OutboxBatchSize   int

	CompletionInterval time.Duration
	CompletionBatch    int
}

// loadConfig reads the environment and reports every invalid key together.
func loadConfig() (serviceConfig, error) {
	var l config.Loader
	cfg := serviceConfig{
		ServiceName: config.String("SERVICE_NAME", "scheduling-service"),
		Port:        l.Port("PORT", "8080"),
		GRPCPort:    l.Port("GRPC_PORT", "9090"),
		DatabaseURL: l.RequiredString("DATABASE_URL"),
		DBMaxConns:  l.Int("DB_MAX_CONNS", 10),
		Migrate:     l.Bool("MIGRATE_ON_START", true),

		RedisAddr:          config.String("REDIS_ADDR", ""),
		RateLimitPerMinute: l.Int("RATE_LIMIT_PER_MINUTE", 120),
		CORSOrigins:        config.List("CORS_ALLOWED_ORIGINS"),

		KafkaBrokers:      config.String("KAFKA_BROKERS", ""),
		KafkaGroupID:      config.String("KAFKA_GROUP_ID", "scheduling-service"),
		CalendarSyncTopic: config.String("CALENDAR_SYNC_TOPIC", calendarsync.DefaultTopic),
		OutboxPollEvery:   l.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:   l.Int("OUTBOX_BATCH_SIZE", 50),

		CompletionInterval: l.Duration("COMPLETION_INTERVAL", time.Minute),
		CompletionBatch:    l.Int("COMPLETION_BATCH_SIZE", 100),
	}
	if err := l.Err(); err != nil {
		return serviceConfig{}, err
	}
	return cfg, nil
}
