package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/relaycrm/scheduling/libs/db"
	"github.com/relaycrm/scheduling/libs/kafkax"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/inbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler applies one message inside the transaction that also records it in
// the inbox.
type Handler func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error

// messageReader is the part of *kafka.Reader the loop uses. Offsets are
// committed explicitly, never on fetch.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader      messageReader
	logger      *slog.Logger
	apply       func(ctx context.Context, meta kafkax.EventMeta, msg kafka.Message) (bool, error)
	isPermanent func(error) bool
	newBackOff  func() backoff.BackOff

	pool    *db.Pool
	inbox   *inbox.Repository
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
	// IsPermanent marks handler errors that no retry can fix, such as a
	// malformed payload. Such messages are logged and committed. Every other
	// error is retried with backoff and the offset stays put until it succeeds.
	IsPermanent func(error) bool
}

func New(pool *db.Pool, logger *slog.Logger, inboxRepo *inbox.Repository, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	c := &Consumer{
		reader:      reader,
		logger:      logger.With("topic", cfg.Topic),
		isPermanent: cfg.IsPermanent,
		pool:        pool,
		inbox:       inboxRepo,
		handler:     handler,
	}
	c.apply = c.process
	return c
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			// Shutting down mid-retry: the offset is left for the next owner.
			return
		}
	}
}

// handle retries msg until it is applied, found to be a duplicate, or fails
// permanently, then commits its offset. It returns an error only when ctx
// ends first, in which case nothing is committed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID == "" {
		// No id header or key: the log position is still unique per message.
		meta.EventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	log := c.logger.With("event_id", meta.EventID, "event_type", meta.EventType, "offset", msg.Offset)

	ctxSpan, span := otel.Tracer("kafka").Start(kafkax.ExtractTraceContext(ctx, msg), "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	fresh, err := backoff.Retry(ctxSpan, func() (bool, error) {
		fresh, err := c.apply(ctxSpan, meta, msg)
		if err != nil && c.isPermanent != nil && c.isPermanent(err) {
			return false, backoff.Permanent(err)
		}
		return fresh, err
	},
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("handler failed; retrying", "err", err, "retry_in", next.String())
		}),
	)
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled before the message was applied")
		return ctx.Err()
	}

	switch {
	case err != nil:
		log.Error("dropping message that cannot be applied", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case !fresh:
		log.Info("duplicate event ignored")
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		// Redelivery is harmless: the inbox drops it.
		log.Error("kafka commit error", "err", err)
	}
	return nil
}

func (c *Consumer) backOff() backoff.BackOff {
	if c.newBackOff != nil {
		return c.newBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	return b
}

func (c *Consumer) process(ctx context.Context, meta kafkax.EventMeta, msg kafka.Message) (bool, error) {
	var fresh bool
	err := c.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		fresh, err = c.inbox.Record(ctx, tx, meta.EventID, meta.EventType)
		if err != nil {
			return fmt.Errorf("inbox record: %w", err)
		}
		if !fresh {
			return nil
		}
		return c.handler(ctx, tx, msg)
	})
	if err != nil {
		return false, err
	}
	return fresh, nil
}
