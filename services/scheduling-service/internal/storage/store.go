package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/relaycrm/scheduling/libs/db"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/availability"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/booking"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/outbox"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL booking store. Writes happen in InHostTx, which holds
// a transaction-scoped advisory lock on the host; the exclusion constraint on
// scheduled_meetings backs the lock up.
type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

var _ booking.Store = (*Store)(nil)

func (s *Store) MeetingType(ctx context.Context, meetingTypeID string) (booking.HostMeetingType, error) {
	return meetingType(ctx, s.pool, meetingTypeID)
}

func (s *Store) Schedule(ctx context.Context, hostID string, date civil.Date) ([]availability.AvailabilityRule, *availability.SchedulingOverride, error) {
	return schedule(ctx, s.pool, hostID, date)
}

func (s *Store) BusyPeriods(ctx context.Context, hostID string, from, to time.Time, excludeMeetingID string) ([]availability.BusyPeriod, error) {
	return busyPeriods(ctx, s.pool, hostID, from, to, excludeMeetingID)
}

func (s *Store) HostForToken(ctx context.Context, tokenHash string) (string, error) {
	var hostID string
	err := s.pool.QueryRow(ctx, `
		SELECT host_id::text
		FROM scheduled_meetings
		WHERE management_token_hash = $1
	`, tokenHash).Scan(&hostID)
	if err != nil {
		return "", translate(err)
	}
	return hostID, nil
}

func (s *Store) InHostTx(ctx context.Context, hostID string, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockHost(ctx, tx, hostID); err != nil {
		return fmt.Errorf("lock host %s: %w", hostID, err)
	}
	if err := fn(ctx, &hostTx{tx: tx, outbox: s.outbox}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translate(err)
	}
	return nil
}

// IsConflict reports an exclusion or unique constraint violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

// IsMissingReference reports a foreign key violation, e.g. a row for an
// unknown host.
func IsMissingReference(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return booking.ErrNotFound
	case IsConflict(err):
		return availability.ErrSlotUnavailable
	}
	return err
}
