package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ExternalBlock is a busy interval imported from a host's external calendar.
type ExternalBlock struct {
	HostID     string
	Source     string
	ExternalID string
	Start      time.Time
	End        time.Time
}

// ExternalBlockRepository writes external_busy_blocks inside the caller's
// transaction. Both writes take the host lock so an import never interleaves
// with a booking admission for the same host.
type ExternalBlockRepository struct{}

func NewExternalBlockRepository() *ExternalBlockRepository {
	return &ExternalBlockRepository{}
}

func (r *ExternalBlockRepository) Upsert(ctx context.Context, tx pgx.Tx, b ExternalBlock) error {
	if err := lockHost(ctx, tx, b.HostID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO external_busy_blocks (id, host_id, source, external_id, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (host_id, source, external_id) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			updated_at = now()
	`, uuid.NewString(), b.HostID, b.Source, b.ExternalID, b.Start, b.End)
	return err
}

// Delete removes a block. Deleting an unknown block is not an error.
func (r *ExternalBlockRepository) Delete(ctx context.Context, tx pgx.Tx, hostID, source, externalID string) error {
	if err := lockHost(ctx, tx, hostID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		DELETE FROM external_busy_blocks
		WHERE host_id::text = $1 AND source = $2 AND external_id = $3
	`, hostID, source, externalID)
	return err
}

func lockHost(ctx context.Context, q querier, hostID string) error {
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, hostID)
	return err
}
