package inbox

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository records consumed event ids in inbox_events. Record runs in the
// same transaction as the handler, so a failed handler leaves no trace and the
// event can be processed again on redelivery.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Record returns false when eventID has already been processed.
func (r *Repository) Record(ctx context.Context, tx pgx.Tx, eventID, eventType string) (bool, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING event_id
	`, eventID, eventType).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows), IsDuplicate(err):
		return false, nil
	}
	return false, err
}

func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
