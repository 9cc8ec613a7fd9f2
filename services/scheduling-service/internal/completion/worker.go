package completion

import (
	"context"
	"log/slog"
	"time"

	"github.com/relaycrm/scheduling/services/scheduling-service/internal/model"
)

// Completer performs the scheduled → completed transition for meetings that
// have ended.
type Completer interface {
	CompleteEnded(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMeeting, error)
}

type Worker struct {
	store     Completer
	logger    *slog.Logger
	now       func() time.Time
	interval  time.Duration
	batchSize int
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewWorker(store Completer, logger *slog.Logger, now func() time.Time, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if now == nil {
		now = time.Now
	}
	return &Worker{
		store:     store,
		logger:    logger,
		now:       now,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("completion sweep failed", "err", err)
			}
		}
	}
}

// Sweep drains ended meetings batch by batch and returns how many it completed.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	now := w.now().UTC()
	total := 0
	for {
		done, err := w.store.CompleteEnded(ctx, now, w.batchSize)
		if err != nil {
			return total, err
		}
		for _, m := range done {
			w.logger.Info("meeting completed", "meeting_id", m.ID, "host_id", m.HostID)
		}
		total += len(done)
		if len(done) < w.batchSize || ctx.Err() != nil {
			return total, nil
		}
	}
}
