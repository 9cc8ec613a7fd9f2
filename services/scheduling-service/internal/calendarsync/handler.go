// Package calendarsync applies busy-time updates imported from hosts' external
// calendars.
package calendarsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "calendar.busy.synced.v1"

var ErrInvalidPayload = errors.New("invalid calendar sync payload")

// Blocks is the subset of storage.ExternalBlockRepository the handler writes to.
type Blocks interface {
	Upsert(ctx context.Context, tx pgx.Tx, b storage.ExternalBlock) error
	Delete(ctx context.Context, tx pgx.Tx, hostID, source, externalID string) error
}

type Handler struct {
	blocks Blocks
	logger *slog.Logger
}

func NewHandler(blocks Blocks, logger *slog.Logger) *Handler {
	return &Handler{blocks: blocks, logger: logger}
}

type payload struct {
	HostID     string `json:"host_id"`
	Source     string `json:"source"`
	ExternalID string `json:"external_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Deleted    bool   `json:"deleted"`
}

// Handle matches consumer.Handler.
func (h *Handler) Handle(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
	var p payload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	p.HostID = strings.TrimSpace(p.HostID)
	p.Source = strings.TrimSpace(p.Source)
	p.ExternalID = strings.TrimSpace(p.ExternalID)
	if p.HostID == "" || p.Source == "" || p.ExternalID == "" {
		return fmt.Errorf("%w: host_id, source and external_id are required", ErrInvalidPayload)
	}
	if _, err := uuid.Parse(p.HostID); err != nil {
		return fmt.Errorf("%w: host_id: %v", ErrInvalidPayload, err)
	}

	if p.Deleted {
		if err := h.blocks.Delete(ctx, tx, p.HostID, p.Source, p.ExternalID); err != nil {
			return err
		}
		h.logger.Info("external busy block removed", "host_id", p.HostID, "source", p.Source, "external_id", p.ExternalID)
		return nil
	}

	start, err := time.Parse(time.RFC3339, p.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start_time: %v", ErrInvalidPayload, err)
	}
	end, err := time.Parse(time.RFC3339, p.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end_time: %v", ErrInvalidPayload, err)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end_time must be after start_time", ErrInvalidPayload)
	}

	if err := h.blocks.Upsert(ctx, tx, storage.ExternalBlock{
		HostID:     p.HostID,
		Source:     p.Source,
		ExternalID: p.ExternalID,
		Start:      start.UTC(),
		End:        end.UTC(),
	}); err != nil {
		return err
	}
	h.logger.Info("external busy block stored", "host_id", p.HostID, "source", p.Source, "external_id", p.ExternalID)
	return nil
}
