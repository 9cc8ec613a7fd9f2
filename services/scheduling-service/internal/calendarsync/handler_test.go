package calendarsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type fakeBlocks struct {
	upserts []storage.ExternalBlock
	deletes []string
}

func (f *fakeBlocks) Upsert(_ context.Context, _ pgx.Tx, b storage.ExternalBlock) error {
	f.upserts = append(f.upserts, b)
	return nil
}

func (f *fakeBlocks) Delete(_ context.Context, _ pgx.Tx, hostID, source, externalID string) error {
	f.deletes = append(f.deletes, hostID+"/"+source+"/"+externalID)
	return nil
}

func newTestHandler() (*Handler, *fakeBlocks) {
	blocks := &fakeBlocks{}
	return NewHandler(blocks, slog.New(slog.NewTextHandler(io.Discard, nil))), blocks
}

func message(body string) kafka.Message {
	return kafka.Message{Topic: DefaultTopic, Value: []byte(body)}
}

func TestHandle_UpsertsBlockInUTC(t *testing.T) {
	h, blocks := newTestHandler()
	err := h.Handle(context.Background(), nil, message(`{
		"host_id": "6f1d2c3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f", "source": "google", "external_id": "evt-9",
		"start_time": "2026-01-26T10:00:00+02:00", "end_time": "2026-01-26T11:00:00+02:00"
	}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(blocks.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(blocks.upserts))
	}
	b := blocks.upserts[0]
	want := time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC)
	if !b.Start.Equal(want) || b.Start.Location() != time.UTC {
		t.Fatalf("expected start %s UTC, got %s", want, b.Start)
	}
	if b.HostID != "6f1d2c3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f" || b.Source != "google" || b.ExternalID != "evt-9" {
		t.Fatalf("unexpected block: %+v", b)
	}
}

func TestHandle_DeleteIgnoresTimes(t *testing.T) {
	h, blocks := newTestHandler()
	err := h.Handle(context.Background(), nil, message(`{"host_id":"6f1d2c3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f","source":"google","external_id":"evt-9","deleted":true}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(blocks.deletes) != 1 || blocks.deletes[0] != "6f1d2c3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f/google/evt-9" {
		t.Fatalf("unexpected deletes: %v", blocks.deletes)
	}
	if len(blocks.upserts) != 0 {
		t.Fatalf("delete must not upsert")
	}
}

func TestHandle_RejectsInvalidPayloads(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"source":"google","external_id":"e","start_time":"2026-01-26T10:00:00Z","end_time":"2026-01-26T11:00:00Z"}`,
		`{"host_id":"host-1","source":"google","external_id":"e","start_time":"2026-01-26T10:00:00Z","end_time":"2026-01-26T11:00:00Z"}`,
		`{"host_id":"6f1d2c3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f","source":"google","external_id":"e","start_time":"yesterday","end_time":"2026-01-26T11:00:00Z"}`,
		`{"host_id":"6f1d2c3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f","source":"google","external_id":"e","start_time":"2026-01-26T11:00:00Z","end_time":"2026-01-26T11:00:00Z"}`,
	}
	for _, body := range bodies {
		h, blocks := newTestHandler()
		err := h.Handle(context.Background(), nil, message(body))
		if !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("%s: expected ErrInvalidPayload, got %v", body, err)
		}
		if len(blocks.upserts)+len(blocks.deletes) != 0 {
			t.Fatalf("%s: invalid payload must not write", body)
		}
	}
}
