package main

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/scheduling")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.GRPCPort != "9090" {
		t.Fatalf("unexpected ports %s/%s", cfg.Port, cfg.GRPCPort)
	}
	if cfg.CompletionInterval != time.Minute {
		t.Fatalf("unexpected completion interval %s", cfg.CompletionInterval)
	}
	if cfg.CalendarSyncTopic != "calendar.busy.synced.v1" {
		t.Fatalf("unexpected topic %s", cfg.CalendarSyncTopic)
	}
}

func TestLoadConfig_ReportsAllInvalidKeys(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "http")
	t.Setenv("COMPLETION_INTERVAL", "soon")
	_, err := loadConfig()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, key := range []string{"DATABASE_URL", "PORT", "COMPLETION_INTERVAL"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not mention %s", err, key)
		}
	}
}
