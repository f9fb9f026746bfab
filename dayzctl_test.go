package dayzctl

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dayzctl/dayzctl/internal/config"
	"github.com/dayzctl/dayzctl/internal/events"
	"github.com/dayzctl/dayzctl/internal/history"
	"github.com/dayzctl/dayzctl/internal/modqueue"
	"github.com/dayzctl/dayzctl/internal/store"
	"github.com/dayzctl/dayzctl/internal/supervisor"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		Server: config.ServerConfig{InstallPath: dir, Profile: "main"},
		Store:  store.Config{Type: "sqlite", Path: filepath.Join(dir, "dayzctl.db")},
		HTTP:   config.HTTPConfig{Listen: "127.0.0.1:0", BasePath: "/api"},
	}
}

func TestNewDaemonAndClose(t *testing.T) {
	d, err := NewDaemon(testConfig(t))
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	if d.Supervisor() == nil || d.Rcon() == nil || d.Queue() == nil {
		t.Fatal("daemon components should be wired")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRestorePendingRestarts(t *testing.T) {
	cfg := testConfig(t)

	d, err := NewDaemon(cfg)
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	at := time.Now().Add(2 * time.Hour)
	entry := d.Supervisor().ScheduleRestart(at, cfg.Server.InstallPath, "main", nil)
	if entry.ID == 0 {
		t.Fatal("scheduled restart should carry a durable id")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	d2, err := NewDaemon(cfg)
	if err != nil {
		t.Fatalf("NewDaemon second: %v", err)
	}
	defer func() { _ = d2.Close() }()
	if err := d2.restorePendingRestarts(t.Context()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	pending := d2.Supervisor().PendingScheduledRestarts()
	if len(pending) != 1 {
		t.Fatalf("expected 1 restored restart, got %d", len(pending))
	}
	if pending[0].At.Unix() != at.Unix() {
		t.Fatalf("restored time mismatch: got %v want %v", pending[0].At, at)
	}
}

func TestToHistoryEvent(t *testing.T) {
	e := events.Event{
		Type:       events.ServerStarted,
		OccurredAt: time.Now(),
		Payload:    supervisor.Status{Profile: "main", PID: 42},
	}
	he, ok := toHistoryEvent(e)
	if !ok {
		t.Fatal("server started should map")
	}
	if he.Type != history.EventServerStarted || he.Profile != "main" || he.Detail != "pid 42" {
		t.Fatalf("unexpected mapping: %+v", he)
	}

	e = events.Event{
		Type:    events.ItemFailed,
		Payload: modqueue.Item{WorkshopID: "123", State: modqueue.StateFailed, Error: "boom"},
	}
	he, ok = toHistoryEvent(e)
	if !ok {
		t.Fatal("item failed should map")
	}
	if he.Type != history.EventModDownloaded || he.Subject != "123" || he.Detail != "failed: boom" {
		t.Fatalf("unexpected mapping: %+v", he)
	}

	if _, ok := toHistoryEvent(events.Event{Type: events.ItemProgress}); ok {
		t.Fatal("progress events should not reach history")
	}
}
