package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func TestMemoryRecentNewestFirst(t *testing.T) {
	m := NewMemory(3)
	ctx := context.Background()
	for _, subj := range []string{"a", "b", "c", "d"} {
		_ = m.Send(ctx, Event{Type: EventRconCommand, Subject: subj, OccurredAt: time.Now()})
	}

	got := m.Recent(0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (ring capacity)", len(got))
	}
	if got[0].Subject != "d" || got[1].Subject != "c" || got[2].Subject != "b" {
		t.Fatalf("order = [%s %s %s], want [d c b]", got[0].Subject, got[1].Subject, got[2].Subject)
	}

	if got := m.Recent(1); len(got) != 1 || got[0].Subject != "d" {
		t.Fatalf("Recent(1) = %+v", got)
	}
}

func TestMemoryRecentBeforeWrap(t *testing.T) {
	m := NewMemory(8)
	_ = m.Send(context.Background(), Event{Subject: "only"})
	got := m.Recent(0)
	if len(got) != 1 || got[0].Subject != "only" {
		t.Fatalf("Recent = %+v", got)
	}
}

func TestSQLSinkSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	sink, err := NewSQLSinkFromDSN(path)
	if err != nil {
		t.Fatalf("NewSQLSinkFromDSN: %v", err)
	}
	defer func() { _ = sink.Close() }()

	e := Event{
		Type:       EventServerStarted,
		OccurredAt: time.Now().UTC(),
		Profile:    "main",
		Subject:    "main",
		Detail:     "pid 4242",
	}
	if err := sink.Send(context.Background(), e); err != nil {
		t.Fatalf("Send: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = db.Close() }()
	var event, profile, detail string
	row := db.QueryRow(`SELECT event, profile, detail FROM server_history LIMIT 1`)
	if err := row.Scan(&event, &profile, &detail); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if event != "server-started" || profile != "main" || detail != "pid 4242" {
		t.Fatalf("row = %s/%s/%s", event, profile, detail)
	}
}

func TestBuildWithoutSinks(t *testing.T) {
	sink, mem, err := Build(Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_ = sink.Send(context.Background(), Event{Subject: "x"})
	if got := mem.Recent(0); len(got) != 1 {
		t.Fatalf("memory journal should always record, got %d", len(got))
	}
}

func TestBuildRejectsBadDSN(t *testing.T) {
	_, _, err := Build(Config{Enabled: true, DSNs: []string{""}})
	if err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
