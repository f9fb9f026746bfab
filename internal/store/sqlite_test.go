package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "dayzctl.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func TestModsRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddMod(ctx, "1559212036", "CF"); err != nil {
		t.Fatalf("AddMod: %v", err)
	}
	if err := s.AddMod(ctx, "1564026768", "Community Online Tools"); err != nil {
		t.Fatalf("AddMod: %v", err)
	}
	// Upsert on the same workshop id replaces the name.
	if err := s.AddMod(ctx, "1559212036", "Community Framework"); err != nil {
		t.Fatalf("AddMod upsert: %v", err)
	}

	mods, err := s.ListMods(ctx)
	if err != nil {
		t.Fatalf("ListMods: %v", err)
	}
	if len(mods) != 2 {
		t.Fatalf("len(mods) = %d, want 2", len(mods))
	}
	if mods[0].Name != "Community Framework" {
		t.Fatalf("mods[0].Name = %q (mods sort by name)", mods[0].Name)
	}

	if err := s.RemoveMod(ctx, "1559212036"); err != nil {
		t.Fatalf("RemoveMod: %v", err)
	}
	if err := s.RemoveMod(ctx, "1559212036"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("RemoveMod twice: err = %v, want ErrNotFound", err)
	}
}

func TestScheduledRestartPersistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	id, err := s.SaveRestart(ctx, RestartRecord{
		At:          at,
		InstallPath: "/srv/dayz",
		Profile:     "main",
		Params:      []string{"-port=2302", "-mod=@CF"},
	})
	if err != nil {
		t.Fatalf("SaveRestart: %v", err)
	}
	if id == 0 {
		t.Fatal("SaveRestart returned zero id")
	}

	pending, err := s.PendingRestarts(ctx)
	if err != nil {
		t.Fatalf("PendingRestarts: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}
	rec := pending[0]
	if rec.ID != id || rec.Profile != "main" || rec.InstallPath != "/srv/dayz" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Params) != 2 || rec.Params[1] != "-mod=@CF" {
		t.Fatalf("params = %v", rec.Params)
	}
	if !rec.At.Equal(at) {
		t.Fatalf("at = %v, want %v", rec.At, at)
	}

	if err := s.MarkRestartExecuted(ctx, id); err != nil {
		t.Fatalf("MarkRestartExecuted: %v", err)
	}
	pending, err = s.PendingRestarts(ctx)
	if err != nil {
		t.Fatalf("PendingRestarts: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("executed restart still pending: %+v", pending)
	}

	if err := s.MarkRestartExecuted(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark unknown: err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteRestart(ctx, id); err != nil {
		t.Fatalf("DeleteRestart: %v", err)
	}
}

func TestFactoryCreatesSQLite(t *testing.T) {
	s, err := CreateStore(Config{Type: "sqlite", Path: filepath.Join(t.TempDir(), "f.db")})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	defer func() { _ = s.Close() }()
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	if _, err := CreateStore(Config{Type: "bogus"}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
