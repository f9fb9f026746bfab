package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite implements Store with the CGO-free modernc driver. Path is a
// filesystem path; use ":memory:" for tests.
type SQLite struct {
	db *sql.DB
}

var ErrNotFound = errors.New("store: not found")

func NewSQLite(path string) (*SQLite, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	db.SetMaxOpenConns(1)
	return &SQLite{db: db}, nil
}

func (s *SQLite) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mods(
			workshop_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			installed_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_restarts(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TIMESTAMP NOT NULL,
			install_path TEXT NOT NULL,
			profile TEXT NOT NULL,
			params TEXT NOT NULL,
			executed BOOLEAN NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_restarts_pending
			ON scheduled_restarts(executed, at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) AddMod(ctx context.Context, workshopID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mods(workshop_id, name, installed_at)
		VALUES(?, ?, ?)
		ON CONFLICT(workshop_id) DO UPDATE SET
			name=excluded.name,
			installed_at=excluded.installed_at;`,
		workshopID, name, time.Now().UTC())
	return err
}

func (s *SQLite) RemoveMod(ctx context.Context, workshopID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mods WHERE workshop_id=?;`, workshopID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ListMods(ctx context.Context) ([]Mod, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workshop_id, name, installed_at FROM mods ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]Mod, 0)
	for rows.Next() {
		var m Mod
		if err := rows.Scan(&m.WorkshopID, &m.Name, &m.InstalledAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveRestart(ctx context.Context, rec RestartRecord) (int64, error) {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_restarts(at, install_path, profile, params, executed)
		VALUES(?, ?, ?, ?, 0);`,
		rec.At.UTC(), rec.InstallPath, rec.Profile, string(params))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLite) MarkRestartExecuted(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_restarts SET executed=1 WHERE id=?;`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) DeleteRestart(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_restarts WHERE id=?;`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) PendingRestarts(ctx context.Context) ([]RestartRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, install_path, profile, params, executed
		FROM scheduled_restarts
		WHERE executed=0
		ORDER BY at;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]RestartRecord, 0)
	for rows.Next() {
		var rec RestartRecord
		var params string
		if err := rows.Scan(&rec.ID, &rec.At, &rec.InstallPath, &rec.Profile, &params, &rec.Executed); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
