package store

import (
	"context"
	"time"
)

// Mod is one installed workshop mod.
type Mod struct {
	WorkshopID  string    `json:"workshop_id"`
	Name        string    `json:"name"`
	InstalledAt time.Time `json:"installed_at"`
}

// RestartRecord is a persisted one-shot scheduled restart so pending
// restarts survive a daemon restart.
type RestartRecord struct {
	ID          int64     `json:"id"`
	At          time.Time `json:"at"`
	InstallPath string    `json:"install_path"`
	Profile     string    `json:"profile"`
	Params      []string  `json:"params"`
	Executed    bool      `json:"executed"`
}

// Store persists the mods registry and scheduled restarts.
type Store interface {
	EnsureSchema(ctx context.Context) error

	AddMod(ctx context.Context, workshopID, name string) error
	RemoveMod(ctx context.Context, workshopID string) error
	ListMods(ctx context.Context) ([]Mod, error)

	SaveRestart(ctx context.Context, rec RestartRecord) (int64, error)
	MarkRestartExecuted(ctx context.Context, id int64) error
	DeleteRestart(ctx context.Context, id int64) error
	PendingRestarts(ctx context.Context) ([]RestartRecord, error)

	Close() error
}

// Config selects and parameterizes a store backend.
type Config struct {
	Type string `mapstructure:"type" toml:"type"`
	Path string `mapstructure:"path" toml:"path"`
}
