package client

import "time"

// StartRequest starts the dedicated server.
type StartRequest struct {
	InstallPath string   `json:"install_path"`
	Profile     string   `json:"profile"`
	Params      []string `json:"params,omitempty"`
}

// RestartRequest restarts the server, optionally after a countdown.
type RestartRequest struct {
	InstallPath      string   `json:"install_path,omitempty"`
	Profile          string   `json:"profile,omitempty"`
	Params           []string `json:"params,omitempty"`
	CountdownSeconds int      `json:"countdown_seconds,omitempty"`
}

// RestartResult reports what the restart endpoint did.
type RestartResult struct {
	Scheduled        bool `json:"scheduled"`
	CountdownSeconds int  `json:"countdown_seconds,omitempty"`
	PID              int  `json:"pid,omitempty"`
}

// ServerStatus mirrors the daemon's status response.
type ServerStatus struct {
	Running     bool      `json:"running"`
	State       string    `json:"state"`
	PID         int       `json:"pid"`
	InstallPath string    `json:"install_path,omitempty"`
	Profile     string    `json:"profile,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
}

// ProcessStats is the server process resource snapshot.
type ProcessStats struct {
	PID         int       `json:"pid"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryBytes uint64    `json:"memory_bytes"`
	MemoryMB    float64   `json:"memory_mb"`
	NumThreads  int32     `json:"num_threads"`
	SampledAt   time.Time `json:"sampled_at"`
}

// PlayerCount is the scraped player count.
type PlayerCount struct {
	Count int `json:"count"`
	Max   int `json:"max"`
}

// ScheduleRestartRequest registers a one-shot restart at a point in time.
type ScheduleRestartRequest struct {
	At          time.Time `json:"at"`
	InstallPath string    `json:"install_path,omitempty"`
	Profile     string    `json:"profile,omitempty"`
	Params      []string  `json:"params,omitempty"`
}

// ScheduledRestart is one pending scheduled restart.
type ScheduledRestart struct {
	ID          int64     `json:"id"`
	At          time.Time `json:"at"`
	InstallPath string    `json:"install_path,omitempty"`
	Profile     string    `json:"profile,omitempty"`
	Params      []string  `json:"params,omitempty"`
	Executed    bool      `json:"executed"`
}

// RconConnectRequest opens the daemon's rcon session.
type RconConnectRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
}

// RconStatus mirrors the daemon's rcon connection state.
type RconStatus struct {
	Connected   bool   `json:"connected"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	HasPassword bool   `json:"has_password"`
}

// Player is one connected player as reported over rcon.
type Player struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Mod is one installed workshop mod.
type Mod struct {
	WorkshopID  string    `json:"workshop_id"`
	Name        string    `json:"name"`
	InstalledAt time.Time `json:"installed_at"`
}

// QueueItem is one entry in the download queue.
type QueueItem struct {
	ID         int64    `json:"id"`
	WorkshopID string   `json:"workshop_id"`
	Name       string   `json:"name"`
	MemberIDs  []string `json:"member_ids,omitempty"`
	State      string   `json:"state"`
	Progress   int      `json:"progress"`
	Error      string   `json:"error,omitempty"`
}

// QueueStatus is the queue snapshot.
type QueueStatus struct {
	Total        int         `json:"total"`
	Pending      int         `json:"pending"`
	Downloading  int         `json:"downloading"`
	Completed    int         `json:"completed"`
	Failed       int         `json:"failed"`
	CurrentItem  *QueueItem  `json:"current_item,omitempty"`
	IsProcessing bool        `json:"is_processing"`
	Items        []QueueItem `json:"items"`
}

// HistoryEvent is one journal entry.
type HistoryEvent struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Profile    string    `json:"profile"`
	Subject    string    `json:"subject"`
	Detail     string    `json:"detail,omitempty"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
