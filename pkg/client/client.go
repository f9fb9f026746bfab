package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client provides HTTP client functionality to communicate with a dayzctl
// daemon.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8115/api",
		Timeout: 15 * time.Second,
	}
}

// New creates a new dayzctl API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable.
func (c *Client) IsReachable(ctx context.Context) bool {
	var st ServerStatus
	err := c.do(ctx, http.MethodGet, "/server/status", nil, &st)
	return err == nil
}

// --- Server ---

func (c *Client) StartServer(ctx context.Context, req StartRequest) (int, error) {
	var resp struct {
		PID int `json:"pid"`
	}
	if err := c.do(ctx, http.MethodPost, "/server/start", req, &resp); err != nil {
		return 0, err
	}
	return resp.PID, nil
}

func (c *Client) StopServer(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/server/stop", nil, nil)
}

func (c *Client) RestartServer(ctx context.Context, req RestartRequest) (RestartResult, error) {
	var res RestartResult
	err := c.do(ctx, http.MethodPost, "/server/restart", req, &res)
	return res, err
}

func (c *Client) ServerStatus(ctx context.Context) (ServerStatus, error) {
	var st ServerStatus
	err := c.do(ctx, http.MethodGet, "/server/status", nil, &st)
	return st, err
}

func (c *Client) ServerStats(ctx context.Context) (ProcessStats, error) {
	var st ProcessStats
	err := c.do(ctx, http.MethodGet, "/server/stats", nil, &st)
	return st, err
}

func (c *Client) ServerPlayers(ctx context.Context) (PlayerCount, error) {
	var pc PlayerCount
	err := c.do(ctx, http.MethodGet, "/server/players", nil, &pc)
	return pc, err
}

func (c *Client) ScheduleRestart(ctx context.Context, req ScheduleRestartRequest) (ScheduledRestart, error) {
	var entry ScheduledRestart
	err := c.do(ctx, http.MethodPost, "/server/schedule-restart", req, &entry)
	return entry, err
}

func (c *Client) ListScheduledRestarts(ctx context.Context) ([]ScheduledRestart, error) {
	var out []ScheduledRestart
	err := c.do(ctx, http.MethodGet, "/server/schedule-restart", nil, &out)
	return out, err
}

func (c *Client) CancelScheduledRestart(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/server/schedule-restart/"+strconv.FormatInt(id, 10), nil, nil)
}

// --- RCON ---

func (c *Client) RconConnect(ctx context.Context, req RconConnectRequest) error {
	return c.do(ctx, http.MethodPost, "/rcon/connect", req, nil)
}

func (c *Client) RconDisconnect(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/rcon/disconnect", nil, nil)
}

func (c *Client) RconStatus(ctx context.Context) (RconStatus, error) {
	var st RconStatus
	err := c.do(ctx, http.MethodGet, "/rcon/status", nil, &st)
	return st, err
}

func (c *Client) RconCommand(ctx context.Context, command string) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	err := c.do(ctx, http.MethodPost, "/rcon/command", map[string]string{"command": command}, &resp)
	return resp.Response, err
}

func (c *Client) RconPlayers(ctx context.Context) ([]Player, error) {
	var out []Player
	err := c.do(ctx, http.MethodGet, "/rcon/players", nil, &out)
	return out, err
}

func (c *Client) Kick(ctx context.Context, playerID, reason string) error {
	return c.do(ctx, http.MethodPost, "/rcon/kick", map[string]string{"player_id": playerID, "reason": reason}, nil)
}

func (c *Client) Ban(ctx context.Context, playerID, reason string) error {
	return c.do(ctx, http.MethodPost, "/rcon/ban", map[string]string{"player_id": playerID, "reason": reason}, nil)
}

func (c *Client) Say(ctx context.Context, message string) error {
	return c.do(ctx, http.MethodPost, "/rcon/say", map[string]string{"message": message}, nil)
}

func (c *Client) RconShutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/rcon/shutdown", nil, nil)
}

func (c *Client) RconRestart(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/rcon/restart", nil, nil)
}

// --- Mods ---

func (c *Client) AddMod(ctx context.Context, workshopID, name string) (int64, error) {
	var resp struct {
		ItemID int64 `json:"item_id"`
	}
	err := c.do(ctx, http.MethodPost, "/mods", map[string]string{"workshop_id": workshopID, "name": name}, &resp)
	return resp.ItemID, err
}

func (c *Client) AddCollection(ctx context.Context, collectionID, name string) (int64, error) {
	var resp struct {
		ItemID int64 `json:"item_id"`
	}
	err := c.do(ctx, http.MethodPost, "/mods/collection", map[string]string{"collection_id": collectionID, "name": name}, &resp)
	return resp.ItemID, err
}

func (c *Client) ListMods(ctx context.Context) ([]Mod, error) {
	var out []Mod
	err := c.do(ctx, http.MethodGet, "/mods", nil, &out)
	return out, err
}

func (c *Client) RemoveMod(ctx context.Context, workshopID string) error {
	return c.do(ctx, http.MethodDelete, "/mods/"+url.PathEscape(workshopID), nil, nil)
}

func (c *Client) QueueStatus(ctx context.Context) (QueueStatus, error) {
	var st QueueStatus
	err := c.do(ctx, http.MethodGet, "/mods/queue", nil, &st)
	return st, err
}

func (c *Client) RemoveQueueItem(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/mods/queue/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) ClearCompleted(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/mods/clear-completed", nil, nil)
}

func (c *Client) ClearAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/mods/clear-all", nil, nil)
}

// --- Events ---

func (c *Client) Events(ctx context.Context, limit int) ([]HistoryEvent, error) {
	path := "/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []HistoryEvent
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// do performs a JSON request against the daemon and decodes the response
// into out when non-nil. Non-2xx responses become errors carrying the
// daemon's error message.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
