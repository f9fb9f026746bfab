package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dayzctl/dayzctl/internal/events"
	"github.com/dayzctl/dayzctl/internal/history"
	"github.com/dayzctl/dayzctl/internal/logger"
	"github.com/dayzctl/dayzctl/internal/modqueue"
	"github.com/dayzctl/dayzctl/internal/rcon"
	"github.com/dayzctl/dayzctl/internal/store"
	"github.com/dayzctl/dayzctl/internal/supervisor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProvider struct{}

func (stubProvider) DownloadMod(ctx context.Context, workshopID, installPath string, onProgress func(int)) (string, error) {
	if onProgress != nil {
		onProgress(100)
	}
	return installPath, nil
}

func (stubProvider) ModDetails(ctx context.Context, workshopID string) (modqueue.ModDetails, error) {
	return modqueue.ModDetails{Name: "Mod " + workshopID}, nil
}

func (stubProvider) CollectionMemberIDs(ctx context.Context, collectionID string) ([]string, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) (http.Handler, *history.Memory) {
	t.Helper()
	log := slog.Default()
	bus := events.NewBus()
	sup := supervisor.New(log, bus, logger.Config{Dir: t.TempDir()})

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}

	queue := modqueue.New(stubProvider{}, nil, bus, log)
	queue.SetInstallPath(t.TempDir())

	journal := history.NewMemory(16)
	r := NewRouter("/api", Deps{
		Supervisor: sup,
		Rcon:       rcon.New(log),
		Queue:      queue,
		Mods:       st,
		Journal:    journal,
		Sink:       journal,
		Log:        log,
	})
	return r.Handler(), journal
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServerStatusWhenStopped(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doJSON(t, h, http.MethodGet, "/api/server/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}
	var st supervisor.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Running {
		t.Fatal("expected stopped status")
	}
}

func TestServerStopWhenNotRunningIsConflict(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doJSON(t, h, http.MethodPost, "/api/server/stop", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409; body = %s", w.Code, w.Body.String())
	}
}

func TestServerStartValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doJSON(t, h, http.MethodPost, "/api/server/start", `{"install_path":"relative/path","profile":"main"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("relative path: code = %d, want 400", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/server/start", `{"install_path":"/srv/dayz","profile":"../evil"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad profile: code = %d, want 400", w.Code)
	}
}

func TestServerStartMissingPathIsBadRequest(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doJSON(t, h, http.MethodPost, "/api/server/start",
		`{"install_path":"`+filepath.Join("/nonexistent", "dayz")+`","profile":"main"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400; body = %s", w.Code, w.Body.String())
	}
}

func TestRconCommandNotConnected(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doJSON(t, h, http.MethodPost, "/api/rcon/command", `{"command":"players"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409; body = %s", w.Code, w.Body.String())
	}
}

func TestRconStatusDisconnected(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doJSON(t, h, http.MethodGet, "/api/rcon/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var st rcon.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Connected {
		t.Fatal("expected disconnected")
	}
}

func TestModAddValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doJSON(t, h, http.MethodPost, "/api/mods", `{"workshop_id":"not-a-number"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", w.Code)
	}
}

func TestModAddAccepted(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doJSON(t, h, http.MethodPost, "/api/mods", `{"workshop_id":"1559212036","name":"CF"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("code = %d, want 202; body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		ItemID int64 `json:"item_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ItemID == 0 {
		t.Fatal("missing item_id")
	}
}

func TestModListEmpty(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doJSON(t, h, http.MethodGet, "/api/mods", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var mods []store.Mod
	if err := json.Unmarshal(w.Body.Bytes(), &mods); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(mods) != 0 {
		t.Fatalf("mods = %v, want empty", mods)
	}
}

func TestScheduleRestartLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	at := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	w := doJSON(t, h, http.MethodPost, "/api/server/schedule-restart",
		`{"at":"`+at+`","install_path":"/srv/dayz","profile":"main"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("schedule: code = %d; body = %s", w.Code, w.Body.String())
	}
	var entry supervisor.ScheduledRestart
	if err := json.Unmarshal(w.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doJSON(t, h, http.MethodGet, "/api/server/schedule-restart", "")
	var pending []supervisor.ScheduledRestart
	if err := json.Unmarshal(w.Body.Bytes(), &pending); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	path := "/api/server/schedule-restart/" + jsonNumber(entry.ID)
	if w = doJSON(t, h, http.MethodDelete, path, ""); w.Code != http.StatusOK {
		t.Fatalf("cancel: code = %d", w.Code)
	}
	if w = doJSON(t, h, http.MethodDelete, path, ""); w.Code != http.StatusNotFound {
		t.Fatalf("cancel twice: code = %d, want 404", w.Code)
	}
}

func TestScheduleRestartRequiresTime(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doJSON(t, h, http.MethodPost, "/api/server/schedule-restart", `{"profile":"main"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", w.Code)
	}
}

func TestEventsEndpoint(t *testing.T) {
	h, journal := newTestHandler(t)
	_ = journal.Send(context.Background(), history.Event{
		Type: history.EventRconCommand, Subject: "players", OccurredAt: time.Now(),
	})

	w := doJSON(t, h, http.MethodGet, "/api/events?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var evts []history.Event
	if err := json.Unmarshal(w.Body.Bytes(), &evts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(evts) != 1 || evts[0].Subject != "players" {
		t.Fatalf("events = %+v", evts)
	}

	if w = doJSON(t, h, http.MethodGet, "/api/events?limit=bogus", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: code = %d, want 400", w.Code)
	}
}

func TestQueueClearAllIdle(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doJSON(t, h, http.MethodPost, "/api/mods/clear-all", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d; body = %s", w.Code, w.Body.String())
	}
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
