package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/api"})
}

func TestStartServer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/server/start" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.InstallPath != "/srv/dayz" || req.Profile != "main" {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"ok":true,"pid":4242}`))
	})

	pid, err := c.StartServer(context.Background(), StartRequest{InstallPath: "/srv/dayz", Profile: "main"})
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	if pid != 4242 {
		t.Fatalf("pid = %d, want 4242", pid)
	}
}

func TestErrorResponseSurfacesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"server already running"}`))
	})

	err := c.StopServer(context.Background())
	if err == nil || !strings.Contains(err.Error(), "server already running") {
		t.Fatalf("err = %v, want daemon message", err)
	}
}

func TestQueueStatusDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/mods/queue" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"total":2,"pending":1,"downloading":1,"is_processing":true,
			"items":[{"id":1,"workshop_id":"42","state":"downloading","progress":50}]}`))
	})

	st, err := c.QueueStatus(context.Background())
	if err != nil {
		t.Fatalf("QueueStatus: %v", err)
	}
	if st.Total != 2 || !st.IsProcessing || len(st.Items) != 1 || st.Items[0].Progress != 50 {
		t.Fatalf("status = %+v", st)
	}
}

func TestIsReachable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"running":false,"state":"absent","pid":0}`))
	})
	if !c.IsReachable(context.Background()) {
		t.Fatal("expected reachable")
	}

	c = New(Config{BaseURL: "http://127.0.0.1:1/api"})
	if c.IsReachable(context.Background()) {
		t.Fatal("expected unreachable")
	}
}
