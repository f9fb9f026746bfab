//go:build !windows

package supervisor

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dayzctl/dayzctl/internal/metrics"
)

func TestScheduleRestartLifecycle(t *testing.T) {
	s := newTestSupervisor(t)
	at := time.Now().Add(time.Hour)
	entry := s.ScheduleRestart(at, "/srv/dayz", "vanilla", []string{"-port=2302"})
	if entry.ID == 0 || entry.Executed {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	pending := s.PendingScheduledRestarts()
	if len(pending) != 1 || pending[0].ID != entry.ID {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	if err := s.CancelScheduledRestart(entry.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := s.PendingScheduledRestarts(); len(got) != 0 {
		t.Fatalf("expected empty pending after cancel, got %+v", got)
	}
	if err := s.CancelScheduledRestart(entry.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("want ErrScheduleNotFound, got %v", err)
	}
}

func TestCheckAndExecuteDueBeforeAndAfterTrigger(t *testing.T) {
	s := newTestSupervisor(t)
	trigger := time.Now()
	s.ScheduleRestart(trigger, "/srv/dayz", "vanilla", nil)

	if n := s.CheckAndExecuteDue(trigger.Add(-time.Second)); n != 0 {
		t.Fatalf("entry executed before its trigger time, n=%d", n)
	}
	if len(s.PendingScheduledRestarts()) != 1 {
		t.Fatalf("entry must remain pending before trigger")
	}

	// Server stopped: entry is marked executed but no cold start happens.
	if n := s.CheckAndExecuteDue(trigger.Add(time.Second)); n != 1 {
		t.Fatalf("expected exactly one execution, got %d", n)
	}
	if s.GetStatus().Running {
		t.Fatalf("scheduled restart must never cold-start the server")
	}
	// Second poll: already executed, inert.
	if n := s.CheckAndExecuteDue(trigger.Add(2 * time.Second)); n != 0 {
		t.Fatalf("entry re-executed, n=%d", n)
	}
	if got := s.PendingScheduledRestarts(); len(got) != 0 {
		t.Fatalf("executed entry must drop out of pending views, got %+v", got)
	}
}

func TestCheckAndExecuteDueRestartsRunningServer(t *testing.T) {
	dir := t.TempDir()
	writeFakeServer(t, dir, "sleep 30")
	s := newTestSupervisor(t)

	first, err := s.Start(dir, "vanilla", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.ScheduleRestart(time.Now().Add(-time.Second), dir, "vanilla", nil)

	if n := s.CheckAndExecuteDue(time.Now()); n != 1 {
		t.Fatalf("expected one execution, got %d", n)
	}
	st := s.GetStatus()
	if !st.Running || st.PID == first {
		t.Fatalf("expected a restarted server with a fresh pid, got first=%d status=%+v", first, st)
	}
}

func TestScheduledRestartCountedOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	dir := t.TempDir()
	writeFakeServer(t, dir, "sleep 30")
	s := newTestSupervisor(t)
	if _, err := s.Start(dir, "metered", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.ScheduleRestart(time.Now().Add(-time.Second), dir, "metered", nil)
	if n := s.CheckAndExecuteDue(time.Now()); n != 1 {
		t.Fatalf("expected one execution, got %d", n)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var scheduled, manual float64
	for _, mf := range mfs {
		if mf.GetName() != "dayzctl_server_restarts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["profile"] != "metered" {
				continue
			}
			switch labels["trigger"] {
			case "scheduled":
				scheduled += m.GetCounter().GetValue()
			case "manual":
				manual += m.GetCounter().GetValue()
			}
		}
	}
	if scheduled != 1 {
		t.Fatalf("restarts_total{trigger=scheduled} = %v, want 1", scheduled)
	}
	if manual != 0 {
		t.Fatalf("restarts_total{trigger=manual} = %v, want 0 for a scheduled restart", manual)
	}
}

func TestRecurringSchedulerRejectsBadSpec(t *testing.T) {
	s := newTestSupervisor(t)
	r := NewRecurringScheduler(s)
	if _, err := r.Add("not a cron spec"); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
	if _, err := r.Add("@every 4h"); err != nil {
		t.Fatalf("valid descriptor rejected: %v", err)
	}
	r.Start()
	r.Stop()
}
