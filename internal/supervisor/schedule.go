package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/dayzctl/dayzctl/internal/events"
	"github.com/robfig/cron/v3"
)

// ScheduledRestart is a one-shot restart entry. Once Executed flips true the
// entry is inert: it is never re-executed but stays in the registry until
// explicitly canceled or filtered out of pending views.
type ScheduledRestart struct {
	ID          int64     `json:"id"`
	At          time.Time `json:"at"`
	InstallPath string    `json:"install_path"`
	Profile     string    `json:"profile"`
	Params      []string  `json:"params"`
	Executed    bool      `json:"executed"`
}

// RestartPersister mirrors registry mutations into durable storage so
// pending one-shot restarts survive a daemon restart. All calls are
// best-effort; persistence failures never block scheduling.
type RestartPersister interface {
	Save(rec ScheduledRestart) (int64, error)
	MarkExecuted(id int64) error
	Delete(id int64) error
}

// restartRegistry holds the scheduled restart entries. Owned exclusively by
// the Supervisor; polled by an external periodic driver.
type restartRegistry struct {
	mu      sync.Mutex
	nextID  int64
	entries []*ScheduledRestart
	persist RestartPersister
}

// SetRestartPersister wires durable storage for scheduled restarts.
func (s *Supervisor) SetRestartPersister(p RestartPersister) {
	s.sched.mu.Lock()
	s.sched.persist = p
	s.sched.mu.Unlock()
}

// RestoreScheduledRestarts seeds the registry from durable storage,
// typically once at daemon startup before the poller runs.
func (s *Supervisor) RestoreScheduledRestarts(entries []ScheduledRestart) {
	s.sched.mu.Lock()
	defer s.sched.mu.Unlock()
	for _, e := range entries {
		cp := e
		s.sched.entries = append(s.sched.entries, &cp)
		if e.ID > s.sched.nextID {
			s.sched.nextID = e.ID
		}
	}
}

// ScheduleRestart registers a one-shot restart at the given time. When a
// persister is wired its durable id becomes the entry id.
func (s *Supervisor) ScheduleRestart(at time.Time, installPath, profile string, params []string) ScheduledRestart {
	s.sched.mu.Lock()
	defer s.sched.mu.Unlock()
	entry := &ScheduledRestart{
		At:          at,
		InstallPath: installPath,
		Profile:     profile,
		Params:      append([]string(nil), params...),
	}
	if s.sched.persist != nil {
		if id, err := s.sched.persist.Save(*entry); err == nil {
			entry.ID = id
			if id > s.sched.nextID {
				s.sched.nextID = id
			}
		} else {
			s.log.Warn("failed to persist scheduled restart", "error", err)
		}
	}
	if entry.ID == 0 {
		s.sched.nextID++
		entry.ID = s.sched.nextID
	}
	s.sched.entries = append(s.sched.entries, entry)
	s.log.Info("restart scheduled", "id", entry.ID, "at", at, "profile", profile)
	return *entry
}

// CancelScheduledRestart removes an entry by id.
func (s *Supervisor) CancelScheduledRestart(id int64) error {
	s.sched.mu.Lock()
	defer s.sched.mu.Unlock()
	for i, e := range s.sched.entries {
		if e.ID == id {
			s.sched.entries = append(s.sched.entries[:i], s.sched.entries[i+1:]...)
			if s.sched.persist != nil {
				if err := s.sched.persist.Delete(id); err != nil {
					s.log.Warn("failed to delete persisted restart", "id", id, "error", err)
				}
			}
			return nil
		}
	}
	return fmt.Errorf("%w: id %d", ErrScheduleNotFound, id)
}

// PendingScheduledRestarts lists entries that have not yet executed.
func (s *Supervisor) PendingScheduledRestarts() []ScheduledRestart {
	s.sched.mu.Lock()
	defer s.sched.mu.Unlock()
	var out []ScheduledRestart
	for _, e := range s.sched.entries {
		if !e.Executed {
			out = append(out, *e)
		}
	}
	return out
}

// CheckAndExecuteDue marks every due entry executed exactly once and, only
// when the server is currently running, performs an immediate restart with
// that entry's parameters. A due entry found while the server is stopped is
// still marked executed and does not cold-start the server: scheduled
// restarts only restart. Returns the number of entries marked executed.
func (s *Supervisor) CheckAndExecuteDue(now time.Time) int {
	s.sched.mu.Lock()
	var due []*ScheduledRestart
	for _, e := range s.sched.entries {
		if !e.Executed && !now.Before(e.At) {
			e.Executed = true
			due = append(due, e)
		}
	}
	persist := s.sched.persist
	s.sched.mu.Unlock()

	if persist != nil {
		for _, e := range due {
			if err := persist.MarkExecuted(e.ID); err != nil {
				s.log.Warn("failed to mark persisted restart executed", "id", e.ID, "error", err)
			}
		}
	}

	executed := 0
	for _, e := range due {
		executed++
		if !s.GetStatus().Running {
			s.log.Info("scheduled restart due while server stopped; skipping", "id", e.ID)
			continue
		}
		s.log.Info("executing scheduled restart", "id", e.ID, "profile", e.Profile)
		if _, err := s.restart(e.InstallPath, e.Profile, e.Params, 0, "scheduled"); err != nil {
			s.log.Error("scheduled restart failed", "id", e.ID, "error", err)
			continue
		}
		s.bus.Publish(events.RestartExecuted, *e)
	}
	return executed
}

// RunSchedulePoller drives CheckAndExecuteDue on a fixed cadence until the
// stop channel closes. The daemon runs exactly one poller.
func (s *Supervisor) RunSchedulePoller(every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.CheckAndExecuteDue(time.Now())
		}
	}
}

// RecurringScheduler restarts the server on cron expressions (standard five
// field specs or descriptors like "@every 4h"). A tick that fires while the
// server is stopped is skipped, matching one-shot semantics.
type RecurringScheduler struct {
	c   *cron.Cron
	sup *Supervisor
}

// NewRecurringScheduler builds an idle scheduler bound to sup.
func NewRecurringScheduler(sup *Supervisor) *RecurringScheduler {
	return &RecurringScheduler{c: cron.New(), sup: sup}
}

// Add registers a recurring restart using the parameters of the most recent
// successful start.
func (r *RecurringScheduler) Add(spec string) (cron.EntryID, error) {
	return r.c.AddFunc(spec, func() {
		sup := r.sup
		sup.mu.Lock()
		installPath, profile, params := sup.lastInstallPath, sup.lastProfile, sup.lastParams
		sup.mu.Unlock()

		if !sup.GetStatus().Running {
			sup.log.Info("recurring restart tick while server stopped; skipping", "schedule", spec)
			return
		}
		sup.log.Info("recurring restart firing", "schedule", spec, "profile", profile)
		if _, err := sup.restart(installPath, profile, params, 0, "recurring"); err != nil {
			sup.log.Error("recurring restart failed", "schedule", spec, "error", err)
		}
	})
}

// Start launches the cron runner.
func (r *RecurringScheduler) Start() { r.c.Start() }

// Stop halts the cron runner; running jobs finish.
func (r *RecurringScheduler) Stop() { r.c.Stop() }
