package supervisor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dayzctl/dayzctl/internal/events"
	"github.com/dayzctl/dayzctl/internal/logger"
	"github.com/dayzctl/dayzctl/internal/metrics"
)

// State is the supervisor's lifecycle state for the single server process.
// Transitions: Absent -> Starting -> Running -> Stopping -> Absent. Any
// failure inside the start grace window returns to Absent. There is no
// distinct crashed state: an unexpected exit clears the handle.
type State int

const (
	StateAbsent State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Timing defaults. Exposed as fields on Supervisor so tests can shrink them.
const (
	DefaultSpawnGrace   = 500 * time.Millisecond
	DefaultStopGrace    = 5 * time.Second
	DefaultSettleDelay  = 2 * time.Second
	DefaultMonitorEvery = 2 * time.Second
)

// serverHandle tracks the one live child process. At most one handle exists
// at any time; it is created on successful spawn and cleared on exit, kill,
// or spawn failure.
type serverHandle struct {
	cmd         *exec.Cmd
	pid         int
	installPath string
	profile     string
	params      []string
	startedAt   time.Time
	killed      bool
	exitErr     error
	waitDone    chan struct{}
	outCloser   io.WriteCloser
	errCloser   io.WriteCloser
}

func (h *serverHandle) closeWriters() {
	if h.outCloser != nil {
		_ = h.outCloser.Close()
		h.outCloser = nil
	}
	if h.errCloser != nil {
		_ = h.errCloser.Close()
		h.errCloser = nil
	}
}

// Status is a point-in-time view of the supervised process.
type Status struct {
	Running     bool      `json:"running"`
	State       string    `json:"state"`
	PID         int       `json:"pid"`
	InstallPath string    `json:"install_path,omitempty"`
	Profile     string    `json:"profile,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
}

// PlayerCount is the best-effort result of scraping the console log.
type PlayerCount struct {
	Count int `json:"count"`
	Max   int `json:"max"`
}

// RestartResult reports what Restart did. When CountdownSeconds > 0 the
// restart is only acknowledged; the caller's timer performs it later by
// calling Restart again with a zero countdown.
type RestartResult struct {
	Scheduled        bool `json:"scheduled"`
	CountdownSeconds int  `json:"countdown_seconds,omitempty"`
	PID              int  `json:"pid,omitempty"`
}

// Supervisor owns the lifecycle of exactly one DayZ server process: spawn,
// supervise, terminate, resource reporting and time-based restart
// scheduling. All mutable state is guarded by mu; the exit monitor and the
// stats loop coordinate with operations through the handle identity.
type Supervisor struct {
	mu     sync.Mutex
	state  State
	handle *serverHandle

	// Parameters of the most recent successful start, used by recurring
	// restart schedules.
	lastInstallPath string
	lastProfile     string
	lastParams      []string

	platform Platform
	bus      *events.Bus
	log      *slog.Logger
	logCfg   logger.Config

	playerCount PlayerCountFunc

	SpawnGrace   time.Duration
	StopGrace    time.Duration
	SettleDelay  time.Duration
	MonitorEvery time.Duration

	sched restartRegistry
}

// New builds a supervisor with OS-default process control.
func New(log *slog.Logger, bus *events.Bus, logCfg logger.Config) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Supervisor{
		platform:     DefaultPlatform(),
		bus:          bus,
		log:          log,
		logCfg:       logCfg,
		playerCount:  ScrapePlayerCount,
		SpawnGrace:   DefaultSpawnGrace,
		StopGrace:    DefaultStopGrace,
		SettleDelay:  DefaultSettleDelay,
		MonitorEvery: DefaultMonitorEvery,
	}
}

// SetPlatform swaps the process-control implementation (tests).
func (s *Supervisor) SetPlatform(p Platform) { s.platform = p }

// SetPlayerCountFunc swaps the console-log scraping function (tests).
func (s *Supervisor) SetPlayerCountFunc(f PlayerCountFunc) { s.playerCount = f }

// profileDir is where the server writes profile data and console logs.
func profileDir(installPath, profile string) string {
	return filepath.Join(installPath, "profiles", profile)
}

// buildArgs prepends the fixed required flags and strips any caller-supplied
// profile flag so it cannot be duplicated.
func buildArgs(installPath, profile string, params []string) []string {
	args := []string{
		"-config=serverDZ.cfg",
		"-profiles=" + profileDir(installPath, profile),
		"-dologs",
		"-adminlog",
		"-netlog",
	}
	for _, p := range params {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(p)), "-profiles") {
			continue
		}
		args = append(args, p)
	}
	return args
}

// Start spawns the server process. It fails with ErrAlreadyRunning when a
// handle exists, ErrPathNotFound / ErrExecutableNotFound on bad input, and
// ErrSpawnFailed when the process dies inside the spawn grace window. Every
// failure path clears the starting state and best-effort kills any partially
// spawned process.
func (s *Supervisor) Start(installPath, profile string, params []string) (int, error) {
	s.mu.Lock()
	if s.state != StateAbsent || s.handle != nil {
		st := s.state
		s.mu.Unlock()
		return 0, fmt.Errorf("%w (state: %s)", ErrAlreadyRunning, st)
	}
	s.setStateLocked(StateStarting)
	s.mu.Unlock()

	pid, err := s.doStart(installPath, profile, params)
	if err != nil {
		s.mu.Lock()
		if s.state == StateStarting {
			s.setStateLocked(StateAbsent)
		}
		s.mu.Unlock()
		return 0, err
	}
	return pid, nil
}

func (s *Supervisor) doStart(installPath, profile string, params []string) (int, error) {
	if fi, err := os.Stat(installPath); err != nil || !fi.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrPathNotFound, installPath)
	}
	pdir := profileDir(installPath, profile)
	if err := os.MkdirAll(pdir, 0o750); err != nil {
		return 0, fmt.Errorf("create profile dir %s: %w", pdir, err)
	}

	exeName := s.platform.ExecutableName()
	exePath := filepath.Join(installPath, exeName)
	if _, err := os.Stat(exePath); err != nil {
		return 0, fmt.Errorf("%w: %s (directory contains: %s)",
			ErrExecutableNotFound, exeName, strings.Join(listDir(installPath), ", "))
	}

	args := buildArgs(installPath, profile, params)
	// #nosec G204 -- exePath is resolved against the validated install path
	cmd := exec.Command(exePath, args...)
	cmd.Dir = installPath
	s.platform.ConfigureCommand(cmd)

	// Capture output streams rather than inheriting them so the server
	// console ends up in rotating log files. A nil writer leaves the
	// stream nil; exec connects it to the null device and closes it.
	outW, errW, _ := s.logCfg.ServerWriters(profile)
	if outW != nil {
		cmd.Stdout = outW
	}
	if errW != nil {
		cmd.Stderr = errW
	}

	if err := cmd.Start(); err != nil {
		if outW != nil {
			_ = outW.Close()
		}
		if errW != nil {
			_ = errW.Close()
		}
		return 0, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	h := &serverHandle{
		cmd:         cmd,
		pid:         cmd.Process.Pid,
		installPath: installPath,
		profile:     profile,
		params:      append([]string(nil), params...),
		startedAt:   time.Now(),
		waitDone:    make(chan struct{}),
		outCloser:   outW,
		errCloser:   errW,
	}

	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()

	go s.watchExit(h)

	// Give an early spawn failure a chance to surface before declaring
	// success. A process that exits inside this window never ran.
	select {
	case <-h.waitDone:
		s.discardHandle(h)
		return 0, fmt.Errorf("%w: exited during startup: %v", ErrSpawnFailed, h.exitErr)
	case <-time.After(s.SpawnGrace):
	}

	s.mu.Lock()
	if s.handle != h || h.killed || h.pid == 0 {
		s.mu.Unlock()
		s.discardHandle(h)
		return 0, fmt.Errorf("%w: process handle lost during startup", ErrSpawnFailed)
	}
	s.setStateLocked(StateRunning)
	s.lastInstallPath = installPath
	s.lastProfile = profile
	s.lastParams = append([]string(nil), params...)
	s.mu.Unlock()

	metrics.IncStart(profile)
	s.bus.Publish(events.ServerStarted, Status{
		Running: true, State: StateRunning.String(), PID: h.pid,
		InstallPath: installPath, Profile: profile, StartedAt: h.startedAt,
	})
	s.log.Info("server started", "pid", h.pid, "profile", profile, "install_path", installPath)

	go s.monitor(h)
	return h.pid, nil
}

// watchExit reaps the child and clears the handle when it is still current.
func (s *Supervisor) watchExit(h *serverHandle) {
	err := h.cmd.Wait()

	s.mu.Lock()
	h.exitErr = err
	close(h.waitDone)
	wasCurrent := s.handle == h
	oldState := s.state
	if wasCurrent {
		h.closeWriters()
		s.handle = nil
		s.setStateLocked(StateAbsent)
	}
	profile := h.profile
	s.mu.Unlock()

	if !wasCurrent {
		return
	}
	// Exit code is observed and logged, not surfaced as a structured error.
	s.log.Info("server process exited", "pid", h.pid, "exit", errText(err), "prior_state", oldState.String())
	if oldState == StateRunning || oldState == StateStopping {
		metrics.IncStop(profile)
		s.bus.Publish(events.ServerStopped, Status{State: StateAbsent.String(), Profile: profile})
	}
}

// discardHandle clears a failed handle and best-effort kills any partially
// spawned process, swallowing kill errors.
func (s *Supervisor) discardHandle(h *serverHandle) {
	s.mu.Lock()
	if s.handle == h {
		s.handle = nil
	}
	if s.state == StateStarting {
		s.setStateLocked(StateAbsent)
	}
	h.closeWriters()
	h.killed = true
	s.mu.Unlock()

	select {
	case <-h.waitDone:
		return // already exited and reaped
	default:
	}
	if err := s.platform.TerminateTree(h.pid, h.waitDone, time.Second); err != nil {
		s.log.Warn("cleanup kill failed", "pid", h.pid, "error", err)
	}
}

// Stop terminates the server. It fails only with ErrNotRunning; kill errors
// are logged, and the handle is always cleared before returning.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	h := s.handle
	if h == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.setStateLocked(StateStopping)
	h.killed = true
	s.mu.Unlock()

	if err := s.platform.TerminateTree(h.pid, h.waitDone, s.StopGrace); err != nil {
		s.log.Warn("terminate failed", "pid", h.pid, "error", err)
	}

	s.mu.Lock()
	if s.handle == h {
		h.closeWriters()
		s.handle = nil
	}
	if s.state == StateStopping {
		s.setStateLocked(StateAbsent)
	}
	s.mu.Unlock()

	s.log.Info("server stopped", "pid", h.pid, "profile", h.profile)
	return nil
}

// Restart schedules or performs a restart. countdownSeconds > 0 returns an
// acknowledgment only; the delayed execution is the caller's timer calling
// back with countdown 0. With countdown 0 a running server is stopped,
// allowed to settle, then started; a stopped server is started directly.
func (s *Supervisor) Restart(installPath, profile string, params []string, countdownSeconds int) (RestartResult, error) {
	return s.restart(installPath, profile, params, countdownSeconds, "manual")
}

// restart performs the actual work and counts the restart once, attributed
// to the trigger that initiated it.
func (s *Supervisor) restart(installPath, profile string, params []string, countdownSeconds int, trigger string) (RestartResult, error) {
	if countdownSeconds > 0 {
		s.log.Info("restart scheduled", "in_seconds", countdownSeconds, "profile", profile)
		return RestartResult{Scheduled: true, CountdownSeconds: countdownSeconds}, nil
	}

	if s.GetStatus().Running {
		if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
			return RestartResult{}, err
		}
		time.Sleep(s.SettleDelay)
	}
	pid, err := s.Start(installPath, profile, params)
	if err != nil {
		return RestartResult{}, err
	}
	metrics.IncRestart(profile, trigger)
	return RestartResult{PID: pid}, nil
}

// GetStatus is a pure read with no side effects.
func (s *Supervisor) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.state.String(), Running: s.state == StateRunning && s.handle != nil}
	if s.handle != nil {
		st.PID = s.handle.pid
		st.InstallPath = s.handle.installPath
		st.Profile = s.handle.profile
		st.StartedAt = s.handle.startedAt
	}
	return st
}

// GetProcessStats samples CPU and memory of the supervised process.
// Best-effort: an all-zero result on any failure, never an error.
func (s *Supervisor) GetProcessStats() metrics.ProcessStats {
	s.mu.Lock()
	pid := 0
	if s.handle != nil {
		pid = s.handle.pid
	}
	s.mu.Unlock()
	return metrics.SampleProcessStats(pid)
}

// GetPlayerCount scrapes the tail of the profile's console log. Best-effort:
// a zero-valued result when the log is absent or unparseable, never an error.
func (s *Supervisor) GetPlayerCount(installPath, profile string) PlayerCount {
	pc, err := s.playerCount(filepath.Join(profileDir(installPath, profile), "console.log"))
	if err != nil {
		return PlayerCount{}
	}
	return pc
}

// monitor publishes stats for handle h until it stops being current.
func (s *Supervisor) monitor(h *serverHandle) {
	ticker := time.NewTicker(s.MonitorEvery)
	defer ticker.Stop()
	for {
		select {
		case <-h.waitDone:
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		current := s.handle == h
		s.mu.Unlock()
		if !current {
			return
		}
		stats := metrics.SampleProcessStats(h.pid)
		metrics.SetServerUsage(stats.CPUPercent, stats.MemoryMB)
		s.bus.Publish(events.ServerStats, stats)
	}
}

// setStateLocked transitions state; callers hold mu.
func (s *Supervisor) setStateLocked(newState State) {
	old := s.state
	s.state = newState
	metrics.RecordStateTransition(old.String(), newState.String())
}

func listDir(path string) []string {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func errText(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}
