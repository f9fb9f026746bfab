package dayzctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dayzctl/dayzctl/internal/config"
	"github.com/dayzctl/dayzctl/internal/events"
	"github.com/dayzctl/dayzctl/internal/history"
	"github.com/dayzctl/dayzctl/internal/metrics"
	"github.com/dayzctl/dayzctl/internal/modqueue"
	"github.com/dayzctl/dayzctl/internal/rcon"
	iapi "github.com/dayzctl/dayzctl/internal/server"
	"github.com/dayzctl/dayzctl/internal/steamcmd"
	"github.com/dayzctl/dayzctl/internal/store"
	"github.com/dayzctl/dayzctl/internal/supervisor"
)

// Re-export core types for external consumers. These are aliases so
// conversions are zero-cost.

type Config = config.FileConfig

type ServerStatus = supervisor.Status

type ScheduledRestart = supervisor.ScheduledRestart

type QueueStatus = modqueue.Status

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// Daemon is the composition root: one supervised server process, one rcon
// session, one download queue and the HTTP control surface around them.
type Daemon struct {
	cfg     *Config
	log     *slog.Logger
	bus     *events.Bus
	sup     *supervisor.Supervisor
	rc      *rcon.Client
	queue   *modqueue.Queue
	st      store.Store
	sink    history.Sink
	journal *history.Memory

	recurring  *supervisor.RecurringScheduler
	httpSrv    *http.Server
	stopPoller chan struct{}
}

// NewDaemon assembles all components from config. Nothing is started yet;
// call Run.
func NewDaemon(cfg *Config) (*Daemon, error) {
	log := cfg.Log.NewDaemonLogger()

	st, err := store.CreateStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("store schema: %w", err)
	}

	sink, journal, err := history.Build(cfg.History)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("history sinks: %w", err)
	}

	bus := events.NewBus()
	sup := supervisor.New(log, bus, cfg.Log)
	sup.SetRestartPersister(&restartPersister{st: st})

	runner := steamcmd.NewRunner(cfg.SteamCmd.Path, log)
	provider := steamcmd.NewProvider(runner, log)
	queue := modqueue.New(provider, &modRegistry{st: st, serverPath: cfg.Server.InstallPath}, bus, log)
	queue.SetInstallPath(cfg.Server.InstallPath)

	return &Daemon{
		cfg:     cfg,
		log:     log,
		bus:     bus,
		sup:     sup,
		rc:      rcon.New(log),
		queue:   queue,
		st:      st,
		sink:    sink,
		journal: journal,
	}, nil
}

// Supervisor exposes the process supervisor for embedders.
func (d *Daemon) Supervisor() *supervisor.Supervisor { return d.sup }

// Rcon exposes the rcon client for embedders.
func (d *Daemon) Rcon() *rcon.Client { return d.rc }

// Queue exposes the mod download queue for embedders.
func (d *Daemon) Queue() *modqueue.Queue { return d.queue }

// Run starts the daemon and blocks until ctx is canceled. On return the
// server process is stopped and all components are shut down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := metrics.Register(nil); err != nil {
		d.log.Warn("metrics registration failed", "error", err)
	}

	if err := d.restorePendingRestarts(ctx); err != nil {
		d.log.Warn("failed to restore scheduled restarts", "error", err)
	}

	d.stopPoller = make(chan struct{})
	go d.sup.RunSchedulePoller(time.Second, d.stopPoller)

	d.recurring = supervisor.NewRecurringScheduler(d.sup)
	for _, spec := range d.cfg.Restarts {
		if _, err := d.recurring.Add(spec); err != nil {
			return fmt.Errorf("recurring restart %q: %w", spec, err)
		}
	}
	d.recurring.Start()

	go d.journalLoop(ctx)

	d.httpSrv = iapi.NewServer(d.cfg.HTTP.Listen, d.cfg.HTTP.BasePath, iapi.Deps{
		Supervisor: d.sup,
		Rcon:       d.rc,
		Queue:      d.queue,
		Mods:       d.st,
		Journal:    d.journal,
		Sink:       d.sink,
		Defaults: iapi.Defaults{
			InstallPath: d.cfg.Server.InstallPath,
			Profile:     d.cfg.Server.Profile,
			Params:      d.cfg.Server.Params,
		},
		Log: d.log,
	})
	d.log.Info("daemon listening", "addr", d.cfg.HTTP.Listen, "base_path", d.cfg.HTTP.BasePath)

	<-ctx.Done()
	return d.Close()
}

// Close stops all components. Safe to call after a failed Run.
func (d *Daemon) Close() error {
	if d.httpSrv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.httpSrv.Shutdown(shutCtx)
	}
	if d.recurring != nil {
		d.recurring.Stop()
	}
	if d.stopPoller != nil {
		close(d.stopPoller)
		d.stopPoller = nil
	}
	d.rc.Disconnect()
	if err := d.sup.Stop(); err != nil && !errors.Is(err, supervisor.ErrNotRunning) {
		d.log.Warn("stopping server on shutdown", "error", err)
	}
	return d.st.Close()
}

// restorePendingRestarts seeds the supervisor's registry from the store.
func (d *Daemon) restorePendingRestarts(ctx context.Context) error {
	recs, err := d.st.PendingRestarts(ctx)
	if err != nil {
		return err
	}
	entries := make([]supervisor.ScheduledRestart, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, supervisor.ScheduledRestart{
			ID:          r.ID,
			At:          r.At,
			InstallPath: r.InstallPath,
			Profile:     r.Profile,
			Params:      r.Params,
		})
	}
	d.sup.RestoreScheduledRestarts(entries)
	if len(entries) > 0 {
		d.log.Info("restored scheduled restarts", "count", len(entries))
	}
	return nil
}

// journalLoop mirrors bus events into the history sinks.
func (d *Daemon) journalLoop(ctx context.Context) {
	ch, cancel := d.bus.Subscribe(events.ServerStarted, events.ServerStopped, events.RestartExecuted, events.ItemCompleted, events.ItemFailed)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			he, ok := toHistoryEvent(e)
			if !ok {
				continue
			}
			if err := d.sink.Send(ctx, he); err != nil {
				d.log.Warn("history sink send failed", "event", he.Type, "error", err)
			}
		}
	}
}

func toHistoryEvent(e events.Event) (history.Event, bool) {
	he := history.Event{OccurredAt: e.OccurredAt}
	switch e.Type {
	case events.ServerStarted:
		he.Type = history.EventServerStarted
	case events.ServerStopped:
		he.Type = history.EventServerStopped
	case events.RestartExecuted:
		he.Type = history.EventRestartExecuted
	case events.ItemCompleted, events.ItemFailed:
		he.Type = history.EventModDownloaded
	default:
		return history.Event{}, false
	}
	switch p := e.Payload.(type) {
	case supervisor.Status:
		he.Profile = p.Profile
		he.Subject = p.Profile
		he.Detail = fmt.Sprintf("pid %d", p.PID)
	case supervisor.ScheduledRestart:
		he.Profile = p.Profile
		he.Subject = fmt.Sprintf("restart %d", p.ID)
		he.Detail = p.At.Format(time.RFC3339)
	case modqueue.Item:
		he.Subject = p.WorkshopID
		he.Detail = string(p.State)
		if p.Error != "" {
			he.Detail += ": " + p.Error
		}
	}
	return he, true
}

// modRegistry adapts the sqlite store to the queue's registration contract.
type modRegistry struct {
	st         store.Store
	serverPath string
}

func (m *modRegistry) AddMod(workshopID, name string) error {
	return m.st.AddMod(context.Background(), workshopID, name)
}

func (m *modRegistry) ServerPath() string { return m.serverPath }

// restartPersister adapts the store to the supervisor's persistence hook.
type restartPersister struct {
	st store.Store
}

func (p *restartPersister) Save(rec supervisor.ScheduledRestart) (int64, error) {
	return p.st.SaveRestart(context.Background(), store.RestartRecord{
		At:          rec.At,
		InstallPath: rec.InstallPath,
		Profile:     rec.Profile,
		Params:      rec.Params,
	})
}

func (p *restartPersister) MarkExecuted(id int64) error {
	return p.st.MarkRestartExecuted(context.Background(), id)
}

func (p *restartPersister) Delete(id int64) error {
	return p.st.DeleteRestart(context.Background(), id)
}
