package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dayzctl/dayzctl/internal/steamcmd"
	"github.com/dayzctl/dayzctl/pkg/client"
)

// command binds client-side handlers to the global flags.
type command struct {
	flags *GlobalFlags
}

func (c command) apiClient() (*client.Client, error) {
	cfg := client.DefaultConfig()
	if c.flags.APIUrl != "" {
		cfg.BaseURL = c.flags.APIUrl
	}
	if c.flags.APITimeout > 0 {
		cfg.Timeout = c.flags.APITimeout
	}
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cl := client.New(cfg)
	if !cl.IsReachable(context.Background()) {
		return nil, fmt.Errorf("daemon not reachable at %s - start it first with 'dayzctl serve'", cfg.BaseURL)
	}
	return cl, nil
}

func (c command) ctx() (context.Context, context.CancelFunc) {
	timeout := c.flags.APITimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("error formatting output: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func (c command) Start(f StartFlags) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	pid, err := cl.StartServer(ctx, client.StartRequest{
		InstallPath: f.InstallPath,
		Profile:     f.Profile,
		Params:      f.Params,
	})
	if err != nil {
		return err
	}
	fmt.Printf("server started, pid %d\n", pid)
	return nil
}

func (c command) Stop() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	if err := cl.StopServer(ctx); err != nil {
		return err
	}
	fmt.Println("server stopped")
	return nil
}

func (c command) Restart(f RestartFlags) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	res, err := cl.RestartServer(ctx, client.RestartRequest{CountdownSeconds: f.CountdownSeconds})
	if err != nil {
		return err
	}
	if res.Scheduled {
		fmt.Printf("restart acknowledged, countdown %d seconds\n", res.CountdownSeconds)
		return nil
	}
	fmt.Printf("server restarted, pid %d\n", res.PID)
	return nil
}

func (c command) Status() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	st, err := cl.ServerStatus(ctx)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (c command) Stats() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	st, err := cl.ServerStats(ctx)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (c command) Players() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	pc, err := cl.ServerPlayers(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d / %d players\n", pc.Count, pc.Max)
	return nil
}

func (c command) ScheduleRestart(f ScheduleFlags) error {
	var at time.Time
	switch {
	case f.At != "":
		parsed, err := time.Parse(time.RFC3339, f.At)
		if err != nil {
			return fmt.Errorf("invalid --at time (want RFC 3339): %w", err)
		}
		at = parsed
	case f.In > 0:
		at = time.Now().Add(f.In)
	default:
		return fmt.Errorf("one of --at or --in is required")
	}

	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	entry, err := cl.ScheduleRestart(ctx, client.ScheduleRestartRequest{
		At:          at,
		InstallPath: f.InstallPath,
		Profile:     f.Profile,
	})
	if err != nil {
		return err
	}
	fmt.Printf("restart %d scheduled at %s\n", entry.ID, entry.At.Format(time.RFC3339))
	return nil
}

func (c command) ListScheduledRestarts() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	pending, err := cl.ListScheduledRestarts(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("no pending restarts")
		return nil
	}
	printJSON(pending)
	return nil
}

func (c command) CancelScheduledRestart(idArg string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", idArg)
	}
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	if err := cl.CancelScheduledRestart(ctx, id); err != nil {
		return err
	}
	fmt.Printf("restart %d canceled\n", id)
	return nil
}

func (c command) RconConnect(f RconConnectFlags) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	if err := cl.RconConnect(ctx, client.RconConnectRequest{
		Host:     f.Host,
		Port:     f.Port,
		Password: f.Password,
	}); err != nil {
		return err
	}
	fmt.Println("rcon connected")
	return nil
}

func (c command) RconDisconnect() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	if err := cl.RconDisconnect(ctx); err != nil {
		return err
	}
	fmt.Println("rcon disconnected")
	return nil
}

func (c command) RconStatus() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	st, err := cl.RconStatus(ctx)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (c command) RconCommand(args []string) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	resp, err := cl.RconCommand(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println(resp)
	return nil
}

func (c command) RconPlayers() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	players, err := cl.RconPlayers(ctx)
	if err != nil {
		return err
	}
	if len(players) == 0 {
		fmt.Println("no players connected")
		return nil
	}
	for _, p := range players {
		fmt.Printf("%s\t%s\n", p.ID, p.Name)
	}
	return nil
}

func (c command) Kick(playerID, reason string) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	return cl.Kick(ctx, playerID, reason)
}

func (c command) Ban(playerID, reason string) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	return cl.Ban(ctx, playerID, reason)
}

func (c command) Say(args []string) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	return cl.Say(ctx, strings.Join(args, " "))
}

func (c command) RconShutdown() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	return cl.RconShutdown(ctx)
}

func (c command) AddMod(workshopID, name string) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	id, err := cl.AddMod(ctx, workshopID, name)
	if err != nil {
		return err
	}
	fmt.Printf("queued as item %d\n", id)
	return nil
}

func (c command) AddCollection(collectionID, name string) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	id, err := cl.AddCollection(ctx, collectionID, name)
	if err != nil {
		return err
	}
	fmt.Printf("queued as item %d\n", id)
	return nil
}

func (c command) ListMods() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	mods, err := cl.ListMods(ctx)
	if err != nil {
		return err
	}
	if len(mods) == 0 {
		fmt.Println("no mods installed")
		return nil
	}
	for _, m := range mods {
		fmt.Printf("%s\t%s\n", m.WorkshopID, m.Name)
	}
	return nil
}

func (c command) RemoveMod(workshopID string) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	if err := cl.RemoveMod(ctx, workshopID); err != nil {
		return err
	}
	fmt.Printf("mod %s removed\n", workshopID)
	return nil
}

func (c command) QueueStatus() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	st, err := cl.QueueStatus(ctx)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (c command) ClearCompleted() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	return cl.ClearCompleted(ctx)
}

func (c command) ClearAll() error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	return cl.ClearAll(ctx)
}

func (c command) Events(limit int) error {
	cl, err := c.apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	evts, err := cl.Events(ctx, limit)
	if err != nil {
		return err
	}
	if len(evts) == 0 {
		fmt.Println("no recent events")
		return nil
	}
	for _, e := range evts {
		fmt.Printf("%s\t%s\t%s\t%s\n", e.OccurredAt.Format(time.RFC3339), e.Type, e.Subject, e.Detail)
	}
	return nil
}

// InstallServer runs SteamCMD directly; no daemon needed.
func (c command) InstallServer(f InstallFlags) error {
	steamPath := f.SteamCmdPath
	if steamPath == "" {
		steamPath = "steamcmd"
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	runner := steamcmd.NewRunner(steamPath, log)

	verb := "installing"
	run := runner.InstallServer
	if f.Update {
		verb = "updating"
		run = runner.UpdateServer
	}
	fmt.Printf("%s DayZ dedicated server in %s\n", verb, f.InstallPath)
	last := -1
	err := run(context.Background(), f.InstallPath, func(p int) {
		if p != last {
			fmt.Printf("\rprogress: %3d%%", p)
			last = p
		}
	})
	fmt.Println()
	if err != nil {
		return err
	}
	fmt.Println("done")
	return nil
}
