package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command with all subcommands attached.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	serveFlags := &ServeFlags{}

	root := createRootCommand(globalFlags)
	cli := command{flags: globalFlags}

	root.AddCommand(
		createServeCommand(globalFlags, serveFlags),
		createStartCommand(cli),
		createStopCommand(cli),
		createRestartCommand(cli),
		createStatusCommand(cli),
		createStatsCommand(cli),
		createPlayersCommand(cli),
		createScheduleCommand(cli),
		createRconCommand(cli),
		createModsCommand(cli),
		createEventsCommand(cli),
		createInstallCommand(cli),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "dayzctl",
		Short: "DayZ dedicated server manager",
		Long: `Dayzctl supervises a DayZ dedicated server process, downloads
workshop mods through SteamCMD and exposes a BattlEye rcon session,
all behind one local control API.

Examples:
  dayzctl serve --config=dayzctl.toml   # Start the daemon
  dayzctl start                         # Start the server
  dayzctl status                        # Show server status
  dayzctl mods add 1559212036           # Queue a workshop mod download
  dayzctl rcon command "players"        # Send a raw rcon command`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (default http://127.0.0.1:8115/api)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 15*time.Second, "request timeout")
	return root
}

func createServeCommand(globalFlags *GlobalFlags, serveFlags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the dayzctl daemon",
		Long: `Start the dayzctl daemon. All configuration is loaded from the
TOML config file.

Examples:
  dayzctl serve --config=dayzctl.toml
  dayzctl serve dayzctl.toml
  dayzctl serve dayzctl.toml --daemonize`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			serveFlags.ConfigPath = path
			return runServe(serveFlags)
		},
	}
	cmd.Flags().BoolVar(&serveFlags.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&serveFlags.PidFile, "pidfile", "", "write daemon pid to file")
	cmd.Flags().StringVar(&serveFlags.LogFile, "logfile", "", "redirect daemon logs to file")
	return cmd
}

func createStartCommand(cli command) *cobra.Command {
	flags := &StartFlags{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the DayZ server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Start(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.InstallPath, "install-path", "", "server install directory (defaults to daemon config)")
	cmd.Flags().StringVar(&flags.Profile, "profile", "", "server profile name")
	cmd.Flags().StringArrayVar(&flags.Params, "param", nil, "extra launch parameter (repeatable)")
	return cmd
}

func createStopCommand(cli command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the DayZ server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Stop()
		},
	}
}

func createRestartCommand(cli command) *cobra.Command {
	flags := &RestartFlags{}
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the DayZ server",
		Long: `Restart the DayZ server. With --countdown the daemon only
acknowledges; announce the restart over rcon and call restart again
when the countdown elapses.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Restart(*flags)
		},
	}
	cmd.Flags().IntVar(&flags.CountdownSeconds, "countdown", 0, "seconds to delay the restart")
	return cmd
}

func createStatusCommand(cli command) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Status()
		},
	}
}

func createStatsCommand(cli command) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show server process CPU and memory usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Stats()
		},
	}
}

func createPlayersCommand(cli command) *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "Show the player count scraped from the console log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Players()
		},
	}
}

func createScheduleCommand(cli command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule-restart",
		Short: "Manage scheduled restarts",
	}

	addFlags := &ScheduleFlags{}
	add := &cobra.Command{
		Use:   "add",
		Short: "Schedule a one-shot restart",
		Long: `Schedule a one-shot restart at an RFC 3339 time or after a
duration.

Examples:
  dayzctl schedule-restart add --at=2026-01-02T04:00:00Z
  dayzctl schedule-restart add --in=4h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ScheduleRestart(*addFlags)
		},
	}
	add.Flags().StringVar(&addFlags.At, "at", "", "restart time, RFC 3339")
	add.Flags().DurationVar(&addFlags.In, "in", 0, "restart after duration")
	add.Flags().StringVar(&addFlags.InstallPath, "install-path", "", "server install directory")
	add.Flags().StringVar(&addFlags.Profile, "profile", "", "server profile name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List pending scheduled restarts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListScheduledRestarts()
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a scheduled restart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.CancelScheduledRestart(args[0])
		},
	}

	cmd.AddCommand(add, list, cancel)
	return cmd
}

func createRconCommand(cli command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rcon",
		Short: "BattlEye rcon operations",
	}

	connectFlags := &RconConnectFlags{}
	connect := &cobra.Command{
		Use:   "connect",
		Short: "Open the daemon's rcon session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RconConnect(*connectFlags)
		},
	}
	connect.Flags().StringVar(&connectFlags.Host, "host", "127.0.0.1", "rcon host")
	connect.Flags().IntVar(&connectFlags.Port, "port", 2306, "rcon port")
	connect.Flags().StringVar(&connectFlags.Password, "password", "", "rcon password")

	disconnect := &cobra.Command{
		Use:   "disconnect",
		Short: "Close the daemon's rcon session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RconDisconnect()
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show rcon connection state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RconStatus()
		},
	}

	raw := &cobra.Command{
		Use:   "command <text>",
		Short: "Send a raw rcon command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RconCommand(args)
		},
	}

	players := &cobra.Command{
		Use:   "players",
		Short: "List connected players",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RconPlayers()
		},
	}

	reason := ""
	kick := &cobra.Command{
		Use:   "kick <player-id>",
		Short: "Kick a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Kick(args[0], reason)
		},
	}
	kick.Flags().StringVar(&reason, "reason", "", "kick reason")

	banReason := ""
	ban := &cobra.Command{
		Use:   "ban <player-id>",
		Short: "Ban a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ban(args[0], banReason)
		},
	}
	ban.Flags().StringVar(&banReason, "reason", "", "ban reason")

	say := &cobra.Command{
		Use:   "say <message>",
		Short: "Broadcast a message to all players",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Say(args)
		},
	}

	shutdown := &cobra.Command{
		Use:   "shutdown",
		Short: "Ask the server to shut down over rcon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RconShutdown()
		},
	}

	cmd.AddCommand(connect, disconnect, status, raw, players, kick, ban, say, shutdown)
	return cmd
}

func createModsCommand(cli command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mods",
		Short: "Workshop mod management",
	}

	name := ""
	add := &cobra.Command{
		Use:   "add <workshop-id>",
		Short: "Queue a workshop mod download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.AddMod(args[0], name)
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")

	colName := ""
	addCollection := &cobra.Command{
		Use:   "add-collection <collection-id>",
		Short: "Queue every mod in a workshop collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.AddCollection(args[0], colName)
		},
	}
	addCollection.Flags().StringVar(&colName, "name", "", "display name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List installed mods",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListMods()
		},
	}

	remove := &cobra.Command{
		Use:   "remove <workshop-id>",
		Short: "Remove a mod from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RemoveMod(args[0])
		},
	}

	queue := &cobra.Command{
		Use:   "queue",
		Short: "Show the download queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.QueueStatus()
		},
	}

	clearCompleted := &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ClearCompleted()
		},
	}

	clearAll := &cobra.Command{
		Use:   "clear-all",
		Short: "Empty the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ClearAll()
		},
	}

	cmd.AddCommand(add, addCollection, list, remove, queue, clearCompleted, clearAll)
	return cmd
}

func createEventsCommand(cli command) *cobra.Command {
	limit := 50
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent daemon events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Events(limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to show")
	return cmd
}

func createInstallCommand(cli command) *cobra.Command {
	flags := &InstallFlags{}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install or update the dedicated server via SteamCMD",
		Long: `Install or update the DayZ dedicated server binaries. This runs
SteamCMD directly and does not require the daemon.

Examples:
  dayzctl install --install-path=/srv/dayz --steamcmd=/usr/bin/steamcmd`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.InstallServer(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.InstallPath, "install-path", "", "server install directory (required)")
	cmd.Flags().StringVar(&flags.SteamCmdPath, "steamcmd", "", "path to the steamcmd executable")
	cmd.Flags().BoolVar(&flags.Update, "update", false, "update an existing install instead of a fresh one")
	if err := cmd.MarkFlagRequired("install-path"); err != nil {
		panic(err)
	}
	return cmd
}
