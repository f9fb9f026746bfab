package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dayzctl/dayzctl"
)

// runServe loads the config and runs the daemon until a signal arrives.
func runServe(flags *ServeFlags) error {
	if flags.ConfigPath == "" {
		return fmt.Errorf("config file is required: dayzctl serve <config.toml> or --config")
	}

	cfg, err := dayzctl.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}

	if flags.Daemonize {
		return daemonize(flags.PidFile, flags.LogFile)
	}

	daemon, err := dayzctl.NewDaemon(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	err = daemon.Run(ctx)
	if flags.PidFile != "" {
		_ = removePidFile(flags.PidFile)
	}
	return err
}
