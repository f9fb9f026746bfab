package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildRootHasAllCommands(t *testing.T) {
	root := buildRoot()

	want := []string{
		"serve", "start", "stop", "restart", "status", "stats", "players",
		"schedule-restart", "rcon", "mods", "events", "install",
	}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestServeRequiresConfig(t *testing.T) {
	if err := runServe(&ServeFlags{}); err == nil {
		t.Fatal("expected error without config path")
	}
}

func TestServeRejectsMissingConfigFile(t *testing.T) {
	err := runServe(&ServeFlags{ConfigPath: filepath.Join(t.TempDir(), "nope.toml")})
	if err == nil {
		t.Fatal("expected error for nonexistent config file")
	}
}

func TestPidFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dayzctl.pid")
	if err := writePidFile(path, 1234); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if string(data) != "1234" {
		t.Fatalf("unexpected pid file content: %q", data)
	}
	if err := removePidFile(path); err != nil {
		t.Fatalf("remove pid: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("pid file should be gone")
	}
}

func TestRemovePidFileEmptyPathIsNoop(t *testing.T) {
	if err := removePidFile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}
