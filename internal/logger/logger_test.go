package logger

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func closeIf(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func TestServerWriters_WithDirOnly(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir}
	outW, errW, err := cfg.ServerWriters("vanilla")
	if err != nil {
		t.Fatalf("ServerWriters error: %v", err)
	}
	if outW == nil || errW == nil {
		t.Fatalf("expected both writers non-nil when Dir is set")
	}
	_, _ = outW.Write([]byte("console line\n"))
	_, _ = errW.Write([]byte("error line\n"))
	closeIf(outW)
	closeIf(errW)
	if _, err := os.Stat(filepath.Join(dir, "vanilla.stdout.log")); err != nil {
		t.Fatalf("stdout log not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "vanilla.stderr.log")); err != nil {
		t.Fatalf("stderr log not created: %v", err)
	}
}

func TestServerWriters_ExplicitPathsOverrideDir(t *testing.T) {
	dir := t.TempDir()
	sp := filepath.Join(dir, "s.out.log")
	ep := filepath.Join(dir, "s.err.log")
	cfg := Config{Dir: filepath.Join(dir, "unused"), StdoutPath: sp, StderrPath: ep}
	outW, errW, err := cfg.ServerWriters("ignored")
	if err != nil {
		t.Fatalf("ServerWriters error: %v", err)
	}
	_, _ = outW.Write([]byte("x"))
	_, _ = errW.Write([]byte("y"))
	closeIf(outW)
	closeIf(errW)
	if _, err := os.Stat(sp); err != nil {
		t.Fatalf("explicit stdout path not created: %v", err)
	}
	if _, err := os.Stat(ep); err != nil {
		t.Fatalf("explicit stderr path not created: %v", err)
	}
}

func TestServerWriters_Defaults(t *testing.T) {
	cfg := Config{}
	outW, errW, _ := cfg.ServerWriters("n")
	if outW != nil || errW != nil {
		t.Fatalf("expected nil writers when no destinations configured")
	}
	cfg = Config{StdoutPath: "x", StderrPath: "y"}
	outW, errW, _ = cfg.ServerWriters("n")
	ol, ok1 := outW.(*lj.Logger)
	el, ok2 := errW.(*lj.Logger)
	if !ok1 || !ok2 {
		t.Fatalf("writers are not lumberjack.Logger")
	}
	if ol.MaxSize != DefaultMaxSizeMB || el.MaxBackups != DefaultMaxBackups || el.MaxAge != DefaultMaxAgeDays {
		t.Fatalf("rotation defaults not applied: %+v %+v", ol, el)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG", "warn": "WARN", "warning": "WARN",
		"error": "ERROR", "": "INFO", "bogus": "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
