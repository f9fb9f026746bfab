package steamcmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Steam app ids for DayZ.
const (
	ServerAppID   = "223350" // DayZ dedicated server
	WorkshopAppID = "221100" // DayZ game (owns the workshop items)
)

var ErrNotConfigured = errors.New("steamcmd: executable path not configured")

// Update state lines look like:
//
//	Update state (0x61) downloading, progress: 42.45 (123456 / 290870)
//
// The explicit percent is preferred; the byte ratio is the fallback for
// lines that carry only the counts.
var (
	progressPattern = regexp.MustCompile(`progress:\s*([0-9]+(?:\.[0-9]+)?)`)
	byteRatioPat    = regexp.MustCompile(`\((\d+)\s*/\s*(\d+)\)`)
)

// Runner wraps the steamcmd executable. All invocations run anonymous
// logins; authenticated workshop access is out of scope.
type Runner struct {
	path string
	log  *slog.Logger
}

func NewRunner(path string, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{path: path, log: log}
}

// run executes steamcmd with the given script arguments, feeding each
// stdout line to onLine. On failure the error carries the last few output
// lines since steamcmd's exit codes alone are rarely actionable.
func (r *Runner) run(ctx context.Context, onLine func(string), args ...string) error {
	if r.path == "" {
		return ErrNotConfigured
	}
	// #nosec G204
	cmd := exec.CommandContext(ctx, r.path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("steamcmd stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("steamcmd start: %w", err)
	}

	var tail []string
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		tail = append(tail, line)
		if len(tail) > 8 {
			tail = tail[1:]
		}
		if onLine != nil {
			onLine(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("steamcmd: %w (output: %s)", err, strings.Join(tail, " | "))
	}
	return nil
}

// DownloadModItem fetches one workshop item into installPath's steamapps
// tree and returns the on-disk content directory. onProgress receives
// whole percents, monotonic per parseable line.
func (r *Runner) DownloadModItem(ctx context.Context, workshopID, installPath string, onProgress func(int)) (string, error) {
	seenSuccess := false
	err := r.run(ctx, func(line string) {
		if strings.HasPrefix(line, "Success. Downloaded item") {
			seenSuccess = true
		}
		if p, ok := parseProgress(line); ok && onProgress != nil {
			onProgress(p)
		}
	},
		"+force_install_dir", installPath,
		"+login", "anonymous",
		"+workshop_download_item", WorkshopAppID, workshopID, "validate",
		"+quit",
	)
	if err != nil {
		return "", err
	}
	if !seenSuccess {
		return "", fmt.Errorf("steamcmd: workshop item %s finished without a success marker", workshopID)
	}
	return filepath.Join(installPath, "steamapps", "workshop", "content", WorkshopAppID, workshopID), nil
}

// InstallServer installs or repairs the dedicated server under installPath.
func (r *Runner) InstallServer(ctx context.Context, installPath string, onProgress func(int)) error {
	return r.appUpdate(ctx, installPath, onProgress)
}

// UpdateServer is the same app_update invocation; steamcmd treats install
// and update identically when validate is requested.
func (r *Runner) UpdateServer(ctx context.Context, installPath string, onProgress func(int)) error {
	return r.appUpdate(ctx, installPath, onProgress)
}

func (r *Runner) appUpdate(ctx context.Context, installPath string, onProgress func(int)) error {
	sawSuccess := false
	err := r.run(ctx, func(line string) {
		if strings.Contains(line, "fully installed") {
			sawSuccess = true
		}
		if p, ok := parseProgress(line); ok && onProgress != nil {
			onProgress(p)
		}
	},
		"+force_install_dir", installPath,
		"+login", "anonymous",
		"+app_update", ServerAppID, "validate",
		"+quit",
	)
	if err != nil {
		return err
	}
	if !sawSuccess {
		return fmt.Errorf("steamcmd: app %s update finished without completion marker", ServerAppID)
	}
	return nil
}

// parseProgress extracts a 0-100 percent from a steamcmd status line.
func parseProgress(line string) (int, bool) {
	if m := progressPattern.FindStringSubmatch(line); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil && f >= 0 && f <= 100 {
			return int(f), true
		}
	}
	if m := byteRatioPat.FindStringSubmatch(line); m != nil {
		got, err1 := strconv.ParseInt(m[1], 10, 64)
		total, err2 := strconv.ParseInt(m[2], 10, 64)
		if err1 == nil && err2 == nil && total > 0 && got <= total {
			return int(got * 100 / total), true
		}
	}
	return 0, false
}
