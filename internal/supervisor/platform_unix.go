//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
	"time"
)

type osPlatform struct{}

func (osPlatform) ExecutableName() string { return "DayZServer_x64" }

// ConfigureCommand places the child in its own process group so that
// termination signals reach the whole tree via kill(-pid).
func (osPlatform) ConfigureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// TerminateTree sends SIGTERM to the process group, waits up to grace for
// the child to be reaped, and escalates to SIGKILL when it is not.
func (osPlatform) TerminateTree(pid int, waitDone <-chan struct{}, grace time.Duration) error {
	if pid <= 0 {
		return nil
	}
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		// Group may be gone already; try the single process before escalating.
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}
	if waitDone == nil {
		time.Sleep(grace)
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		return nil
	}
	select {
	case <-waitDone:
		return nil
	case <-time.After(grace):
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		// Reaping is the monitor's job; do not block stop forever.
	}
	return nil
}
