//go:build windows

package supervisor

import (
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

type osPlatform struct{}

func (osPlatform) ExecutableName() string { return "DayZServer_x64.exe" }

func (osPlatform) ConfigureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// TerminateTree uses taskkill /T /F for a forceful whole-tree kill; Windows
// has no SIGTERM equivalent the DayZ server honors.
func (osPlatform) TerminateTree(pid int, waitDone <-chan struct{}, grace time.Duration) error {
	if pid <= 0 {
		return nil
	}
	kill := exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F")
	if err := kill.Run(); err != nil {
		return err
	}
	if waitDone != nil {
		select {
		case <-waitDone:
		case <-time.After(grace):
		}
	}
	return nil
}
