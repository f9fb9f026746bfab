package supervisor

import (
	"os/exec"
	"time"
)

// Platform abstracts the OS-specific parts of process control so the
// supervisor logic stays platform-agnostic: executable naming, process
// group attributes, and whole-tree termination.
type Platform interface {
	// ExecutableName is the server binary file name on this OS.
	ExecutableName() string
	// ConfigureCommand sets process-group attributes on the command so the
	// whole tree can be terminated later.
	ConfigureCommand(cmd *exec.Cmd)
	// TerminateTree stops pid and its descendants. waitDone is closed when
	// the direct child has been reaped; grace bounds how long a polite
	// termination may take before escalation.
	TerminateTree(pid int, waitDone <-chan struct{}, grace time.Duration) error
}

// DefaultPlatform returns the process-control implementation for the
// build target OS.
func DefaultPlatform() Platform { return osPlatform{} }
