package supervisor

import "errors"

// Typed failures returned by supervisor operations. Callers classify with
// errors.Is; wrapped forms carry the human-readable detail.
var (
	ErrAlreadyRunning     = errors.New("supervisor: server already running")
	ErrNotRunning         = errors.New("supervisor: server not running")
	ErrPathNotFound       = errors.New("supervisor: install path not found")
	ErrExecutableNotFound = errors.New("supervisor: server executable not found")
	ErrSpawnFailed        = errors.New("supervisor: server process failed to start")
	ErrScheduleNotFound   = errors.New("supervisor: scheduled restart not found")
)
