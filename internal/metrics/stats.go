package metrics

import (
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats holds a single resource sample for the supervised server
// process. Sampling is advisory: a zero-valued result means the sample
// failed, never that the caller should act on it.
type ProcessStats struct {
	PID         int       `json:"pid"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryBytes uint64    `json:"memory_bytes"`
	MemoryMB    float64   `json:"memory_mb"`
	NumThreads  int32     `json:"num_threads"`
	SampledAt   time.Time `json:"sampled_at"`
}

// SampleProcessStats queries the process table for pid. It never returns an
// error; any query failure degrades to an all-zero sample so resource
// telemetry cannot destabilize the supervisor.
func SampleProcessStats(pid int) ProcessStats {
	stats := ProcessStats{PID: pid, SampledAt: time.Now()}
	if pid <= 0 {
		return stats
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		slog.Debug("process stats sample failed", "pid", pid, "error", err)
		return ProcessStats{SampledAt: stats.SampledAt}
	}

	if cpuPercent, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpuPercent
	} else {
		slog.Debug("cpu percent unavailable", "pid", pid, "error", err)
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		slog.Debug("memory info unavailable", "pid", pid, "error", err)
		return ProcessStats{SampledAt: stats.SampledAt}
	}
	stats.MemoryBytes = memInfo.RSS
	stats.MemoryMB = float64(memInfo.RSS) / 1024 / 1024

	if numThreads, err := proc.NumThreads(); err == nil {
		stats.NumThreads = numThreads
	}

	return stats
}
