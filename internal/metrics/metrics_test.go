package metrics

import (
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	// Helpers must not panic after registration.
	IncStart("vanilla")
	IncStop("vanilla")
	IncRestart("vanilla", "scheduled")
	RecordStateTransition("absent", "starting")
	SetServerUsage(12.5, 2048)
	IncRconCommand("ok")
	IncModDownload("completed")
	SetModQueueDepth(3)
}

func TestSampleProcessStatsSelf(t *testing.T) {
	stats := SampleProcessStats(os.Getpid())
	if stats.MemoryBytes == 0 {
		t.Fatalf("expected non-zero RSS for own process, got %+v", stats)
	}
	if stats.MemoryMB <= 0 {
		t.Fatalf("expected MemoryMB > 0, got %v", stats.MemoryMB)
	}
}

func TestSampleProcessStatsBestEffort(t *testing.T) {
	// A PID that cannot exist must degrade to zero values, not error.
	for _, pid := range []int{0, -1, 1 << 30} {
		stats := SampleProcessStats(pid)
		if stats.CPUPercent != 0 || stats.MemoryBytes != 0 {
			t.Fatalf("pid %d: expected zero-valued sample, got %+v", pid, stats)
		}
	}
}
