package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serverStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dayzctl",
			Subsystem: "server",
			Name:      "starts_total",
			Help:      "Number of successful server starts.",
		}, []string{"profile"},
	)
	serverStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dayzctl",
			Subsystem: "server",
			Name:      "stops_total",
			Help:      "Number of server stops (graceful or kill).",
		}, []string{"profile"},
	)
	serverRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dayzctl",
			Subsystem: "server",
			Name:      "restarts_total",
			Help:      "Number of restarts, split by trigger (manual, scheduled, recurring).",
		}, []string{"profile", "trigger"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dayzctl",
			Subsystem: "server",
			Name:      "state_transitions_total",
			Help:      "Number of supervisor state transitions.",
		}, []string{"from", "to"},
	)
	serverCPUPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dayzctl",
			Subsystem: "server",
			Name:      "cpu_percent",
			Help:      "CPU usage percentage of the supervised server process.",
		},
	)
	serverMemoryMB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dayzctl",
			Subsystem: "server",
			Name:      "memory_mb",
			Help:      "Resident memory in MB of the supervised server process.",
		},
	)
	rconCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dayzctl",
			Subsystem: "rcon",
			Name:      "commands_total",
			Help:      "Number of RCON commands issued, split by outcome.",
		}, []string{"outcome"},
	)
	modDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dayzctl",
			Subsystem: "mods",
			Name:      "downloads_total",
			Help:      "Number of workshop mod downloads, split by result.",
		}, []string{"result"},
	)
	modQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dayzctl",
			Subsystem: "mods",
			Name:      "queue_depth",
			Help:      "Items currently pending or downloading in the mod queue.",
		},
	)
)

// Register registers all metrics with the provided registerer, defaulting
// to prometheus.DefaultRegisterer when nil.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	cs := []prometheus.Collector{
		serverStarts, serverStops, serverRestarts, stateTransitions,
		serverCPUPercent, serverMemoryMB, rconCommands, modDownloads, modQueueDepth,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until Register
// has been called.

func IncStart(profile string) {
	if regOK.Load() {
		serverStarts.WithLabelValues(profile).Inc()
	}
}

func IncStop(profile string) {
	if regOK.Load() {
		serverStops.WithLabelValues(profile).Inc()
	}
}

func IncRestart(profile, trigger string) {
	if regOK.Load() {
		serverRestarts.WithLabelValues(profile, trigger).Inc()
	}
}

func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
	}
}

func SetServerUsage(cpuPercent, memoryMB float64) {
	if regOK.Load() {
		serverCPUPercent.Set(cpuPercent)
		serverMemoryMB.Set(memoryMB)
	}
}

func IncRconCommand(outcome string) {
	if regOK.Load() {
		rconCommands.WithLabelValues(outcome).Inc()
	}
}

func IncModDownload(result string) {
	if regOK.Load() {
		modDownloads.WithLabelValues(result).Inc()
	}
}

func SetModQueueDepth(n int) {
	if regOK.Load() {
		modQueueDepth.Set(float64(n))
	}
}
