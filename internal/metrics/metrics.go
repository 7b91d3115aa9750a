package metrics

import (
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	processRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "procvisor",
		Name:      "process_running",
		Help:      "Whether a supervised process currently has a live child (1=running, 0=not running).",
	}, []string{"process"})

	processRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procvisor",
		Name:      "process_restarts_total",
		Help:      "Total number of automatic restarts performed for each process.",
	}, []string{"process"})

	processExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procvisor",
		Name:      "process_exits_total",
		Help:      "Child exits observed per process and exit code.",
	}, []string{"process", "code"})

	signalsRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procvisor",
		Name:      "signals_relayed_total",
		Help:      "Host signals forwarded to supervised children.",
	}, []string{"process", "signal"})

	readyLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "procvisor",
		Name:      "ready_latency_seconds",
		Help:      "Time taken by readiness checks to reach a verdict, in seconds.",
	}, []string{"process", "ready"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "procvisor",
		Name:      "build_info",
		Help:      "Build metadata for the running procvisor binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(processRunning, processRestarts, processExits, signalsRelayed, readyLatency, buildInfo)
}

// Registry returns the Prometheus registry containing all procvisor metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetProcessRunning records whether the process has a live child.
func SetProcessRunning(process string, running bool) {
	if process == "" {
		return
	}
	value := 0.0
	if running {
		value = 1.0
	}
	processRunning.WithLabelValues(process).Set(value)
}

// IncrementProcessRestart increments the restart counter for a process.
func IncrementProcessRestart(process string) {
	if process == "" {
		return
	}
	processRestarts.WithLabelValues(process).Inc()
}

// ObserveExit records a child exit with its exit code.
func ObserveExit(process string, code int) {
	if process == "" {
		return
	}
	processExits.WithLabelValues(process, strconv.Itoa(code)).Inc()
}

// ObserveSignalRelayed records a host signal forwarded to a child.
func ObserveSignalRelayed(process, signal string) {
	if process == "" {
		return
	}
	signalsRelayed.WithLabelValues(process, signal).Inc()
}

// ObserveReadyLatency records how long a readiness check took and its verdict.
func ObserveReadyLatency(process string, d time.Duration, ready bool) {
	label := process
	if label == "" {
		label = "unknown"
	}
	readyLatency.WithLabelValues(label, strconv.FormatBool(ready)).Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// ResetProcess clears every series recorded for a process.
func ResetProcess(process string) {
	if process == "" {
		return
	}
	labels := prometheus.Labels{"process": process}
	processRunning.DeletePartialMatch(labels)
	processRestarts.DeletePartialMatch(labels)
	processExits.DeletePartialMatch(labels)
	signalsRelayed.DeletePartialMatch(labels)
	readyLatency.DeletePartialMatch(labels)
}
