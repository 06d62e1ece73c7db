// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	generationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_runs_total",
			Help: "Generation runs by outcome (success/failed/skipped).",
		},
		[]string{"outcome"},
	)

	generationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_run_seconds",
			Help:    "Generation run latency distribution in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"model", "success"},
	)

	busyRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_busy_rejections_total",
			Help: "Run attempts rejected because another run held the gate.",
		},
	)

	batchTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_tasks_total",
			Help: "Batch task results by outcome.",
		},
		[]string{"outcome"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			generationRuns, generationLatency, busyRejections, batchTasks,
		)
	})
}

func IncRun(outcome string) {
	generationRuns.WithLabelValues(outcome).Inc()
}

func ObserveRun(model string, seconds float64, success bool) {
	generationLatency.WithLabelValues(model, strconv.FormatBool(success)).Observe(seconds)
}

func IncBusy() {
	busyRejections.Inc()
}

func IncBatchTask(outcome string) {
	batchTasks.WithLabelValues(outcome).Inc()
}
