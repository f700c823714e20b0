package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buildFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minipack_build_failed_total",
			Help: "Number of builds that failed, by error kind",
		},
		[]string{"kind"},
	)

	buildCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "minipack_build_count_total",
			Help: "Total number of builds started",
		},
	)

	buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "minipack_build_duration_seconds",
			Help:    "Build duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30},
		},
	)

	lastBuildStart = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "minipack_last_build_start_timestamp",
			Help: "Unix timestamp of when the last build started",
		},
	)

	lastBuildEnd = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "minipack_last_build_end_timestamp",
			Help: "Unix timestamp of when the last build ended",
		},
	)

	modules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "minipack_modules",
			Help: "Number of modules in the last successful build",
		},
	)

	chunkModules = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "minipack_chunk_modules",
			Help: "Number of modules per chunk in the last successful build",
		},
		[]string{"chunk"},
	)
)

func BuildStarted(start time.Time) {
	buildCount.Inc()
	lastBuildStart.Set(float64(start.Unix()))
}

// BuildSucceeded records a finished build. chunks maps chunk names to their
// module counts.
func BuildSucceeded(start time.Time, moduleCount int, chunks map[string]int) {
	end := time.Now()
	buildDuration.Observe(end.Sub(start).Seconds())
	lastBuildEnd.Set(float64(end.Unix()))
	modules.Set(float64(moduleCount))
	chunkModules.Reset()
	for name, n := range chunks {
		chunkModules.WithLabelValues(name).Set(float64(n))
	}
}

func BuildFailed(start time.Time, kind string) {
	end := time.Now()
	buildDuration.Observe(end.Sub(start).Seconds())
	lastBuildEnd.Set(float64(end.Unix()))
	buildFailed.WithLabelValues(kind).Inc()
}
