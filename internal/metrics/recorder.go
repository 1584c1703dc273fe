// Package metrics records pipeline stage timings and outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "containerdisk"

// Recorder stores all the metrics of pipeline runs in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	stageRuns       *prometheus.CounterVec
	downloadedBytes *prometheus.CounterVec
	upToDate        *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages by distribution and stage.",
			// Resolution takes seconds, downloads and publishing can take many minutes.
			Buckets: prometheus.ExponentialBuckets(0.5, 4, 8),
		}, []string{"distribution", "stage"})

	stageRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage executions by distribution, stage and outcome.",
		}, []string{"distribution", "stage", "outcome"})

	downloadedBytes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes transferred from upstream by distribution and architecture.",
		}, []string{"distribution", "arch"})

	upToDate := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up_to_date",
			Help:      "1 if the resolved release was already published, 0 otherwise.",
		}, []string{"distribution"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(stageDuration, stageRuns, downloadedBytes, upToDate)

	return &Recorder{
		registry:        registry,
		stageDuration:   stageDuration,
		stageRuns:       stageRuns,
		downloadedBytes: downloadedBytes,
		upToDate:        upToDate,
	}
}

// ObserveStage records one stage execution.
func (r *Recorder) ObserveStage(distribution, stage string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.stageDuration.WithLabelValues(distribution, stage).Observe(d.Seconds())
	r.stageRuns.WithLabelValues(distribution, stage, outcome).Inc()
}

func (r *Recorder) ObserveDownload(distribution, arch string, bytes int64) {
	r.downloadedBytes.WithLabelValues(distribution, arch).Add(float64(bytes))
}

func (r *Recorder) SetUpToDate(distribution string, upToDate bool) {
	if upToDate {
		r.upToDate.WithLabelValues(distribution).Set(1)
	} else {
		r.upToDate.WithLabelValues(distribution).Set(0)
	}
}

// Registry exposes the underlying registry, e.g. for gathering in tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics in the text exposition format,
// suitable for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
