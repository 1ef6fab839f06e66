// Package metrics records build measurements with Prometheus.
package metrics

import (
	"fmt"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

// PrometheusRecorder implements interfaces.MetricsRecorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	reg           *prom.Registry
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	stageResults  *prom.CounterVec
	buildOutcome  *prom.CounterVec
	downloads     *prom.CounterVec
	archiveSize   prom.Gauge
}

var _ interfaces.MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "cauldron",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "cauldron",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "cauldron",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "cauldron",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.downloads = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "cauldron",
			Name:      "artifact_fetches_total",
			Help:      "Artifact fetches by source (cache or network)",
		}, []string{"source"})
		pr.archiveSize = prom.NewGauge(prom.GaugeOpts{
			Namespace: "cauldron",
			Name:      "archive_size_bytes",
			Help:      "Size of the last assembled archive",
		})
		reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome, pr.downloads, pr.archiveSize)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, success bool) {
	if p == nil || p.stageResults == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.stageResults.WithLabelValues(stage, res).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome interfaces.BuildOutcome) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncDownload(source string) {
	if p == nil || p.downloads == nil {
		return
	}
	p.downloads.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) ObserveArchiveSize(bytes int64) {
	if p == nil || p.archiveSize == nil {
		return
	}
	p.archiveSize.Set(float64(bytes))
}

// WriteTextfile writes the registry in the node_exporter textfile format
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
