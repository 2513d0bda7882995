// Package metrics exports per-stage run statistics in the Prometheus text
// format. A batch run has no scrape endpoint, so the collector writes a
// textfile (for node_exporter's textfile collector) when the run ends.
package metrics

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voxrecipe/internal/fileutil"
	"voxrecipe/internal/stage"
)

// Collector observes stages and accumulates metrics in a private registry.
type Collector struct {
	registry *prometheus.Registry

	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.GaugeVec
	subjobs       *prometheus.GaugeVec
	subjobsFailed *prometheus.GaugeVec
	lastRun       *prometheus.GaugeVec
}

// NewCollector registers the recipe metrics under expname.
func NewCollector(expname string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"expname": expname}, reg))
	return &Collector{
		registry: reg,
		stageRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxrecipe_stage_runs_total",
			Help: "Stage executions by outcome",
		}, []string{"stage", "index", "status"}),
		stageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxrecipe_stage_duration_seconds",
			Help: "Wall-clock duration of the most recent stage execution",
		}, []string{"stage", "index"}),
		subjobs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxrecipe_stage_subjobs",
			Help: "Sub-jobs launched by the most recent stage execution",
		}, []string{"stage", "index"}),
		subjobsFailed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxrecipe_stage_subjobs_failed",
			Help: "Sub-jobs that failed in the most recent stage execution",
		}, []string{"stage", "index"}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxrecipe_run_finished_timestamp_seconds",
			Help: "Unix time the last run finished, by outcome",
		}, []string{"status"}),
	}
}

func (c *Collector) StageStarted(context.Context, stage.Stage) {}

func (c *Collector) StageSkipped(context.Context, stage.Stage) {}

func (c *Collector) StageFinished(_ context.Context, r stage.Report) {
	index := strconv.Itoa(r.Stage.Index)
	status := "succeeded"
	if r.Err != nil {
		status = "failed"
	}
	c.stageRuns.WithLabelValues(r.Stage.Name, index, status).Inc()
	c.stageDuration.WithLabelValues(r.Stage.Name, index).Set(r.Elapsed.Seconds())
	c.subjobs.WithLabelValues(r.Stage.Name, index).Set(float64(r.Total))
	c.subjobsFailed.WithLabelValues(r.Stage.Name, index).Set(float64(r.Failed))
}

// RunFinished stamps the end of the run.
func (c *Collector) RunFinished(err error, at time.Time) {
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	c.lastRun.WithLabelValues(status).Set(float64(at.Unix()))
}

// Gatherer exposes the underlying registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// WriteTextfile atomically writes the metrics to path, creating its directory.
func (c *Collector) WriteTextfile(path string) error {
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
