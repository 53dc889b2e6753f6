package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visage_jobs_processed_total",
		Help: "Total number of enhancement jobs processed, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visage_stage_duration_seconds",
		Help:    "Duration of each enhancement pipeline stage",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	PipelineFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visage_pipeline_failures_total",
		Help: "Total number of classified pipeline failures, by kind",
	}, []string{"kind"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visage_frames_extracted_total",
		Help: "Total number of frames written by extraction across all jobs",
	})

	FramesEnhancedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visage_frames_enhanced_total",
		Help: "Total number of frames returned by the restoration engine",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visage_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visage_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
