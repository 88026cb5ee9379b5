package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markscan_jobs_processed_total",
			Help: "Total number of processing jobs driven to a terminal state",
		},
		[]string{"status"}, // COMPLETED, FAILED
	)

	jobProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "markscan_job_processing_duration_seconds",
			Help:    "Wall-clock duration of one job's pipeline run",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 60},
		},
	)

	jobQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "markscan_job_queue_depth",
			Help: "Number of dispatched jobs waiting for a worker",
		},
	)
)
