// Package metrics provides the Prometheus and OpenTelemetry implementations
// of the pipeline's observability abstractions.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	coremetrics "github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

// PrometheusRecorder is a Prometheus implementation of coremetrics.MetricRecorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job metrics
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	// Batch metrics
	batchDurationSeconds *prometheus.HistogramVec
	batchOutcomeCounter  *prometheus.CounterVec
	rowsProcessedCounter *prometheus.CounterVec
	rowsRejectedCounter  *prometheus.CounterVec
	breakerTripCounter   prometheus.Counter

	// Cascade metrics
	cascadeStepDuration *prometheus.HistogramVec
	cascadeRowsWritten  *prometheus.CounterVec

	// Upsell metrics
	suggestDuration  *prometheus.HistogramVec
	suggestionsCount prometheus.Histogram
}

// NewPrometheusRecorder creates a new PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go runtime and process metrics alongside the pipeline's own.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_job_duration_seconds",
			Help:    "Duration of upload job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_job_status_total",
			Help: "Total number of upload jobs by terminal status.",
		}, []string{"status"}),
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_batch_duration_seconds",
			Help:    "Duration of batch writes.",
			Buckets: prometheus.DefBuckets,
		}, []string{"committed"}),
		batchOutcomeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_batch_outcome_total",
			Help: "Total batches by outcome.",
		}, []string{"committed"}),
		rowsProcessedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_rows_processed_total",
			Help: "Total source rows processed.",
		}, []string{"committed"}),
		rowsRejectedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_rows_rejected_total",
			Help: "Total source rows rejected by validation.",
		}, []string{"committed"}),
		breakerTripCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_breaker_trips_total",
			Help: "Total circuit breaker trips.",
		}),
		cascadeStepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_cascade_step_duration_seconds",
			Help:    "Duration of cascade population steps.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		cascadeRowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_cascade_rows_written_total",
			Help: "Total derived rows written per entity kind.",
		}, []string{"kind"}),
		suggestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_suggest_duration_seconds",
			Help:    "Duration of upsell suggestion computations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"cache_hit"}),
		suggestionsCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_suggestions_returned",
			Help:    "Number of suggestions returned per call.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		}),
	}

	registry.MustRegister(r.jobDurationSeconds)
	registry.MustRegister(r.jobStatusCounter)
	registry.MustRegister(r.batchDurationSeconds)
	registry.MustRegister(r.batchOutcomeCounter)
	registry.MustRegister(r.rowsProcessedCounter)
	registry.MustRegister(r.rowsRejectedCounter)
	registry.MustRegister(r.breakerTripCounter)
	registry.MustRegister(r.cascadeStepDuration)
	registry.MustRegister(r.cascadeRowsWritten)
	registry.MustRegister(r.suggestDuration)
	registry.MustRegister(r.suggestionsCount)

	return r
}

// GetRegistry returns the Prometheus registry for the hosting service to expose.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records a job entering the running state.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, job *model.UploadJob) {
	r.jobStatusCounter.WithLabelValues(job.Status.String()).Inc()
	logger.Debugf("Metrics: job %s started.", job.ID)
}

// RecordJobEnd records a job reaching a terminal state.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, job *model.UploadJob, duration time.Duration) {
	r.jobStatusCounter.WithLabelValues(job.Status.String()).Inc()
	r.jobDurationSeconds.WithLabelValues(job.Status.String()).Observe(duration.Seconds())
	logger.Debugf("Metrics: job %s ended with %s in %.3fs.", job.ID, job.Status, duration.Seconds())
}

// RecordBatchOutcome records one batch attempt and its outcome.
func (r *PrometheusRecorder) RecordBatchOutcome(ctx context.Context, jobID string, committed bool, rowCount, errorCount int, duration time.Duration) {
	label := strconv.FormatBool(committed)
	r.batchOutcomeCounter.WithLabelValues(label).Inc()
	r.batchDurationSeconds.WithLabelValues(label).Observe(duration.Seconds())
	r.rowsProcessedCounter.WithLabelValues(label).Add(float64(rowCount))
	r.rowsRejectedCounter.WithLabelValues(label).Add(float64(errorCount))
}

// RecordBreakerTrip records a circuit breaker trip.
func (r *PrometheusRecorder) RecordBreakerTrip(ctx context.Context, jobID string) {
	r.breakerTripCounter.Inc()
}

// RecordCascadeStep records one cascade population step.
func (r *PrometheusRecorder) RecordCascadeStep(ctx context.Context, jobID, kind string, rowsWritten int64, duration time.Duration) {
	r.cascadeStepDuration.WithLabelValues(kind).Observe(duration.Seconds())
	r.cascadeRowsWritten.WithLabelValues(kind).Add(float64(rowsWritten))
}

// RecordSuggest records one upsell suggestion computation.
func (r *PrometheusRecorder) RecordSuggest(ctx context.Context, cacheHit bool, suggestions int, duration time.Duration) {
	r.suggestDuration.WithLabelValues(strconv.FormatBool(cacheHit)).Observe(duration.Seconds())
	r.suggestionsCount.Observe(float64(suggestions))
}

var _ coremetrics.MetricRecorder = (*PrometheusRecorder)(nil)
