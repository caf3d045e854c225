// Package metrics defines the observability abstractions of the pipeline.
// Infrastructure provides Prometheus and OTel implementations; the no-op
// implementations here keep the pipeline runnable without an observability stack.
package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

// MetricRecorder records pipeline-level metrics.
type MetricRecorder interface {
	// RecordJobStart records a job entering the running state.
	RecordJobStart(ctx context.Context, job *model.UploadJob)
	// RecordJobEnd records a job reaching a terminal state.
	RecordJobEnd(ctx context.Context, job *model.UploadJob, duration time.Duration)
	// RecordBatchOutcome records one batch attempt and its outcome.
	RecordBatchOutcome(ctx context.Context, jobID string, committed bool, rowCount, errorCount int, duration time.Duration)
	// RecordBreakerTrip records a circuit breaker trip for a job.
	RecordBreakerTrip(ctx context.Context, jobID string)
	// RecordCascadeStep records one cascade population step and the rows it wrote.
	RecordCascadeStep(ctx context.Context, jobID, kind string, rowsWritten int64, duration time.Duration)
	// RecordSuggest records one upsell suggestion computation.
	RecordSuggest(ctx context.Context, cacheHit bool, suggestions int, duration time.Duration)
}

// Tracer starts spans around pipeline operations.
type Tracer interface {
	// StartSpan starts a span with the given name. The returned function ends
	// the span, recording err when non-nil.
	StartSpan(ctx context.Context, name string) (context.Context, func(err error))
}

// NoOpMetricRecorder is a MetricRecorder that discards all metrics.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder { return &NoOpMetricRecorder{} }

func (NoOpMetricRecorder) RecordJobStart(context.Context, *model.UploadJob) {}
func (NoOpMetricRecorder) RecordJobEnd(context.Context, *model.UploadJob, time.Duration) {
}
func (NoOpMetricRecorder) RecordBatchOutcome(context.Context, string, bool, int, int, time.Duration) {
}
func (NoOpMetricRecorder) RecordBreakerTrip(context.Context, string) {}
func (NoOpMetricRecorder) RecordCascadeStep(context.Context, string, string, int64, time.Duration) {
}
func (NoOpMetricRecorder) RecordSuggest(context.Context, bool, int, time.Duration) {}

// NoOpTracer is a Tracer that produces no spans.
type NoOpTracer struct{}

// NewNoOpTracer creates a new NoOpTracer.
func NewNoOpTracer() Tracer { return &NoOpTracer{} }

// StartSpan returns the context unchanged and a no-op end function.
func (NoOpTracer) StartSpan(ctx context.Context, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}
