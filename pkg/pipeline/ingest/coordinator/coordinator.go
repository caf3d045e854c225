// Package coordinator implements the job coordinator: the owner of one
// upload job's lifecycle. It feeds rows to the batch writer in fixed-size
// batches, consults the per-job circuit breaker after every batch, persists
// progress for observability, and on full success triggers cascade
// population before the job is reported complete.
package coordinator

import (
	"context"
	"time"

	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
	"github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/breaker"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/validator"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/writer"
	"github.com/tigerroll/cascade/pkg/pipeline/support/exception"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

const moduleName = "coordinator"

// Populator triggers cascade population for a job whose raw rows are fully
// committed. Implemented by the cascade package.
type Populator interface {
	Populate(ctx context.Context, jobID string) error
}

// JobCoordinator drives upload jobs through
// pending -> running -> {completed, failed, aborted}.
//
// A single coordinator instance serves all jobs; all per-job state (breaker,
// counters) is local to one SubmitJob call, so independent jobs may run
// concurrently without shared mutable state.
type JobCoordinator struct {
	cfg       coreconfig.IngestConfig
	validator *validator.RowValidator
	writer    *writer.BatchWriter
	jobs      repository.JobRepository
	populator Populator
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
}

// NewJobCoordinator creates a JobCoordinator.
func NewJobCoordinator(
	cfg coreconfig.IngestConfig,
	rowValidator *validator.RowValidator,
	batchWriter *writer.BatchWriter,
	jobs repository.JobRepository,
	populator Populator,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *JobCoordinator {
	return &JobCoordinator{
		cfg:       cfg,
		validator: rowValidator,
		writer:    batchWriter,
		jobs:      jobs,
		populator: populator,
		recorder:  recorder,
		tracer:    tracer,
	}
}

// SubmitJob runs one upload job to a terminal state and returns its final
// snapshot. Row- and batch-level failures never surface as errors; they are
// aggregated into the job's error summary. The returned error is non-nil only
// when the job itself could not be recorded.
//
// Cancellation of ctx is honored between batches: already committed batches
// stay committed and the job is marked failed.
func (c *JobCoordinator) SubmitJob(ctx context.Context, jobID, sourceFile string, rows []model.SourceRow) (*model.UploadJob, error) {
	job := model.NewUploadJob(jobID, sourceFile, len(rows))
	if err := c.jobs.SaveJob(ctx, job); err != nil {
		return nil, exception.New(moduleName, exception.KindStorageUnavailable,
			"failed to register upload job", err)
	}

	ctx, endSpan := c.spanCtx(ctx, "pipeline.job")
	start := time.Now()
	c.runJob(ctx, job, rows, start)
	endSpan(nil)

	c.recorder.RecordJobEnd(ctx, job, time.Since(start))
	if err := c.jobs.UpdateJob(ctx, job); err != nil {
		return nil, exception.New(moduleName, exception.KindStorageUnavailable,
			"failed to persist final job state", err)
	}
	logger.Infof("Job %s finished with status %s (%d committed, %d rejected, %d/%d batches committed).",
		job.ID, job.Status, job.RowsCommitted, job.RowsRejected, job.BatchesCommitted,
		job.BatchesCommitted+job.BatchesRolledBack)
	return job, nil
}

// runJob drives the batch loop and the terminal transition. It mutates job in
// place; persistence of the final state is handled by SubmitJob.
func (c *JobCoordinator) runJob(ctx context.Context, job *model.UploadJob, rows []model.SourceRow, start time.Time) {
	brk := breaker.New(c.cfg.Breaker.Threshold, c.cfg.Breaker.MinSample)

	for seq, offset := 0, 0; offset < len(rows); seq, offset = seq+1, offset+c.cfg.BatchSize {
		// Cancellation is checked before dispatching each batch.
		if err := ctx.Err(); err != nil {
			c.failJob(job, exception.New(moduleName, exception.KindStorageUnavailable,
				"job canceled between batches", err))
			return
		}

		if job.Status == model.JobStatusPending {
			job.Status = model.JobStatusRunning
			c.recorder.RecordJobStart(ctx, job)
			if err := c.jobs.UpdateJob(ctx, job); err != nil {
				c.failJob(job, exception.New(moduleName, exception.KindStorageUnavailable,
					"failed to persist running state", err))
				return
			}
		}

		end := offset + c.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[offset:end]

		records, rowErrors := c.validateChunk(chunk)
		c.appendRowErrors(job, rowErrors)

		batchStart := time.Now()
		result, err := c.writer.WriteBatch(ctx, job, seq, records)
		if err != nil {
			// Storage-level failure: unrecoverable for this job.
			c.failJob(job, err)
			return
		}

		c.applyBatchOutcome(job, seq, result, len(rowErrors))
		brk.RecordBatchOutcome(result.Committed, len(rowErrors), len(chunk))
		_, rejected := brk.Counts()
		job.RowsRejected = rejected
		c.recorder.RecordBatchOutcome(ctx, job.ID, result.Committed, len(chunk), len(rowErrors), time.Since(batchStart))

		// Progress is persisted after every batch for observability.
		if err := c.jobs.UpdateJob(ctx, job); err != nil {
			c.failJob(job, exception.New(moduleName, exception.KindStorageUnavailable,
				"failed to persist job progress", err))
			return
		}

		if brk.ShouldAbort() {
			c.recorder.RecordBreakerTrip(ctx, job.ID)
			logger.Warnf("Circuit breaker tripped for job %s after %d rows (%d rejected); aborting.",
				job.ID, job.RowsCommitted+job.RowsRejected, job.RowsRejected)
			job.Errors.FatalError = exception.Newf(moduleName, exception.KindBreakerTripped,
				"error rate exceeded threshold after %d rows", job.RowsCommitted+job.RowsRejected).Error()
			job.MarkTerminal(model.JobStatusAborted)
			return
		}
	}

	// Handle the degenerate empty upload: it completes with zero counts.
	if job.Status == model.JobStatusPending {
		job.Status = model.JobStatusRunning
	}

	// All rows dispatched, breaker never tripped: trigger the cascade
	// synchronously before the job is reported complete. A cascade failure
	// demotes the job to failed with the raw data already durable, so the
	// cascade can be re-run later without re-uploading.
	if err := c.populator.Populate(ctx, job.ID); err != nil {
		logger.Errorf("Cascade population failed for job %s: %v", job.ID, err)
		c.failJob(job, exception.New(moduleName, exception.KindCascade,
			"cascade population failed", err))
		return
	}

	job.MarkTerminal(model.JobStatusCompleted)
}

// GetJobStatus returns a snapshot of the job with the given id.
func (c *JobCoordinator) GetJobStatus(ctx context.Context, jobID string) (*model.UploadJob, error) {
	return c.jobs.FindJobByID(ctx, jobID)
}

// validateChunk splits a chunk into valid records and row errors.
func (c *JobCoordinator) validateChunk(chunk []model.SourceRow) ([]*model.RawRecord, []model.RowError) {
	records := make([]*model.RawRecord, 0, len(chunk))
	var rowErrors []model.RowError
	for _, row := range chunk {
		record, rowErr := c.validator.Validate(row)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}
		records = append(records, record)
	}
	return records, rowErrors
}

// applyBatchOutcome folds one batch result into the job's counters.
func (c *JobCoordinator) applyBatchOutcome(job *model.UploadJob, seq int, result writer.BatchResult, rejectedInChunk int) {
	if result.Committed {
		job.RowsCommitted += result.RowsWritten
		job.BatchesCommitted++
		return
	}
	job.BatchesRolledBack++
	if result.Err != nil {
		if job.Errors.BatchErrors == nil {
			job.Errors.BatchErrors = map[int]string{}
		}
		job.Errors.BatchErrors[seq] = result.Err.Error()
	}
}

// appendRowErrors attaches rejected rows to the summary, capped to bound growth.
func (c *JobCoordinator) appendRowErrors(job *model.UploadJob, rowErrors []model.RowError) {
	for _, re := range rowErrors {
		if c.cfg.MaxRowErrors > 0 && len(job.Errors.RowErrors) >= c.cfg.MaxRowErrors {
			job.Errors.Truncated = true
			return
		}
		job.Errors.RowErrors = append(job.Errors.RowErrors, re)
	}
}

// failJob marks the job failed and records the cause in its summary.
func (c *JobCoordinator) failJob(job *model.UploadJob, cause error) {
	job.Errors.FatalError = cause.Error()
	job.MarkTerminal(model.JobStatusFailed)
	logger.Errorf("Job %s failed: %v", job.ID, cause)
}

// spanCtx starts a tracing span when a tracer is configured.
func (c *JobCoordinator) spanCtx(ctx context.Context, name string) (context.Context, func(error)) {
	if c.tracer == nil {
		return ctx, func(error) {}
	}
	return c.tracer.StartSpan(ctx, name)
}
