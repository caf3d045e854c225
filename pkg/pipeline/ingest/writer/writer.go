// Package writer implements the batch writer of the ingestion pipeline.
// Each batch is persisted inside a transaction with a savepoint at its start:
// a row-level constraint violation rolls the whole batch back to the
// savepoint while the batch's bookkeeping row is still committed, so the
// failure is durable and previously committed batches are untouched.
package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	tx "github.com/tigerroll/cascade/pkg/pipeline/core/tx"
	"github.com/tigerroll/cascade/pkg/pipeline/support/exception"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

const moduleName = "writer"

// BatchResult reports the outcome of one batch write.
type BatchResult struct {
	// Batch is the persisted bookkeeping row with its final status.
	Batch *model.Batch
	// Committed reports whether the batch's rows became durable.
	Committed bool
	// RowsWritten is the number of raw records committed (0 on rollback).
	RowsWritten int
	// Err is the batch-level error when the batch rolled back, nil otherwise.
	Err error
}

// BatchWriter persists validated rows in savepoint-guarded batches.
type BatchWriter struct {
	txManager tx.TransactionManager
	timeout   time.Duration
}

// NewBatchWriter creates a BatchWriter. timeout bounds the duration of one
// batch write; zero disables the bound.
func NewBatchWriter(txManager tx.TransactionManager, timeout time.Duration) *BatchWriter {
	return &BatchWriter{txManager: txManager, timeout: timeout}
}

// WriteBatch persists one batch of validated records for the given job.
//
// The returned error is non-nil only for storage-level failures (begin,
// savepoint, or commit failing), which the coordinator treats as fatal for
// the job. A constraint violation inside the batch is not an error at this
// level: it is reported through BatchResult with Committed=false and the
// batch bookkeeping row marked rolled_back.
func (w *BatchWriter) WriteBatch(ctx context.Context, job *model.UploadJob, seq int, records []*model.RawRecord) (BatchResult, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	batch := model.NewBatch(job.ID, seq, len(records))
	result := BatchResult{Batch: batch}

	txn, err := w.txManager.Begin(ctx)
	if err != nil {
		return result, exception.New(moduleName, exception.KindStorageUnavailable,
			fmt.Sprintf("failed to begin transaction for batch %d", seq), err)
	}

	savepoint := fmt.Sprintf("ingest_batch_%d", seq)
	if err := txn.Savepoint(savepoint); err != nil {
		_ = w.txManager.Rollback(txn)
		return result, exception.New(moduleName, exception.KindStorageUnavailable,
			fmt.Sprintf("failed to create savepoint for batch %d", seq), err)
	}

	for _, rec := range records {
		rec.JobID = job.ID
		rec.BatchID = batch.ID
	}

	if len(records) > 0 {
		if _, err := txn.ExecuteInsert(ctx, records, model.RawRecord{}.TableName()); err != nil {
			// Constraint violation inside the batch: discard the batch's rows
			// as a unit, keep the transaction alive for the bookkeeping row.
			if rbErr := txn.RollbackToSavepoint(savepoint); rbErr != nil {
				_ = w.txManager.Rollback(txn)
				return result, exception.New(moduleName, exception.KindStorageUnavailable,
					fmt.Sprintf("failed to roll back to savepoint for batch %d", seq), rbErr)
			}
			batch.Status = model.BatchStatusRolledBack
			batch.ErrorCount = len(records)
			result.Err = exception.New(moduleName, exception.KindBatchCommit,
				fmt.Sprintf("batch %d rolled back", seq), err)
			logger.Warnf("Batch %d of job %s rolled back: %v", seq, job.ID, err)
		}
	}

	if result.Err == nil {
		batch.Status = model.BatchStatusCommitted
		result.Committed = true
		result.RowsWritten = len(records)
	}

	if _, err := txn.ExecuteInsert(ctx, batch, model.Batch{}.TableName()); err != nil {
		_ = w.txManager.Rollback(txn)
		return result, exception.New(moduleName, exception.KindStorageUnavailable,
			fmt.Sprintf("failed to persist bookkeeping row for batch %d", seq), err)
	}

	if err := w.txManager.Commit(txn); err != nil {
		result.Committed = false
		result.RowsWritten = 0
		return result, exception.New(moduleName, exception.KindStorageUnavailable,
			fmt.Sprintf("failed to commit batch %d", seq), err)
	}

	logger.Debugf("Batch %d of job %s %s (%d rows).", seq, job.ID, batch.Status, len(records))
	return result, nil
}
