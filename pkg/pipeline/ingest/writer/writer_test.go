package writer_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/infrastructure/repository/inmemory"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/writer"
	"github.com/tigerroll/cascade/pkg/pipeline/support/exception"
)

func makeRecords(n int, prefix string) []*model.RawRecord {
	records := make([]*model.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, &model.RawRecord{
			ID:           fmt.Sprintf("%s-%03d", prefix, i),
			RowNumber:    i + 1,
			InvoiceID:    fmt.Sprintf("INV-%s-%d", prefix, i/5),
			CustomerName: "Gupta Traders",
			ItemName:     "Fortune Sunflower Oil 1L",
			UnitPrice:    120,
			Quantity:     2,
			Total:        240,
			CreatedAt:    time.Now(),
		})
	}
	return records
}

func TestWriteBatchCommits(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	w := writer.NewBatchWriter(inmemory.NewMemTransactionManager(repo), time.Minute)
	job := model.NewUploadJob("", "sales.csv", 10)

	result, err := w.WriteBatch(context.Background(), job, 0, makeRecords(10, "a"))
	require.NoError(t, err)

	assert.True(t, result.Committed)
	assert.Equal(t, 10, result.RowsWritten)
	assert.Nil(t, result.Err)
	assert.Equal(t, model.BatchStatusCommitted, result.Batch.Status)

	count, err := repo.CountRecordsByJobID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)

	batches, err := repo.FindBatchesByJobID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, model.BatchStatusCommitted, batches[0].Status)
}

func TestWriteBatchRollsBackToSavepointOnConstraintViolation(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	w := writer.NewBatchWriter(inmemory.NewMemTransactionManager(repo), time.Minute)
	job := model.NewUploadJob("", "sales.csv", 20)

	// The violation fires midway through the batch, after some rows were
	// already inserted inside the transaction.
	repo.SetFailInsert(func(table string, m interface{}) error {
		rec, ok := m.(*model.RawRecord)
		if ok && rec.RowNumber == 7 {
			return fmt.Errorf("foreign key constraint violated")
		}
		return nil
	})

	result, err := w.WriteBatch(context.Background(), job, 0, makeRecords(10, "b"))
	require.NoError(t, err, "a constraint violation is not a storage-level error")

	assert.False(t, result.Committed)
	assert.Equal(t, 0, result.RowsWritten)
	require.Error(t, result.Err)
	assert.Equal(t, exception.KindBatchCommit, exception.KindOf(result.Err))
	assert.Equal(t, model.BatchStatusRolledBack, result.Batch.Status)
	assert.Equal(t, 10, result.Batch.ErrorCount)

	// All of the batch's rows were discarded as a unit.
	count, err := repo.CountRecordsByJobID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// The bookkeeping row survived the rollback and records the outcome.
	batches, err := repo.FindBatchesByJobID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, model.BatchStatusRolledBack, batches[0].Status)
}

func TestWriteBatchRollbackDoesNotTouchEarlierBatches(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	w := writer.NewBatchWriter(inmemory.NewMemTransactionManager(repo), time.Minute)
	job := model.NewUploadJob("", "sales.csv", 20)

	result0, err := w.WriteBatch(context.Background(), job, 0, makeRecords(10, "c"))
	require.NoError(t, err)
	require.True(t, result0.Committed)

	repo.SetFailInsert(func(table string, m interface{}) error {
		if _, ok := m.(*model.RawRecord); ok {
			return fmt.Errorf("unique constraint violated")
		}
		return nil
	})

	result1, err := w.WriteBatch(context.Background(), job, 1, makeRecords(10, "d"))
	require.NoError(t, err)
	assert.False(t, result1.Committed)

	// The first batch's rows stay committed.
	count, err := repo.CountRecordsByJobID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)

	batches, err := repo.FindBatchesByJobID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, model.BatchStatusCommitted, batches[0].Status)
	assert.Equal(t, model.BatchStatusRolledBack, batches[1].Status)
}

func TestWriteBatchEmptyBatchCommits(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	w := writer.NewBatchWriter(inmemory.NewMemTransactionManager(repo), 0)
	job := model.NewUploadJob("", "sales.csv", 0)

	result, err := w.WriteBatch(context.Background(), job, 0, nil)
	require.NoError(t, err)
	assert.True(t, result.Committed)
	assert.Equal(t, 0, result.RowsWritten)
}

func TestWriteBatchAssignsOwnership(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	w := writer.NewBatchWriter(inmemory.NewMemTransactionManager(repo), time.Minute)
	job := model.NewUploadJob("", "sales.csv", 3)

	result, err := w.WriteBatch(context.Background(), job, 0, makeRecords(3, "e"))
	require.NoError(t, err)

	records, err := repo.FindRecordsByJobID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, job.ID, rec.JobID)
		assert.Equal(t, result.Batch.ID, rec.BatchID)
	}
}
