package gorm_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	gormlib "gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	gormadaptor "github.com/tigerroll/cascade/pkg/pipeline/adaptor/database/gorm"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

func newMockManager(t *testing.T) (*gormadaptor.GormTransactionManager, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gormDB, err := gormlib.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gormlib.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	adapter := gormadaptor.NewGormDBAdapter(gormDB, "postgres")
	return gormadaptor.NewGormTransactionManager(adapter), mock
}

func sampleRecords(n int) []*model.RawRecord {
	records := make([]*model.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, &model.RawRecord{
			ID:           string(rune('a' + i)),
			JobID:        "job-1",
			RowNumber:    i + 1,
			InvoiceID:    "INV-1",
			CustomerName: "Gupta Traders",
			ItemName:     "Tata Salt",
			UnitPrice:    25,
			Quantity:     2,
			Total:        50,
		})
	}
	return records
}

func TestSavepointGuardedBatchCommit(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_batch_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "raw_records"`)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "ingest_batches"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn, err := m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, txn.Savepoint("sp_batch_0"))

	written, err := txn.ExecuteInsert(context.Background(), sampleRecords(3), model.RawRecord{}.TableName())
	require.NoError(t, err)
	assert.Equal(t, int64(3), written)

	batch := model.NewBatch("job-1", 0, 3)
	_, err = txn.ExecuteInsert(context.Background(), batch, model.Batch{}.TableName())
	require.NoError(t, err)

	require.NoError(t, m.Commit(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackToSavepointKeepsTransactionOpen(t *testing.T) {
	m, mock := newMockManager(t)

	// A constraint violation inside the savepoint is contained by rolling back
	// to it; the enclosing transaction stays usable for the bookkeeping row.
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_batch_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "raw_records"`)).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "raw_records_pkey"`))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT sp_batch_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "ingest_batches"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn, err := m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, txn.Savepoint("sp_batch_2"))

	_, err = txn.ExecuteInsert(context.Background(), sampleRecords(2), model.RawRecord{}.TableName())
	require.Error(t, err)
	require.NoError(t, txn.RollbackToSavepoint("sp_batch_2"))

	batch := model.NewBatch("job-1", 2, 2)
	batch.Status = model.BatchStatusRolledBack
	batch.ErrorCount = 2
	_, err = txn.ExecuteInsert(context.Background(), batch, model.Batch{}.TableName())
	require.NoError(t, err)

	require.NoError(t, m.Commit(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDoNothingForMasterRecords(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "stores" .* ON CONFLICT \("external_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn, err := m.Begin(context.Background())
	require.NoError(t, err)

	stores := []*model.Store{{ExternalID: 4261931000000000042, Name: "Gupta Traders", Region: "Unassigned", IsActive: true}}
	written, err := txn.ExecuteUpsert(context.Background(), stores, model.Store{}.TableName(), []string{"external_id"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)

	require.NoError(t, m.Commit(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDoUpdateForAggregates(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "predicted_orders" .* ON CONFLICT \("store_external_id","horizon"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn, err := m.Begin(context.Background())
	require.NoError(t, err)

	preds := []model.PredictedOrder{{
		StoreExternalID: 4261931000000000042,
		Horizon:         1,
		OrderDate:       time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Amount:          250,
		Confidence:      0.9,
	}}
	written, err := txn.ExecuteUpsert(context.Background(), preds, model.PredictedOrder{}.TableName(),
		[]string{"store_external_id", "horizon"},
		[]string{"order_date", "amount", "confidence", "predicted_at", "source_job_id"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)

	require.NoError(t, m.Commit(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackDiscardsTransaction(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	txn, err := m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Rollback(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginPropagatesConnectionError(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := m.Begin(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
}
