// Package model defines the domain entities of the Cascade pipeline:
// upload jobs, ingest batches, raw records, and the derived entities
// produced by cascade population.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of an UploadJob.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusAborted   JobStatus = "aborted"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status is a terminal state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusAborted:
		return true
	default:
		return false
	}
}

// BatchStatus represents the state of an ingest Batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusCommitted  BatchStatus = "committed"
	BatchStatusRolledBack BatchStatus = "rolled_back"
)

// String returns the string representation of the BatchStatus.
func (s BatchStatus) String() string {
	return string(s)
}

// RowError describes one rejected source row.
type RowError struct {
	// RowNumber is the 1-based position of the row within the source file.
	RowNumber int `json:"row_number"`
	// Reason is a short human-readable rejection reason.
	Reason string `json:"reason"`
}

// ErrorSummary aggregates the row- and batch-level failures of a job.
// It is persisted as a JSON column on the job row.
type ErrorSummary struct {
	// RowErrors lists rejected rows, capped by the coordinator to bound row growth.
	RowErrors []RowError `json:"row_errors,omitempty"`
	// BatchErrors lists per-batch failure messages keyed by batch sequence.
	BatchErrors map[int]string `json:"batch_errors,omitempty"`
	// FatalError is the job-level failure message for failed/aborted jobs.
	FatalError string `json:"fatal_error,omitempty"`
	// Truncated indicates RowErrors was capped and more rejections occurred.
	Truncated bool `json:"truncated,omitempty"`
}

// Value implements driver.Valuer, serializing the summary as JSON.
func (s ErrorSummary) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, deserializing the summary from JSON.
func (s *ErrorSummary) Scan(value interface{}) error {
	if value == nil {
		*s = ErrorSummary{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for ErrorSummary: %T", value)
	}
	if len(b) == 0 {
		*s = ErrorSummary{}
		return nil
	}
	return json.Unmarshal(b, s)
}

// UploadJob is the unit of work handed to the pipeline: one uploaded file,
// ingested in batches and followed by cascade population.
type UploadJob struct {
	// ID is the unique identity of the job.
	ID string `gorm:"column:id;primaryKey"`
	// SourceFile is an opaque reference to the uploaded file (path, object name).
	SourceFile string `gorm:"column:source_file"`
	// Status is the current lifecycle state.
	Status JobStatus `gorm:"column:status"`
	// TotalRows is the number of rows handed to the coordinator.
	TotalRows int `gorm:"column:total_rows"`
	// RowsCommitted counts rows durably written across committed batches.
	RowsCommitted int `gorm:"column:rows_committed"`
	// RowsRejected counts rows rejected by validation or discarded with a rolled-back batch.
	RowsRejected int `gorm:"column:rows_rejected"`
	// BatchesCommitted and BatchesRolledBack count batch outcomes.
	BatchesCommitted  int `gorm:"column:batches_committed"`
	BatchesRolledBack int `gorm:"column:batches_rolled_back"`
	// Errors is the aggregated error summary.
	Errors ErrorSummary `gorm:"column:errors;type:text"`
	// CreatedAt is set when the job is accepted; CompletedAt when it reaches a terminal state.
	CreatedAt   time.Time  `gorm:"column:created_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

// TableName maps UploadJob to its table.
func (UploadJob) TableName() string { return "upload_jobs" }

// NewUploadJob creates a pending UploadJob for the given source file.
// An empty id is replaced by a generated UUID.
func NewUploadJob(id, sourceFile string, totalRows int) *UploadJob {
	if id == "" {
		id = uuid.New().String()
	}
	return &UploadJob{
		ID:         id,
		SourceFile: sourceFile,
		Status:     JobStatusPending,
		TotalRows:  totalRows,
		Errors:     ErrorSummary{BatchErrors: map[int]string{}},
		CreatedAt:  time.Now(),
	}
}

// MarkTerminal transitions the job into a terminal status and stamps CompletedAt.
func (j *UploadJob) MarkTerminal(status JobStatus) {
	j.Status = status
	now := time.Now()
	j.CompletedAt = &now
}

// Batch is an ordered, fixed-size partition of a job's rows, committed or
// rolled back as a unit inside a savepoint.
type Batch struct {
	// ID is the unique identity of the batch.
	ID string `gorm:"column:id;primaryKey"`
	// JobID is the owning UploadJob.
	JobID string `gorm:"column:job_id;index"`
	// Seq is the 0-based sequence index of the batch within the job.
	Seq int `gorm:"column:seq"`
	// Status records the batch outcome.
	Status BatchStatus `gorm:"column:status"`
	// RowCount is the number of rows in the batch; ErrorCount the rejected rows within it.
	RowCount   int `gorm:"column:row_count"`
	ErrorCount int `gorm:"column:error_count"`
	// CreatedAt is set when the batch is dispatched.
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName maps Batch to its table.
func (Batch) TableName() string { return "ingest_batches" }

// NewBatch creates a pending Batch for the given job and sequence index.
func NewBatch(jobID string, seq, rowCount int) *Batch {
	return &Batch{
		ID:        uuid.New().String(),
		JobID:     jobID,
		Seq:       seq,
		Status:    BatchStatusPending,
		RowCount:  rowCount,
		CreatedAt: time.Now(),
	}
}

// SourceRow is one pre-parsed row of the uploaded file, as handed to the
// pipeline by the upload transport. Field values are still untyped strings.
type SourceRow struct {
	// RowNumber is the 1-based position within the source file.
	RowNumber int
	// InvoiceID identifies the order the row belongs to.
	InvoiceID string
	// CustomerName is the purchasing store's name.
	CustomerName string
	// ItemName is the purchased product's name.
	ItemName string
	// ItemPrice is the unit price, possibly formatted as currency ("$1,234.50").
	ItemPrice string
	// Quantity is the purchased quantity.
	Quantity string
	// Total is the row total, possibly formatted as currency.
	Total string
	// InvoiceDate is the order date in one of the accepted layouts; may be empty.
	InvoiceDate string
}

// RawRecord is one validated source row, immutable once written.
// It belongs to exactly one Batch and one UploadJob.
type RawRecord struct {
	ID      string `gorm:"column:id;primaryKey"`
	JobID   string `gorm:"column:job_id;index"`
	BatchID string `gorm:"column:batch_id;index"`
	// RowNumber preserves the source file position for traceability.
	RowNumber    int     `gorm:"column:row_number"`
	InvoiceID    string  `gorm:"column:invoice_id;index"`
	CustomerName string  `gorm:"column:customer_name"`
	ItemName     string  `gorm:"column:item_name"`
	UnitPrice    float64 `gorm:"column:unit_price"`
	Quantity     int     `gorm:"column:quantity"`
	Total        float64 `gorm:"column:total"`
	// InvoiceDate is the parsed order date; zero when the source omitted it.
	InvoiceDate time.Time `gorm:"column:invoice_date"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName maps RawRecord to its table.
func (RawRecord) TableName() string { return "raw_records" }
