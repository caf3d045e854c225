package repository

import (
	"context"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

// JobRepository persists UploadJobs and their Batches.
type JobRepository interface {
	// SaveJob persists a new UploadJob. It fails if the id already exists.
	SaveJob(ctx context.Context, job *model.UploadJob) error

	// UpdateJob updates an existing UploadJob (status, counters, error summary).
	UpdateJob(ctx context.Context, job *model.UploadJob) error

	// FindJobByID returns the UploadJob with the given id,
	// or ErrJobNotFound if none exists.
	FindJobByID(ctx context.Context, id string) (*model.UploadJob, error)

	// SaveBatch persists a Batch outcome row.
	SaveBatch(ctx context.Context, batch *model.Batch) error

	// FindBatchesByJobID returns a job's batches ordered by sequence index.
	FindBatchesByJobID(ctx context.Context, jobID string) ([]*model.Batch, error)
}
