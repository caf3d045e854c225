package repository

import (
	"context"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

// RawRecordRepository reads back the committed raw records of a job.
// Raw records are written inside the batch writer's transaction, not through
// this interface; once committed they are immutable.
type RawRecordRepository interface {
	// FindRecordsByJobID returns a job's committed raw records ordered by row number.
	FindRecordsByJobID(ctx context.Context, jobID string) ([]*model.RawRecord, error)

	// CountRecordsByJobID returns the number of committed raw records for a job.
	CountRecordsByJobID(ctx context.Context, jobID string) (int64, error)
}
