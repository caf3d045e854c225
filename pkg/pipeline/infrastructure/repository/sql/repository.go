// Package sql provides the gorm-backed implementation of the pipeline
// repositories against the relational store.
package sql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	gormadaptor "github.com/tigerroll/cascade/pkg/pipeline/adaptor/database/gorm"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
)

// GormRepository implements repository.PipelineRepository over gorm.
type GormRepository struct {
	adapter *gormadaptor.GormDBAdapter
}

// Verify the aggregate interface is satisfied.
var _ repository.PipelineRepository = (*GormRepository)(nil)

// NewGormRepository creates a repository over the given connection.
func NewGormRepository(adapter *gormadaptor.GormDBAdapter) *GormRepository {
	return &GormRepository{adapter: adapter}
}

// db returns a context-scoped gorm handle.
func (r *GormRepository) db(ctx context.Context) *gorm.DB {
	return r.adapter.GetGormDB().WithContext(ctx)
}

// Close releases the underlying connection pool.
func (r *GormRepository) Close() error {
	return r.adapter.Close()
}

// SaveJob persists a new UploadJob.
func (r *GormRepository) SaveJob(ctx context.Context, job *model.UploadJob) error {
	return r.db(ctx).Create(job).Error
}

// UpdateJob updates an existing UploadJob, including zero-valued columns.
func (r *GormRepository) UpdateJob(ctx context.Context, job *model.UploadJob) error {
	result := r.db(ctx).Model(&model.UploadJob{}).
		Where("id = ?", job.ID).
		Select("*").Omit("id", "created_at").
		Updates(job)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrJobNotFound
	}
	return nil
}

// FindJobByID returns the UploadJob with the given id.
func (r *GormRepository) FindJobByID(ctx context.Context, id string) (*model.UploadJob, error) {
	var job model.UploadJob
	err := r.db(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// SaveBatch persists a Batch outcome row.
// Batches are normally written inside the batch writer's transaction; this
// path exists for manual bookkeeping repairs.
func (r *GormRepository) SaveBatch(ctx context.Context, batch *model.Batch) error {
	return r.db(ctx).Create(batch).Error
}

// FindBatchesByJobID returns a job's batches ordered by sequence index.
func (r *GormRepository) FindBatchesByJobID(ctx context.Context, jobID string) ([]*model.Batch, error) {
	var batches []*model.Batch
	err := r.db(ctx).Where("job_id = ?", jobID).Order("seq ASC").Find(&batches).Error
	return batches, err
}

// FindRecordsByJobID returns a job's committed raw records ordered by row number.
func (r *GormRepository) FindRecordsByJobID(ctx context.Context, jobID string) ([]*model.RawRecord, error) {
	var records []*model.RawRecord
	err := r.db(ctx).Where("job_id = ?", jobID).Order("row_number ASC").Find(&records).Error
	return records, err
}

// CountRecordsByJobID returns the number of committed raw records for a job.
func (r *GormRepository) CountRecordsByJobID(ctx context.Context, jobID string) (int64, error) {
	var n int64
	err := r.db(ctx).Model(&model.RawRecord{}).Where("job_id = ?", jobID).Count(&n).Error
	return n, err
}
