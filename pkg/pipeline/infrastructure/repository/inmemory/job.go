package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
)

// SaveJob persists a new UploadJob.
// It returns an error if a job with the same id already exists.
func (r *InMemoryRepository) SaveJob(ctx context.Context, job *model.UploadJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("upload job with id %s already exists", job.ID)
	}
	cloned := *job
	r.jobs[job.ID] = &cloned
	return nil
}

// UpdateJob updates an existing UploadJob.
func (r *InMemoryRepository) UpdateJob(ctx context.Context, job *model.UploadJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; !exists {
		return fmt.Errorf("upload job with id %s not found for update", job.ID)
	}
	cloned := *job
	r.jobs[job.ID] = &cloned
	return nil
}

// FindJobByID finds an UploadJob by its id.
// A copy is returned to prevent external modification of internal state.
func (r *InMemoryRepository) FindJobByID(ctx context.Context, id string) (*model.UploadJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	cloned := *job
	return &cloned, nil
}

// SaveBatch persists a Batch outcome row.
func (r *InMemoryRepository) SaveBatch(ctx context.Context, batch *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cloned := *batch
	r.batches[batch.JobID] = append(r.batches[batch.JobID], &cloned)
	return nil
}

// FindBatchesByJobID returns a job's batches ordered by sequence index.
func (r *InMemoryRepository) FindBatchesByJobID(ctx context.Context, jobID string) ([]*model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Batch, 0, len(r.batches[jobID]))
	for _, b := range r.batches[jobID] {
		cloned := *b
		out = append(out, &cloned)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
