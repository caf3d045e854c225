package inmemory

import (
	"context"
	"sort"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

// FindRecordsByJobID returns a job's committed raw records ordered by row number.
func (r *InMemoryRepository) FindRecordsByJobID(ctx context.Context, jobID string) ([]*model.RawRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.RawRecord
	for _, id := range r.recordOrder {
		rec := r.records[id]
		if rec != nil && rec.JobID == jobID {
			cloned := *rec
			out = append(out, &cloned)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowNumber < out[j].RowNumber })
	return out, nil
}

// CountRecordsByJobID returns the number of committed raw records for a job.
func (r *InMemoryRepository) CountRecordsByJobID(ctx context.Context, jobID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, rec := range r.records {
		if rec.JobID == jobID {
			n++
		}
	}
	return n, nil
}
