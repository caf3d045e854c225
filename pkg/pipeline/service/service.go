// Package service is the application facade over the pipeline. Hosting
// binaries and transports call it instead of the individual engines.
package service

import (
	"context"

	"github.com/tigerroll/cascade/pkg/pipeline/cascade"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
	"github.com/tigerroll/cascade/pkg/pipeline/export"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/coordinator"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
	"github.com/tigerroll/cascade/pkg/pipeline/upsell"
)

// PipelineService exposes the pipeline's operations to callers.
type PipelineService struct {
	coordinator *coordinator.JobCoordinator
	populator   *cascade.CascadePopulator
	engine      *upsell.Engine
	exporter    *export.ReportExporter
	derived     repository.DerivedRepository
}

// NewPipelineService wires the facade over the pipeline engines.
func NewPipelineService(
	coord *coordinator.JobCoordinator,
	populator *cascade.CascadePopulator,
	engine *upsell.Engine,
	exporter *export.ReportExporter,
	derived repository.DerivedRepository,
) *PipelineService {
	return &PipelineService{
		coordinator: coord,
		populator:   populator,
		engine:      engine,
		exporter:    exporter,
		derived:     derived,
	}
}

// SubmitJob runs a bulk upload through validation, batched ingestion, and
// cascade population, returning the job in its terminal state.
// An empty jobID is replaced by a generated one.
func (s *PipelineService) SubmitJob(ctx context.Context, jobID, sourceFile string, rows []model.SourceRow) (*model.UploadJob, error) {
	return s.coordinator.SubmitJob(ctx, jobID, sourceFile, rows)
}

// GetJobStatus returns the current state of a job, including its counters and
// error summary.
func (s *PipelineService) GetJobStatus(ctx context.Context, jobID string) (*model.UploadJob, error) {
	return s.coordinator.GetJobStatus(ctx, jobID)
}

// Populate re-runs cascade population for a completed job. All derived writes
// upsert on natural keys, so re-running is safe.
func (s *PipelineService) Populate(ctx context.Context, jobID string) (cascade.PopulationResult, error) {
	return s.populator.Populate(ctx, jobID)
}

// Suggest returns ranked upsell suggestions for an order. Orders without
// history yield an empty slice, not an error.
func (s *PipelineService) Suggest(ctx context.Context, orderRef string) ([]model.Suggestion, error) {
	return s.engine.Suggest(ctx, orderRef)
}

// ExportRejected writes a job's rejection report to storage and returns the
// object name, or "" when the job has no rejected rows.
func (s *PipelineService) ExportRejected(ctx context.Context, jobID string) (string, error) {
	job, err := s.coordinator.GetJobStatus(ctx, jobID)
	if err != nil {
		return "", err
	}
	objectName, err := s.exporter.ExportRejectedRows(ctx, job)
	if err != nil {
		logger.Errorf("Failed to export rejection report for job %s: %v", jobID, err)
		return "", err
	}
	return objectName, nil
}

// ExportPredictions writes the prediction snapshot refreshed by a job to
// storage and returns the object name, or "" when the job produced none.
func (s *PipelineService) ExportPredictions(ctx context.Context, jobID string) (string, error) {
	preds, err := s.derived.FindPredictionsByJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	objectName, err := s.exporter.ExportPredictions(ctx, jobID, preds)
	if err != nil {
		logger.Errorf("Failed to export prediction snapshot for job %s: %v", jobID, err)
		return "", err
	}
	return objectName, nil
}
