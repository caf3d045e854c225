// Package ingest wires the ingestion components (validator, batch writer,
// job coordinator) into the fx graph. The circuit breaker is deliberately not
// provided here: it is a per-job value object created by the coordinator for
// each submitted job, never a process-wide singleton.
package ingest

import (
	"time"

	"go.uber.org/fx"

	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
	"github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
	"github.com/tigerroll/cascade/pkg/pipeline/core/tx"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/coordinator"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/validator"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/writer"
)

// newBatchWriter builds the batch writer from the ingest configuration.
func newBatchWriter(cfg *coreconfig.Config, txManager tx.TransactionManager) *writer.BatchWriter {
	timeout := time.Duration(cfg.Cascade.Ingest.BatchTimeoutSeconds) * time.Second
	return writer.NewBatchWriter(txManager, timeout)
}

// newJobCoordinator builds the coordinator from the ingest configuration.
func newJobCoordinator(
	cfg *coreconfig.Config,
	rowValidator *validator.RowValidator,
	batchWriter *writer.BatchWriter,
	jobs repository.JobRepository,
	populator coordinator.Populator,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *coordinator.JobCoordinator {
	return coordinator.NewJobCoordinator(cfg.Cascade.Ingest, rowValidator, batchWriter, jobs, populator, recorder, tracer)
}

// Module is an fx module that provides the ingestion components.
var Module = fx.Options(
	fx.Provide(
		validator.NewRowValidator,
		newBatchWriter,
		newJobCoordinator,
	),
)
