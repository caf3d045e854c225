package cascade

import (
	"context"

	"go.uber.org/fx"

	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
	"github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
	tx "github.com/tigerroll/cascade/pkg/pipeline/core/tx"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/coordinator"
)

// newPredictor builds the default prediction strategy from configuration.
func newPredictor(cfg *coreconfig.Config) OrderPredictor {
	return NewCadencePredictor(cfg.Cascade.Cascade.Predictor)
}

// newSegmenter builds the default segmentation strategy from configuration.
func newSegmenter(cfg *coreconfig.Config) SegmentStrategy {
	return NewThresholdSegmenter(cfg.Cascade.Cascade.Segments)
}

// newPopulator builds the cascade populator from configuration.
func newPopulator(
	cfg *coreconfig.Config,
	txManager tx.TransactionManager,
	records repository.RawRecordRepository,
	derived repository.DerivedRepository,
	jobs repository.JobRepository,
	predictor OrderPredictor,
	segmenter SegmentStrategy,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *CascadePopulator {
	return NewCascadePopulator(cfg.Cascade.Cascade, txManager, records, derived, jobs, predictor, segmenter, recorder, tracer)
}

// populatorTrigger adapts the populator to the coordinator's trigger interface.
type populatorTrigger struct {
	populator *CascadePopulator
}

// Populate implements coordinator.Populator.
func (t populatorTrigger) Populate(ctx context.Context, jobID string) error {
	_, err := t.populator.Populate(ctx, jobID)
	return err
}

// Module is an fx module that provides the cascade populator and its
// strategies, including the coordinator-facing trigger.
var Module = fx.Options(
	fx.Provide(
		newPredictor,
		newSegmenter,
		newPopulator,
		fx.Annotate(
			func(p *CascadePopulator) populatorTrigger { return populatorTrigger{populator: p} },
			fx.As(new(coordinator.Populator)),
		),
	),
)
