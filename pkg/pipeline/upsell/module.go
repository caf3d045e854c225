package upsell

import (
	"go.uber.org/fx"

	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
	"github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
)

// newEngine builds the recommendation engine from configuration.
func newEngine(cfg *coreconfig.Config, derived repository.DerivedRepository, recorder metrics.MetricRecorder) *Engine {
	return NewEngine(cfg.Cascade.Upsell, derived, recorder)
}

// Module is an fx module that provides the upsell recommendation engine.
var Module = fx.Options(
	fx.Provide(newEngine),
)
