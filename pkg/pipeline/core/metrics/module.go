package metrics

import (
	"go.uber.org/fx"
)

// Module is an fx module that provides no-op observability fallbacks.
// Actual implementations (Prometheus recorder, OTel tracer) are provided by
// the infrastructure layer and take precedence when included.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewNoOpMetricRecorder,
		fx.As(new(MetricRecorder)),
	)),
	fx.Provide(fx.Annotate(
		NewNoOpTracer,
		fx.As(new(Tracer)),
	)),
)
