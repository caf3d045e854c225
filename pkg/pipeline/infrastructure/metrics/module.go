package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/cascade/pkg/pipeline/core/config"
	coremetrics "github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
)

// newOTelProvider builds the OTel SDK from the application configuration and
// hooks its shutdown into the fx lifecycle.
func newOTelProvider(lc fx.Lifecycle, cfg *config.Config) (*OTelProvider, error) {
	provider, err := NewOTelProvider(context.Background(), OTelConfig{
		Endpoint: cfg.Cascade.Telemetry.Endpoint,
		Protocol: cfg.Cascade.Telemetry.Protocol,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}

// Module is an fx module that provides the Prometheus metric recorder and the
// OpenTelemetry tracer. Include this instead of the core no-op module.
var Module = fx.Options(
	fx.Provide(
		newOTelProvider,
		fx.Annotate(
			NewPrometheusRecorder,
			fx.As(new(coremetrics.MetricRecorder)),
		),
		fx.Annotate(
			NewOTelTracer,
			fx.As(new(coremetrics.Tracer)),
		),
	),
)
