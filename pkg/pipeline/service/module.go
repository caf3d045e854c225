package service

import (
	"go.uber.org/fx"
)

// Module is an fx module that provides the pipeline service facade.
var Module = fx.Options(
	fx.Provide(NewPipelineService),
)
