package config

import (
	"go.uber.org/fx"
)

// Module is an fx module that provides the application configuration.
// The hosting binary supplies EmbeddedConfig (via fx.Supply) from its
// go:embed'ed YAML file.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
)
