package migration

import (
	"go.uber.org/fx"
)

// Module is an fx module that provides the schema migrator.
var Module = fx.Options(
	fx.Provide(NewMigrator),
)
