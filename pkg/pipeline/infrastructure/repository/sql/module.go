package sql

import (
	"go.uber.org/fx"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
)

// Module is an fx module that provides the gorm-backed repository for all
// pipeline repository interfaces.
var Module = fx.Options(
	fx.Provide(
		NewGormRepository,
		fx.Annotate(func(r *GormRepository) *GormRepository { return r },
			fx.As(new(repository.PipelineRepository)),
			fx.As(new(repository.JobRepository)),
			fx.As(new(repository.RawRecordRepository)),
			fx.As(new(repository.DerivedRepository)),
		),
	),
)
