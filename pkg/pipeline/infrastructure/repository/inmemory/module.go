package inmemory

import (
	"go.uber.org/fx"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
	tx "github.com/tigerroll/cascade/pkg/pipeline/core/tx"
)

// Module is an fx module that provides the in-memory repository and
// transaction manager, for tests and the dummy run mode.
var Module = fx.Options(
	fx.Provide(
		NewInMemoryRepository,
		fx.Annotate(func(r *InMemoryRepository) *InMemoryRepository { return r },
			fx.As(new(repository.PipelineRepository)),
			fx.As(new(repository.JobRepository)),
			fx.As(new(repository.RawRecordRepository)),
			fx.As(new(repository.DerivedRepository)),
		),
		fx.Annotate(NewMemTransactionManager, fx.As(new(tx.TransactionManager))),
	),
)
