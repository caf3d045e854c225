package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/cascade/pkg/pipeline/core/adaptor"
	tx "github.com/tigerroll/cascade/pkg/pipeline/core/tx"
)

// Module is an fx module that provides the gorm-backed database connection
// and transaction manager, closing the pool on shutdown.
var Module = fx.Options(
	fx.Provide(
		NewPipelineDBAdapter,
		fx.Annotate(func(a *GormDBAdapter) *GormDBAdapter { return a }, fx.As(new(adaptor.DBConnection))),
		fx.Annotate(NewGormTransactionManager, fx.As(new(tx.TransactionManager))),
	),
	fx.Invoke(func(lc fx.Lifecycle, adapter *GormDBAdapter) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return adapter.Close()
			},
		})
	}),
)
