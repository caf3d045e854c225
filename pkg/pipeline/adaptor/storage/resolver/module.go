package resolver

import (
	"context"

	"go.uber.org/fx"

	storageadaptor "github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage"
	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
)

// Module is an fx module that opens the configured report storage connection
// and closes it on shutdown.
var Module = fx.Options(
	fx.Provide(func(lc fx.Lifecycle, cfg *coreconfig.Config) (storageadaptor.StorageConnection, error) {
		conn, err := NewReportStorage(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return conn.Close()
			},
		})
		return conn, nil
	}),
)
