// Package resolver selects and opens the storage connection named by the
// application configuration.
package resolver

import (
	"context"
	"fmt"

	storageadaptor "github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage"
	storageconfig "github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage/config"
	"github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage/gcs"
	"github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage/local"
	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

// NewReportStorage opens the storage connection referenced by
// infrastructure.storage_ref. The connection type in the named configuration
// selects the backend.
func NewReportStorage(ctx context.Context, cfg *coreconfig.Config) (storageadaptor.StorageConnection, error) {
	name := cfg.Cascade.Infrastructure.StorageRef
	raw, ok := cfg.Cascade.StorageConfigs[name]
	if !ok {
		return nil, fmt.Errorf("storage connection '%s' not found in configuration", name)
	}

	storageCfg, err := storageconfig.Decode(raw, name)
	if err != nil {
		return nil, err
	}

	var conn storageadaptor.StorageConnection
	switch storageCfg.Type {
	case local.ProviderType:
		conn, err = local.NewLocalAdapter(storageCfg, name)
	case gcs.ProviderType:
		conn, err = gcs.NewGCSAdapter(ctx, storageCfg, name)
	default:
		return nil, fmt.Errorf("unsupported storage type '%s' for connection '%s'", storageCfg.Type, name)
	}
	if err != nil {
		return nil, err
	}

	logger.Infof("Storage connection '%s' established (type: %s).", name, storageCfg.Type)
	return conn, nil
}
