package export

import (
	"go.uber.org/fx"

	storageadaptor "github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage"
	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
)

// newReportExporter builds the exporter from the application configuration.
func newReportExporter(cfg *coreconfig.Config, storage storageadaptor.StorageConnection) *ReportExporter {
	return NewReportExporter(ExporterConfig{
		OutputBaseDir:   cfg.Cascade.Export.OutputBaseDir,
		CompressionType: cfg.Cascade.Export.CompressionType,
	}, storage)
}

// Module is an fx module that provides the Parquet report exporter.
var Module = fx.Options(
	fx.Provide(newReportExporter),
)
