package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageconfig "github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage/config"
	"github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage/local"
	"github.com/tigerroll/cascade/pkg/pipeline/cascade"
	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	coremetrics "github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
	"github.com/tigerroll/cascade/pkg/pipeline/export"
	"github.com/tigerroll/cascade/pkg/pipeline/infrastructure/repository/inmemory"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/coordinator"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/validator"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/writer"
	"github.com/tigerroll/cascade/pkg/pipeline/service"
	"github.com/tigerroll/cascade/pkg/pipeline/upsell"
)

// trigger adapts the populator to the coordinator's interface, mirroring the
// fx wiring.
type trigger struct {
	populator *cascade.CascadePopulator
}

func (t trigger) Populate(ctx context.Context, jobID string) error {
	_, err := t.populator.Populate(ctx, jobID)
	return err
}

func newService(t *testing.T) *service.PipelineService {
	t.Helper()
	cfg := coreconfig.NewConfig().Cascade

	repo := inmemory.NewInMemoryRepository()
	tm := inmemory.NewMemTransactionManager(repo)
	recorder := coremetrics.NewNoOpMetricRecorder()
	tracer := coremetrics.NewNoOpTracer()

	populator := cascade.NewCascadePopulator(
		cfg.Cascade, tm, repo, repo, repo,
		cascade.NewCadencePredictor(cfg.Cascade.Predictor),
		cascade.NewThresholdSegmenter(cfg.Cascade.Segments),
		recorder, tracer,
	)
	coord := coordinator.NewJobCoordinator(
		cfg.Ingest,
		validator.NewRowValidator(),
		writer.NewBatchWriter(tm, time.Minute),
		repo,
		trigger{populator: populator},
		recorder, tracer,
	)
	engine := upsell.NewEngine(cfg.Upsell, repo, recorder)

	storage, err := local.NewLocalAdapter(storageconfig.StorageConfig{Type: local.ProviderType, BaseDir: t.TempDir()}, "reports")
	require.NoError(t, err)
	exporter := export.NewReportExporter(export.ExporterConfig{
		OutputBaseDir:   cfg.Export.OutputBaseDir,
		CompressionType: cfg.Export.CompressionType,
	}, storage)

	return service.NewPipelineService(coord, populator, engine, exporter, repo)
}

// uploadRows is a small upload for one store: three weekly orders where rice
// and oil ride together twice, plus one malformed row.
func uploadRows() []model.SourceRow {
	row := func(n int, invoice, item, price, qty, date string) model.SourceRow {
		return model.SourceRow{
			RowNumber:    n,
			InvoiceID:    invoice,
			CustomerName: "Gupta Traders",
			ItemName:     item,
			ItemPrice:    price,
			Quantity:     qty,
			InvoiceDate:  date,
		}
	}
	return []model.SourceRow{
		row(1, "INV-A", "Basmati Rice 1kg", "80", "2", "2025-03-01"),
		row(2, "INV-A", "Fortune Sunflower Oil 1L", "120", "1", "2025-03-01"),
		row(3, "INV-B", "Basmati Rice 1kg", "80", "1", "2025-03-08"),
		row(4, "INV-B", "Fortune Sunflower Oil 1L", "120", "2", "2025-03-08"),
		row(5, "INV-C", "Basmati Rice 1kg", "80", "3", "2025-03-15"),
		row(6, "INV-C", "Tata Salt", "25", "not-a-number", "2025-03-15"),
	}
}

func TestServiceRunsUploadEndToEnd(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	job, err := svc.SubmitJob(ctx, "job-e2e", "sales.csv", uploadRows())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 5, job.RowsCommitted)
	assert.Equal(t, 1, job.RowsRejected)

	found, err := svc.GetJobStatus(ctx, "job-e2e")
	require.NoError(t, err)
	assert.Equal(t, job.ID, found.ID)

	// The cascade ran synchronously, so suggestions are available right away:
	// oil co-occurred with rice in two of three orders.
	suggestions, err := svc.Suggest(ctx, "INV-C")
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, cascade.ProductKey("Fortune Sunflower Oil 1L"), suggestions[0].ProductSKU)

	rejectedObj, err := svc.ExportRejected(ctx, "job-e2e")
	require.NoError(t, err)
	assert.Contains(t, rejectedObj, "rejected/")

	predsObj, err := svc.ExportPredictions(ctx, "job-e2e")
	require.NoError(t, err)
	assert.Contains(t, predsObj, "predictions/")
}

func TestServicePopulateIsRerunnable(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.SubmitJob(ctx, "job-e2e", "sales.csv", uploadRows())
	require.NoError(t, err)

	result, err := svc.Populate(ctx, "job-e2e")
	require.NoError(t, err)
	assert.Equal(t, int64(0), result["stores"])
	assert.Equal(t, int64(0), result["line_items"])
	assert.Equal(t, int64(1), result["customer_segments"])
}
