// Package app assembles the pipeline's fx application and drives one upload
// job from the command line.
package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/fx"

	gormadaptor "github.com/tigerroll/cascade/pkg/pipeline/adaptor/database/gorm"
	storageresolver "github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage/resolver"
	"github.com/tigerroll/cascade/pkg/pipeline/cascade"
	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/export"
	"github.com/tigerroll/cascade/pkg/pipeline/infrastructure/metrics"
	sqlrepo "github.com/tigerroll/cascade/pkg/pipeline/infrastructure/repository/sql"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest"
	"github.com/tigerroll/cascade/pkg/pipeline/migration"
	"github.com/tigerroll/cascade/pkg/pipeline/service"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
	"github.com/tigerroll/cascade/pkg/pipeline/upsell"
)

// Params carries the host-supplied inputs into the fx application.
type Params struct {
	// EnvFilePath is the path to the optional .env file.
	EnvFilePath string
	// EmbeddedConfig is the go:embed'ed application YAML.
	EmbeddedConfig []byte
	// MigrationsFS holds the go:embed'ed schema migration files.
	MigrationsFS fs.FS
	// MigrationsPath is the directory within MigrationsFS.
	MigrationsPath string
	// SourceFile is the CSV file to ingest.
	SourceFile string
}

// RunApplication builds the fx graph and runs one upload job end to end:
// migrate, ingest, cascade, then export the rejection report and prediction
// snapshot. It returns a non-nil error when the job does not complete.
func RunApplication(ctx context.Context, params Params) error {
	var runErr error

	app := fx.New(
		fx.Supply(coreconfig.EmbeddedConfig(params.EmbeddedConfig)),
		fx.Provide(fx.Annotate(
			func() string { return params.EnvFilePath },
			fx.ResultTags(`name:"envFilePath"`),
		)),
		coreconfig.Module,
		gormadaptor.Module,
		sqlrepo.Module,
		metrics.Module,
		migration.Module,
		ingest.Module,
		cascade.Module,
		upsell.Module,
		storageresolver.Module,
		export.Module,
		service.Module,
		fx.WithLogger(logger.NewFxLogger),
		fx.Invoke(func(lc fx.Lifecycle, migrator migration.Migrator, svc *service.PipelineService, shutdowner fx.Shutdowner) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						runErr = runJob(ctx, migrator, svc, params)
						_ = shutdowner.Shutdown()
					}()
					return nil
				},
			})
		}),
	)

	app.Run()
	return runErr
}

// runJob applies migrations, ingests the source file, and exports the reports.
func runJob(ctx context.Context, migrator migration.Migrator, svc *service.PipelineService, params Params) error {
	if err := migrator.Up(ctx, params.MigrationsFS, params.MigrationsPath); err != nil {
		return err
	}

	rows, err := readSourceFile(params.SourceFile)
	if err != nil {
		return fmt.Errorf("failed to read source file '%s': %w", params.SourceFile, err)
	}
	logger.Infof("Read %d rows from %s.", len(rows), params.SourceFile)

	job, err := svc.SubmitJob(ctx, "", params.SourceFile, rows)
	if err != nil {
		return err
	}

	logger.Infof("Job %s finished with status %s (committed=%d rejected=%d batches=%d/%d).",
		job.ID, job.Status, job.RowsCommitted, job.RowsRejected,
		job.BatchesCommitted, job.BatchesCommitted+job.BatchesRolledBack)

	if objectName, err := svc.ExportRejected(ctx, job.ID); err != nil {
		logger.Warnf("Rejection report export failed for job %s: %v", job.ID, err)
	} else if objectName != "" {
		logger.Infof("Rejection report for job %s written to %s.", job.ID, objectName)
	}

	if job.Status == model.JobStatusCompleted {
		if objectName, err := svc.ExportPredictions(ctx, job.ID); err != nil {
			logger.Warnf("Prediction snapshot export failed for job %s: %v", job.ID, err)
		} else if objectName != "" {
			logger.Infof("Prediction snapshot for job %s written to %s.", job.ID, objectName)
		}
	}

	if job.Status != model.JobStatusCompleted {
		return fmt.Errorf("job %s ended with status %s: %s", job.ID, job.Status, job.Errors.FatalError)
	}
	return nil
}

// sourceColumns maps normalized CSV header names to SourceRow fields.
var sourceColumns = map[string]func(*model.SourceRow, string){
	"invoice_id":    func(r *model.SourceRow, v string) { r.InvoiceID = v },
	"customer_name": func(r *model.SourceRow, v string) { r.CustomerName = v },
	"item_name":     func(r *model.SourceRow, v string) { r.ItemName = v },
	"item_price":    func(r *model.SourceRow, v string) { r.ItemPrice = v },
	"quantity":      func(r *model.SourceRow, v string) { r.Quantity = v },
	"total":         func(r *model.SourceRow, v string) { r.Total = v },
	"invoice_date":  func(r *model.SourceRow, v string) { r.InvoiceDate = v },
}

// readSourceFile parses a headered CSV file into source rows.
// Unknown columns are ignored; per-field validation happens downstream.
func readSourceFile(path string) ([]model.SourceRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	setters := make([]func(*model.SourceRow, string), len(header))
	for i, name := range header {
		setters[i] = sourceColumns[normalizeHeader(name)]
	}

	var rows []model.SourceRow
	rowNumber := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rowNumber++
		row := model.SourceRow{RowNumber: rowNumber}
		for i, value := range record {
			if i < len(setters) && setters[i] != nil {
				setters[i](&row, strings.TrimSpace(value))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// normalizeHeader lower-cases a header name and joins words with underscores.
func normalizeHeader(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), "_")
}
