// Package export writes job reports as Parquet files to the configured
// storage backend.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	storageadaptor "github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

const parquetContentType = "application/octet-stream"

// ExporterConfig holds the report exporter settings.
type ExporterConfig struct {
	// OutputBaseDir is the base directory within the storage bucket.
	OutputBaseDir string
	// CompressionType is the Parquet compression ("SNAPPY", "GZIP", "NONE").
	CompressionType string
}

// ReportExporter writes rejection reports and prediction snapshots for
// completed jobs as Parquet files.
type ReportExporter struct {
	cfg     ExporterConfig
	storage storageadaptor.StorageConnection
}

// NewReportExporter creates an exporter over the given storage connection.
func NewReportExporter(cfg ExporterConfig, storage storageadaptor.StorageConnection) *ReportExporter {
	if cfg.OutputBaseDir == "" {
		cfg.OutputBaseDir = "reports"
	}
	if cfg.CompressionType == "" {
		cfg.CompressionType = "SNAPPY"
	}
	return &ReportExporter{cfg: cfg, storage: storage}
}

// rejectedRowRecord is the Parquet row schema of the rejection report.
type rejectedRowRecord struct {
	JobID     string `parquet:"name=job_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	RowNumber int64  `parquet:"name=row_number, type=INT64"`
	Reason    string `parquet:"name=reason, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// predictionRecord is the Parquet row schema of the prediction snapshot.
type predictionRecord struct {
	StoreExternalID int64   `parquet:"name=store_external_id, type=INT64"`
	Horizon         int32   `parquet:"name=horizon, type=INT32"`
	OrderDate       string  `parquet:"name=order_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount          float64 `parquet:"name=amount, type=DOUBLE"`
	Confidence      float64 `parquet:"name=confidence, type=DOUBLE"`
	SourceJobID     string  `parquet:"name=source_job_id, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportRejectedRows writes a job's rejected rows as one Parquet file and
// returns the object name. Jobs without rejections are skipped.
func (e *ReportExporter) ExportRejectedRows(ctx context.Context, job *model.UploadJob) (string, error) {
	if len(job.Errors.RowErrors) == 0 {
		logger.Debugf("Job %s has no rejected rows, skipping report export.", job.ID)
		return "", nil
	}

	records := make([]rejectedRowRecord, 0, len(job.Errors.RowErrors))
	for _, re := range job.Errors.RowErrors {
		records = append(records, rejectedRowRecord{
			JobID:     job.ID,
			RowNumber: int64(re.RowNumber),
			Reason:    re.Reason,
		})
	}

	objectName := e.objectName("rejected", job.ID)
	if err := e.writeAndUpload(ctx, objectName, new(rejectedRowRecord), func(pw *writer.ParquetWriter) error {
		for _, rec := range records {
			if err := pw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	}, int64(len(records))); err != nil {
		return "", err
	}

	logger.Infof("Exported %d rejected rows for job %s to %s.", len(records), job.ID, objectName)
	return objectName, nil
}

// ExportPredictions writes a prediction snapshot as one Parquet file and
// returns the object name. Empty snapshots are skipped.
func (e *ReportExporter) ExportPredictions(ctx context.Context, jobID string, predictions []model.PredictedOrder) (string, error) {
	if len(predictions) == 0 {
		logger.Debugf("Job %s produced no predictions, skipping snapshot export.", jobID)
		return "", nil
	}

	objectName := e.objectName("predictions", jobID)
	if err := e.writeAndUpload(ctx, objectName, new(predictionRecord), func(pw *writer.ParquetWriter) error {
		for _, p := range predictions {
			rec := predictionRecord{
				StoreExternalID: p.StoreExternalID,
				Horizon:         int32(p.Horizon),
				OrderDate:       p.OrderDate.Format("2006-01-02"),
				Amount:          p.Amount,
				Confidence:      p.Confidence,
				SourceJobID:     p.SourceJobID,
			}
			if err := pw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	}, int64(len(predictions))); err != nil {
		return "", err
	}

	logger.Infof("Exported %d predictions for job %s to %s.", len(predictions), jobID, objectName)
	return objectName, nil
}

// writeAndUpload renders rows into an in-memory Parquet file and uploads it.
func (e *ReportExporter) writeAndUpload(ctx context.Context, objectName string, prototype interface{}, writeRows func(*writer.ParquetWriter) error, rowGroupSize int64) (err error) {
	codec, err := compressionCodec(e.cfg.CompressionType)
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, prototype, rowGroupSize)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer for '%s': %w", objectName, err)
	}
	pw.CompressionType = codec

	if err := writeRows(pw); err != nil {
		return fmt.Errorf("failed to write parquet rows for '%s': %w", objectName, err)
	}

	// The parquet library panics on some schema errors; convert to an error.
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = multierror.Append(err, fmt.Errorf("parquet writer panicked during finalize for '%s': %v", objectName, r))
			}
		}()
		if stopErr := pw.WriteStop(); stopErr != nil {
			err = multierror.Append(err, fmt.Errorf("failed to finalize parquet file '%s': %w", objectName, stopErr))
		}
	}()
	if err != nil {
		return err
	}

	if err := e.storage.Upload(ctx, "", objectName, buf, parquetContentType); err != nil {
		return fmt.Errorf("failed to upload parquet file '%s': %w", objectName, err)
	}
	return nil
}

// objectName builds a Hive-style partitioned object path.
func (e *ReportExporter) objectName(kind, jobID string) string {
	now := time.Now().UTC()
	return path.Join(
		e.cfg.OutputBaseDir,
		kind,
		fmt.Sprintf("dt=%s", now.Format("2006-01-02")),
		fmt.Sprintf("%s_%s.parquet", jobID, now.Format("150405")),
	)
}

// compressionCodec maps a configuration string to a Parquet codec.
func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}
