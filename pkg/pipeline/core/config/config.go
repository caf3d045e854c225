package config

// Package config provides structures and utilities for managing pipeline configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed
// from main.go via go:embed.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// BreakerConfig holds the circuit breaker tuning for a job.
type BreakerConfig struct {
	// Threshold is the rejected/processed ratio above which the breaker trips.
	Threshold float64 `yaml:"threshold"`
	// MinSample is the minimum number of processed rows before the breaker
	// may trip, so one small bad batch cannot abort a job.
	MinSample int `yaml:"min_sample"`
}

// IngestConfig holds the ingestion engine tuning.
type IngestConfig struct {
	// BatchSize is the fixed number of rows per batch.
	BatchSize int `yaml:"batch_size"`
	// BatchTimeoutSeconds bounds the duration of a single batch write.
	BatchTimeoutSeconds int `yaml:"batch_timeout_seconds"`
	// MaxRowErrors caps the per-row errors retained in the job summary.
	MaxRowErrors int `yaml:"max_row_errors"`
	// Breaker is the circuit breaker configuration.
	Breaker BreakerConfig `yaml:"breaker"`
}

// PredictorConfig holds the order-prediction strategy parameters.
type PredictorConfig struct {
	// Horizon is the number of future orders projected per store.
	Horizon int `yaml:"horizon"`
	// MinHistory is the minimum number of historical orders required before
	// any projection is made.
	MinHistory int `yaml:"min_history"`
}

// SegmentsConfig holds the threshold segmenter parameters.
type SegmentsConfig struct {
	// PremiumValue is the recent total order value at or above which a store
	// is labeled Premium (together with PremiumOrders).
	PremiumValue float64 `yaml:"premium_value"`
	// PremiumOrders is the recent order count at or above which a store is
	// labeled Premium.
	PremiumOrders int `yaml:"premium_orders"`
	// NewMaxOrders is the order count at or below which a store is labeled New.
	NewMaxOrders int `yaml:"new_max_orders"`
}

// CascadeConfig holds the cascade population tuning.
type CascadeConfig struct {
	// StepTimeoutSeconds bounds the duration of one entity-kind population step.
	StepTimeoutSeconds int `yaml:"step_timeout_seconds"`
	// Predictor is the order-prediction strategy configuration.
	Predictor PredictorConfig `yaml:"predictor"`
	// Segments is the segmentation strategy configuration.
	Segments SegmentsConfig `yaml:"segments"`
}

// UpsellConfig holds the recommendation engine tuning.
type UpsellConfig struct {
	// CacheTTLSeconds is the per-order suggestion cache lifetime.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	// MaxSuggestions caps the number of suggestions returned per order.
	MaxSuggestions int `yaml:"max_suggestions"`
	// MinSupport is the minimum co-occurrence count for a candidate.
	MinSupport int `yaml:"min_support"`
	// HistoryLimit caps the store line-item history consulted per call.
	HistoryLimit int `yaml:"history_limit"`
}

// ExportConfig holds the Parquet report exporter settings.
type ExportConfig struct {
	// OutputBaseDir is the base directory within the storage bucket for
	// exported report files.
	OutputBaseDir string `yaml:"output_base_dir"`
	// CompressionType is the Parquet compression ("SNAPPY", "GZIP", "NONE").
	CompressionType string `yaml:"compression_type"`
}

// TelemetryConfig holds the OTLP export settings.
type TelemetryConfig struct {
	// Endpoint is the OTLP collector endpoint (host:port). Empty disables export.
	Endpoint string `yaml:"endpoint"`
	// Protocol selects the OTLP transport, "grpc" or "http".
	Protocol string `yaml:"protocol"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// DatabaseRef is the name of the database connection the pipeline uses.
	DatabaseRef string `yaml:"database_ref"`
	// StorageRef is the name of the storage connection used for report export.
	StorageRef string `yaml:"storage_ref"`
}

// CascadeRootConfig holds all configuration under the "cascade" top-level key.
type CascadeRootConfig struct {
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Ingest contains ingestion engine configurations.
	Ingest IngestConfig `yaml:"ingest"`
	// Cascade contains cascade population configurations.
	Cascade CascadeConfig `yaml:"cascade"`
	// Upsell contains recommendation engine configurations.
	Upsell UpsellConfig `yaml:"upsell"`
	// Export contains the report exporter configuration.
	Export ExportConfig `yaml:"export"`
	// Telemetry contains the OTLP export configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
	// Infrastructure contains infrastructure-related configurations.
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// DatabaseConfigs holds raw database connection configurations keyed by name,
	// decoded by the database adaptor with mapstructure.
	DatabaseConfigs map[string]interface{} `yaml:"database"`
	// StorageConfigs holds raw storage connection configurations keyed by name.
	StorageConfigs map[string]interface{} `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Cascade contains the top-level configuration for the pipeline.
	Cascade CascadeRootConfig `yaml:"cascade"`
	// EmbeddedConfig holds the raw configuration bytes, not loaded from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	cfg := &Config{
		Cascade: CascadeRootConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Ingest: IngestConfig{
				BatchSize:           500,
				BatchTimeoutSeconds: 60,
				MaxRowErrors:        200,
				Breaker: BreakerConfig{
					Threshold: 0.5,
					MinSample: 1000,
				},
			},
			Cascade: CascadeConfig{
				StepTimeoutSeconds: 120,
				Predictor: PredictorConfig{
					Horizon:    3,
					MinHistory: 2,
				},
				Segments: SegmentsConfig{
					PremiumValue:  5000,
					PremiumOrders: 8,
					NewMaxOrders:  2,
				},
			},
			Upsell: UpsellConfig{
				CacheTTLSeconds: 300,
				MaxSuggestions:  5,
				MinSupport:      2,
				HistoryLimit:    500,
			},
			Export: ExportConfig{
				OutputBaseDir:   "reports",
				CompressionType: "SNAPPY",
			},
			Telemetry: TelemetryConfig{
				Protocol: "grpc",
			},
			Infrastructure: InfrastructureConfig{
				DatabaseRef: "pipeline",
				StorageRef:  "reports",
			},
		},
	}

	// Populated by YAML or left empty for the dummy adaptor.
	cfg.Cascade.DatabaseConfigs = map[string]interface{}{}
	cfg.Cascade.StorageConfigs = map[string]interface{}{}
	return cfg
}
