// Package config defines the storage connection configuration decoded from
// the application configuration with mapstructure.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	// Type is the storage backend ("gcs", "local").
	Type string `yaml:"type"`
	// BucketName is the default bucket for operations.
	BucketName string `yaml:"bucket_name"`
	// CredentialsFile is the path to a service account key for GCS.
	// Empty means application default credentials.
	CredentialsFile string `yaml:"credentials_file"`
	// BaseDir is the base directory for local file system storage.
	BaseDir string `yaml:"base_dir"`
}

// Decode decodes a raw configuration value into a StorageConfig.
// Raw values come from the YAML loader as map[string]interface{}, so
// mapstructure is configured to honor the yaml tags.
func Decode(raw interface{}, name string) (StorageConfig, error) {
	var cfg StorageConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &cfg,
		TagName: "yaml",
	})
	if err != nil {
		return StorageConfig{}, fmt.Errorf("failed to create decoder for storage config '%s': %w", name, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return StorageConfig{}, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	if cfg.Type == "" {
		return StorageConfig{}, fmt.Errorf("storage config '%s' requires a 'type'", name)
	}
	return cfg, nil
}
