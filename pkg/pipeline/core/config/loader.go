package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/cascade/pkg/pipeline/support/exception"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"

	"go.uber.org/fx"
)

// Package config loads pipeline configuration from embedded YAML,
// merged over coded defaults and overridden by environment variables.

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	// EmbeddedConfig contains the raw bytes of the configuration file.
	EmbeddedConfig EmbeddedConfig
	// EnvFilePath is the path to the .env file, if any.
	EnvFilePath string `name:"envFilePath" optional:"true"`
}

// loadConfig loads configuration from the embedded YAML and environment
// variables. Intended to be called once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// Merge embedded YAML over the coded defaults. ${VAR} references in the
	// YAML are expanded from the environment first, after godotenv has run.
	if len(embeddedConfig) > 0 {
		expanded := []byte(os.ExpandEnv(string(embeddedConfig)))
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, exception.New(moduleName, exception.KindStorageUnavailable, "failed to unmarshal embedded config", err)
		}
	}

	// Environment variables win over YAML.
	overrideFromEnv(reflect.ValueOf(cfg).Elem(), "CASCADE")

	if cfg.Cascade.Ingest.BatchSize <= 0 {
		return nil, exception.Newf(moduleName, exception.KindStorageUnavailable,
			"ingest.batch_size must be positive, got %d", cfg.Cascade.Ingest.BatchSize)
	}
	if cfg.Cascade.Ingest.Breaker.Threshold <= 0 || cfg.Cascade.Ingest.Breaker.Threshold > 1 {
		return nil, exception.Newf(moduleName, exception.KindStorageUnavailable,
			"ingest.breaker.threshold must be in (0, 1], got %f", cfg.Cascade.Ingest.Breaker.Threshold)
	}

	return cfg, nil
}

// overrideFromEnv walks the configuration struct and overrides scalar fields
// from environment variables. The variable name is the upper-cased yaml tag
// path joined with underscores (e.g. CASCADE_CASCADE_INGEST_BATCH_SIZE).
// Map-typed fields (adaptor configs) are not overridable this way.
func overrideFromEnv(v reflect.Value, prefix string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("yaml"), ",")[0]
		if tag == "-" || tag == "" {
			continue
		}
		key := prefix + "_" + strings.ToUpper(tag)
		fv := v.Field(i)

		switch fv.Kind() {
		case reflect.Struct:
			overrideFromEnv(fv, key)
		case reflect.String:
			if raw, ok := os.LookupEnv(key); ok {
				fv.SetString(raw)
			}
		case reflect.Int:
			if raw, ok := os.LookupEnv(key); ok {
				if n, err := strconv.Atoi(raw); err == nil {
					fv.SetInt(int64(n))
				} else {
					logger.Warnf("Ignoring non-integer env override %s=%q", key, raw)
				}
			}
		case reflect.Float64:
			if raw, ok := os.LookupEnv(key); ok {
				if f, err := strconv.ParseFloat(raw, 64); err == nil {
					fv.SetFloat(f)
				} else {
					logger.Warnf("Ignoring non-numeric env override %s=%q", key, raw)
				}
			}
		case reflect.Bool:
			if raw, ok := os.LookupEnv(key); ok {
				if b, err := strconv.ParseBool(raw); err == nil {
					fv.SetBool(b)
				} else {
					logger.Warnf("Ignoring non-boolean env override %s=%q", key, raw)
				}
			}
		}
	}
}

// NewConfigProvider is an fx provider that loads and provides *Config.
// It also applies the configured log level before any component logs.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Cascade.System.Logging.Level)
	logger.Debugf("Configuration loaded (database_ref=%s, batch_size=%d)",
		cfg.Cascade.Infrastructure.DatabaseRef, cfg.Cascade.Ingest.BatchSize)
	return cfg, nil
}
