// Package config defines the database connection configuration decoded from
// the raw adaptor config maps in the application YAML.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DatabaseConfig holds the settings for one named database connection.
type DatabaseConfig struct {
	// Type is the database type: "postgres", "mysql", or "sqlite".
	Type string `mapstructure:"type"`
	// DSN is the full connection string. When set it takes precedence over
	// the individual host/user fields.
	DSN string `mapstructure:"dsn"`
	// Host, Port, User, Password, DBName compose a DSN when DSN is empty.
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	// SSLMode applies to postgres connections (default "disable").
	SSLMode string `mapstructure:"sslmode"`
}

// Decode extracts and decodes the named connection configuration from the raw
// adaptor config map.
func Decode(raw map[string]interface{}, name string) (DatabaseConfig, error) {
	var cfg DatabaseConfig
	entry, ok := raw[name]
	if !ok {
		return cfg, fmt.Errorf("database connection '%s' is not configured", name)
	}
	if err := mapstructure.Decode(entry, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode database config '%s': %w", name, err)
	}
	if cfg.Type == "" {
		return cfg, fmt.Errorf("database connection '%s' has no type", name)
	}
	return cfg, nil
}

// BuildDSN returns the connection string for the configuration,
// composing one from the individual fields when DSN is empty.
func (c DatabaseConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Type {
	case "postgres":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case "sqlite":
		if c.DBName != "" {
			return c.DBName
		}
		return "file::memory:?cache=shared"
	default:
		return ""
	}
}
