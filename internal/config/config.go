// Package config loads the orchestrator's application configuration:
// logging, the status server, metric sinks, and checkpoint mirroring.
// Training hyperparameters live in their own config file and are loaded
// separately.
package config

import (
	"github.com/amapiano-ml/trainwatch/pkg/artifact"
)

// Config is the full application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Sinks   SinksConfig   `mapstructure:"sinks"`
	Mirror  MirrorConfig  `mapstructure:"mirror"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Profile selects the encoder: "console" for humans, "structured"
	// for JSON.
	Profile string `mapstructure:"profile"`
}

// ServerConfig controls the HTTP status server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// SinksConfig controls where metric observations go.
type SinksConfig struct {
	// AsyncBuffer sizes the async delivery queue in front of remote
	// sinks. Zero uses the package default.
	AsyncBuffer int `mapstructure:"async_buffer"`

	JSONL   JSONLSinkConfig   `mapstructure:"jsonl"`
	MLflow  MLflowSinkConfig  `mapstructure:"mlflow"`
	History HistorySinkConfig `mapstructure:"history"`
}

// JSONLSinkConfig controls the local JSONL metrics log.
type JSONLSinkConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MLflowSinkConfig controls the MLflow tracking sink.
type MLflowSinkConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	TrackingURI       string  `mapstructure:"tracking_uri"`
	Token             string  `mapstructure:"token"`
	ExperimentID      string  `mapstructure:"experiment_id"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// HistorySinkConfig controls the local SQLite metrics history that
// backs the status server's /metrics/recent endpoint.
type HistorySinkConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path of the database file. Empty derives one under the metrics
	// directory.
	Path string `mapstructure:"path"`
}

// MirrorConfig controls best-effort checkpoint mirroring to S3.
type MirrorConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	S3      artifact.S3Config `mapstructure:"s3"`
}

// Defaults used when the config file or key is absent.
const (
	DefaultLogLevel   = "info"
	DefaultLogProfile = "console"
	DefaultServerHost = "localhost"
	DefaultServerPort = 8080
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: DefaultLogLevel, Profile: DefaultLogProfile},
		Server:  ServerConfig{Enabled: false, Host: DefaultServerHost, Port: DefaultServerPort},
		Sinks: SinksConfig{
			JSONL:   JSONLSinkConfig{Enabled: true},
			History: HistorySinkConfig{Enabled: true},
		},
	}
}
