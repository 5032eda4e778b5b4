// Package observability provides the shared CLI logger.
//
// All commands log through CLILogger. Output goes to stderr so the echoed
// training job output on stdout stays machine-readable.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide structured logger.
//
// It defaults to a no-op logger so packages can log safely before
// InitCLILogger runs (e.g. during flag parsing errors).
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger from the logging settings.
//
// Profiles:
//   - "structured": production JSON encoding (default)
//   - "console": human-readable development encoding
func InitCLILogger(level, profile string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch profile {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "", "structured":
		cfg = zap.NewProductionConfig()
	default:
		return fmt.Errorf("unknown logging profile %q", profile)
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	CLILogger = logger
	return nil
}
