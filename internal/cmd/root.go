// Package cmd implements the trainwatch CLI.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amapiano-ml/trainwatch/internal/config"
	"github.com/amapiano-ml/trainwatch/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "trainwatch",
	Short: "Supervise and evaluate amapiano fine-tuning runs",
	Long: `trainwatch supervises an external training job: it spawns the
process, parses training metrics from its output, tracks GPU spend,
fires the time-boxed Go/No-Go milestone evaluation, and checkpoints
progress so interrupted runs can resume.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp()
	},
}

var (
	appConfigPath string
	logLevel      string
	logProfile    string

	appConfig *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&appConfigPath, "app-config", "", "Path to application config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logProfile, "log-profile", "", "Log profile (console|structured)")
}

// initApp loads the application config and initializes logging. Flag
// values override the config file.
func initApp() error {
	cfg, err := config.Load(appConfigPath)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid application config", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logProfile != "" {
		cfg.Logging.Profile = logProfile
	}
	appConfig = cfg

	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging config", err)
	}
	return nil
}

// versionInfo holds build-time version metadata.
var versionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// Execute runs the CLI and returns the process exit code. SIGINT and
// SIGTERM cancel the command context so a supervised run can save its
// state before exiting.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	observability.CLILogger.Error("Command failed", zap.Error(err))
	return exitCodeFor(err)
}
