package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amapiano-ml/trainwatch/internal/observability"
	"github.com/amapiano-ml/trainwatch/internal/server"
	"github.com/amapiano-ml/trainwatch/pkg/artifact"
	"github.com/amapiano-ml/trainwatch/pkg/checkpoint"
	"github.com/amapiano-ml/trainwatch/pkg/metrics"
	"github.com/amapiano-ml/trainwatch/pkg/orchestrator"
	"github.com/amapiano-ml/trainwatch/pkg/trainconfig"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a supervised training run",
	Long: `Start the external training process under supervision.

Training hyperparameters come from the training config file; metric
sinks, the status server, and checkpoint mirroring come from the
application config.

Example:
  trainwatch run --config train.yaml
  trainwatch run --config train.yaml --resume
  trainwatch run --config train.yaml --resume --run-id 6f3a...`,
	RunE: runTraining,
}

var (
	runConfigPath string
	runResume     bool
	runRunID      string
	runQuiet      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Path to training config (YAML or JSON)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Resume from the latest checkpoint")
	runCmd.Flags().StringVar(&runRunID, "run-id", "", "Run to resume (defaults to the most recent)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress echoing of training output")
}

func runTraining(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.CLILogger

	train, err := trainconfig.Load(runConfigPath)
	if err != nil {
		logger.Error("Failed to load training config",
			zap.String("path", runConfigPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid training config", err)
	}
	if err := train.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid training config", err)
	}

	store := checkpoint.NewStore(train.CheckpointDir)
	if appConfig.Mirror.Enabled {
		mirror, err := artifact.NewS3Store(ctx, appConfig.Mirror.S3)
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to configure checkpoint mirror", err)
		}
		store = store.WithMirror(mirror)
	}

	var resume *checkpoint.Record
	if runResume {
		resume, err = resolveResume(ctx, store)
		if err != nil {
			return err
		}
		logger.Info("Resuming run",
			zap.String("run_id", resume.RunID),
			zap.Int("current_epoch", resume.CurrentEpoch),
			zap.Int64("global_step", resume.GlobalStep))
	}

	runID := runRunID
	if resume != nil {
		runID = resume.RunID
	}
	if runID == "" {
		runID = uuid.New().String()
	}

	sink, history, cleanup, err := buildSinks(ctx, train, runID)
	if err != nil {
		return err
	}
	defer cleanup()

	var echo io.Writer
	if !runQuiet {
		echo = os.Stdout
	}

	orch, err := orchestrator.New(orchestrator.Config{
		RunID:       runID,
		Train:       train,
		Checkpoints: store,
		Sink:        sink,
		Echo:        echo,
		Resume:      resume,
		Logger:      logger,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid run configuration", err)
	}

	if appConfig.Server.Enabled {
		srv := server.New(appConfig.Server.Host, appConfig.Server.Port,
			server.WithVersion(versionInfo.Version),
			server.WithSnapshot(orch.Snapshot),
			server.WithHistory(history),
			server.WithLogger(logger))
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("Status server failed", zap.Error(err))
			}
		}()
	}

	outcome, runErr := orch.Run(ctx)
	switch outcome {
	case orchestrator.OutcomeCompleted:
		return nil
	case orchestrator.OutcomeInterrupted:
		fmt.Fprintln(os.Stderr, "Training interrupted. Resume with: trainwatch run --config "+runConfigPath+" --resume")
		return nil
	case orchestrator.OutcomeEscalated:
		return exitError(ExitEscalation, "Milestone decided NO_GO, abort report written", runErr)
	default:
		return exitError(1, "Training run failed", runErr)
	}
}

// resolveResume finds the checkpoint to continue from.
func resolveResume(ctx context.Context, store *checkpoint.Store) (*checkpoint.Record, error) {
	if runRunID != "" {
		rec, err := store.Load(ctx, runRunID)
		if err != nil {
			return nil, exitError(foundry.ExitFileReadError, "Failed to read checkpoint", err)
		}
		if rec == nil {
			return nil, exitError(foundry.ExitFileNotFound, "No checkpoint for run", fmt.Errorf("run %s has no saved state", runRunID))
		}
		return rec, nil
	}

	rec, err := store.Latest(ctx)
	if err != nil {
		return nil, exitError(foundry.ExitFileReadError, "Failed to scan checkpoints", err)
	}
	if rec == nil {
		return nil, exitError(foundry.ExitFileNotFound, "Nothing to resume", fmt.Errorf("no checkpoints under %s", store.RootDir()))
	}
	return rec, nil
}

// buildSinks assembles the metric sink chain from the application
// config. The returned cleanup closes every sink; the History handle is
// shared with the status server and closed by the same cleanup.
func buildSinks(ctx context.Context, train *trainconfig.Config, runID string) (metrics.Sink, *metrics.History, func(), error) {
	logger := observability.CLILogger

	var sinks metrics.MultiSink
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if appConfig.Sinks.JSONL.Enabled {
		if err := os.MkdirAll(train.MetricsDir, 0755); err != nil {
			return nil, nil, nil, exitError(foundry.ExitFileWriteError, "Failed to create metrics dir", err)
		}
		path := filepath.Join(train.MetricsDir, runID+".jsonl")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			cleanup()
			return nil, nil, nil, exitError(foundry.ExitFileWriteError, "Failed to open metrics log", err)
		}
		jsonl := metrics.NewJSONLSink(f, runID)
		sinks = append(sinks, jsonl)
		closers = append(closers, func() {
			_ = jsonl.Close()
			_ = f.Close()
		})
	}

	var history *metrics.History
	if appConfig.Sinks.History.Enabled {
		path := appConfig.Sinks.History.Path
		if path == "" {
			path = filepath.Join(train.MetricsDir, "history.db")
		}
		h, err := metrics.OpenHistory(ctx, path)
		if err != nil {
			cleanup()
			return nil, nil, nil, exitError(foundry.ExitFileWriteError, "Failed to open metrics history", err)
		}
		history = h
		sinks = append(sinks, metrics.NewHistorySink(h, runID))
		closers = append(closers, func() { _ = h.Close() })
	}

	if appConfig.Sinks.MLflow.Enabled {
		mlflow, err := metrics.NewMLflowSink(ctx, metrics.MLflowConfig{
			TrackingURI:       appConfig.Sinks.MLflow.TrackingURI,
			Token:             appConfig.Sinks.MLflow.Token,
			ExperimentID:      appConfig.Sinks.MLflow.ExperimentID,
			RunName:           runID,
			RequestsPerSecond: appConfig.Sinks.MLflow.RequestsPerSecond,
		})
		if err != nil {
			cleanup()
			return nil, nil, nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to MLflow", err)
		}
		// Remote sink goes behind the async queue so tracking latency
		// never stalls line handling.
		async := metrics.NewAsyncSink(mlflow, appConfig.Sinks.AsyncBuffer, logger)
		sinks = append(sinks, async)
		closers = append(closers, func() { _ = async.Close() })
	}

	if len(sinks) == 0 {
		return nil, nil, cleanup, nil
	}
	return sinks, history, cleanup, nil
}
