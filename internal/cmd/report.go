package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/amapiano-ml/trainwatch/pkg/checkpoint"
	"github.com/amapiano-ml/trainwatch/pkg/trainconfig"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the milestone and abort documents for a run",
	Long: `Print a run's recorded state, its milestone metrics if the
evaluation has fired, and its abort report if the run was stopped on a
NO_GO decision.

Example:
  trainwatch report --config train.yaml --run 6f3a...
  trainwatch report --config train.yaml            (latest run)`,
	RunE: runReport,
}

var (
	reportConfigPath string
	reportRunID      string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportConfigPath, "config", "c", "", "Path to training config (locates the checkpoint dir)")
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "Run to report on (defaults to the most recent)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	train, err := trainconfig.Load(reportConfigPath)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid training config", err)
	}

	store := checkpoint.NewStore(train.CheckpointDir)

	var rec *checkpoint.Record
	if reportRunID != "" {
		rec, err = store.Load(ctx, reportRunID)
	} else {
		rec, err = store.Latest(ctx)
	}
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read run state", err)
	}
	if rec == nil {
		return exitError(foundry.ExitFileNotFound, "No run found", fmt.Errorf("no recorded runs under %s", store.RootDir()))
	}

	report := map[string]any{"state": rec}
	runDir := store.RunDir(rec.RunID)
	if doc := readDoc(filepath.Join(runDir, checkpoint.MilestoneFile)); doc != nil {
		report["milestone_metrics"] = doc
	}
	if doc := readDoc(filepath.Join(runDir, checkpoint.AbortFile)); doc != nil {
		report["abort_report"] = doc
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// readDoc returns the parsed JSON document at path, or nil when the
// file is absent or unreadable.
func readDoc(path string) any {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil
	}
	return doc
}
