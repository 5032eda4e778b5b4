package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/amapiano-ml/trainwatch/pkg/checkpoint"
	"github.com/amapiano-ml/trainwatch/pkg/trainconfig"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded training runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE:  runRunsList,
}

var (
	runsConfigPath string
	runsJSON       bool
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)

	runsListCmd.Flags().StringVarP(&runsConfigPath, "config", "c", "", "Path to training config (locates the checkpoint dir)")
	runsListCmd.Flags().BoolVar(&runsJSON, "json", false, "Emit JSON instead of a table")
}

func runRunsList(cmd *cobra.Command, args []string) error {
	train, err := trainconfig.Load(runsConfigPath)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid training config", err)
	}

	store := checkpoint.NewStore(train.CheckpointDir)
	recs, err := store.List(cmd.Context())
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list runs", err)
	}

	if runsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Printf("No runs recorded under %s\n", store.RootDir())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tUPDATED\tEPOCH\tSTEP\tBEST VAL LOSS\tMILESTONE\tINTERRUPTED")
	for _, rec := range recs {
		milestone := "pending"
		if rec.MilestoneDecided {
			milestone = "decided"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.4f\t%s\t%v\n",
			rec.RunID,
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.CurrentEpoch,
			rec.GlobalStep,
			rec.BestValLoss,
			milestone,
			rec.Interrupted)
	}
	return w.Flush()
}
