package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("trainwatch %s (commit %s, built %s)\n",
			orDefault(versionInfo.Version, "dev"),
			orDefault(versionInfo.Commit, "unknown"),
			orDefault(versionInfo.BuildDate, "unknown"))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
