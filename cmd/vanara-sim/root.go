package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vanara-sim/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "vanara-sim",
	Short: "Vanara camouflaged surveillance fleet simulator",
	Long:  "vanara-sim simulates a fleet of bio-mimetic surveillance bots, their charging stations, detections and alerts, and replays or exports recorded event logs.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmd.SetContext(logging.NewContext(cmd.Context(), logging.New()))
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(dashboardCmd)
}
