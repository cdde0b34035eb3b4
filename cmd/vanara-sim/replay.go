package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vanara-sim/internal/logging"
	"vanara-sim/internal/sim"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay an event log file",
	Long:  "replay feeds events from a JSONL log back into GreptimeDB or STDOUT, keeping the recorded gaps scaled by --speed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		ctx := cmd.Context()
		writer, err := baseWriter(nil, replayPrintOnly, false, logging.FromContext(ctx))
		if err != nil {
			return err
		}
		return sim.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to event log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 for no delay)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print events to STDOUT instead of writing to GreptimeDB")
	replayCmd.MarkFlagRequired("input")
}
