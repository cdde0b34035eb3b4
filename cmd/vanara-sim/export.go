package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"vanara-sim/internal/detection"
	"vanara-sim/internal/sim"
)

var (
	exportInput  string
	exportFormat string
	exportOutput string
	exportType   string
	exportMin    int
	exportMax    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded detections as JSON or CSV",
	Long:  "export rebuilds the detection history from a JSONL event log and writes it newest first as JSON or CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(exportInput)
		if err != nil {
			return err
		}
		defer f.Close()
		var out io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			o, err := os.Create(exportOutput)
			if err != nil {
				return err
			}
			defer o.Close()
			out = o
		}
		return exportDetections(f, out, exportFormat, exportType, exportMin, exportMax)
	},
}

func exportDetections(in io.Reader, out io.Writer, format, typ string, minPct, maxPct int) error {
	events, err := sim.ReadEvents(in)
	if err != nil {
		return err
	}
	ds := detection.Filter(sim.DetectionsFromEvents(events), typ, minPct, maxPct)
	switch format {
	case "json":
		return detection.ExportJSON(out, ds)
	case "csv":
		return detection.ExportCSV(out, ds)
	}
	return fmt.Errorf("unknown format %q (want json or csv)", format)
}

func init() {
	exportCmd.Flags().StringVar(&exportInput, "input", "", "Path to event log file")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json or csv")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Output file (default STDOUT)")
	exportCmd.Flags().StringVar(&exportType, "type", "All", "Only export this detection type")
	exportCmd.Flags().IntVar(&exportMin, "min", 0, "Minimum confidence percent")
	exportCmd.Flags().IntVar(&exportMax, "max", 100, "Maximum confidence percent")
	exportCmd.MarkFlagRequired("input")
}
