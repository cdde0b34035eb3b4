package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vanara-sim/internal/admin"
	"vanara-sim/internal/config"
	"vanara-sim/internal/logging"
	"vanara-sim/internal/presence"
	"vanara-sim/internal/sim"
)

var (
	simPrintOnly  bool
	simTUI        bool
	simConfigPath string
	simSchemaPath string
	simLogFile    string
	simAddr       string
	simSeed       int64
	simFrames     string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the real-time fleet simulation",
	Long:  "simulate runs the fleet, detection and alert simulation, serves the operator API and emits events to STDOUT, GreptimeDB, a JSONL log and the webhook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if simTUI {
			ctx = logging.NewContext(ctx, logging.NewWithWriter(io.Discard, ""))
		}
		log := logging.FromContext(ctx)

		cfg, err := loadConfig(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}
		if simSeed != 0 {
			cfg.Seed = simSeed
		}
		if v := os.Getenv("WEBHOOK_URL"); v != "" {
			cfg.WebhookURL = v
		}

		var frames presence.FrameSource
		frameDir := cfg.Presence.FrameDir
		if simFrames != "" {
			frameDir = simFrames
		}
		if frameDir != "" {
			src, err := presence.NewDirSource(frameDir, cfg.Cadence.FrameScan)
			if err != nil {
				return fmt.Errorf("frames: %w", err)
			}
			frames = src
		}

		out, err := newSinks(cfg, simPrintOnly, simTUI, simLogFile, log)
		if err != nil {
			return err
		}
		defer out.Close()

		engine, err := sim.NewEngine(cfg, out.writer, sim.Options{Logger: log, Frames: frames, Webhook: out.webhook})
		if err != nil {
			return err
		}
		engine.Start(ctx)
		defer engine.Close()

		addr := simAddr
		if v := os.Getenv("ADMIN_ADDR"); v != "" {
			addr = v
		}
		srv := admin.NewServer(engine, out.events, log)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(ctx, addr) }()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("admin server: %w", err)
			}
		case <-ctx.Done():
			if err := <-errCh; err != nil {
				log.Error("admin server shutdown", "err", err)
			}
		}
		log.Info("simulation stopped")
		return nil
	},
}

// loadConfig falls back to the built-in fleet when no config path is given.
func loadConfig(path, schema string) (*config.SimulationConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path, schema)
}

func init() {
	simulateCmd.Flags().BoolVar(&simPrintOnly, "print-only", false, "Print events to STDOUT instead of writing to GreptimeDB")
	simulateCmd.Flags().BoolVar(&simTUI, "tui", false, "Render the fleet in an interactive terminal UI")
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML (empty for built-in defaults)")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export events (JSONL)")
	simulateCmd.Flags().StringVar(&simAddr, "addr", ":8080", "Operator API listen address")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "RNG seed (0 uses the config seed or the clock)")
	simulateCmd.Flags().StringVar(&simFrames, "frames", "", "Directory of PNG/JPEG frames to scan for human presence")
}
