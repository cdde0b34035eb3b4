package main

import (
	"log/slog"
	"os"

	"golang.org/x/term"

	"vanara-sim/internal/config"
	"vanara-sim/internal/sim"
)

// sinks is the event fan-out built for one run.
type sinks struct {
	writer  sim.EventWriter
	webhook *sim.WebhookWriter
	events  *sim.Broadcaster
	closers []interface{ Close() error }
}

// Close releases every writer holding resources.
func (s *sinks) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
}

// newSinks sets up the event writers based on flags and env vars.
func newSinks(cfg *config.SimulationConfig, printOnly, tui bool, logFile string, log *slog.Logger) (*sinks, error) {
	s := &sinks{}
	base, err := baseWriter(cfg, printOnly, tui, log)
	if err != nil {
		return nil, err
	}
	writers := []sim.EventWriter{base}
	if c, ok := base.(interface{ Close() error }); ok {
		s.closers = append(s.closers, c)
	}

	if logFile != "" {
		fw, err := sim.NewFileWriter(logFile)
		if err != nil {
			s.Close()
			return nil, err
		}
		writers = append(writers, fw)
		s.closers = append(s.closers, fw)
	}

	s.webhook = sim.NewWebhookWriter(cfg.WebhookURL, log)
	s.events = sim.NewBroadcaster(64)
	writers = append(writers, s.webhook, s.events)
	s.closers = append(s.closers, s.webhook)

	s.writer = sim.NewMultiWriter(writers...)
	return s, nil
}

// baseWriter chooses the primary sink: the TUI, STDOUT or GreptimeDB.
func baseWriter(cfg *config.SimulationConfig, printOnly, tui bool, log *slog.Logger) (sim.EventWriter, error) {
	if tui {
		return sim.NewTUIWriter(cfg), nil
	}
	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	if printOnly || endpoint == "" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return sim.NewColorStdoutWriter(cfg), nil
		}
		return sim.NewJSONStdoutWriter(), nil
	}
	database := os.Getenv("GREPTIMEDB_DATABASE")
	if database == "" {
		database = "public"
	}
	return sim.NewGreptimeDBWriter(endpoint, database, log)
}
