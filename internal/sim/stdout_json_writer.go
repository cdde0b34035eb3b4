package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"vanara-sim/internal/telemetry"
)

// JSONStdoutWriter prints events as JSON lines to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// WriteEvent outputs one event envelope.
func (w *JSONStdoutWriter) WriteEvent(ev telemetry.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Name, err)
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// WriteEvents outputs every event of a tick.
func (w *JSONStdoutWriter) WriteEvents(events []telemetry.Event) error {
	for _, ev := range events {
		if err := w.WriteEvent(ev); err != nil {
			return err
		}
	}
	return nil
}
