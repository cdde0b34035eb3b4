package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"vanara-sim/internal/telemetry"
)

// FileWriter appends events to a JSONL file that ReplayLog can read back.
type FileWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileWriter creates or truncates path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create event log: %w", err)
	}
	return &FileWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// WriteEvent logs a single event.
func (f *FileWriter) WriteEvent(ev telemetry.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enc.Encode(ev)
}

// WriteEvents logs multiple events.
func (f *FileWriter) WriteEvents(events []telemetry.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range events {
		if err := f.enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (f *FileWriter) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}
