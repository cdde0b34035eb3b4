package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"vanara-sim/internal/detection"
	"vanara-sim/internal/presence"
	"vanara-sim/internal/telemetry"
)

// rawEvent keeps the payload undecoded until a writer asks for it.
type rawEvent struct {
	Name      string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// ReadEvents decodes a JSONL event log. Payloads stay json.RawMessage.
func ReadEvents(r io.Reader) ([]telemetry.Event, error) {
	var out []telemetry.Event
	err := decodeEvents(r, func(ev telemetry.Event) error {
		out = append(out, ev)
		return nil
	})
	return out, err
}

func decodeEvents(r io.Reader, fn func(telemetry.Event) error) error {
	dec := json.NewDecoder(r)
	for {
		var raw rawEvent
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode event log: %w", err)
		}
		ev := telemetry.Event{Name: raw.Name, Payload: raw.Payload, Timestamp: raw.Timestamp}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// ReplayLog replays events from r to writer. A speed >0 scales the original
// gaps between events; if speed <= 0, no artificial delay is inserted.
func ReplayLog(ctx context.Context, r io.Reader, writer EventWriter, speed float64) error {
	var prev time.Time
	return decodeEvents(r, func(ev telemetry.Event) error {
		if !prev.IsZero() && speed > 0 {
			diff := time.Duration(float64(ev.Timestamp.Sub(prev)) / speed)
			if diff > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(diff):
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		prev = ev.Timestamp
		return writer.WriteEvent(ev)
	})
}

// ReplayLogFile opens a file and replays its events.
func ReplayLogFile(ctx context.Context, path string, writer EventWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}

// DetectionsFromEvents rebuilds the detection history recorded in an event
// log, newest first. Presence triggers count as AI-Scan detections.
func DetectionsFromEvents(events []telemetry.Event) []detection.Detection {
	var out []detection.Detection
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		switch ev.Name {
		case telemetry.EventDetection:
			if d, ok := telemetry.PayloadAs[detection.Detection](ev); ok {
				out = append(out, d)
			}
		case telemetry.EventHumanPresence:
			if e, ok := telemetry.PayloadAs[presence.Entry](ev); ok {
				out = append(out, detection.Detection{
					Timestamp:  e.Timestamp,
					Type:       detection.TypeHumanPresence,
					Confidence: e.Confidence,
					Source:     detection.SourceAIScan,
				})
			}
		}
	}
	return out
}
