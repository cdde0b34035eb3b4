package sim

import (
	"errors"

	"vanara-sim/internal/telemetry"
)

// MultiWriter fans events out to several writers. A failing writer does
// not stop delivery to the others.
type MultiWriter struct {
	writers []EventWriter
}

// NewMultiWriter creates a new MultiWriter, skipping nil writers.
func NewMultiWriter(writers ...EventWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// WriteEvent sends an event to all writers.
func (mw *MultiWriter) WriteEvent(ev telemetry.Event) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.WriteEvent(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteEvents sends a batch to all writers, using batch mode where supported.
func (mw *MultiWriter) WriteEvents(events []telemetry.Event) error {
	var errs []error
	for _, w := range mw.writers {
		if bw, ok := w.(batchEventWriter); ok {
			if err := bw.WriteEvents(events); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		for _, ev := range events {
			if err := w.WriteEvent(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer that holds resources.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if c, ok := w.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
