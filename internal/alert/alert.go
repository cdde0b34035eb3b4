// Package alert keeps the operator-facing alert list.
package alert

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Alert is a human-readable notice awaiting acknowledgment.
type Alert struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is a most-recent-first list of unacknowledged alerts.
type Log struct {
	mu     sync.RWMutex
	alerts []Alert
	now    func() time.Time
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// SetClock replaces the time source for new alerts.
func (l *Log) SetClock(now func() time.Time) { l.now = now }

// Append records message as a new alert and returns it.
func (l *Log) Append(message string) Alert {
	a := Alert{ID: uuid.NewString(), Message: message, Timestamp: l.now().UTC()}
	l.mu.Lock()
	l.alerts = append([]Alert{a}, l.alerts...)
	l.mu.Unlock()
	return a
}

// Acknowledge removes the alert with id and reports whether it existed.
func (l *Log) Acknowledge(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, a := range l.alerts {
		if a.ID == id {
			l.alerts = append(l.alerts[:i], l.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// All returns a copy of the alerts, newest first.
func (l *Log) All() []Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Alert, len(l.alerts))
	copy(out, l.alerts)
	return out
}
