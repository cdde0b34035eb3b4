package presence

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLogCap bounds the threat log.
const DefaultLogCap = 12

// seekLead rewinds replay slightly before the trigger.
const seekLead = 0.3

// Entry records one presence trigger.
type Entry struct {
	ID         string    `json:"id"`
	BotID      string    `json:"botId"`
	Timestamp  time.Time `json:"timestamp"`
	Location   string    `json:"location"`
	Confidence float64   `json:"confidence"`
	// Seek is the playback offset in seconds at the time of the trigger.
	Seek float64 `json:"seek"`
}

// ReplaySeek returns where playback should resume to review the entry.
func (e Entry) ReplaySeek() float64 {
	return math.Max(0, e.Seek-seekLead)
}

// ThreatLog is a bounded most-recent-first list of entries.
type ThreatLog struct {
	mu      sync.RWMutex
	cap     int
	entries []Entry
}

// NewThreatLog returns a log holding at most capacity entries.
func NewThreatLog(capacity int) *ThreatLog {
	if capacity <= 0 {
		capacity = DefaultLogCap
	}
	return &ThreatLog{cap: capacity}
}

// Record assigns an id to e, prepends it and returns it.
func (l *ThreatLog) Record(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]Entry{e}, l.entries...)
	if len(l.entries) > l.cap {
		l.entries = l.entries[:l.cap]
	}
	return e
}

// All returns a copy of the log, newest first.
func (l *ThreatLog) All() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Get finds an entry by id.
func (l *ThreatLog) Get(id string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}
