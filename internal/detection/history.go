package detection

import "sync"

// DefaultCap is the number of detections kept by a History.
const DefaultCap = 31

// History is a bounded most-recent-first list of detections.
type History struct {
	mu    sync.RWMutex
	cap   int
	items []Detection
}

// NewHistory returns a History holding at most capacity entries.
func NewHistory(capacity int, seed ...Detection) *History {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	h := &History{cap: capacity}
	for i := len(seed) - 1; i >= 0; i-- {
		h.Add(seed[i])
	}
	return h
}

// Add prepends d and drops the oldest entries past the cap.
func (h *History) Add(d Detection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append([]Detection{d}, h.items...)
	if len(h.items) > h.cap {
		h.items = h.items[:h.cap]
	}
}

// All returns a copy of the history, newest first.
func (h *History) All() []Detection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Detection, len(h.items))
	copy(out, h.items)
	return out
}

// Len returns the number of stored detections.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Filter keeps detections whose type matches typ ("All" or "" for any) and
// whose confidence percentage lies in [minPct, maxPct].
func Filter(ds []Detection, typ string, minPct, maxPct int) []Detection {
	var out []Detection
	for _, d := range ds {
		if typ != "" && typ != "All" && typ != d.Type {
			continue
		}
		pct := int(d.Confidence*100 + 0.5)
		if pct < minPct || pct > maxPct {
			continue
		}
		out = append(out, d)
	}
	return out
}
