package sim

import (
	"encoding/json"
	"sync"

	"vanara-sim/internal/telemetry"
)

// Broadcaster fans encoded events out to live subscribers such as
// websocket clients. Slow subscribers miss events instead of blocking.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan []byte]struct{}
	buffer int
}

// NewBroadcaster returns a broadcaster whose subscriber channels hold
// buffer messages.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{subs: make(map[chan []byte]struct{}), buffer: buffer}
}

// Subscribe registers a new subscriber. Call the returned func to leave.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// WriteEvent encodes ev once and offers it to every subscriber.
func (b *Broadcaster) WriteEvent(ev telemetry.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}
