package presence

import (
	"math"
	"time"
)

// Defaults for the scanner.
const (
	DefaultThreshold = 0.75
	DefaultCooldown  = 5 * time.Second
	minConfidence    = 0.5
	maxConfidence    = 0.98
)

// Scanner compares consecutive frames and reports presence triggers,
// suppressing repeats inside the cooldown window.
type Scanner struct {
	Threshold float64
	Cooldown  time.Duration

	prev        Frame
	lastTrigger time.Time
}

// NewScanner returns a scanner with the given trigger threshold and cooldown.
func NewScanner(threshold float64, cooldown time.Duration) *Scanner {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Scanner{Threshold: threshold, Cooldown: cooldown}
}

// Confidence maps a normalised pixel difference to a presence confidence.
func Confidence(diffAvg float64) float64 {
	return math.Min(maxConfidence, math.Max(minConfidence, diffAvg*2))
}

// Scan compares f with the previous frame. The first frame only primes the
// scanner and returns ok=false.
func (s *Scanner) Scan(f Frame, now time.Time) (confidence float64, triggered bool, ok bool) {
	prev := s.prev
	s.prev = f
	d, ok := diff(prev, f)
	if !ok {
		return 0, false, false
	}
	confidence = Confidence(d)
	if confidence <= s.Threshold {
		return confidence, false, true
	}
	if !s.lastTrigger.IsZero() && now.Sub(s.lastTrigger) < s.Cooldown {
		return confidence, false, true
	}
	s.lastTrigger = now
	return confidence, true, true
}

// Reset forgets the previous frame and the cooldown.
func (s *Scanner) Reset() {
	s.prev = Frame{}
	s.lastTrigger = time.Time{}
}
