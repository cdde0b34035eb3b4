// Package detection holds sensor detections, their bounded history and the
// background noise generator.
package detection

import (
	"math"
	"math/rand"
	"time"
)

// Known detection types and sources.
const (
	TypeMotion              = "Motion"
	TypeThermal             = "Thermal"
	TypeAcoustic            = "Acoustic"
	TypeUnknown             = "Unknown"
	TypeAmmunitionTransport = "Ammunition Transport"
	TypeHumanPresence       = "Human Presence"

	SourceSensorNet = "SensorNet"
	SourceDroneCam  = "Drone-Cam"
	SourceAIScan    = "AI-Scan"

	// UncertainBelow is the confidence under which a detection reads as uncertain.
	UncertainBelow = 0.70
)

var noiseTypes = []string{TypeMotion, TypeThermal, TypeAcoustic, TypeUnknown}

// Detection is a single sensor event. It is never mutated after creation.
type Detection struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       string    `json:"type"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}

// Uncertain reports whether the detection should be displayed as uncertain.
func (d Detection) Uncertain() bool { return d.Confidence < UncertainBelow }

// Label returns the display label: the type, or "Uncertain" for weak readings.
func (d Detection) Label() string {
	if d.Uncertain() {
		return "Uncertain"
	}
	return d.Type
}

// NoiseGenerator produces background detections from the sensor net.
type NoiseGenerator struct {
	rand *rand.Rand
}

// NewNoiseGenerator returns a generator drawing from rng.
func NewNoiseGenerator(rng *rand.Rand) *NoiseGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &NoiseGenerator{rand: rng}
}

// Next returns one detection with confidence in [0.55, 0.75].
func (g *NoiseGenerator) Next(now time.Time) Detection {
	conf := 0.55 + g.rand.Float64()*0.2
	return Detection{
		Timestamp:  now.UTC(),
		Type:       noiseTypes[g.rand.Intn(len(noiseTypes))],
		Confidence: math.Round(conf*100) / 100,
		Source:     SourceSensorNet,
	}
}
