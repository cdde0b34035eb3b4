package fleet

import (
	"math"
	"math/rand"
	"time"

	"vanara-sim/internal/telemetry"
)

// HealthParams tunes the ambient telemetry walk.
type HealthParams struct {
	FlipProb       float64
	ThreatFlipProb float64
}

// DefaultHealthParams returns the reference probabilities.
func DefaultHealthParams() HealthParams {
	return HealthParams{FlipProb: 0.05, ThreatFlipProb: 0.06}
}

// HealthMonitor produces the 1s health telemetry for the spotlight bot and
// the fleet's aggregate threat level.
type HealthMonitor struct {
	state  telemetry.BotHealth
	params HealthParams
	rand   *rand.Rand
}

// NewHealthMonitor starts from nominal readings.
func NewHealthMonitor(botID string, params HealthParams, rng *rand.Rand) *HealthMonitor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &HealthMonitor{
		params: params,
		rand:   rng,
		state: telemetry.BotHealth{
			BotID:        botID,
			TemperatureC: 42,
			Signal:       76,
			CamoSync:     97,
			Motor:        telemetry.MotorStable,
			Camera:       telemetry.CameraOptimal,
			Threat:       telemetry.ThreatLow,
		},
	}
}

// Tick advances the health readings. anomaly forces the aggregate threat to High.
func (h *HealthMonitor) Tick(anomaly bool, now time.Time) telemetry.BotHealth {
	st := &h.state
	temp := st.TemperatureC + h.rand.Float64()*2 - 1
	st.TemperatureC = clampFloat(math.Round(temp*10)/10, 37, 62)
	st.Signal = clampInt(st.Signal+h.rand.Intn(5)-2, 20, 100)
	st.CamoSync = clampInt(st.CamoSync+h.rand.Intn(3)-1, 90, 100)
	if h.rand.Float64() < h.params.FlipProb {
		if st.Motor == telemetry.MotorStable {
			st.Motor = telemetry.MotorSurge
		} else {
			st.Motor = telemetry.MotorStable
		}
	}
	if h.rand.Float64() < h.params.FlipProb {
		if st.Camera == telemetry.CameraOptimal {
			st.Camera = telemetry.CameraCalibrating
		} else {
			st.Camera = telemetry.CameraOptimal
		}
	}
	switch {
	case anomaly:
		st.Threat = telemetry.ThreatHigh
	case h.rand.Float64() < h.params.ThreatFlipProb:
		if st.Threat == telemetry.ThreatLow {
			st.Threat = telemetry.ThreatMedium
		} else {
			st.Threat = telemetry.ThreatLow
		}
	}
	st.Timestamp = now.UTC()
	return *st
}

// Current returns the last computed readings.
func (h *HealthMonitor) Current() telemetry.BotHealth { return h.state }

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
