// Package fleet advances bot position, energy and threat state on the fleet tick.
package fleet

import (
	"errors"
	"math/rand"
	"time"

	"vanara-sim/internal/geo"
	"vanara-sim/internal/station"
	"vanara-sim/internal/telemetry"
)

// ErrUnknownBot is returned when a bot id is not part of the fleet.
var ErrUnknownBot = errors.New("unknown bot")

// Params tunes the movement and energy rules.
type Params struct {
	LowBattery      int
	ArrivalRadiusKm float64
	ChargeRate      int
	DrainRate       int
	DriftDeg        float64
	ThreatFlipProb  float64
}

// DefaultParams returns the reference constants.
func DefaultParams() Params {
	return Params{
		LowBattery:      20,
		ArrivalRadiusKm: 5,
		ChargeRate:      10,
		DrainRate:       3,
		DriftDeg:        0.005,
		ThreatFlipProb:  0.05,
	}
}

// Simulator owns the bot records between ticks.
type Simulator struct {
	bots     []*telemetry.Bot
	stations *station.Registry
	params   Params
	rand     *rand.Rand
	now      func() time.Time
}

// NewSimulator copies bots into a new fleet. A nil rng falls back to a time seed.
func NewSimulator(bots []telemetry.Bot, stations *station.Registry, params Params, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Simulator{stations: stations, params: params, rand: rng, now: time.Now}
	for _, b := range bots {
		c := b.Clone()
		c.Battery = clampInt(c.Battery, 0, 100)
		if !c.Threat.Valid() {
			c.Threat = telemetry.ThreatLow
		}
		s.bots = append(s.bots, &c)
	}
	return s
}

// SetClock replaces the time source used for event timestamps.
func (s *Simulator) SetClock(now func() time.Time) { s.now = now }

// Tick advances every bot once and returns the events produced, in fleet order.
func (s *Simulator) Tick() []telemetry.Event {
	var events []telemetry.Event
	for _, b := range s.bots {
		events = append(events, s.step(b)...)
	}
	return events
}

func (s *Simulator) step(b *telemetry.Bot) []telemetry.Event {
	ts := s.now()
	var events []telemetry.Event
	p := s.params

	// drift
	b.Lat = geo.Round4(b.Lat + s.uniform(-p.DriftDeg, p.DriftDeg))
	b.Lon = geo.Round4(b.Lon + s.uniform(-p.DriftDeg, p.DriftDeg))

	// routing
	if b.Battery < p.LowBattery {
		if st, ok := s.stations.NearestActive(b.Lat, b.Lon); ok && b.Routing() != st.ID {
			id := st.ID
			b.RoutingTo = &id
		}
	}

	// arrival
	if b.RoutingTo != nil && !b.Charging {
		if st, ok := s.stations.Get(*b.RoutingTo); ok && st.Active() &&
			geo.DistanceKm(b.Lat, b.Lon, st.Lat, st.Lon) < p.ArrivalRadiusKm {
			b.Charging = true
			events = append(events, telemetry.NewEvent(telemetry.EventChargingStarted,
				telemetry.Charging{BotID: b.ID, StationID: st.ID, Battery: b.Battery}, ts))
		}
	}

	// energy
	prev := b.Battery
	if b.Charging {
		b.Battery = clampInt(b.Battery+p.ChargeRate, 0, 100)
		if b.Battery >= 100 {
			stationID := b.Routing()
			b.Charging = false
			b.RoutingTo = nil
			events = append(events, telemetry.NewEvent(telemetry.EventChargingComplete,
				telemetry.Charging{BotID: b.ID, StationID: stationID, Battery: b.Battery}, ts))
		} else {
			events = append(events, telemetry.NewEvent(telemetry.EventChargingTick,
				telemetry.Charging{BotID: b.ID, StationID: b.Routing(), Battery: b.Battery}, ts))
		}
	} else {
		b.Battery = clampInt(b.Battery-p.DrainRate, 0, 100)
	}
	if prev >= p.LowBattery && b.Battery < p.LowBattery {
		events = append(events, telemetry.NewEvent(telemetry.EventBattery,
			telemetry.BatteryLow{BotID: b.ID, Battery: b.Battery, RoutingTo: copyRouting(b.RoutingTo)}, ts))
	}

	// threat; High only drops through SetThreat
	if b.Threat != telemetry.ThreatHigh && s.rand.Float64() < p.ThreatFlipProb {
		if b.Threat == telemetry.ThreatLow {
			b.Threat = telemetry.ThreatMedium
		} else {
			b.Threat = telemetry.ThreatLow
		}
	}

	events = append(events, telemetry.NewEvent(telemetry.EventBotMove, telemetry.BotMove{
		BotID:     b.ID,
		Lat:       b.Lat,
		Lon:       b.Lon,
		Battery:   b.Battery,
		RoutingTo: copyRouting(b.RoutingTo),
		Charging:  b.Charging,
	}, ts))
	return events
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rand.Float64()*(hi-lo)
}

// Snapshot returns copies of all bots in fleet order.
func (s *Simulator) Snapshot() []telemetry.Bot {
	out := make([]telemetry.Bot, len(s.bots))
	for i, b := range s.bots {
		out[i] = b.Clone()
	}
	return out
}

// Bot returns a copy of the bot with the given id.
func (s *Simulator) Bot(id string) (telemetry.Bot, bool) {
	for _, b := range s.bots {
		if b.ID == id {
			return b.Clone(), true
		}
	}
	return telemetry.Bot{}, false
}

// SetThreat overrides a bot's threat level.
func (s *Simulator) SetThreat(id string, t telemetry.Threat) error {
	for _, b := range s.bots {
		if b.ID == id {
			b.Threat = t
			return nil
		}
	}
	return ErrUnknownBot
}

// Filter keeps bots matching species, terrain and threat; "All" or "" matches anything.
func Filter(bots []telemetry.Bot, species, terrain string, threat telemetry.Threat) []telemetry.Bot {
	var out []telemetry.Bot
	for _, b := range bots {
		if !matches(species, b.Species) || !matches(terrain, b.Terrain) || !matches(string(threat), string(b.Threat)) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func matches(want, got string) bool {
	return want == "" || want == "All" || want == got
}

func copyRouting(id *string) *string {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
