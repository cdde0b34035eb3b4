// Shared fleet records and the outbound event envelope.
package telemetry

import (
	"time"
)

// Threat is the assessed threat level of a bot or of the whole fleet.
type Threat string

const (
	ThreatLow    Threat = "Low"
	ThreatMedium Threat = "Medium"
	ThreatHigh   Threat = "High"
)

// Valid reports whether t is one of the known levels.
func (t Threat) Valid() bool {
	return t == ThreatLow || t == ThreatMedium || t == ThreatHigh
}

// Bot holds runtime state for one simulated field unit.
type Bot struct {
	ID        string  `json:"id" yaml:"id"`
	Species   string  `json:"species" yaml:"species"`
	Terrain   string  `json:"terrain" yaml:"terrain"`
	Stealth   bool    `json:"stealth" yaml:"stealth"`
	Threat    Threat  `json:"threat" yaml:"threat"`
	Battery   int     `json:"battery" yaml:"battery"`
	Lat       float64 `json:"lat" yaml:"lat"`
	Lon       float64 `json:"lon" yaml:"lon"`
	RoutingTo *string `json:"routingTo" yaml:"routing_to,omitempty"`
	Charging  bool    `json:"charging" yaml:"charging,omitempty"`
}

// Routing returns the station id the bot is heading to, or "".
func (b Bot) Routing() string {
	if b.RoutingTo == nil {
		return ""
	}
	return *b.RoutingTo
}

// Clone returns a copy that shares no pointers with b.
func (b Bot) Clone() Bot {
	if b.RoutingTo != nil {
		id := *b.RoutingTo
		b.RoutingTo = &id
	}
	return b
}

// Motor and camera states reported by the health tick.
const (
	MotorStable       = "Stable"
	MotorSurge        = "Surge"
	CameraOptimal     = "Optimal"
	CameraCalibrating = "Calibrating"
)

// BotHealth is the ambient telemetry of the spotlight bot.
type BotHealth struct {
	BotID        string    `json:"botId"`
	TemperatureC float64   `json:"temperatureC"`
	Signal       int       `json:"signal"`
	CamoSync     int       `json:"camoSync"`
	Motor        string    `json:"motor"`
	Camera       string    `json:"camera"`
	Threat       Threat    `json:"threat"`
	Timestamp    time.Time `json:"timestamp"`
}
