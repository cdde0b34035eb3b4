package telemetry

import (
	"encoding/json"
	"time"
)

// Event names emitted towards the notification sink.
const (
	EventBotMove          = "bot_move"
	EventChargingStarted  = "charging_started"
	EventChargingTick     = "charging_tick"
	EventChargingComplete = "charging_complete"
	EventDetection        = "detection"
	EventStealth          = "stealth"
	EventThreatSimulation = "threat_simulation"
	EventSelfDestruct     = "self_destruct"
	EventHumanPresence    = "human_presence_detected"
	EventRegisterThreat   = "register_threat"
	EventControlsChanged  = "controls_changed"
	EventSyncLogs         = "sync_logs"
	EventBattery          = "battery"
)

// Event is the outbound record: {event, payload, timestamp}.
type Event struct {
	Name      string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event stamped with ts in UTC.
func NewEvent(name string, payload any, ts time.Time) Event {
	return Event{Name: name, Payload: payload, Timestamp: ts.UTC()}
}

// BotMove is the payload of bot_move.
type BotMove struct {
	BotID     string  `json:"botId"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Battery   int     `json:"battery"`
	RoutingTo *string `json:"routingTo"`
	Charging  bool    `json:"charging"`
}

// Charging is the payload of the charging_* events.
type Charging struct {
	BotID     string `json:"botId"`
	StationID string `json:"stationId,omitempty"`
	Battery   int    `json:"battery"`
}

// BatteryLow is the payload of the battery event.
type BatteryLow struct {
	BotID     string  `json:"botId"`
	Battery   int     `json:"battery"`
	RoutingTo *string `json:"routingTo"`
}

// SelfDestruct is the payload of self_destruct.
type SelfDestruct struct {
	BotID     string    `json:"botId"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// Controls are the operator's descriptive settings.
type Controls struct {
	Species string `json:"species"`
	Terrain string `json:"terrain"`
	Stealth bool   `json:"stealth"`
}

// StealthToggle is the payload of the stealth event.
type StealthToggle struct {
	On bool `json:"on"`
}

// ThreatRegistration is the payload of register_threat.
type ThreatRegistration struct {
	ThreatType string    `json:"threatType"`
	Confidence float64   `json:"confidence"`
	Location   string    `json:"location"`
	Timestamp  time.Time `json:"timestamp"`
	BotID      string    `json:"botId"`
	Terrain    string    `json:"terrain"`
	Stealth    bool      `json:"stealth"`
}

// PayloadAs returns the payload of ev as T. Payloads decoded from a log are
// json.RawMessage and are unmarshalled on demand.
func PayloadAs[T any](ev Event) (T, bool) {
	var out T
	switch p := ev.Payload.(type) {
	case T:
		return p, true
	case *T:
		if p != nil {
			return *p, true
		}
	case json.RawMessage:
		if err := json.Unmarshal(p, &out); err == nil {
			return out, true
		}
	case []byte:
		if err := json.Unmarshal(p, &out); err == nil {
			return out, true
		}
	}
	return out, false
}
