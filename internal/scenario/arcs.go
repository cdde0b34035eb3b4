package scenario

import "time"

// DefaultName is the scenario armed when none is configured.
const DefaultName = "ammunition-transport"

// BuiltIn returns the predefined anomaly scripts.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		DefaultName: {
			Name:        "Ammunition Transport",
			Description: "Drone camera spots an ammunition convoy crossing the line of control.",
			Steps: []Step{{
				After:      10 * time.Second,
				Type:       "Ammunition Transport",
				Confidence: 0.92,
				Source:     "Drone-Cam",
				Escalate:   true,
			}},
		},
		"border-probe": {
			Name:        "Border Probe",
			Description: "Acoustic contact followed by a confirmed thermal signature near the fence.",
			Steps: []Step{
				{After: 5 * time.Second, Type: "Acoustic", Confidence: 0.74, Source: "SensorNet"},
				{After: 15 * time.Second, Type: "Thermal", Confidence: 0.88, Source: "IR-Cam", Alert: "Anomaly: Intrusion at border fence", Escalate: true},
			},
		},
	}
}

// Lookup returns a built-in scenario by key.
func Lookup(name string) (Scenario, bool) {
	s, ok := BuiltIn()[name]
	return s, ok
}
