// Package scenario describes scripted anomalies: timed detections that
// escalate the fleet to High threat when they fire.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is an ordered script of anomaly steps, each fired once after its
// delay from the moment the scenario is armed.
type Scenario struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step is one scripted detection.
type Step struct {
	After      time.Duration `yaml:"after"`
	Type       string        `yaml:"type"`
	Confidence float64       `yaml:"confidence"`
	Source     string        `yaml:"source"`
	// Alert overrides the default "Anomaly: <type>" message.
	Alert string `yaml:"alert,omitempty"`
	// Escalate raises the anomaly flag when the step fires.
	Escalate bool `yaml:"escalate"`
}

// AlertMessage returns the alert text for the step.
func (s Step) AlertMessage() string {
	if s.Alert != "" {
		return s.Alert
	}
	return "Anomaly: " + s.Type
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks that every step can fire and carries a sane confidence.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("no steps")
	}
	for i, st := range s.Steps {
		if st.After < 0 {
			return fmt.Errorf("step %d: negative delay", i)
		}
		if st.Type == "" {
			return fmt.Errorf("step %d: missing type", i)
		}
		if st.Confidence < 0 || st.Confidence > 1 {
			return fmt.Errorf("step %d: confidence %v outside [0,1]", i, st.Confidence)
		}
	}
	return nil
}

// Shifted returns a copy whose first step fires after lead, keeping the
// spacing between steps.
func (s Scenario) Shifted(lead time.Duration) Scenario {
	if len(s.Steps) == 0 {
		return s
	}
	first := s.Steps[0].After
	for _, st := range s.Steps[1:] {
		if st.After < first {
			first = st.After
		}
	}
	out := s
	out.Steps = make([]Step, len(s.Steps))
	for i, st := range s.Steps {
		st.After = st.After - first + lead
		out.Steps[i] = st
	}
	return out
}

// Resolve returns the built-in scenario called name, or loads name as a
// YAML file when no built-in matches.
func Resolve(name string) (*Scenario, error) {
	if s, ok := Lookup(name); ok {
		return &s, nil
	}
	return Load(name)
}
