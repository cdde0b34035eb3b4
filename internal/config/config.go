// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"vanara-sim/internal/station"
	"vanara-sim/internal/telemetry"
)

// Cadence holds the interval of every periodic task.
type Cadence struct {
	Health       time.Duration `yaml:"health"`
	Fleet        time.Duration `yaml:"fleet"`
	Detection    time.Duration `yaml:"detection"`
	FrameScan    time.Duration `yaml:"frame_scan"`
	SelfDestruct time.Duration `yaml:"self_destruct"`
}

// Fleet tunes movement, routing and energy.
type Fleet struct {
	LowBattery      int     `yaml:"low_battery"`
	ArrivalRadiusKm float64 `yaml:"arrival_radius_km"`
	ChargeRate      int     `yaml:"charge_rate"`
	DrainRate       int     `yaml:"drain_rate"`
	DriftDeg        float64 `yaml:"drift_deg"`
	ThreatFlipProb  float64 `yaml:"threat_flip_prob"`
}

// Health tunes the ambient telemetry walk of the spotlight bot.
type Health struct {
	FlipProb       float64 `yaml:"flip_prob"`
	ThreatFlipProb float64 `yaml:"threat_flip_prob"`
}

// Detection tunes the detection history.
type Detection struct {
	HistoryCap int `yaml:"history_cap"`
	// SeedInitial preloads the two sample detections and boundary alert.
	SeedInitial bool `yaml:"seed_initial"`
}

// Anomaly selects the scripted anomaly.
type Anomaly struct {
	// Scenario is a built-in scenario name or a path to a YAML script.
	Scenario string `yaml:"scenario"`
	// Delay moves the first step to fire this long after arming. Zero keeps
	// the script's own timings.
	Delay time.Duration `yaml:"delay"`
}

// SelfDestruct tunes the countdown.
type SelfDestruct struct {
	Countdown int `yaml:"countdown"`
}

// Presence tunes the frame scanner.
type Presence struct {
	Threshold float64       `yaml:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown"`
	LogCap    int           `yaml:"log_cap"`
	// FrameDir enables scanning of PNG/JPEG frames from a directory.
	FrameDir string `yaml:"frame_dir"`
}

// SimulationConfig is the root configuration for the fleet simulation.
type SimulationConfig struct {
	Seed              int64             `yaml:"seed"`
	SpotlightBot      string            `yaml:"spotlight_bot"`
	WebhookURL        string            `yaml:"webhook_url"`
	StationStatusFile string            `yaml:"station_status_file"`
	Cadence           Cadence           `yaml:"cadence"`
	Fleet             Fleet             `yaml:"fleet"`
	Health            Health            `yaml:"health"`
	Detection         Detection         `yaml:"detection"`
	Anomaly           Anomaly           `yaml:"anomaly"`
	SelfDestruct      SelfDestruct      `yaml:"self_destruct"`
	Presence          Presence          `yaml:"presence"`
	Stations          []station.Station `yaml:"stations"`
	Bots              []telemetry.Bot   `yaml:"bots"`
}

// Load loads YAML config and validates it against a CUE schema
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes over Default, so a field present in the
// document always wins, zero included.
func Parse(data []byte) (*SimulationConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillRequired()
	return cfg, nil
}

// Default returns the reference fleet, stations and constants.
func Default() *SimulationConfig {
	return &SimulationConfig{
		SpotlightBot: "VNR-07",
		Cadence: Cadence{
			Health:       time.Second,
			Fleet:        5 * time.Second,
			Detection:    8 * time.Second,
			FrameScan:    500 * time.Millisecond,
			SelfDestruct: time.Second,
		},
		Fleet: Fleet{
			LowBattery:      20,
			ArrivalRadiusKm: 5,
			ChargeRate:      10,
			DrainRate:       3,
			DriftDeg:        0.005,
			ThreatFlipProb:  0.05,
		},
		Health:       Health{FlipProb: 0.05, ThreatFlipProb: 0.06},
		Detection:    Detection{HistoryCap: 31, SeedInitial: true},
		Anomaly:      Anomaly{Scenario: "ammunition-transport", Delay: 10 * time.Second},
		SelfDestruct: SelfDestruct{Countdown: 5},
		Presence:     Presence{Threshold: 0.75, Cooldown: 5 * time.Second, LogCap: 12},
		Stations:     defaultStations(),
		Bots:         defaultBots(),
	}
}

// fillRequired restores reference values for fields the engine cannot run
// with at zero: tickers, caps, rates and the fleet itself.
func (c *SimulationConfig) fillRequired() {
	d := Default()
	setDur(&c.Cadence.Health, d.Cadence.Health)
	setDur(&c.Cadence.Fleet, d.Cadence.Fleet)
	setDur(&c.Cadence.Detection, d.Cadence.Detection)
	setDur(&c.Cadence.FrameScan, d.Cadence.FrameScan)
	setDur(&c.Cadence.SelfDestruct, d.Cadence.SelfDestruct)

	setFloat(&c.Fleet.ArrivalRadiusKm, d.Fleet.ArrivalRadiusKm)
	setInt(&c.Fleet.ChargeRate, d.Fleet.ChargeRate)
	setInt(&c.Fleet.DrainRate, d.Fleet.DrainRate)
	setInt(&c.Detection.HistoryCap, d.Detection.HistoryCap)
	setInt(&c.SelfDestruct.Countdown, d.SelfDestruct.Countdown)
	setInt(&c.Presence.LogCap, d.Presence.LogCap)

	if c.Anomaly.Scenario == "" {
		c.Anomaly.Scenario = d.Anomaly.Scenario
	}
	if c.SpotlightBot == "" {
		c.SpotlightBot = d.SpotlightBot
	}
	if len(c.Stations) == 0 {
		c.Stations = d.Stations
	}
	if len(c.Bots) == 0 {
		c.Bots = d.Bots
	}
}

func setDur(v *time.Duration, d time.Duration) {
	if *v <= 0 {
		*v = d
	}
}

func setInt(v *int, d int) {
	if *v <= 0 {
		*v = d
	}
}

func setFloat(v *float64, d float64) {
	if *v <= 0 {
		*v = d
	}
}

func defaultStations() []station.Station {
	return []station.Station{
		{ID: "Alpha", Name: "Station Alpha – Pahalgam Sector", Lat: 34.01, Lon: 75.31, Capacity: 120, Status: station.StatusActive},
		{ID: "Bravo", Name: "Station Bravo – Nubra Valley", Lat: 34.1526, Lon: 77.5771, Capacity: 150, Status: station.StatusActive},
		{ID: "Delta", Name: "Station Delta – Tawang Ridge", Lat: 27.586, Lon: 91.8766, Capacity: 110, Status: station.StatusActive},
		{ID: "Echo", Name: "Station Echo – Siachen Base", Lat: 35.3716, Lon: 77.2368, Capacity: 140, Status: station.StatusOffline},
	}
}

func defaultBots() []telemetry.Bot {
	return []telemetry.Bot{
		{ID: "VNR-01", Species: "Langur", Terrain: "Day", Stealth: true, Threat: telemetry.ThreatLow, Battery: 88, Lat: 33.9, Lon: 75.0},
		{ID: "VNR-02", Species: "Civet", Terrain: "Night", Stealth: true, Threat: telemetry.ThreatLow, Battery: 64, Lat: 34.3, Lon: 76.8},
		{ID: "VNR-03", Species: "Owl", Terrain: "Fog", Stealth: true, Threat: telemetry.ThreatMedium, Battery: 73, Lat: 32.9, Lon: 77.2},
		{ID: "VNR-04", Species: "BirdBot", Terrain: "Rain", Stealth: true, Threat: telemetry.ThreatLow, Battery: 59, Lat: 28.1, Lon: 92.1},
		{ID: "VNR-05", Species: "RainMimic", Terrain: "Forest", Stealth: true, Threat: telemetry.ThreatLow, Battery: 91, Lat: 27.7, Lon: 91.2},
		{ID: "VNR-06", Species: "Langur", Terrain: "Border", Stealth: true, Threat: telemetry.ThreatMedium, Battery: 35, Lat: 34.9, Lon: 74.5},
		{ID: "VNR-07", Species: "Civet", Terrain: "Forest", Stealth: true, Threat: telemetry.ThreatLow, Battery: 87, Lat: 34.0876, Lon: 74.7973},
	}
}
