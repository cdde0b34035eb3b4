// Engine orchestrating the fleet, detections, alerts and operator controls
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"vanara-sim/internal/alert"
	"vanara-sim/internal/config"
	"vanara-sim/internal/detection"
	"vanara-sim/internal/fleet"
	"vanara-sim/internal/presence"
	"vanara-sim/internal/scenario"
	"vanara-sim/internal/selfdestruct"
	"vanara-sim/internal/station"
	"vanara-sim/internal/telemetry"
)

var (
	// ErrUnknownBot is returned for bot ids outside the fleet.
	ErrUnknownBot = fleet.ErrUnknownBot
	// ErrWebhookInvalid rejects operations that need a configured webhook.
	ErrWebhookInvalid = errors.New("webhook url missing or invalid")
	// ErrInvalidThreat rejects unknown threat levels.
	ErrInvalidThreat = errors.New("invalid threat level")
)

// EventWriter is the outbound event sink. Implementations must not block
// for long; failures are logged and swallowed by the engine.
type EventWriter interface {
	WriteEvent(telemetry.Event) error
}

// Optional: writers may accept a whole tick at once.
type batchEventWriter interface {
	WriteEvents([]telemetry.Event) error
}

// Controls is the operator's current deployment selection.
type Controls = telemetry.Controls

// Options customise an Engine.
type Options struct {
	Rand     *rand.Rand
	Now      func() time.Time
	Logger   *slog.Logger
	Frames   presence.FrameSource
	Scenario *scenario.Scenario
	// Webhook receives URL changes made through SetWebhookURL.
	Webhook *WebhookWriter
}

// Engine owns all simulation state. Every mutation happens under mu, from
// either a scheduled task or an operator call.
type Engine struct {
	mu     sync.Mutex
	emitMu sync.Mutex

	cfg    *config.SimulationConfig
	writer EventWriter
	log    *slog.Logger
	rand   *rand.Rand
	now    func() time.Time

	stations   *station.Registry
	fleet      *fleet.Simulator
	health     *fleet.HealthMonitor
	noise      *detection.NoiseGenerator
	detections *detection.History
	alerts     *alert.Log
	destruct   *selfdestruct.Protocol
	scanner    *presence.Scanner
	threatLog  *presence.ThreatLog
	frames     presence.FrameSource
	scenario   scenario.Scenario
	webhook    *WebhookWriter

	anomaly    bool
	controls   Controls
	webhookURL string

	ctx          context.Context
	cancel       context.CancelFunc
	started      bool
	tasks        []*Task
	anomalyTasks []*Task
	countdown    *Task
}

// NewEngine builds the simulation from cfg. Writer may be nil.
func NewEngine(cfg *config.SimulationConfig, writer EventWriter, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	rng := opts.Rand
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	sc := opts.Scenario
	if sc == nil {
		var err error
		if sc, err = scenario.Resolve(cfg.Anomaly.Scenario); err != nil {
			return nil, fmt.Errorf("anomaly scenario: %w", err)
		}
	}
	if cfg.Anomaly.Delay > 0 {
		shifted := sc.Shifted(cfg.Anomaly.Delay)
		sc = &shifted
	}

	stations := station.NewRegistry(cfg.Stations)
	fs := fleet.NewSimulator(cfg.Bots, stations, fleet.Params{
		LowBattery:      cfg.Fleet.LowBattery,
		ArrivalRadiusKm: cfg.Fleet.ArrivalRadiusKm,
		ChargeRate:      cfg.Fleet.ChargeRate,
		DrainRate:       cfg.Fleet.DrainRate,
		DriftDeg:        cfg.Fleet.DriftDeg,
		ThreatFlipProb:  cfg.Fleet.ThreatFlipProb,
	}, rng)
	fs.SetClock(now)

	alerts := alert.NewLog()
	alerts.SetClock(now)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:        cfg,
		writer:     writer,
		log:        log,
		rand:       rng,
		now:        now,
		stations:   stations,
		fleet:      fs,
		health:     fleet.NewHealthMonitor(cfg.SpotlightBot, fleet.HealthParams{FlipProb: cfg.Health.FlipProb, ThreatFlipProb: cfg.Health.ThreatFlipProb}, rng),
		noise:      detection.NewNoiseGenerator(rng),
		detections: detection.NewHistory(cfg.Detection.HistoryCap),
		alerts:     alerts,
		destruct:   selfdestruct.New(cfg.SelfDestruct.Countdown),
		scanner:    presence.NewScanner(cfg.Presence.Threshold, cfg.Presence.Cooldown),
		threatLog:  presence.NewThreatLog(cfg.Presence.LogCap),
		frames:     opts.Frames,
		scenario:   *sc,
		webhook:    opts.Webhook,
		webhookURL: cfg.WebhookURL,
		controls:   Controls{Species: "Langur", Terrain: "Forest", Stealth: true},
		ctx:        ctx,
		cancel:     cancel,
	}
	if cfg.Detection.SeedInitial {
		ts := now().UTC()
		e.recordDetection(detection.Detection{Timestamp: ts, Type: detection.TypeThermal, Confidence: 0.71, Source: "IR-Cam"})
		e.recordDetection(detection.Detection{Timestamp: ts, Type: detection.TypeMotion, Confidence: 0.62, Source: "LIDAR"})
		e.appendAlert("Boundary breach in Sector 3")
	}
	e.updateFleetGauges()
	return e, nil
}

// Start launches the periodic tasks and arms the anomaly script. The tasks
// stop when ctx is done or Close is called.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	prev := e.cancel
	e.ctx, e.cancel = context.WithCancel(ctx)
	prev()

	c := e.cfg.Cadence
	e.tasks = append(e.tasks,
		Every(e.ctx, "health", c.Health, e.guard("health", e.tickHealthLocked)),
		Every(e.ctx, "fleet", c.Fleet, e.guard("fleet", e.tickFleetLocked)),
		Every(e.ctx, "detection", c.Detection, e.guard("detection", e.tickDetectionsLocked)),
	)
	if e.frames != nil {
		e.tasks = append(e.tasks, Every(e.ctx, "frame_scan", c.FrameScan, e.scanNext))
	}
	e.armAnomalyLocked()
	if e.countdown != nil {
		e.startCountdownLocked()
	}
	if path := e.cfg.StationStatusFile; path != "" {
		if err := e.stations.Watch(e.ctx, path); err != nil {
			e.log.Error("station status watch failed", "path", path, "err", err)
		}
	}
	e.log.Info("engine started",
		"bots", len(e.cfg.Bots),
		"stations", len(e.cfg.Stations),
		"fleet_tick", c.Fleet,
		"scenario", e.scenario.Name,
		"frames", e.frames != nil)
}

// Close stops every task and waits for running callbacks to return.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.cancel()
	tasks := append([]*Task(nil), e.tasks...)
	tasks = append(tasks, e.anomalyTasks...)
	if e.countdown != nil {
		tasks = append(tasks, e.countdown)
	}
	e.tasks, e.anomalyTasks, e.countdown = nil, nil, nil
	e.mu.Unlock()
	for _, t := range tasks {
		t.Stop()
	}
	e.log.Info("engine stopped")
	return nil
}

// guard wraps a locked tick so it never runs against canceled state and
// flushes its events after releasing the lock.
func (e *Engine) guard(name string, fn func() []telemetry.Event) func(context.Context) {
	return func(ctx context.Context) {
		start := time.Now()
		e.mu.Lock()
		if ctx.Err() != nil {
			e.mu.Unlock()
			return
		}
		events := fn()
		tickDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		e.flush(events)
	}
}

func (e *Engine) locked(fn func() []telemetry.Event) {
	e.mu.Lock()
	e.flush(fn())
}

// flush must be called with mu held. It takes emitMu before releasing mu so
// sinks receive events in the order the state changes were applied.
func (e *Engine) flush(events []telemetry.Event) {
	e.emitMu.Lock()
	e.mu.Unlock()
	defer e.emitMu.Unlock()
	for _, ev := range events {
		eventsEmitted.WithLabelValues(ev.Name).Inc()
	}
	if len(events) == 0 || e.writer == nil {
		return
	}
	if bw, ok := e.writer.(batchEventWriter); ok {
		if err := bw.WriteEvents(events); err != nil {
			sinkErrors.WithLabelValues("engine").Inc()
			e.log.Error("event sink failed", "events", len(events), "err", err)
		}
		return
	}
	for _, ev := range events {
		if err := e.writer.WriteEvent(ev); err != nil {
			sinkErrors.WithLabelValues("engine").Inc()
			e.log.Error("event sink failed", "event", ev.Name, "err", err)
		}
	}
}

// TickHealth advances the spotlight bot's health readings.
func (e *Engine) TickHealth() telemetry.BotHealth {
	e.locked(e.tickHealthLocked)
	return e.Health()
}

func (e *Engine) tickHealthLocked() []telemetry.Event {
	e.health.Tick(e.anomaly, e.now())
	return nil
}

// TickFleet advances every bot once.
func (e *Engine) TickFleet() { e.locked(e.tickFleetLocked) }

func (e *Engine) tickFleetLocked() []telemetry.Event {
	events := e.fleet.Tick()
	e.updateFleetGauges()
	e.log.Debug("fleet tick", "events", len(events))
	return events
}

func (e *Engine) updateFleetGauges() {
	charging := 0
	for _, b := range e.fleet.Snapshot() {
		botBattery.WithLabelValues(b.ID).Set(float64(b.Battery))
		if b.Charging {
			charging++
		}
	}
	botsCharging.Set(float64(charging))
}

// TickDetections appends one background noise detection.
func (e *Engine) TickDetections() { e.locked(e.tickDetectionsLocked) }

func (e *Engine) tickDetectionsLocked() []telemetry.Event {
	d := e.noise.Next(e.now())
	e.recordDetection(d)
	return []telemetry.Event{telemetry.NewEvent(telemetry.EventDetection, d, d.Timestamp)}
}

func (e *Engine) recordDetection(d detection.Detection) {
	e.detections.Add(d)
	detectionsRecorded.WithLabelValues(d.Type, d.Source).Inc()
}

func (e *Engine) appendAlert(msg string) alert.Alert {
	a := e.alerts.Append(msg)
	activeAlerts.Set(float64(len(e.alerts.All())))
	return a
}

// FireAnomaly runs one scripted step immediately.
func (e *Engine) FireAnomaly(step scenario.Step) {
	e.locked(func() []telemetry.Event { return e.fireStepLocked(step) })
}

func (e *Engine) fireStepLocked(step scenario.Step) []telemetry.Event {
	d := detection.Detection{
		Timestamp:  e.now().UTC(),
		Type:       step.Type,
		Confidence: step.Confidence,
		Source:     step.Source,
	}
	e.recordDetection(d)
	if step.Escalate {
		e.anomaly = true
	}
	e.appendAlert(step.AlertMessage())
	e.log.Info("anomaly fired", "type", d.Type, "confidence", d.Confidence, "escalate", step.Escalate)
	return []telemetry.Event{telemetry.NewEvent(telemetry.EventDetection, d, d.Timestamp)}
}

// ReplayAnomaly cancels any pending script, clears the anomaly flag and
// arms the script again.
func (e *Engine) ReplayAnomaly() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.armAnomalyLocked()
}

// PauseAnomaly cancels any pending script and clears the anomaly flag.
func (e *Engine) PauseAnomaly() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelAnomalyLocked()
	e.anomaly = false
}

func (e *Engine) cancelAnomalyLocked() {
	for _, t := range e.anomalyTasks {
		t.Cancel()
	}
	e.anomalyTasks = nil
}

func (e *Engine) armAnomalyLocked() {
	e.cancelAnomalyLocked()
	e.anomaly = false
	for _, step := range e.scenario.Steps {
		step := step
		e.anomalyTasks = append(e.anomalyTasks, After(e.ctx, "anomaly", step.After,
			e.guard("anomaly", func() []telemetry.Event { return e.fireStepLocked(step) })))
	}
}

// AnomalyActive reports whether a scripted anomaly has escalated the fleet.
func (e *Engine) AnomalyActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.anomaly
}

// AnomalyPending reports whether scripted steps are still waiting to fire.
func (e *Engine) AnomalyPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.anomalyTasks {
		select {
		case <-t.Done():
		default:
			return true
		}
	}
	return false
}
