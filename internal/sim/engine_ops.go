package sim

import (
	"context"
	"fmt"
	"math"

	"vanara-sim/internal/alert"
	"vanara-sim/internal/detection"
	"vanara-sim/internal/geo"
	"vanara-sim/internal/presence"
	"vanara-sim/internal/selfdestruct"
	"vanara-sim/internal/station"
	"vanara-sim/internal/telemetry"
)

const (
	registeredThreatType       = "Ammunition Transport"
	registeredThreatConfidence = 0.92
	selfDestructReason         = "Compromised"
)

// SyncPayload is the full state snapshot sent with sync_logs.
type SyncPayload struct {
	Bots       []telemetry.Bot       `json:"bots"`
	Stations   []station.Station     `json:"stations"`
	Detections []detection.Detection `json:"detections"`
	Alerts     []alert.Alert         `json:"alerts"`
}

// ScanResult reports the outcome of one frame comparison.
type ScanResult struct {
	Confidence float64         `json:"confidence"`
	Compared   bool            `json:"compared"`
	Triggered  bool            `json:"triggered"`
	Entry      *presence.Entry `json:"entry,omitempty"`
}

// Fleet returns a copy of every bot.
func (e *Engine) Fleet() []telemetry.Bot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fleet.Snapshot()
}

// Stations returns the station registry contents.
func (e *Engine) Stations() []station.Station { return e.stations.All() }

// Health returns the latest spotlight health readings.
func (e *Engine) Health() telemetry.BotHealth {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health.Current()
}

// Detections returns the detection history, newest first.
func (e *Engine) Detections() []detection.Detection { return e.detections.All() }

// Alerts returns unacknowledged alerts, newest first.
func (e *Engine) Alerts() []alert.Alert { return e.alerts.All() }

// ThreatLog returns presence triggers, newest first.
func (e *Engine) ThreatLog() []presence.Entry { return e.threatLog.All() }

// ThreatLogEntry finds a presence trigger by id.
func (e *Engine) ThreatLogEntry(id string) (presence.Entry, bool) { return e.threatLog.Get(id) }

// SelfDestruct returns the protocol status.
func (e *Engine) SelfDestruct() selfdestruct.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destruct.Status()
}

// Controls returns the operator's current selection.
func (e *Engine) Controls() Controls {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controls
}

// AcknowledgeAlert removes an alert. It reports whether the id existed.
func (e *Engine) AcknowledgeAlert(id string) bool {
	ok := e.alerts.Acknowledge(id)
	activeAlerts.Set(float64(len(e.alerts.All())))
	return ok
}

// SetControls updates species and terrain; empty values keep the current one.
func (e *Engine) SetControls(species, terrain string, stealth bool) Controls {
	var out Controls
	e.locked(func() []telemetry.Event {
		if species != "" {
			e.controls.Species = species
		}
		if terrain != "" {
			e.controls.Terrain = terrain
		}
		e.controls.Stealth = stealth
		out = e.controls
		return []telemetry.Event{telemetry.NewEvent(telemetry.EventControlsChanged, out, e.now())}
	})
	return out
}

// SetStealth toggles stealth mode.
func (e *Engine) SetStealth(on bool) {
	e.locked(func() []telemetry.Event {
		e.controls.Stealth = on
		return []telemetry.Event{telemetry.NewEvent(telemetry.EventStealth, telemetry.StealthToggle{On: on}, e.now())}
	})
}

// SimulateThreat emits a threat simulation for the current controls.
func (e *Engine) SimulateThreat() {
	e.locked(func() []telemetry.Event {
		return []telemetry.Event{telemetry.NewEvent(telemetry.EventThreatSimulation, e.controls, e.now())}
	})
}

// SetWebhookURL validates and stores the outbound webhook URL. An empty url
// disables the webhook.
func (e *Engine) SetWebhookURL(url string) error {
	if url != "" && !ValidWebhookURL(url) {
		return ErrWebhookInvalid
	}
	e.mu.Lock()
	e.webhookURL = url
	e.mu.Unlock()
	if e.webhook != nil {
		e.webhook.SetURL(url)
	}
	return nil
}

// WebhookURL returns the configured webhook URL.
func (e *Engine) WebhookURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.webhookURL
}

// RegisterThreat reports the spotlight bot's confirmed threat to the webhook.
func (e *Engine) RegisterThreat() (telemetry.ThreatRegistration, error) {
	e.mu.Lock()
	if !ValidWebhookURL(e.webhookURL) {
		e.mu.Unlock()
		return telemetry.ThreatRegistration{}, ErrWebhookInvalid
	}
	bot, ok := e.fleet.Bot(e.cfg.SpotlightBot)
	if !ok {
		e.mu.Unlock()
		return telemetry.ThreatRegistration{}, fmt.Errorf("spotlight %s: %w", e.cfg.SpotlightBot, ErrUnknownBot)
	}
	ts := e.now().UTC()
	reg := telemetry.ThreatRegistration{
		ThreatType: registeredThreatType,
		Confidence: registeredThreatConfidence,
		Location:   geo.FormatLocationDeg(bot.Lat, bot.Lon),
		Timestamp:  ts,
		BotID:      bot.ID,
		Terrain:    bot.Terrain,
		Stealth:    bot.Stealth,
	}
	e.flush([]telemetry.Event{telemetry.NewEvent(telemetry.EventRegisterThreat, reg, ts)})
	return reg, nil
}

// SyncLogs pushes a full state snapshot to the webhook.
func (e *Engine) SyncLogs() (SyncPayload, error) {
	e.mu.Lock()
	if !ValidWebhookURL(e.webhookURL) {
		e.mu.Unlock()
		return SyncPayload{}, ErrWebhookInvalid
	}
	p := SyncPayload{
		Bots:       e.fleet.Snapshot(),
		Stations:   e.stations.All(),
		Detections: e.detections.All(),
		Alerts:     e.alerts.All(),
	}
	ts := e.now()
	e.flush([]telemetry.Event{telemetry.NewEvent(telemetry.EventSyncLogs, p, ts)})
	return p, nil
}

// SetBotThreat overrides a bot's threat level. This is the only way to
// lower a High threat.
func (e *Engine) SetBotThreat(id string, level telemetry.Threat) error {
	if !level.Valid() {
		return ErrInvalidThreat
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fleet.SetThreat(id, level)
}

// SetStationStatus switches a station between Active and Offline.
func (e *Engine) SetStationStatus(id string, status station.Status) error {
	return e.stations.SetStatus(id, status)
}

// SetCaptured sets the self-destruct precondition.
func (e *Engine) SetCaptured(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destruct.SetCaptured(v)
}

// ArmSelfDestruct starts the countdown for botID, or the spotlight bot when
// botID is empty.
func (e *Engine) ArmSelfDestruct(botID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if botID == "" {
		botID = e.cfg.SpotlightBot
	}
	if _, ok := e.fleet.Bot(botID); !ok {
		return fmt.Errorf("arm %s: %w", botID, ErrUnknownBot)
	}
	if err := e.destruct.Arm(botID); err != nil {
		return err
	}
	e.startCountdownLocked()
	e.log.Warn("self-destruct armed", "bot", botID)
	return nil
}

// DisarmSelfDestruct cancels a running countdown.
func (e *Engine) DisarmSelfDestruct() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := e.destruct.Disarm()
	e.stopCountdownLocked()
	if ok {
		e.log.Info("self-destruct disarmed")
	}
	return ok
}

func (e *Engine) startCountdownLocked() {
	e.stopCountdownLocked()
	e.countdown = Every(e.ctx, "self_destruct", e.cfg.Cadence.SelfDestruct, e.guard("self_destruct", e.tickSelfDestructLocked))
}

func (e *Engine) stopCountdownLocked() {
	if e.countdown != nil {
		e.countdown.Cancel()
		e.countdown = nil
	}
}

// TickSelfDestruct advances an armed countdown by one step.
func (e *Engine) TickSelfDestruct() { e.locked(e.tickSelfDestructLocked) }

func (e *Engine) tickSelfDestructLocked() []telemetry.Event {
	ex, ok := e.destruct.Tick()
	if !ok {
		return nil
	}
	e.stopCountdownLocked()
	ts := e.now().UTC()
	payload := telemetry.SelfDestruct{BotID: ex.BotID, Timestamp: ts, Reason: selfDestructReason}
	if bot, found := e.fleet.Bot(ex.BotID); found {
		payload.Location = geo.FormatLocation(bot.Lat, bot.Lon)
	}
	e.appendAlert(ex.BotID + " self-destruct executed")
	e.log.Warn("self-destruct executed", "bot", ex.BotID, "location", payload.Location)
	return []telemetry.Event{telemetry.NewEvent(telemetry.EventSelfDestruct, payload, ts)}
}

// ScanFrame compares f with the previous frame and records a presence
// trigger when one fires. seek is the playback offset in seconds.
func (e *Engine) ScanFrame(f presence.Frame, seek float64) ScanResult {
	var res ScanResult
	e.locked(func() []telemetry.Event {
		var events []telemetry.Event
		res, events = e.scanLocked(f, seek)
		return events
	})
	return res
}

func (e *Engine) scanLocked(f presence.Frame, seek float64) (ScanResult, []telemetry.Event) {
	now := e.now()
	conf, triggered, compared := e.scanner.Scan(f, now)
	conf = math.Round(conf*100) / 100
	res := ScanResult{Confidence: conf, Compared: compared, Triggered: triggered}
	if !triggered {
		return res, nil
	}
	presenceTriggers.Inc()
	entry := presence.Entry{
		BotID:      e.cfg.SpotlightBot,
		Timestamp:  now.UTC(),
		Confidence: conf,
		Seek:       seek,
	}
	if bot, ok := e.fleet.Bot(e.cfg.SpotlightBot); ok {
		entry.Location = geo.FormatLocationDeg(bot.Lat, bot.Lon)
	}
	entry = e.threatLog.Record(entry)
	res.Entry = &entry
	e.recordDetection(detection.Detection{
		Timestamp:  entry.Timestamp,
		Type:       detection.TypeHumanPresence,
		Confidence: conf,
		Source:     detection.SourceAIScan,
	})
	e.appendAlert(fmt.Sprintf("Human Presence detected (%.0f%%)", conf*100))
	e.log.Info("human presence detected", "bot", entry.BotID, "confidence", conf, "seek", seek)
	return res, []telemetry.Event{telemetry.NewEvent(telemetry.EventHumanPresence, entry, entry.Timestamp)}
}

// scanNext pulls one frame from the configured source and scans it.
func (e *Engine) scanNext(ctx context.Context) {
	f, off, err := e.frames.Next()
	if err != nil {
		e.log.Debug("frame source", "err", err)
		return
	}
	e.guard("frame_scan", func() []telemetry.Event {
		_, events := e.scanLocked(f, off.Seconds())
		return events
	})(ctx)
}
