package sim

import (
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vanara-sim/internal/config"
	"vanara-sim/internal/detection"
	"vanara-sim/internal/logging"
	"vanara-sim/internal/presence"
	"vanara-sim/internal/selfdestruct"
	"vanara-sim/internal/station"
	"vanara-sim/internal/telemetry"
)

type recordWriter struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (r *recordWriter) WriteEvent(ev telemetry.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordWriter) named(name string) []telemetry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []telemetry.Event
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type failWriter struct{}

func (failWriter) WriteEvent(telemetry.Event) error { return errors.New("sink down") }

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// quietConfig disables real-time ticking so tests drive the engine by hand.
func quietConfig() *config.SimulationConfig {
	cfg := config.Default()
	cfg.Cadence = config.Cadence{
		Health:       time.Hour,
		Fleet:        time.Hour,
		Detection:    time.Hour,
		FrameScan:    time.Hour,
		SelfDestruct: time.Hour,
	}
	cfg.Anomaly.Delay = time.Hour
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.SimulationConfig, w EventWriter) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, w, Options{
		Rand: rand.New(rand.NewSource(1)),
		Now:  func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func countType(ds []detection.Detection, typ string) int {
	n := 0
	for _, d := range ds {
		if d.Type == typ {
			n++
		}
	}
	return n
}

func TestEngineSeedsInitialState(t *testing.T) {
	e := newTestEngine(t, quietConfig(), nil)
	ds := e.Detections()
	require.Len(t, ds, 2)
	require.Equal(t, detection.TypeMotion, ds[0].Type)
	require.Equal(t, "LIDAR", ds[0].Source)
	alerts := e.Alerts()
	require.Len(t, alerts, 1)
	require.Equal(t, "Boundary breach in Sector 3", alerts[0].Message)
	require.Len(t, e.Fleet(), 7)
	require.Len(t, e.Stations(), 4)
}

func TestEngineFleetTickEmitsMoves(t *testing.T) {
	rec := &recordWriter{}
	e := newTestEngine(t, quietConfig(), rec)
	e.TickFleet()
	moves := rec.named(telemetry.EventBotMove)
	require.Len(t, moves, 7)
	require.Equal(t, "VNR-01", moves[0].Payload.(telemetry.BotMove).BotID)
	require.Equal(t, fixedNow, moves[0].Timestamp)
}

func TestEngineRoutesLowBatteryBotToStation(t *testing.T) {
	cfg := quietConfig()
	cfg.Stations = []station.Station{{ID: "Alpha", Name: "Alpha", Lat: 34.01, Lon: 75.31, Status: station.StatusActive}}
	cfg.Bots = []telemetry.Bot{{ID: "VNR-09", Battery: 15, Lat: 34.037, Lon: 75.31, Threat: telemetry.ThreatLow}}
	rec := &recordWriter{}
	e := newTestEngine(t, cfg, rec)
	e.TickFleet()
	bot := e.Fleet()[0]
	require.Equal(t, "Alpha", bot.Routing())
	require.True(t, bot.Charging)
	require.Len(t, rec.named(telemetry.EventChargingStarted), 1)
}

func TestEngineNoiseDetection(t *testing.T) {
	rec := &recordWriter{}
	cfg := quietConfig()
	cfg.Detection.SeedInitial = false
	e := newTestEngine(t, cfg, rec)
	e.TickDetections()
	ds := e.Detections()
	require.Len(t, ds, 1)
	require.Equal(t, detection.SourceSensorNet, ds[0].Source)
	evs := rec.named(telemetry.EventDetection)
	require.Len(t, evs, 1)
	require.Equal(t, ds[0], evs[0].Payload.(detection.Detection))
}

func TestEngineDetectionHistoryCap(t *testing.T) {
	e := newTestEngine(t, quietConfig(), nil)
	for i := 0; i < 40; i++ {
		e.TickDetections()
	}
	require.Len(t, e.Detections(), 31)
}

func TestAnomalyFiresAfterDelay(t *testing.T) {
	cfg := quietConfig()
	cfg.Anomaly.Delay = 10 * time.Millisecond
	rec := &recordWriter{}
	e := newTestEngine(t, cfg, rec)
	e.Start(context.Background())

	waitFor(t, e.AnomalyActive)
	ds := e.Detections()
	require.Equal(t, detection.TypeAmmunitionTransport, ds[0].Type)
	require.Equal(t, 0.92, ds[0].Confidence)
	require.Equal(t, detection.SourceDroneCam, ds[0].Source)
	require.Equal(t, "Anomaly: Ammunition Transport", e.Alerts()[0].Message)
	require.Equal(t, telemetry.ThreatHigh, e.TickHealth().Threat)
	require.False(t, e.AnomalyPending())
}

func TestReplayAnomalyCancelsPendingTimer(t *testing.T) {
	cfg := quietConfig()
	cfg.Anomaly.Delay = 40 * time.Millisecond
	e := newTestEngine(t, cfg, nil)
	e.Start(context.Background())
	for i := 0; i < 5; i++ {
		e.ReplayAnomaly()
	}
	require.True(t, e.AnomalyPending())
	waitFor(t, e.AnomalyActive)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, countType(e.Detections(), detection.TypeAmmunitionTransport))

	e.ReplayAnomaly()
	require.False(t, e.AnomalyActive())
	waitFor(t, e.AnomalyActive)
	require.Equal(t, 2, countType(e.Detections(), detection.TypeAmmunitionTransport))
}

func TestPauseAnomaly(t *testing.T) {
	cfg := quietConfig()
	cfg.Anomaly.Delay = 30 * time.Millisecond
	e := newTestEngine(t, cfg, nil)
	e.Start(context.Background())
	e.PauseAnomaly()
	require.False(t, e.AnomalyPending())
	time.Sleep(80 * time.Millisecond)
	require.False(t, e.AnomalyActive())
	require.Zero(t, countType(e.Detections(), detection.TypeAmmunitionTransport))
}

func TestSelfDestructRequiresCapture(t *testing.T) {
	rec := &recordWriter{}
	e := newTestEngine(t, quietConfig(), rec)
	require.ErrorIs(t, e.ArmSelfDestruct(""), selfdestruct.ErrNotCaptured)
	st := e.SelfDestruct()
	require.Equal(t, selfdestruct.Idle, st.State)
	require.Equal(t, 5, st.Countdown)
	for i := 0; i < 6; i++ {
		e.TickSelfDestruct()
	}
	require.Empty(t, rec.named(telemetry.EventSelfDestruct))
	require.ErrorIs(t, e.ArmSelfDestruct("VNR-99"), ErrUnknownBot)
}

func TestSelfDestructExecutesAfterFiveTicks(t *testing.T) {
	rec := &recordWriter{}
	e := newTestEngine(t, quietConfig(), rec)
	e.SetCaptured(true)
	require.NoError(t, e.ArmSelfDestruct(""))
	require.Equal(t, selfdestruct.Armed, e.SelfDestruct().State)
	for i := 0; i < 4; i++ {
		e.TickSelfDestruct()
		require.Empty(t, rec.named(telemetry.EventSelfDestruct))
	}
	e.TickSelfDestruct()
	evs := rec.named(telemetry.EventSelfDestruct)
	require.Len(t, evs, 1)
	p := evs[0].Payload.(telemetry.SelfDestruct)
	require.Equal(t, "VNR-07", p.BotID)
	require.Equal(t, "Compromised", p.Reason)
	require.Equal(t, "34.0876 N, 74.7973 E", p.Location)
	require.Equal(t, "VNR-07 self-destruct executed", e.Alerts()[0].Message)

	st := e.SelfDestruct()
	require.Equal(t, selfdestruct.Idle, st.State)
	require.Equal(t, 5, st.Countdown)
	e.TickSelfDestruct()
	require.Len(t, rec.named(telemetry.EventSelfDestruct), 1)
}

func TestSelfDestructCountdownTask(t *testing.T) {
	cfg := quietConfig()
	cfg.Cadence.SelfDestruct = 2 * time.Millisecond
	rec := &recordWriter{}
	e := newTestEngine(t, cfg, rec)
	e.Start(context.Background())
	e.SetCaptured(true)
	require.NoError(t, e.ArmSelfDestruct("VNR-03"))
	waitFor(t, func() bool { return len(rec.named(telemetry.EventSelfDestruct)) == 1 })
	time.Sleep(30 * time.Millisecond)
	require.Len(t, rec.named(telemetry.EventSelfDestruct), 1)
}

func TestSelfDestructDisarm(t *testing.T) {
	rec := &recordWriter{}
	e := newTestEngine(t, quietConfig(), rec)
	e.SetCaptured(true)
	require.NoError(t, e.ArmSelfDestruct(""))
	e.TickSelfDestruct()
	require.True(t, e.DisarmSelfDestruct())
	require.False(t, e.DisarmSelfDestruct())
	for i := 0; i < 10; i++ {
		e.TickSelfDestruct()
	}
	require.Empty(t, rec.named(telemetry.EventSelfDestruct))
}

func TestRegisterThreatRequiresWebhook(t *testing.T) {
	rec := &recordWriter{}
	e := newTestEngine(t, quietConfig(), rec)
	_, err := e.RegisterThreat()
	require.ErrorIs(t, err, ErrWebhookInvalid)
	_, err = e.SyncLogs()
	require.ErrorIs(t, err, ErrWebhookInvalid)
	require.ErrorIs(t, e.SetWebhookURL("ftp://example.org/hook"), ErrWebhookInvalid)

	require.NoError(t, e.SetWebhookURL("https://example.org/hook"))
	reg, err := e.RegisterThreat()
	require.NoError(t, err)
	require.Equal(t, "Ammunition Transport", reg.ThreatType)
	require.Equal(t, 0.92, reg.Confidence)
	require.Equal(t, "VNR-07", reg.BotID)
	require.Equal(t, "34.0876° N, 74.7973° E", reg.Location)
	require.Equal(t, "Forest", reg.Terrain)
	require.True(t, reg.Stealth)
	require.Len(t, rec.named(telemetry.EventRegisterThreat), 1)

	p, err := e.SyncLogs()
	require.NoError(t, err)
	require.Len(t, p.Bots, 7)
	require.Len(t, p.Stations, 4)
	require.Len(t, rec.named(telemetry.EventSyncLogs), 1)
}

func TestOperatorControls(t *testing.T) {
	rec := &recordWriter{}
	e := newTestEngine(t, quietConfig(), rec)
	c := e.SetControls("Owl", "", false)
	require.Equal(t, "Owl", c.Species)
	require.Equal(t, "Forest", c.Terrain)
	require.False(t, c.Stealth)
	e.SetStealth(true)
	require.True(t, e.Controls().Stealth)
	e.SimulateThreat()
	require.Len(t, rec.named(telemetry.EventControlsChanged), 1)
	require.Len(t, rec.named(telemetry.EventStealth), 1)
	sim := rec.named(telemetry.EventThreatSimulation)
	require.Len(t, sim, 1)
	require.Equal(t, "Owl", sim[0].Payload.(Controls).Species)
}

func TestSetBotThreat(t *testing.T) {
	e := newTestEngine(t, quietConfig(), nil)
	require.NoError(t, e.SetBotThreat("VNR-01", telemetry.ThreatHigh))
	for i := 0; i < 20; i++ {
		e.TickFleet()
	}
	require.Equal(t, telemetry.ThreatHigh, e.Fleet()[0].Threat)
	require.NoError(t, e.SetBotThreat("VNR-01", telemetry.ThreatLow))
	require.Equal(t, telemetry.ThreatLow, e.Fleet()[0].Threat)
	require.ErrorIs(t, e.SetBotThreat("VNR-01", "Severe"), ErrInvalidThreat)
	require.ErrorIs(t, e.SetBotThreat("nope", telemetry.ThreatLow), ErrUnknownBot)
}

func TestStationStatusOverride(t *testing.T) {
	e := newTestEngine(t, quietConfig(), nil)
	require.NoError(t, e.SetStationStatus("Echo", station.StatusActive))
	require.ErrorIs(t, e.SetStationStatus("Zulu", station.StatusActive), station.ErrUnknownStation)
	require.ErrorIs(t, e.SetStationStatus("Echo", "Broken"), station.ErrInvalidStatus)
}

func solidFrame(c color.Color) presence.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 32, 18))
	for y := 0; y < 18; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return presence.NewFrame(img)
}

func TestScanFrameRecordsPresence(t *testing.T) {
	rec := &recordWriter{}
	e := newTestEngine(t, quietConfig(), rec)
	black := solidFrame(color.RGBA{0, 0, 0, 255})
	white := solidFrame(color.RGBA{255, 255, 255, 255})

	res := e.ScanFrame(black, 0)
	require.False(t, res.Compared)
	res = e.ScanFrame(white, 1.5)
	require.True(t, res.Triggered)
	require.NotNil(t, res.Entry)
	require.Equal(t, "34.0876° N, 74.7973° E", res.Entry.Location)
	require.InDelta(t, 1.2, res.Entry.ReplaySeek(), 1e-9)
	id := res.Entry.ID

	// the clock is frozen, so every later sample falls inside the cooldown
	for i := 0; i < 5; i++ {
		res = e.ScanFrame([]presence.Frame{black, white}[i%2], 2)
		require.True(t, res.Compared)
		require.False(t, res.Triggered)
		require.Nil(t, res.Entry)
	}

	require.Len(t, e.ThreatLog(), 1)
	require.Len(t, rec.named(telemetry.EventHumanPresence), 1)
	require.Equal(t, detection.TypeHumanPresence, e.Detections()[0].Type)
	require.Equal(t, detection.SourceAIScan, e.Detections()[0].Source)
	require.True(t, strings.HasPrefix(e.Alerts()[0].Message, "Human Presence detected ("))
	got, ok := e.ThreatLogEntry(id)
	require.True(t, ok)
	require.Equal(t, 1.5, got.Seek)
}

func TestEngineFramesTask(t *testing.T) {
	cfg := quietConfig()
	cfg.Cadence.FrameScan = 2 * time.Millisecond
	black := image.NewRGBA(image.Rect(0, 0, 8, 8))
	white := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range white.Pix {
		white.Pix[i] = 255
	}
	rec := &recordWriter{}
	e, err := NewEngine(cfg, rec, Options{
		Rand:   rand.New(rand.NewSource(1)),
		Frames: presence.NewSequenceSource(500*time.Millisecond, black, white),
	})
	require.NoError(t, err)
	defer e.Close()
	e.Start(context.Background())
	waitFor(t, func() bool { return len(e.ThreatLog()) == 1 })
}

func TestWriterFailureIsSwallowed(t *testing.T) {
	e := newTestEngine(t, quietConfig(), failWriter{})
	before := e.Fleet()[0].Battery
	e.TickFleet()
	require.NotEqual(t, before, e.Fleet()[0].Battery)
}

func TestCloseStopsTasks(t *testing.T) {
	cfg := quietConfig()
	cfg.Cadence.Fleet = time.Millisecond
	rec := &recordWriter{}
	e, err := NewEngine(cfg, rec, Options{Rand: rand.New(rand.NewSource(2))})
	require.NoError(t, err)
	e.Start(context.Background())
	waitFor(t, func() bool { return len(rec.named(telemetry.EventBotMove)) > 0 })
	require.NoError(t, e.Close())
	n := len(rec.named(telemetry.EventBotMove))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, n, len(rec.named(telemetry.EventBotMove)))
}

func TestStartStopsWithContext(t *testing.T) {
	cfg := quietConfig()
	cfg.Cadence.Health = time.Millisecond
	e := newTestEngine(t, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	cancel()
	e.mu.Lock()
	tasks := append([]*Task(nil), e.tasks...)
	e.mu.Unlock()
	for _, task := range tasks {
		select {
		case <-task.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("task %s still running after context cancel", task.Name())
		}
	}
}

func TestStartAppliesStationStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Echo: Active\n"), 0o644))
	cfg := quietConfig()
	cfg.StationStatusFile = path
	e := newTestEngine(t, cfg, nil)
	e.Start(context.Background())
	for _, s := range e.Stations() {
		if s.ID == "Echo" {
			require.Equal(t, station.StatusActive, s.Status)
		}
	}
}

func TestRegisterThreatUsesSpotlightBotAttributes(t *testing.T) {
	rec := &recordWriter{}
	e := newTestEngine(t, quietConfig(), rec)
	require.NoError(t, e.SetWebhookURL("https://example.org/hook"))
	e.SetControls("Owl", "Snow", false)

	reg, err := e.RegisterThreat()
	require.NoError(t, err)
	require.Equal(t, "Forest", reg.Terrain)
	require.True(t, reg.Stealth)
	sent := rec.named(telemetry.EventRegisterThreat)
	require.Len(t, sent, 1)
	require.Equal(t, reg, sent[0].Payload.(telemetry.ThreatRegistration))
}

func TestScanFrameRoundsConfidence(t *testing.T) {
	rec := &recordWriter{}
	e := newTestEngine(t, quietConfig(), rec)
	e.ScanFrame(solidFrame(color.RGBA{0, 0, 0, 255}), 0)
	res := e.ScanFrame(solidFrame(color.RGBA{100, 100, 100, 255}), 0.5)
	require.True(t, res.Triggered)
	require.Equal(t, 0.78, res.Confidence)
	require.Equal(t, 0.78, res.Entry.Confidence)
	require.Equal(t, 0.78, e.Detections()[0].Confidence)
	ev := rec.named(telemetry.EventHumanPresence)
	require.Len(t, ev, 1)
	require.Equal(t, 0.78, ev[0].Payload.(presence.Entry).Confidence)
	require.Contains(t, e.Alerts()[0].Message, "(78%)")
}

func TestConcurrentOperatorEventsKeepOrder(t *testing.T) {
	rec := &recordWriter{}
	e := newTestEngine(t, quietConfig(), rec)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(on bool) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.SetStealth(on)
			}
		}(i%2 == 0)
	}
	wg.Wait()
	toggles := rec.named(telemetry.EventStealth)
	require.Len(t, toggles, 400)
	last := toggles[len(toggles)-1].Payload.(telemetry.StealthToggle)
	require.Equal(t, e.Controls().Stealth, last.On)
}

func TestStartKeepsConfiguredLogger(t *testing.T) {
	var own, fromCtx strings.Builder
	e, err := NewEngine(quietConfig(), nil, Options{
		Rand:   rand.New(rand.NewSource(1)),
		Now:    func() time.Time { return fixedNow },
		Logger: slog.New(slog.NewTextHandler(&lockedBuilder{b: &own}, nil)),
	})
	require.NoError(t, err)
	ctx := logging.NewContext(context.Background(), slog.New(slog.NewTextHandler(&lockedBuilder{b: &fromCtx}, nil)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			e.SetStealth(i%2 == 0)
		}
	}()
	e.Start(ctx)
	<-done
	require.NoError(t, e.Close())
	require.Contains(t, own.String(), "engine started")
	require.Empty(t, fromCtx.String())
}

type lockedBuilder struct {
	mu sync.Mutex
	b  *strings.Builder
}

func (l *lockedBuilder) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}
