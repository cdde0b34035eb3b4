package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"vanara-sim/internal/detection"
	"vanara-sim/internal/presence"
	"vanara-sim/internal/telemetry"
)

func encodeLog(t *testing.T, events ...telemetry.Event) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return &buf
}

func TestReplayLog(t *testing.T) {
	buf := encodeLog(t,
		telemetry.NewEvent(telemetry.EventBotMove, telemetry.BotMove{BotID: "VNR-01"}, time.Unix(0, 0)),
		telemetry.NewEvent(telemetry.EventBotMove, telemetry.BotMove{BotID: "VNR-02"}, time.Unix(1, 0)),
	)
	rec := &recordWriter{}
	if err := ReplayLog(context.Background(), buf, rec, 0); err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	moves := rec.named(telemetry.EventBotMove)
	if len(moves) != 2 {
		t.Fatalf("expected 2 events, got %d", len(moves))
	}
	m, ok := telemetry.PayloadAs[telemetry.BotMove](moves[1])
	if !ok || m.BotID != "VNR-02" {
		t.Fatalf("unexpected payload: %+v", m)
	}
}

func TestReplayLogHonorsSpeedAndCancel(t *testing.T) {
	buf := encodeLog(t,
		telemetry.NewEvent(telemetry.EventStealth, telemetry.StealthToggle{On: true}, time.Unix(0, 0)),
		telemetry.NewEvent(telemetry.EventStealth, telemetry.StealthToggle{On: false}, time.Unix(3600, 0)),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	rec := &recordWriter{}
	err := ReplayLog(ctx, buf, rec, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if n := len(rec.named(telemetry.EventStealth)); n != 1 {
		t.Fatalf("expected only the first event, got %d", n)
	}
}

func TestReadEventsRejectsGarbage(t *testing.T) {
	if _, err := ReadEvents(strings.NewReader("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDetectionsFromEvents(t *testing.T) {
	ts := time.Unix(10, 0).UTC()
	buf := encodeLog(t,
		telemetry.NewEvent(telemetry.EventDetection, detection.Detection{Timestamp: ts, Type: detection.TypeMotion, Confidence: 0.6, Source: detection.SourceSensorNet}, ts),
		telemetry.NewEvent(telemetry.EventBotMove, telemetry.BotMove{BotID: "VNR-01"}, ts),
		telemetry.NewEvent(telemetry.EventHumanPresence, presence.Entry{ID: "p1", BotID: "VNR-07", Timestamp: ts.Add(time.Second), Confidence: 0.9}, ts.Add(time.Second)),
	)
	events, err := ReadEvents(buf)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	ds := DetectionsFromEvents(events)
	if len(ds) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(ds))
	}
	if ds[0].Type != detection.TypeHumanPresence || ds[0].Source != detection.SourceAIScan || ds[0].Confidence != 0.9 {
		t.Fatalf("unexpected newest detection: %+v", ds[0])
	}
	if ds[1].Type != detection.TypeMotion {
		t.Fatalf("unexpected oldest detection: %+v", ds[1])
	}
}
