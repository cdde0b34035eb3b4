package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"vanara-sim/internal/detection"
	"vanara-sim/internal/telemetry"
)

// greptimeClient is the subset of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter stores events in GreptimeDB: bot positions in
// bot_telemetry, detections in detections and everything else as JSON in
// fleet_events.
type GreptimeDBWriter struct {
	client         greptimeClient
	telemetryTable string
	detectionTable string
	eventTable     string
	log            *slog.Logger
}

// NewGreptimeDBWriter connects to the GreptimeDB gRPC endpoint.
func NewGreptimeDBWriter(endpoint, database string, log *slog.Logger) (*GreptimeDBWriter, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg := greptime.NewConfig(endpoint).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	return &GreptimeDBWriter{
		client:         client,
		telemetryTable: "bot_telemetry",
		detectionTable: "detections",
		eventTable:     "fleet_events",
		log:            log,
	}, nil
}

// WriteEvent inserts a single event.
func (w *GreptimeDBWriter) WriteEvent(ev telemetry.Event) error {
	return w.WriteEvents([]telemetry.Event{ev})
}

// WriteEvents inserts a batch, one table per row kind.
func (w *GreptimeDBWriter) WriteEvents(events []telemetry.Event) error {
	if len(events) == 0 {
		return nil
	}
	var moves []telemetry.Event
	var dets []detection.Detection
	var detTimes []time.Time
	var other []telemetry.Event
	for _, ev := range events {
		switch ev.Name {
		case telemetry.EventBotMove:
			moves = append(moves, ev)
		case telemetry.EventDetection:
			if d, ok := telemetry.PayloadAs[detection.Detection](ev); ok {
				dets = append(dets, d)
				detTimes = append(detTimes, ev.Timestamp)
				continue
			}
			other = append(other, ev)
		default:
			other = append(other, ev)
		}
	}

	var tables []*table.Table
	if len(moves) > 0 {
		tbl, err := w.telemetryRows(moves)
		if err != nil {
			return err
		}
		tables = append(tables, tbl)
	}
	if len(dets) > 0 {
		tbl, err := w.detectionRows(dets, detTimes)
		if err != nil {
			return err
		}
		tables = append(tables, tbl)
	}
	if len(other) > 0 {
		tbl, err := w.eventRows(other)
		if err != nil {
			return err
		}
		tables = append(tables, tbl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := w.client.Write(ctx, tables...); err != nil {
		w.log.Error("greptime write failed", "err", err)
		return err
	}
	w.log.Debug("greptime write", "events", len(events), "tables", len(tables))
	return nil
}

func (w *GreptimeDBWriter) telemetryRows(events []telemetry.Event) (*table.Table, error) {
	tbl, err := table.New(w.telemetryTable)
	if err != nil {
		return nil, err
	}
	tbl.AddTagColumn("bot_id", types.STRING)
	tbl.AddFieldColumn("lat", types.FLOAT64)
	tbl.AddFieldColumn("lon", types.FLOAT64)
	tbl.AddFieldColumn("battery", types.INT64)
	tbl.AddFieldColumn("routing_to", types.STRING)
	tbl.AddFieldColumn("charging", types.BOOLEAN)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	for _, ev := range events {
		m, ok := telemetry.PayloadAs[telemetry.BotMove](ev)
		if !ok {
			continue
		}
		routing := ""
		if m.RoutingTo != nil {
			routing = *m.RoutingTo
		}
		if err := tbl.AddRow(m.BotID, m.Lat, m.Lon, int64(m.Battery), routing, m.Charging, ev.Timestamp); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func (w *GreptimeDBWriter) detectionRows(dets []detection.Detection, ts []time.Time) (*table.Table, error) {
	tbl, err := table.New(w.detectionTable)
	if err != nil {
		return nil, err
	}
	tbl.AddTagColumn("type", types.STRING)
	tbl.AddTagColumn("source", types.STRING)
	tbl.AddFieldColumn("confidence", types.FLOAT64)
	tbl.AddFieldColumn("uncertain", types.BOOLEAN)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	for i, d := range dets {
		if err := tbl.AddRow(d.Type, d.Source, d.Confidence, d.Uncertain(), ts[i]); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func (w *GreptimeDBWriter) eventRows(events []telemetry.Event) (*table.Table, error) {
	tbl, err := table.New(w.eventTable)
	if err != nil {
		return nil, err
	}
	tbl.AddTagColumn("event", types.STRING)
	tbl.AddFieldColumn("payload", types.JSON)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", ev.Name, err)
		}
		if err := tbl.AddRow(ev.Name, string(payload), ev.Timestamp); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}
