// ColorStdoutWriter prints human-friendly, colorized events to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"vanara-sim/internal/config"
	"vanara-sim/internal/detection"
	"vanara-sim/internal/presence"
	"vanara-sim/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorWhite   = "\x1b[37m"
	colorGray    = "\x1b[90m"
)

// ColorStdoutWriter prints events using ANSI colors.
type ColorStdoutWriter struct {
	cfg  *config.SimulationConfig
	out  io.Writer
	once sync.Once
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.SimulationConfig) *ColorStdoutWriter {
	return &ColorStdoutWriter{cfg: cfg, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	fmt.Fprintln(w.out, "Simulation Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Fleet Tick:\t%s\n", w.cfg.Cadence.Fleet)
	fmt.Fprintf(tw, "Low Battery:\t%d%%\n", w.cfg.Fleet.LowBattery)
	fmt.Fprintf(tw, "Arrival Radius (km):\t%.1f\n", w.cfg.Fleet.ArrivalRadiusKm)
	fmt.Fprintf(tw, "Anomaly:\t%s after %s\n", w.cfg.Anomaly.Scenario, w.cfg.Anomaly.Delay)
	fmt.Fprintf(tw, "Spotlight Bot:\t%s\n", w.cfg.SpotlightBot)
	tw.Flush()

	fmt.Fprintln(w.out, "\nStations:")
	tw = tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tName\tStatus\n")
	for _, s := range w.cfg.Stations {
		col := colorGreen
		if !s.Active() {
			col = colorRed
		}
		fmt.Fprintf(tw, "%s\t%s\t%s%s%s\n", s.ID, s.Name, col, s.Status, colorReset)
	}
	tw.Flush()

	fmt.Fprintln(w.out, "\nBots:")
	tw = tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tSpecies\tTerrain\tThreat\tBattery\n")
	for _, b := range w.cfg.Bots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%s%s\t%s%d%%%s\n", b.ID, b.Species, b.Terrain,
			threatColor(b.Threat), b.Threat, colorReset,
			batteryColor(b.Battery), b.Battery, colorReset)
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

// WriteEvent outputs a single event in colorized format.
func (w *ColorStdoutWriter) WriteEvent(ev telemetry.Event) error {
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%s[%s]%s %s\n", colorGray, ev.Timestamp.Format(time.RFC3339), colorReset, formatEvent(ev))
	return nil
}

// WriteEvents outputs multiple events.
func (w *ColorStdoutWriter) WriteEvents(events []telemetry.Event) error {
	for _, ev := range events {
		_ = w.WriteEvent(ev)
	}
	return nil
}

func threatColor(t telemetry.Threat) string {
	switch t {
	case telemetry.ThreatHigh:
		return colorRed
	case telemetry.ThreatMedium:
		return colorYellow
	}
	return colorGreen
}

func batteryColor(b int) string {
	switch {
	case b < 20:
		return colorRed
	case b < 50:
		return colorYellow
	}
	return colorGreen
}

// formatEvent renders the colored body of an event line, shared with the TUI.
func formatEvent(ev telemetry.Event) string {
	switch ev.Name {
	case telemetry.EventBotMove:
		if m, ok := telemetry.PayloadAs[telemetry.BotMove](ev); ok {
			line := fmt.Sprintf("%sMOVE%s %sbot=%s%s %slat=%.4f%s %slon=%.4f%s %sbatt=%d%s",
				colorBlue, colorReset,
				colorWhite, m.BotID, colorReset,
				colorGreen, m.Lat, colorReset,
				colorYellow, m.Lon, colorReset,
				batteryColor(m.Battery), m.Battery, colorReset)
			if m.RoutingTo != nil {
				line += fmt.Sprintf(" %srouting=%s%s", colorCyan, *m.RoutingTo, colorReset)
			}
			if m.Charging {
				line += fmt.Sprintf(" %scharging%s", colorMagenta, colorReset)
			}
			return line
		}
	case telemetry.EventChargingStarted, telemetry.EventChargingTick, telemetry.EventChargingComplete:
		if c, ok := telemetry.PayloadAs[telemetry.Charging](ev); ok {
			return fmt.Sprintf("%sCHARGE%s %s bot=%s station=%s %sbatt=%d%s",
				colorMagenta, colorReset, ev.Name, c.BotID, c.StationID,
				batteryColor(c.Battery), c.Battery, colorReset)
		}
	case telemetry.EventBattery:
		if b, ok := telemetry.PayloadAs[telemetry.BatteryLow](ev); ok {
			return fmt.Sprintf("%sLOW BATTERY%s bot=%s batt=%d", colorYellow, colorReset, b.BotID, b.Battery)
		}
	case telemetry.EventDetection:
		if d, ok := telemetry.PayloadAs[detection.Detection](ev); ok {
			col := colorGreen
			if d.Uncertain() {
				col = colorGray
			}
			return fmt.Sprintf("%sDETECTION%s %stype=%s%s conf=%.2f src=%s",
				colorRed, colorReset, col, d.Label(), colorReset, d.Confidence, d.Source)
		}
	case telemetry.EventHumanPresence:
		if e, ok := telemetry.PayloadAs[presence.Entry](ev); ok {
			return fmt.Sprintf("%sPRESENCE%s bot=%s conf=%.0f%% at %s seek=%.1fs",
				colorRed, colorReset, e.BotID, e.Confidence*100, e.Location, e.Seek)
		}
	case telemetry.EventSelfDestruct:
		if s, ok := telemetry.PayloadAs[telemetry.SelfDestruct](ev); ok {
			return fmt.Sprintf("%sSELF-DESTRUCT%s bot=%s at %s reason=%s", colorRed, colorReset, s.BotID, s.Location, s.Reason)
		}
	}
	return fmt.Sprintf("%s%s%s %v", colorCyan, ev.Name, colorReset, ev.Payload)
}
