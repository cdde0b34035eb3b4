package sim

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"vanara-sim/internal/config"
	"vanara-sim/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a rendered event line for the viewport.
type logMsg struct{ line string }

// botMsg carries the latest position and energy of one bot.
type botMsg struct{ telemetry.BotMove }

// counterMsg bumps the header counter for an event name.
type counterMsg struct{ name string }

const maxLogLines = 500

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

// TUIWriter renders the fleet and event stream using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. Quitting
// the TUI interrupts the process so the simulation shuts down with it.
func NewTUIWriter(cfg *config.SimulationConfig) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	m := newTUIModel(cfg)
	if width, height, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		m = m.resize(width, height)
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteEvent implements EventWriter.
func (w *TUIWriter) WriteEvent(ev telemetry.Event) error {
	if ev.Name == telemetry.EventBotMove {
		if m, ok := telemetry.PayloadAs[telemetry.BotMove](ev); ok {
			w.program.Send(botMsg{m})
		}
	} else {
		w.program.Send(counterMsg{name: ev.Name})
	}
	line := fmt.Sprintf("%s[%s]%s %s", colorGray, ev.Timestamp.Format(time.RFC3339), colorReset, formatEvent(ev))
	w.program.Send(logMsg{line: line})
	return nil
}

// WriteEvents outputs multiple events.
func (w *TUIWriter) WriteEvents(events []telemetry.Event) error {
	for _, ev := range events {
		_ = w.WriteEvent(ev)
	}
	return nil
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg        *config.SimulationConfig
	table      table.Model
	vp         viewport.Model
	bots       map[string]telemetry.BotMove
	species    map[string]string
	counts     map[string]int
	logs       []string
	wrap       bool
	autoscroll bool
	help       bool
	width      int
	height     int
}

func newTUIModel(cfg *config.SimulationConfig) tuiModel {
	cols := []table.Column{
		{Title: "Bot", Width: 8},
		{Title: "Species", Width: 10},
		{Title: "Lat", Width: 9},
		{Title: "Lon", Width: 9},
		{Title: "Battery", Width: 14},
		{Title: "Routing", Width: 8},
		{Title: "State", Width: 9},
	}
	m := tuiModel{
		cfg:        cfg,
		vp:         viewport.New(0, 0),
		bots:       make(map[string]telemetry.BotMove),
		species:    make(map[string]string),
		counts:     make(map[string]int),
		autoscroll: true,
	}
	if cfg != nil {
		for _, b := range cfg.Bots {
			m.species[b.ID] = b.Species
			m.bots[b.ID] = telemetry.BotMove{BotID: b.ID, Lat: b.Lat, Lon: b.Lon, Battery: b.Battery, RoutingTo: b.RoutingTo, Charging: b.Charging}
		}
	}
	m.table = table.New(table.WithColumns(cols), table.WithHeight(len(m.bots)+1))
	m.table.SetRows(m.rows())
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "?", "h":
			m.help = true
			return m, nil
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "c":
			m.logs = nil
			m.refreshViewport()
			return m, nil
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	case botMsg:
		if _, ok := m.bots[msg.BotID]; !ok {
			m.table.SetHeight(len(m.bots) + 2)
		}
		m.bots[msg.BotID] = msg.BotMove
		m.table.SetRows(m.rows())
	case counterMsg:
		m.counts[msg.name]++
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	}
	return m, nil
}

func (m tuiModel) resize(width, height int) tuiModel {
	m.width, m.height = width, height
	m.table.SetWidth(width)
	m.vp.Width = width
	m.vp.Height = height - lipgloss.Height(m.renderHeader()) - lipgloss.Height(m.table.View()) - 4
	if m.vp.Height < 1 {
		m.vp.Height = 1
	}
	m.refreshViewport()
	return m
}

func (m *tuiModel) refreshViewport() {
	lines := m.logs
	if m.vp.Width > 0 {
		out := make([]string, len(lines))
		for i, l := range lines {
			if m.wrap {
				out[i] = wordwrap.String(l, m.vp.Width)
			} else {
				out[i] = truncate.String(l, uint(m.vp.Width))
			}
		}
		lines = out
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) rows() []table.Row {
	ids := make([]string, 0, len(m.bots))
	for id := range m.bots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		b := m.bots[id]
		routing := "-"
		if b.RoutingTo != nil {
			routing = *b.RoutingTo
		}
		state := "patrol"
		switch {
		case b.Charging:
			state = "charging"
		case b.RoutingTo != nil:
			state = "routing"
		}
		rows = append(rows, table.Row{
			id,
			m.species[id],
			fmt.Sprintf("%.4f", b.Lat),
			fmt.Sprintf("%.4f", b.Lon),
			batteryBar(b.Battery),
			routing,
			state,
		})
	}
	return rows
}

// batteryBar renders a ten-cell gauge followed by the percentage.
func batteryBar(pct int) string {
	filled := pct / 10
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled) + fmt.Sprintf("%3d", pct)
}

func (m tuiModel) renderHeader() string {
	title := headerStyle.Render("VANARA FLEET")
	stats := dimStyle.Render(fmt.Sprintf("detections %d  presence %d  low battery %d  charging done %d",
		m.counts[telemetry.EventDetection],
		m.counts[telemetry.EventHumanPresence],
		m.counts[telemetry.EventBattery],
		m.counts[telemetry.EventChargingComplete]))
	line := title + "  " + stats
	if n := m.counts[telemetry.EventSelfDestruct]; n > 0 {
		line += "  " + alertStyle.Render(fmt.Sprintf("SELF-DESTRUCT x%d", n))
	}
	return line
}

func (m tuiModel) View() string {
	if m.help {
		return boxStyle.Render(strings.Join([]string{
			"q      quit",
			"w      toggle line wrap",
			"s      toggle autoscroll",
			"c      clear event log",
			"↑/↓    scroll event log",
			"?      close help",
		}, "\n"))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		boxStyle.Render(m.table.View()),
		m.vp.View(),
		dimStyle.Render("q quit • w wrap • s autoscroll • ? help"),
	)
}
