package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/batsim/internal/experiment"
	"github.com/san-kum/batsim/internal/stepper"
)

const historyLen = 120

type TickMsg time.Time

// Model is a bubbletea model that advances an experiment on every tick
// and draws the latest window.
type Model struct {
	exp            *experiment.Experiment
	name           string
	windowsPerTick int
	frameRate      int

	running bool
	last    stepper.Report
	stepped int
	volts   []float64
	temps   []float64
	err     error
	width   int
}

func NewModel(exp *experiment.Experiment, name string, windowsPerTick, frameRate int) Model {
	if windowsPerTick < 1 {
		windowsPerTick = 1
	}
	if frameRate < 1 {
		frameRate = 30
	}
	return Model{
		exp:            exp,
		name:           name,
		windowsPerTick: windowsPerTick,
		frameRate:      frameRate,
		running:        true,
		width:          80,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.frameRate), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "space":
			m.running = !m.running
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case TickMsg:
		if m.running && !m.exp.Done() {
			m.advance()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) advance() {
	for i := 0; i < m.windowsPerTick; i++ {
		r, err := m.exp.Next()
		if err != nil {
			if !errors.Is(err, experiment.ErrFinished) && !errors.Is(err, stepper.ErrEmptyTrajectory) {
				m.err = err
			}
			return
		}
		m.last = r
		m.stepped++
		m.volts = appendBounded(m.volts, r.AvgVoltageV)
		m.temps = appendBounded(m.temps, r.AvgTemperatureK-273.15)
		if m.exp.Done() {
			return
		}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(Title.Render("batsim ") + Subtle.Render(m.name) + "  " + m.status() + "\n\n")

	soc := m.exp.Driver().State().SOC()
	b.WriteString(MetricLabel.Render("soc") + ChargeBar(soc, 30) + " " + MetricValue.Render(fmt.Sprintf("%5.1f%%", soc*100)) + "\n")
	b.WriteString(m.metric("time", "%.0f s", m.exp.Driver().State().SimTime()))
	b.WriteString(m.metric("window", "%d/%d", m.exp.Window(), m.exp.Windows()))
	b.WriteString(m.metric("current", "%.3f A", m.last.AvgCurrentA))
	b.WriteString(m.metric("voltage", "%.4f V", m.last.AvgVoltageV))
	b.WriteString(m.metric("temp", "%.2f C", m.last.AvgTemperatureK-273.15))
	if m.last.Event != "" {
		b.WriteString(m.metric("event", "%s", m.last.Event))
	}
	b.WriteString("\n")

	if len(m.volts) > 1 {
		graphWidth := min(max(m.width-20, 20), historyLen)
		b.WriteString(asciigraph.Plot(m.volts,
			asciigraph.Height(8),
			asciigraph.Width(graphWidth),
			asciigraph.Precision(3),
			asciigraph.Caption("voltage (V)"),
		))
		b.WriteString("\n\n")
		b.WriteString(MetricLabel.Render("temp") + SparkMid.Render(Sparkline(m.temps, 40)) + "\n")
	}

	if m.err != nil {
		b.WriteString("\n" + StatusStopped.Render("error: "+m.err.Error()) + "\n")
	}

	b.WriteString("\n" + KeyHint.Render("space pause · q quit"))
	return Panel.Render(b.String())
}

func (m Model) metric(label, format string, args ...any) string {
	return MetricLabel.Render(label) + MetricValue.Render(fmt.Sprintf(format, args...)) + "\n"
}

func (m Model) status() string {
	if m.exp.Done() {
		if m.err != nil {
			return StatusStopped.Render("FAILED")
		}
		return StatusStopped.Render(strings.ToUpper(string(m.exp.Result().Termination)))
	}
	if m.running {
		return StatusRunning.Render("RUNNING")
	}
	return StatusPaused.Render("PAUSED")
}

// Stepped is the number of windows this view has advanced.
func (m Model) Stepped() int { return m.stepped }

// Err is the step failure that stopped the run, if any.
func (m Model) Err() error { return m.err }

func appendBounded(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > historyLen {
		xs = xs[len(xs)-historyLen:]
	}
	return xs
}
