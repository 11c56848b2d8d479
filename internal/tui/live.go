package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/embq/liftkit/internal/config"
	"github.com/embq/liftkit/internal/lift"
	"github.com/embq/liftkit/internal/plant"
)

const (
	headerHeight = 2
	legendHeight = 2
	footerHeight = 8
	borderSize   = 2
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

var seriesColors = map[string]string{
	"angle":    "51",  // cyan
	"setpoint": "226", // yellow
	"power":    "201", // magenta
}

type stateMsg State

func waitForState(loop *Loop) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-loop.States())
	}
}

type liveModel struct {
	loop     *Loop
	chart    *streamlinechart.Model
	state    State
	width    int
	height   int
	quitting bool
}

func newLiveModel(loop *Loop) liveModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-1, 1),
	)
	for name, color := range seriesColors {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	return liveModel{loop: loop, chart: &chart}
}

func (m liveModel) Init() tea.Cmd {
	return waitForState(m.loop)
}

func (m liveModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		m.state = State(msg)
		m.chart.PushDataSet("angle", m.state.Angle)
		m.chart.PushDataSet("setpoint", m.state.Setpoint)
		m.chart.PushDataSet("power", m.state.Power)
		m.chart.DrawAll()
		return m, waitForState(m.loop)
	}

	return m, nil
}

func (m liveModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "c":
		m.loop.Send(func(_ *plant.Plant, c *lift.Controller) {
			c.StartCalibrationRoutine(false, lift.ReasonCommanded)
		})
	case "1":
		m.sendHeight(lift.HeightLowDockMM)
	case "2":
		m.sendHeight(lift.HeightHighDockMM)
	case "3":
		m.sendHeight(lift.HeightCarryMM)
	case "e":
		m.loop.Send(func(_ *plant.Plant, c *lift.Controller) { c.Enable() })
	case "d":
		m.loop.Send(func(_ *plant.Plant, c *lift.Controller) { c.Disable(true) })
	case "b":
		m.loop.Send(func(_ *plant.Plant, c *lift.Controller) {
			if c.IsBracing() {
				c.Unbrace()
			} else {
				c.Brace()
			}
		})
	case "s":
		m.loop.Send(func(_ *plant.Plant, c *lift.Controller) { c.Stop() })
	case "l":
		m.loop.CheckForLoad()
	case "g":
		m.loop.ToggleCharger()
	case "h":
		m.loop.ToggleHeld()
	case "y":
		m.loop.ToggleCarrying()
	}
	return m, nil
}

func (m liveModel) sendHeight(heightMM float64) {
	m.loop.Send(func(_ *plant.Plant, c *lift.Controller) {
		c.SetDesiredHeight(heightMM, 2.0, 20.0, true)
	})
}

func (m liveModel) View() string {
	if m.quitting {
		return "Bench console stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("liftkit bench console"))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  t=%.1fs", m.state.T)))
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(
		"keys: [1/2/3] heights  [c]alibrate  [s]top  [e]nable  [d]isable  [b]race  [l]oad check  [g] charger  [h] held  [y] carry  [q]uit"))
	sb.WriteString("\n")

	return sb.String()
}

func (m liveModel) renderStatus() string {
	s := m.state

	flag := func(on bool, label string) string {
		if on {
			return okStyle.Render(label)
		}
		return statusStyle.Render(label)
	}

	line1 := fmt.Sprintf("height %6.1fmm  angle %+7.4frad  setpoint %+7.4frad  power %+6.3f",
		s.HeightMM, s.Angle, s.Setpoint, s.Power)

	parts := []string{
		flag(s.Calibrated, "calibrated"),
		flag(s.InPosition, "in-position"),
		flag(s.Enabled, "enabled"),
		flag(s.OnCharger, "charger"),
		flag(s.Held, "held"),
		flag(s.Carrying, "carry"),
	}
	if s.Calibrating {
		parts = append(parts, alertStyle.Render("CALIBRATING"))
	}
	if s.Bracing {
		parts = append(parts, alertStyle.Render("BRACING"))
	}
	if s.LoadResult != "" {
		parts = append(parts, statusStyle.Render("load: "+s.LoadResult))
	}

	return line1 + "\n" + strings.Join(parts, "  ")
}

func renderLegend() string {
	items := make([]string, 0, len(seriesColors))
	for _, name := range []string{"angle", "setpoint", "power"} {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, style.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

// Run starts the control loop and the terminal UI and blocks until the
// user quits.
func Run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := NewLoop(cfg)
	go loop.Run(ctx)

	p := tea.NewProgram(newLiveModel(loop), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
