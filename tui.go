package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	statusPollInterval = 100 * time.Millisecond
	swatchesPerRow     = 32
)

type statusMsg struct {
	status Status
	ok     bool
}

type model struct {
	spinner spinner.Model
	poll    func() (Status, bool)
	status  Status
	started bool
	width   int
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// newModel returns a status view that samples the runner through poll.
func newModel(poll func() (Status, bool)) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	return model{spinner: s, poll: poll}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.pollCmd())
}

func (m model) pollCmd() tea.Cmd {
	return tea.Tick(statusPollInterval, func(time.Time) tea.Msg {
		st, ok := m.poll()
		return statusMsg{status: st, ok: ok}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		if msg.ok {
			m.status = msg.status
			m.started = true
		}
		return m, m.pollCmd()
	}
	return m, nil
}

func (m model) View() string {
	if !m.started {
		return fmt.Sprintf("\n %s %s\n\n",
			m.spinner.View(),
			titleStyle.Render("Starting capture..."))
	}

	st := m.status
	var b strings.Builder
	fmt.Fprintf(&b, "\n %s %s\n\n", m.spinner.View(), titleStyle.Render("ledsync"))
	fmt.Fprintf(&b, "  %s%s\n", labelStyle.Render("capture"), st.Method)
	fmt.Fprintf(&b, "  %s%.1f fps, %s per tick\n", labelStyle.Render("refresh"), st.FPS, st.Compute.Round(time.Microsecond))
	fmt.Fprintf(&b, "  %s%d written, %d dropped, %d failed\n", labelStyle.Render("output"),
		st.Writer.Written, st.Writer.Dropped, st.Writer.Failed)
	if len(st.Colors) > 0 {
		avg := averageSwatch(st.Colors)
		fmt.Fprintf(&b, "  %s%s %s\n", labelStyle.Render("average"), swatch(avg), avg.Hex())
	}
	if st.CaptureErr != nil {
		b.WriteString("  " + errStyle.Render(st.CaptureErr.Error()) + "\n")
	}

	b.WriteString("\n")
	perRow := swatchesPerRow
	if m.width > 4 {
		perRow = max(1, min(perRow, (m.width-2)/2))
	}
	for i, c := range st.Colors {
		if i%perRow == 0 {
			b.WriteString("  ")
		}
		b.WriteString(swatch(toColorful(c)))
		if i%perRow == perRow-1 || i == len(st.Colors)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("  q quit") + "\n")
	return b.String()
}

func toColorful(c RGB) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

func swatch(c colorful.Color) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render("██")
}

// averageSwatch blends all LED colors in linear RGB, which is how the
// strip's light mixes.
func averageSwatch(colors []RGB) colorful.Color {
	var r, g, b float64
	for _, c := range colors {
		lr, lg, lb := toColorful(c).LinearRgb()
		r += lr
		g += lg
		b += lb
	}
	n := float64(len(colors))
	return colorful.LinearRgb(r/n, g/n, b/n).Clamped()
}
