package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neuro-inc/apolo-cli/internal/platform/jobs"
)

// historySize bounds the samples kept for the sparklines.
const historySize = 60

// Model is the Bubble Tea model of the top dashboard.
type Model struct {
	Job jobs.JobDescription

	// Samples holds the most recent samples, oldest first.
	Samples []jobs.JobTelemetry

	StartTime    time.Time
	SpinnerFrame int

	// UI state
	Width  int
	Height int
	Err    error
	Done   bool
}

// NewTopModel creates a dashboard for job.
func NewTopModel(job jobs.JobDescription) Model {
	return Model{Job: job, StartTime: time.Now()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case TelemetryMsg:
		m.addSample(msg.Sample)

	case TickMsg:
		m.SpinnerFrame++
		return m, tickCmd()

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) addSample(s jobs.JobTelemetry) {
	m.Samples = append(m.Samples, s)
	if n := len(m.Samples); n > historySize {
		m.Samples = append(m.Samples[:0:0], m.Samples[n-historySize:]...)
	}
}

// Latest returns the newest sample.
func (m Model) Latest() (jobs.JobTelemetry, bool) {
	if len(m.Samples) == 0 {
		return jobs.JobTelemetry{}, false
	}
	return m.Samples[len(m.Samples)-1], true
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
