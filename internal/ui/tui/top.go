package tui

import (
	"context"
	"fmt"
	"iter"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neuro-inc/apolo-cli/internal/platform/jobs"
)

// RunTop shows the dashboard until the user quits or the stream ends.
func RunTop(ctx context.Context, job jobs.JobDescription, samples iter.Seq2[jobs.JobTelemetry, error]) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewTopModel(job), tea.WithAltScreen(), tea.WithContext(ctx))

	// Feed telemetry in the background; cancel stops the stream on quit.
	go func() {
		for s, err := range samples {
			if err != nil {
				p.Send(ErrMsg{Err: err})
				return
			}
			p.Send(TelemetryMsg{Sample: s})
		}
		p.Send(DoneMsg{})
	}()

	finalModel, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	fm, ok := finalModel.(Model)
	if ok && fm.Err != nil {
		return fm.Err
	}
	return nil
}

// RenderOnce renders the dashboard for one set of samples, for output
// that is not a terminal.
func RenderOnce(job jobs.JobDescription, samples ...jobs.JobTelemetry) string {
	m := NewTopModel(job)
	for _, s := range samples {
		m.addSample(s)
	}
	return renderView(m)
}
