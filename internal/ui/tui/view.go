package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/neuro-inc/apolo-cli/internal/platform/jobs"
)

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderResources(&b, m)
	renderHistory(&b, m)
	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	title := fmt.Sprintf("apolo top: %s", m.Job.DisplayName())
	if m.Job.Name != "" {
		title += fmt.Sprintf(" (%s)", m.Job.ID)
	}
	b.WriteString(titleStyle.Render(title))

	status := " "
	switch {
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.Done:
		status += dimStyle.Render("stream closed")
	case len(m.Samples) == 0:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame)+" ") + warningStyle.Render("waiting for telemetry")
	default:
		status += readyStyle.Render(string(jobs.StatusRunning))
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderResources(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Resources"))
	b.WriteString("\n")

	s, ok := m.Latest()
	if !ok {
		b.WriteString(dimStyle.Render("    no samples yet"))
		b.WriteString("\n")
		return
	}
	res := m.Job.Container.Resources

	cpuLimit := res.CPU
	if cpuLimit <= 0 {
		cpuLimit = 1
	}
	fmt.Fprintf(b, "    CPU     %s %5.1f%% of %g\n", usageBar(s.CPU/cpuLimit, barWidth(m)), s.CPU*100, res.CPU)

	memLimit := float64(res.Memory)
	memUsed := s.Memory * 1024 * 1024
	memFrac := 0.0
	if memLimit > 0 {
		memFrac = memUsed / memLimit
	}
	fmt.Fprintf(b, "    Memory  %s %s of %s\n", usageBar(memFrac, barWidth(m)),
		humanize.IBytes(uint64(memUsed)), humanize.IBytes(uint64(res.Memory)))

	if s.GPUDutyCycle != nil {
		fmt.Fprintf(b, "    GPU     %s %d%%\n", usageBar(float64(*s.GPUDutyCycle)/100, barWidth(m)), *s.GPUDutyCycle)
	}
	if s.GPUMemory != nil {
		fmt.Fprintf(b, "    GPU mem %s\n", humanize.IBytes(uint64(*s.GPUMemory*1024*1024)))
	}
}

func renderHistory(b *strings.Builder, m Model) {
	if len(m.Samples) < 2 {
		return
	}
	b.WriteString(sectionStyle.Render("  History"))
	b.WriteString("\n")

	limit := m.Job.Container.Resources.CPU
	if limit <= 0 {
		limit = 1
	}
	cpu := make([]float64, len(m.Samples))
	mem := make([]float64, len(m.Samples))
	for i, s := range m.Samples {
		cpu[i] = s.CPU / limit
		if m.Job.Container.Resources.Memory > 0 {
			mem[i] = s.Memory * 1024 * 1024 / float64(m.Job.Container.Resources.Memory)
		}
	}
	fmt.Fprintf(b, "    CPU     %s\n", barFull.Render(sparkline(cpu)))
	fmt.Fprintf(b, "    Memory  %s\n", barFull.Render(sparkline(mem)))
}

func renderFooter(b *strings.Builder, m Model) {
	parts := []string{fmt.Sprintf("watching: %s", formatDuration(time.Since(m.StartTime)))}
	if s, ok := m.Latest(); ok {
		parts = append(parts, "sample: "+s.Time().Format(time.TimeOnly))
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf("  %s  |  q: quit", strings.Join(parts, "  |  "))))
	b.WriteString("\n")
}

// Helper functions

func barWidth(m Model) int {
	w := 30
	if m.Width > 0 && m.Width < 70 {
		w = m.Width - 40
		if w < 10 {
			w = 10
		}
	}
	return w
}

func usageBar(frac float64, width int) string {
	frac = clamp(frac)
	filled := int(frac * float64(width))
	style := barFull
	if frac >= 0.9 {
		style = barHot
	}
	return style.Render(strings.Repeat("█", filled)) + barEmpty.Render(strings.Repeat("░", width-filled))
}

func sparkline(values []float64) string {
	var sb strings.Builder
	top := len(sparkLevels) - 1
	for _, v := range values {
		sb.WriteRune(sparkLevels[int(clamp(v)*float64(top))])
	}
	return sb.String()
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func currentSpinner(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
