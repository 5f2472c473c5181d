package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"k8s.io/apimachinery/pkg/util/duration"

	"github.com/neuro-inc/apolo-cli/internal/platform/jobs"
)

// maxCommandWidth truncates the command column of job tables on narrow or
// unknown terminals.
const maxCommandWidth = 40

// commandWidth gives the command column a third of a wide terminal.
func commandWidth(termWidth int) int {
	if termWidth/3 > maxCommandWidth {
		return termWidth / 3
	}
	return maxCommandWidth
}

func statusColor(s jobs.JobStatus) lipgloss.TerminalColor {
	switch s {
	case jobs.StatusRunning, jobs.StatusSucceeded:
		return colorGreen
	case jobs.StatusPending, jobs.StatusSuspended:
		return colorYellow
	case jobs.StatusFailed:
		return colorRed
	case jobs.StatusCancelled:
		return colorDim
	}
	return nil
}

// when returns the most relevant timestamp of a job's history.
func (p *Printer) when(h jobs.JobStatusHistory) string {
	switch {
	case h.FinishedAt != nil:
		return p.ago(*h.FinishedAt)
	case h.StartedAt != nil:
		return p.ago(*h.StartedAt)
	}
	return p.ago(h.CreatedAt)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Jobs prints a job table. Wide output adds preset, tags and description.
func (p *Printer) Jobs(list []jobs.JobDescription, wide bool) {
	headers := []string{"ID", "NAME", "STATUS", "WHEN", "IMAGE", "OWNER", "PROJECT", "COMMAND"}
	if wide {
		headers = append(headers, "PRESET", "TAGS", "DESCRIPTION")
	}

	cmdWidth := commandWidth(p.termWidth())
	rows := make([][]string, 0, len(list))
	for _, j := range list {
		command := j.Container.Command
		if !wide {
			command = truncate(command, cmdWidth)
		}
		row := []string{
			j.ID,
			orDash(j.Name),
			string(j.Status),
			p.when(j.History),
			j.Container.Image,
			j.Owner,
			j.ProjectName,
			command,
		}
		if wide {
			row = append(row, orDash(j.PresetName), strings.Join(j.Tags, ","), j.Description)
		}
		rows = append(rows, row)
	}

	p.table(headers, rows, func(col int, value string) lipgloss.TerminalColor {
		if col == 2 {
			return statusColor(jobs.JobStatus(value))
		}
		return nil
	})
}

// JobStatus prints the detail view of one job.
func (p *Printer) JobStatus(j jobs.JobDescription) {
	status := string(j.Status)
	if c := statusColor(j.Status); c != nil {
		status = p.style().Foreground(c).Render(status)
	}
	if j.History.Reason != "" {
		status += fmt.Sprintf(" (%s)", j.History.Reason)
	}

	res := j.Container.Resources
	resources := fmt.Sprintf("CPU %g, memory %s", res.CPU, Size(res.Memory))
	if res.GPU > 0 {
		resources += fmt.Sprintf(", GPU %d x %s", res.GPU, orDash(res.GPUModel))
	}
	if res.TPUType != "" {
		resources += fmt.Sprintf(", TPU %s/%s", res.TPUType, res.TPUSoftware)
	}
	if res.SharedMemory {
		resources += ", extended /dev/shm"
	}

	lifeSpan := "no limit"
	if j.LifeSpan != nil && *j.LifeSpan > 0 {
		lifeSpan = duration.HumanDuration(time.Duration(*j.LifeSpan * float64(time.Second)))
	}

	var started, finished, exitCode string
	if j.History.StartedAt != nil {
		started = formatTime(*j.History.StartedAt)
	}
	if j.History.FinishedAt != nil {
		finished = formatTime(*j.History.FinishedAt)
	}
	if j.History.ExitCode != nil {
		exitCode = fmt.Sprint(*j.History.ExitCode)
	}
	var restarts string
	if j.History.Restarts > 0 {
		restarts = fmt.Sprint(j.History.Restarts)
	}
	var tty string
	if j.Container.TTY {
		tty = "yes"
	}

	p.details([][2]string{
		{"Job", j.ID},
		{"Name", j.Name},
		{"Owner", j.Owner},
		{"Cluster", j.ClusterName},
		{"Organization", j.OrgName},
		{"Project", j.ProjectName},
		{"Tags", strings.Join(j.Tags, ", ")},
		{"Description", j.Description},
		{"Status", status},
		{"Status description", j.History.Description},
		{"Image", j.Container.Image},
		{"Entrypoint", j.Container.Entrypoint},
		{"Command", j.Container.Command},
		{"Working dir", j.Container.WorkingDir},
		{"Preset", j.PresetName},
		{"Priority", j.Priority},
		{"Resources", resources},
		{"TTY", tty},
		{"Restart policy", string(j.RestartPolicy)},
		{"Life span", lifeSpan},
		{"Price (credits / hour)", j.PriceCreditsPerHour},
		{"Current cost", j.TotalPriceCredits},
		{"Http URL", j.HTTPURL},
		{"Internal hostname", j.InternalHostname},
		{"Created", formatTime(j.History.CreatedAt)},
		{"Started", started},
		{"Finished", finished},
		{"Restarts", restarts},
		{"Exit code", exitCode},
	})

	p.mounts(j.Container)
	p.env(j.Container)
}

func (p *Printer) mounts(c jobs.Container) {
	if len(c.Volumes)+len(c.DiskVolumes)+len(c.SecretFiles) == 0 {
		return
	}
	p.Println(p.section("Volumes:"))
	rows := make([][]string, 0, len(c.Volumes)+len(c.DiskVolumes)+len(c.SecretFiles))
	for _, v := range c.Volumes {
		rows = append(rows, []string{v.MountPath, v.StorageURI, readOnly(v.ReadOnly)})
	}
	for _, v := range c.DiskVolumes {
		rows = append(rows, []string{v.MountPath, v.DiskURI, readOnly(v.ReadOnly)})
	}
	for _, v := range c.SecretFiles {
		rows = append(rows, []string{v.MountPath, v.SecretURI, ""})
	}
	p.table([]string{"MOUNT", "SOURCE", "MODE"}, rows, nil)
}

func readOnly(ro bool) string {
	if ro {
		return "ro"
	}
	return "rw"
}

func (p *Printer) env(c jobs.Container) {
	if len(c.Env)+len(c.SecretEnv) == 0 {
		return
	}
	p.Println(p.section("Environment:"))
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Printf("  %s=%s\n", k, c.Env[k])
	}
	keys = keys[:0]
	for k := range c.SecretEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Printf("  %s=%s\n", k, c.SecretEnv[k])
	}
}

// JobStarted prints the summary shown after 'job run'.
func (p *Printer) JobStarted(j jobs.JobDescription) {
	p.details([][2]string{
		{"Job ID", j.ID},
		{"Name", j.Name},
		{"Status", string(j.Status)},
		{"Http URL", j.HTTPURL},
	})
	p.Println(p.dim("Shortcuts:"))
	p.Println(p.dim(fmt.Sprintf("  apolo status %s  # check job status", j.DisplayName())))
	p.Println(p.dim(fmt.Sprintf("  apolo logs %s    # monitor job stdout", j.DisplayName())))
	p.Println(p.dim(fmt.Sprintf("  apolo top %s     # display real-time job telemetry", j.DisplayName())))
	p.Println(p.dim(fmt.Sprintf("  apolo kill %s    # kill job", j.DisplayName())))
}

// JobTelemetry prints one telemetry sample as a table row, for 'job top'
// on output that is not a terminal.
func (p *Printer) JobTelemetry(j jobs.JobDescription, s jobs.JobTelemetry, header bool) {
	gpu, gpuMem := "-", "-"
	if s.GPUDutyCycle != nil {
		gpu = fmt.Sprintf("%d%%", *s.GPUDutyCycle)
	}
	if s.GPUMemory != nil {
		gpuMem = Size(int64(*s.GPUMemory * 1024 * 1024))
	}
	if header {
		p.Printf("%-24s %-20s %8s %10s %6s %10s\n", "ID", "TIMESTAMP", "CPU", "MEMORY", "GPU", "GPU MEMORY")
	}
	p.Printf("%-24s %-20s %8.3f %10s %6s %10s\n",
		j.ID, s.Time().Local().Format("2006-01-02 15:04:05"), s.CPU, Size(int64(s.Memory*1024*1024)), gpu, gpuMem)
}
