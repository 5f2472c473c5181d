// Package format renders platform resources for the terminal.
//
// A [Printer] writes borderless lipgloss tables and detail blocks. When
// color is off the renderer drops to the ASCII profile, so the same
// formatters produce plain aligned text for pipes and files.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"k8s.io/apimachinery/pkg/util/duration"
	"sigs.k8s.io/yaml"

	"github.com/neuro-inc/apolo-cli/internal/config"
)

// Colors shared with the top dashboard.
var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
)

// Output is the machine-readable encoding selected with -o.
type Output string

// Output encodings.
const (
	OutputTable Output = ""
	OutputJSON  Output = "json"
	OutputYAML  Output = "yaml"
)

// ParseOutput validates an -o flag value.
func ParseOutput(s string) (Output, error) {
	switch o := Output(strings.ToLower(s)); o {
	case OutputTable, "table", "wide":
		return OutputTable, nil
	case OutputJSON, OutputYAML:
		return o, nil
	}
	return "", fmt.Errorf("invalid output format %q: expected table, json or yaml", s)
}

// Printer writes formatted output.
type Printer struct {
	out   io.Writer
	r     *lipgloss.Renderer
	color bool
	now   func() time.Time
}

// New creates a printer writing to out.
func New(out io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(out)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{out: out, r: r, color: color, now: time.Now}
}

// ColorEnabled resolves a --color mode for out. Auto enables color on
// terminals unless NO_COLOR is set.
func ColorEnabled(mode string, out io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return IsTerminal(out)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// termWidth is the column count of the output terminal, or 0 when the
// output is not a terminal.
func (p *Printer) termWidth() int {
	f, ok := p.out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// Out returns the underlying writer.
func (p *Printer) Out() io.Writer { return p.out }

// Color reports whether styled output is enabled.
func (p *Printer) Color() bool { return p.color }

// Println writes a line of plain text.
func (p *Printer) Println(a ...any) {
	_, _ = fmt.Fprintln(p.out, a...)
}

// Printf writes formatted plain text.
func (p *Printer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(p.out, format, a...)
}

// Encode writes v as JSON or YAML.
func (p *Printer) Encode(o Output, v any) error {
	switch o {
	case OutputJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = p.out.Write(data)
		return err
	}
	return fmt.Errorf("unsupported output format %q", o)
}

func (p *Printer) style() lipgloss.Style { return p.r.NewStyle() }

func (p *Printer) bold(s string) string { return p.style().Bold(true).Render(s) }

func (p *Printer) dim(s string) string { return p.style().Foreground(colorDim).Render(s) }

func (p *Printer) success(s string) string { return p.style().Foreground(colorGreen).Render(s) }

func (p *Printer) failure(s string) string { return p.style().Foreground(colorRed).Render(s) }

func (p *Printer) section(s string) string {
	return p.style().Bold(true).Foreground(colorBlue).Render(s)
}

// Success prints a confirmation line such as "Disk disk-1 removed".
func (p *Printer) Success(format string, a ...any) {
	p.Println(p.success(fmt.Sprintf(format, a...)))
}

// Warn prints a highlighted warning.
func (p *Printer) Warn(format string, a ...any) {
	p.Println(p.style().Foreground(colorYellow).Render(fmt.Sprintf(format, a...)))
}

// cellColor picks the color of one data cell; nil keeps the default.
type cellColor func(col int, value string) lipgloss.TerminalColor

func (p *Printer) table(headers []string, rows [][]string, colorize cellColor) {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := p.style().PaddingRight(2)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if colorize != nil && row >= 0 && row < len(rows) && col < len(rows[row]) {
				if c := colorize(col, rows[row][col]); c != nil {
					s = s.Foreground(c)
				}
			}
			return s
		})
	p.Println(t.Render())
}

// details renders aligned "Key: value" lines, skipping empty values.
func (p *Printer) details(pairs [][2]string) {
	width := 0
	for _, kv := range pairs {
		if kv[1] != "" && len(kv[0]) > width {
			width = len(kv[0])
		}
	}
	for _, kv := range pairs {
		if kv[1] == "" {
			continue
		}
		label := kv[0] + ":" + strings.Repeat(" ", width-len(kv[0]))
		p.Printf("%s %s\n", p.bold(label), kv[1])
	}
}

// Size renders a byte count in binary units.
func Size(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

func (p *Printer) ago(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return duration.HumanDuration(p.now().Sub(t)) + " ago"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Error prints a highlighted error line.
func (p *Printer) Error(format string, a ...any) {
	p.Println(p.failure(fmt.Sprintf(format, a...)))
}
