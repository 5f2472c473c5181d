// Package progress reports transfer events on the terminal.
package progress

import (
	"fmt"
	"io"

	"github.com/cheggaaa/pb/v3"

	"github.com/neuro-inc/apolo-cli/internal/transfer"
)

// barTemplate is pb.Full without the ETA, which is meaningless for small files.
const barTemplate pb.ProgressBarTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }}`

// Bars draws one pb progress bar per file and prints a line for each
// directory, skip and failure.
type Bars struct {
	out io.Writer
	bar *pb.ProgressBar
}

// NewBars creates a bar renderer writing to out, normally stderr.
func NewBars(out io.Writer) *Bars {
	return &Bars{out: out}
}

// Event implements transfer.Progress.
func (b *Bars) Event(e transfer.Event) {
	switch e.Kind {
	case transfer.EventStart:
		b.finish()
		bar := pb.New64(e.Size)
		bar.SetTemplate(barTemplate)
		bar.Set(pb.Bytes, true)
		bar.Set("prefix", e.Src+" ")
		bar.SetWriter(b.out)
		bar.SetCurrent(e.Current)
		bar.Start()
		b.bar = bar
	case transfer.EventStep:
		if b.bar != nil {
			b.bar.SetCurrent(e.Current)
		}
	case transfer.EventComplete:
		if b.bar != nil {
			b.bar.SetCurrent(e.Size)
		}
		b.finish()
	case transfer.EventEnterDir:
		_, _ = fmt.Fprintf(b.out, "'%s' -> '%s'\n", e.Src, e.Dst)
	case transfer.EventSkip:
		_, _ = fmt.Fprintf(b.out, "'%s' skipped: %s\n", e.Src, e.Reason)
	case transfer.EventFail:
		b.finish()
		_, _ = fmt.Fprintf(b.out, "'%s' failed: %v\n", e.Src, e.Err)
	}
}

func (b *Bars) finish() {
	if b.bar == nil {
		return
	}
	b.bar.Finish()
	b.bar = nil
}

// Close stops a bar left running by an interrupted transfer.
func (b *Bars) Close() {
	b.finish()
}

// Lines prints one line per finished file, for output that is not a
// terminal. Directories are reported only when verbose.
type Lines struct {
	out     io.Writer
	verbose bool
}

// NewLines creates a line reporter.
func NewLines(out io.Writer, verbose bool) *Lines {
	return &Lines{out: out, verbose: verbose}
}

// Event implements transfer.Progress.
func (l *Lines) Event(e transfer.Event) {
	switch e.Kind {
	case transfer.EventComplete:
		_, _ = fmt.Fprintf(l.out, "'%s' -> '%s'\n", e.Src, e.Dst)
	case transfer.EventEnterDir:
		if l.verbose {
			_, _ = fmt.Fprintf(l.out, "'%s' -> '%s'\n", e.Src, e.Dst)
		}
	case transfer.EventSkip:
		if l.verbose {
			_, _ = fmt.Fprintf(l.out, "'%s' skipped: %s\n", e.Src, e.Reason)
		}
	case transfer.EventFail:
		_, _ = fmt.Fprintf(l.out, "'%s' failed: %v\n", e.Src, e.Err)
	}
}

// Reporter is a transfer.Progress that may hold terminal state.
type Reporter interface {
	transfer.Progress
	Close()
}

// Close implements Reporter.
func (l *Lines) Close() {}

// Quiet discards all events.
type Quiet struct{}

// Event implements transfer.Progress.
func (Quiet) Event(transfer.Event) {}

// Close implements Reporter.
func (Quiet) Close() {}

// New picks a reporter: bars on a terminal when requested, lines when
// verbose, silence otherwise.
func New(out io.Writer, terminal, bars, verbose bool) Reporter {
	switch {
	case bars && terminal:
		return NewBars(out)
	case bars || verbose:
		return NewLines(out, verbose)
	}
	return Quiet{}
}
