// Package tui is the Bubble Tea dashboard behind 'apolo job top'.
package tui

import "github.com/neuro-inc/apolo-cli/internal/platform/jobs"

// TelemetryMsg carries one sample from the telemetry stream.
type TelemetryMsg struct {
	Sample jobs.JobTelemetry
}

// TickMsg is sent periodically to animate the display.
type TickMsg struct{}

// ErrMsg carries a stream error.
type ErrMsg struct{ Err error }

// DoneMsg signals that the stream ended, normally because the job finished.
type DoneMsg struct{}
