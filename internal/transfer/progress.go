package transfer

// EventKind identifies a progress notification.
type EventKind int

const (
	EventStart EventKind = iota
	EventStep
	EventComplete
	EventEnterDir
	EventLeaveDir
	EventFail
	EventSkip
)

func (k EventKind) String() string {
	return [...]string{"start", "step", "complete", "enter-dir", "leave-dir", "fail", "skip"}[k]
}

// Event is one progress notification. Src and Dst are display forms of the
// source and destination paths.
type Event struct {
	Kind EventKind
	Src  string
	Dst  string
	// Size is the full source size; Current the bytes in place at the destination.
	Size    int64
	Current int64
	// Reason explains a skip.
	Reason string
	Err    error
}

// Progress receives events synchronously from the transfer goroutine.
type Progress interface {
	Event(Event)
}

type noProgress struct{}

func (noProgress) Event(Event) {}
