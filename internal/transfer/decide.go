package transfer

import "time"

// Action is what happens to one destination file.
type Action int

const (
	// Overwrite replaces the destination with the full source.
	Overwrite Action = iota
	// Skip leaves the destination untouched.
	Skip
	// Resume appends the source from Decision.Offset.
	Resume
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Resume:
		return "resume"
	default:
		return "overwrite"
	}
}

// Policy selects how existing destination files are treated. The zero
// value always overwrites.
type Policy struct {
	// Update skips files whose destination is at least as new as the source.
	Update bool
	// Continue skips complete files and resumes partial ones.
	Continue bool
}

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	Offset int64
}

// Decide compares a source file with its destination. dst is nil when the
// destination does not exist. Modification times are compared at second
// precision since remote stores truncate them.
func Decide(src FileStatus, dst *FileStatus, policy Policy) Decision {
	if dst == nil || !dst.IsFile() {
		return Decision{Action: Overwrite}
	}
	notOlder := !truncate(dst.ModTime).Before(truncate(src.ModTime))

	switch {
	case policy.Continue:
		switch {
		case !notOlder:
			return Decision{Action: Overwrite}
		case dst.Size == src.Size:
			return Decision{Action: Skip}
		case dst.Size < src.Size:
			return Decision{Action: Resume, Offset: dst.Size}
		default:
			return Decision{Action: Overwrite}
		}
	case policy.Update:
		if notOlder {
			return Decision{Action: Skip}
		}
		return Decision{Action: Overwrite}
	}
	return Decision{Action: Overwrite}
}

func truncate(t time.Time) time.Time {
	return t.Truncate(time.Second)
}
