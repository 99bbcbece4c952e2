package server

import "fmt"

// ProgressKind is the outcome class of a block run.
type ProgressKind int

const (
	// ProgressNone: never run, or still running.
	ProgressNone ProgressKind = iota
	// ProgressSuccess: the tree finished.
	ProgressSuccess
	// ProgressInterrupt: the user interrupted the block.
	ProgressInterrupt
	// ProgressFailure: the block crashed or could not start.
	ProgressFailure
	// ProgressCleanupError: the block ended but tearing it down failed.
	ProgressCleanupError
)

// Progress is the outcome of a block run.
type Progress struct {
	Kind ProgressKind
	Err  error // Failure and CleanupError only
}

// Status is the short form stored with the run record.
func (p Progress) Status() string {
	switch p.Kind {
	case ProgressSuccess:
		return "success"
	case ProgressInterrupt:
		return "interrupt"
	case ProgressFailure:
		return "failure"
	case ProgressCleanupError:
		return "cleanup_error"
	default:
		return "none"
	}
}

// String is the user-facing message.
func (p Progress) String() string {
	switch p.Kind {
	case ProgressSuccess:
		return "Block completed successfully!"
	case ProgressInterrupt:
		return "Block was interrupted by user."
	case ProgressFailure:
		return fmt.Sprintf("Error in block execution: %v", p.Err)
	case ProgressCleanupError:
		return fmt.Sprintf("Failed to clean up after block: %v", p.Err)
	default:
		return ""
	}
}

// Done reports whether the block has an outcome.
func (p Progress) Done() bool { return p.Kind != ProgressNone }
