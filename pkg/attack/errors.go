package attack

import "fmt"

// ExtractionError indicates a capture post-processing subprocess (handshake
// extraction) failed. It is reported, not fatal; the triggering flag stays
// set so the extraction is retried on a later update.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract from %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// TargetNotFoundError indicates the requested network was not seen during
// scanning.
type TargetNotFoundError struct {
	ESSID string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("target network %q not found", e.ESSID)
}

// RetryLimitError indicates a bounded retry loop ran out of attempts before
// reaching its goal. Recoverable by the caller (for example by re-running the
// attack), never an unbounded hang.
type RetryLimitError struct {
	Op       string
	Attempts int
}

func (e *RetryLimitError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts", e.Op, e.Attempts)
}
