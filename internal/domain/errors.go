package domain

import (
	"fmt"
	"time"
)

// TimeoutError reports that a bounded wait never observed its condition.
// Always recoverable by the caller: the step failed, not the process.
type TimeoutError struct {
	Desc    string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Elapsed.Round(time.Millisecond), e.Desc)
}

// StepLocatorError reports that a required UI control could not be found
// through any fallback strategy. Recoverable at item granularity.
type StepLocatorError struct {
	Step string
}

func (e *StepLocatorError) Error() string {
	return fmt.Sprintf("could not locate %s", e.Step)
}

// ControlNotFoundError reports that the context menu never appeared within
// the retry budget. Recoverable at item granularity.
type ControlNotFoundError struct {
	Selector string
	Attempts int
}

func (e *ControlNotFoundError) Error() string {
	return fmt.Sprintf("context menu %q did not appear after %d attempts", e.Selector, e.Attempts)
}

// DownloadError reports that the passive download observer saw a failure
// while awaiting the export artifact.
type DownloadError struct {
	Reason string
}

func (e *DownloadError) Error() string {
	if e.Reason == "" {
		return "download failed"
	}
	return fmt.Sprintf("download failed: %s", e.Reason)
}

// FatalError terminates a run once the consecutive-error ceiling is hit.
type FatalError struct {
	Consecutive int
	Last        error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("aborting after %d consecutive item failures: %v", e.Consecutive, e.Last)
}

func (e *FatalError) Unwrap() error {
	return e.Last
}
