package assistant

import (
	"errors"
	"fmt"
)

// ErrNoSlotAvailable is returned by the scheduling step's slot search
// when the work-hour window is exhausted. It is recovered into a
// calendar_failed outcome and never escapes Run.
var ErrNoSlotAvailable = errors.New("no free slot available within work hours")

// CollaboratorError wraps a failure from an external collaborator (mail,
// calendar, sinks) with the operation that failed. Recovered locally by
// the owning step.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// OracleError wraps a failed or timed-out oracle call. The routing step
// recovers it into the default reply decision.
type OracleError struct {
	Model string
	Err   error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle call (model %s) failed: %v", e.Model, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}
