package stepper

import (
	"errors"
	"fmt"
)

// Step failures. Every failed step leaves the State untouched.
var (
	// ErrInvalidWindow indicates a non-positive duration, a non-finite time,
	// or a window that starts before the end of the previous one.
	ErrInvalidWindow = errors.New("stepper: invalid window")

	// ErrInvalidCurrent indicates a non-finite applied current.
	ErrInvalidCurrent = errors.New("stepper: invalid applied current")

	// ErrSolverDivergence indicates the solve failed to converge or
	// produced non-finite values.
	ErrSolverDivergence = errors.New("stepper: solver diverged")

	// ErrEmptyTrajectory indicates the solve returned no samples, typically
	// because a voltage cutoff was already violated at the window start.
	ErrEmptyTrajectory = errors.New("stepper: solve returned no samples")

	// ErrMalformedTrajectory indicates a trajectory missing a required series.
	ErrMalformedTrajectory = errors.New("stepper: trajectory missing required variable")
)

// StepError wraps a step failure with the window it was raised for.
type StepError struct {
	Time   float64
	Window float64
	Event  string
	Err    error
}

func (e *StepError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("window t=%.4f dt=%.4f (%s): %v", e.Time, e.Window, e.Event, e.Err)
	}
	return fmt.Sprintf("window t=%.4f dt=%.4f: %v", e.Time, e.Window, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
