package dynamo

import "errors"

// Domain errors for numerical integration.
var (
	// ErrInvalidState indicates a state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrUnstable indicates the integration became numerically unstable.
	ErrUnstable = errors.New("dynamo: integration unstable (state diverged)")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrMaxSteps indicates the integrator gave up before reaching the target time.
	ErrMaxSteps = errors.New("dynamo: step budget exhausted before target time")

	// ErrStepRejected is returned by adaptive steps whose error estimate exceeds tolerance.
	ErrStepRejected = errors.New("dynamo: step rejected")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrNoSamples indicates a trajectory without any sample points.
	ErrNoSamples = errors.New("dynamo: trajectory has no samples")

	// ErrUnknownVariable indicates a lookup of a variable the trajectory does not carry.
	ErrUnknownVariable = errors.New("dynamo: unknown trajectory variable")
)

// IntegrationError wraps an error with integration context.
type IntegrationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return e.Wrapped.Error()
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}
