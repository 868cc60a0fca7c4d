package integrators

import (
	"errors"
	"math"

	"github.com/san-kum/batsim/internal/dynamo"
)

// Options controls Integrate. Tolerance is relative and only used by
// adaptive integrators; fixed-step integrators advance in MaxDt increments.
type Options struct {
	Tolerance float64
	InitialDt float64
	MinDt     float64
	MaxDt     float64
	MaxSteps  int
}

func DefaultOptions() Options {
	return Options{
		Tolerance: 1e-6,
		InitialDt: 1e-3,
		MinDt:     1e-9,
		MaxDt:     1.0,
		MaxSteps:  100000,
	}
}

// Integrate advances x from t0 to exactly t1 under constant control u.
// It returns the state at t1 and the step size to try next, so successive
// calls over adjacent intervals keep the adaptive controller warm.
func Integrate(dyn dynamo.System, integ dynamo.Integrator, x dynamo.State, u dynamo.Control, t0, t1 float64, opts Options) (dynamo.State, float64, error) {
	if len(x) != dyn.StateDim() {
		return nil, opts.InitialDt, dynamo.ErrDimensionMismatch
	}
	if !x.IsValid() {
		return nil, opts.InitialDt, &dynamo.IntegrationError{Time: t0, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
	}

	cur := x.Clone()
	t := t0
	eps := 1e-12 * math.Max(1, math.Abs(t1))

	adaptive, isAdaptive := integ.(dynamo.AdaptiveIntegrator)

	dt := opts.InitialDt
	if !isAdaptive || dt <= 0 {
		dt = opts.MaxDt
	}
	dt = math.Min(dt, opts.MaxDt)
	if dt <= 0 {
		return nil, dt, &dynamo.IntegrationError{Time: t0, State: cur, Wrapped: dynamo.ErrStepTooSmall}
	}

	for step := 0; t1-t > eps; step++ {
		if step >= opts.MaxSteps {
			return nil, dt, &dynamo.IntegrationError{Step: step, Time: t, State: cur, Wrapped: dynamo.ErrMaxSteps}
		}

		remaining := t1 - t
		h := math.Min(dt, remaining)
		clipped := h < dt

		var next dynamo.State
		if isAdaptive {
			var dtNew float64
			var err error
			next, dtNew, err = adaptive.StepAdaptive(dyn, cur, u, t, h, opts.Tolerance)
			if errors.Is(err, dynamo.ErrStepRejected) {
				if dtNew < opts.MinDt {
					return nil, dt, &dynamo.IntegrationError{Step: step, Time: t, State: cur, Wrapped: dynamo.ErrStepTooSmall}
				}
				dt = dtNew
				continue
			}
			if err != nil {
				return nil, dt, &dynamo.IntegrationError{Step: step, Time: t, State: cur, Wrapped: err}
			}
			if clipped {
				dtNew = math.Max(dt, dtNew)
			}
			dt = math.Min(dtNew, opts.MaxDt)
		} else {
			next = integ.Step(dyn, cur, u, t, h)
		}

		if !next.IsValid() {
			return nil, dt, &dynamo.IntegrationError{Step: step, Time: t, State: cur, Wrapped: dynamo.ErrUnstable}
		}

		cur = next
		if h == remaining {
			t = t1
		} else {
			t += h
		}
	}

	return cur, dt, nil
}
