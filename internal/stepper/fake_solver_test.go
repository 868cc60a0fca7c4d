package stepper_test

import (
	"github.com/san-kum/batsim/internal/cell"
	"github.com/san-kum/batsim/internal/dynamo"
)

type solveCall struct {
	overlay cell.Overlay
	seed    dynamo.State
	window  dynamo.Window
}

// fakeSolver produces linear trajectories: z falls by current*duration,
// voltage comes from voltageAt(sample index).
type fakeSolver struct {
	initialCalls int
	calls        []solveCall

	// samples, when > 0, overrides the requested sample count.
	samples   int
	voltageAt func(i int) float64
	event     string
	err       error
	// failOnCall makes only the n-th Solve call (1-based) fail.
	failOnCall int
	skipVars   []string
	nanCurrent bool
}

func newFakeSolver() *fakeSolver {
	return &fakeSolver{voltageAt: func(int) float64 { return 3.7 }}
}

func (f *fakeSolver) InitialState(p cell.Parameters, soc float64) (dynamo.State, error) {
	f.initialCalls++
	return dynamo.State{soc, 0, p.AmbientTemperatureK}, nil
}

func (f *fakeSolver) Solve(p cell.Parameters, o cell.Overlay, x0 dynamo.State, w dynamo.Window) (*dynamo.Trajectory, error) {
	f.calls = append(f.calls, solveCall{overlay: o, seed: x0.Clone(), window: w})
	if f.err != nil && (f.failOnCall == 0 || f.failOnCall == len(f.calls)) {
		return nil, f.err
	}

	n := w.Samples
	if f.samples > 0 {
		n = f.samples
	}

	names := []string{dynamo.VarCurrent, dynamo.VarVoltage, dynamo.VarTemperature}
	for _, skip := range f.skipVars {
		for i, name := range names {
			if name == skip {
				names = append(names[:i], names[i+1:]...)
				break
			}
		}
	}

	tr := dynamo.NewTrajectory(n, names...)
	tr.Event = f.event
	times := dynamo.Linspace(w.Start, w.End, w.Samples)
	for i := 0; i < n && i < len(times); i++ {
		elapsed := times[i] - w.Start
		x := dynamo.State{x0[0] - o.AppliedCurrentA*elapsed/(3600*p.NominalCapacityAh), x0[1], x0[2]}

		current := o.AppliedCurrentA
		if f.nanCurrent {
			current = nan()
		}
		vals := map[string]float64{
			dynamo.VarCurrent:     current,
			dynamo.VarVoltage:     f.voltageAt(i),
			dynamo.VarTemperature: x0[2],
		}
		ordered := make([]float64, len(names))
		for j, name := range names {
			ordered[j] = vals[name]
		}
		tr.Append(times[i], x, names, ordered...)
	}
	return tr, nil
}

func (f *fakeSolver) realSolves() []solveCall {
	var out []solveCall
	for _, c := range f.calls {
		if c.window.Samples == 100 {
			out = append(out, c)
		}
	}
	return out
}
