package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// AdaptiveIntegrator proposes the next step size along with each step.
// A step whose error estimate exceeds tol returns ErrStepRejected, the
// unchanged input state and a smaller suggested dt.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x State, u Control, t, dt, tol float64) (State, float64, error)
}

// Well-known trajectory variables.
const (
	VarCurrent     = "current"
	VarVoltage     = "voltage"
	VarTemperature = "temperature"
	VarSOC         = "soc"
)

// Trajectory is the sampled solution of one window. Sample i is taken at
// Times[i] with internal state States[i]; every entry of Variables has the
// same length as Times.
type Trajectory struct {
	Times     []float64
	States    []State
	Variables map[string][]float64
	// Event names the termination condition that cut the window short, if any.
	Event string
}

func NewTrajectory(capacity int, variables ...string) *Trajectory {
	tr := &Trajectory{
		Times:     make([]float64, 0, capacity),
		States:    make([]State, 0, capacity),
		Variables: make(map[string][]float64, len(variables)),
	}
	for _, name := range variables {
		tr.Variables[name] = make([]float64, 0, capacity)
	}
	return tr
}

// Append records one sample. vals must follow the order of the variable
// names passed to NewTrajectory.
func (tr *Trajectory) Append(t float64, x State, names []string, vals ...float64) {
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, x.Clone())
	for i, name := range names {
		tr.Variables[name] = append(tr.Variables[name], vals[i])
	}
}

func (tr *Trajectory) Len() int {
	if tr == nil {
		return 0
	}
	return len(tr.Times)
}

func (tr *Trajectory) Series(name string) ([]float64, error) {
	s, ok := tr.Variables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	return s, nil
}

// Final returns a copy of the last sampled state.
func (tr *Trajectory) Final() (State, error) {
	if tr.Len() == 0 || len(tr.States) == 0 {
		return nil, ErrNoSamples
	}
	return tr.States[len(tr.States)-1].Clone(), nil
}

// Mean is the arithmetic mean of a variable over however many samples exist.
func (tr *Trajectory) Mean(name string) (float64, error) {
	s, err := tr.Series(name)
	if err != nil {
		return 0, err
	}
	if len(s) == 0 {
		return 0, ErrNoSamples
	}
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s)), nil
}

// Linspace returns n evenly spaced points over [start, end], inclusive.
func Linspace(start, end float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	pts := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range pts {
		pts[i] = start + float64(i)*step
	}
	pts[n-1] = end
	return pts
}

// Window is the half-open interval [Start, End) a solver is asked to cover,
// sampled at Samples evenly spaced points including both ends.
type Window struct {
	Start   float64
	End     float64
	Samples int
}

func (w Window) Duration() float64 {
	return w.End - w.Start
}
