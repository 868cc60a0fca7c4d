package cell

import (
	"errors"
	"fmt"

	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/integrators"
)

// Termination events recorded on a trajectory cut short by the cutoff band.
const (
	EventLowerCutoff = "lower voltage cut-off"
	EventUpperCutoff = "upper voltage cut-off"
)

var ErrInvalidWindow = errors.New("cell: invalid solve window")

var variables = []string{dynamo.VarCurrent, dynamo.VarVoltage, dynamo.VarTemperature, dynamo.VarSOC}

type SolverOptions struct {
	Integrator string  `yaml:"integrator" json:"integrator"`
	RelTol     float64 `yaml:"rtol" json:"rtol"`
	AbsTol     float64 `yaml:"atol" json:"atol"`
	MinDt      float64 `yaml:"min_dt" json:"min_dt"`
	MaxDt      float64 `yaml:"max_dt" json:"max_dt"`
	MaxSteps   int     `yaml:"max_steps" json:"max_steps"`
}

func DefaultSolverOptions() SolverOptions {
	return SolverOptions{
		Integrator: "rk45",
		RelTol:     1e-6,
		AbsTol:     1e-8,
		MinDt:      1e-9,
		MaxDt:      1.0,
		MaxSteps:   100000,
	}
}

func (o SolverOptions) Validate() error {
	if _, err := integrators.New(o.Integrator); err != nil {
		return err
	}
	if o.RelTol <= 0 || o.AbsTol < 0 {
		return fmt.Errorf("solver tolerances must be positive (rtol=%g, atol=%g)", o.RelTol, o.AbsTol)
	}
	if o.MaxDt <= 0 || o.MinDt < 0 || o.MinDt >= o.MaxDt {
		return fmt.Errorf("solver step bounds invalid (min_dt=%g, max_dt=%g)", o.MinDt, o.MaxDt)
	}
	if o.MaxSteps <= 0 {
		return fmt.Errorf("solver max_steps must be positive, got %d", o.MaxSteps)
	}
	return nil
}

// Solver integrates the cell model over a window. A fresh model and
// integrator are built for every call; nothing carries over between solves
// except what the caller passes in as the initial state.
type Solver struct {
	opts SolverOptions
}

func NewSolver(opts SolverOptions) (*Solver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Solver{opts: opts}, nil
}

func (s *Solver) InitialState(p Parameters, soc float64) (dynamo.State, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return NewModel(p, Overlay{}).RestState(soc), nil
}

// Solve samples the window at w.Samples points. It stops before the first
// sample whose terminal voltage leaves [LowerCutoffV, UpperCutoffV] and
// names the cutoff in Trajectory.Event, so the result may be shorter than
// requested or even empty.
func (s *Solver) Solve(p Parameters, o Overlay, x0 dynamo.State, w dynamo.Window) (*dynamo.Trajectory, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if w.Samples < 1 || !(w.End > w.Start) {
		return nil, fmt.Errorf("%w: [%g, %g) with %d samples", ErrInvalidWindow, w.Start, w.End, w.Samples)
	}

	model := NewModel(p, o)
	if len(x0) != model.StateDim() {
		return nil, dynamo.ErrDimensionMismatch
	}
	if !x0.IsValid() {
		return nil, dynamo.ErrInvalidState
	}

	integ, err := integrators.New(s.opts.Integrator)
	if err != nil {
		return nil, err
	}
	if rk, ok := integ.(*integrators.RK45); ok {
		rk.AbsTol = s.opts.AbsTol
	}

	times := dynamo.Linspace(w.Start, w.End, w.Samples)
	u := dynamo.Control{o.AppliedCurrentA}

	iopts := integrators.Options{
		Tolerance: s.opts.RelTol,
		InitialDt: w.Duration() / float64(w.Samples),
		MinDt:     s.opts.MinDt,
		MaxDt:     s.opts.MaxDt,
		MaxSteps:  s.opts.MaxSteps,
	}

	tr := dynamo.NewTrajectory(len(times), variables...)
	x := x0.Clone()

	for i, ts := range times {
		if i > 0 {
			next, dtNext, err := integrators.Integrate(model, integ, x, u, times[i-1], ts, iopts)
			if err != nil {
				return nil, fmt.Errorf("cell: integrating to t=%.6f: %w", ts, err)
			}
			x = next
			iopts.InitialDt = dtNext
		}

		v := model.Voltage(x)
		if v < p.LowerCutoffV {
			tr.Event = EventLowerCutoff
			break
		}
		if v > p.UpperCutoffV {
			tr.Event = EventUpperCutoff
			break
		}

		tr.Append(ts, x, variables, o.AppliedCurrentA, v, x[2], x[0])
	}

	return tr, nil
}
