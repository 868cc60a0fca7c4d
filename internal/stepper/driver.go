package stepper

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/batsim/internal/cell"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/logging"
)

const (
	DefaultSamples        = 100
	DefaultPrimingSamples = 10
	DefaultInitialSOC     = 0.9
)

// Solver is the model-solve capability the driver orchestrates.
type Solver interface {
	// InitialState is the model's rest state at the given state of charge.
	InitialState(p cell.Parameters, soc float64) (dynamo.State, error)
	// Solve integrates from x0 over w. The trajectory may be shorter than
	// w.Samples when a cutoff ends the window early.
	Solve(p cell.Parameters, o cell.Overlay, x0 dynamo.State, w dynamo.Window) (*dynamo.Trajectory, error)
}

// Bootstrap selects how the first window gets its initial condition.
type Bootstrap int

const (
	// BootstrapCold seeds the first window from the model's rest state.
	BootstrapCold Bootstrap = iota
	// BootstrapPrime runs one coarse solve at the default current and seeds
	// the first window from its end state; its values are never reported.
	BootstrapPrime
)

func (b Bootstrap) String() string {
	switch b {
	case BootstrapPrime:
		return "prime"
	default:
		return "cold"
	}
}

func ParseBootstrap(s string) (Bootstrap, error) {
	switch strings.ToLower(s) {
	case "", "cold":
		return BootstrapCold, nil
	case "prime":
		return BootstrapPrime, nil
	default:
		return BootstrapCold, fmt.Errorf("unknown bootstrap mode: %s", s)
	}
}

// Report describes one solved window.
type Report struct {
	Time            float64
	Duration        float64
	AvgCurrentA     float64
	AvgVoltageV     float64
	// AvgTemperatureK is NaN when the solver reports no temperature series.
	AvgTemperatureK float64
	DischargedAh    float64
	SOC             float64
	Samples         int
	Event           string
}

type Option func(*Driver)

func WithInitialSOC(soc float64) Option {
	return func(d *Driver) { d.initialSOC = soc }
}

// WithSamples sets the sampling resolution of reported windows and of the
// priming solve.
func WithSamples(samples, priming int) Option {
	return func(d *Driver) {
		d.samples = samples
		d.primingSamples = priming
	}
}

func WithBootstrap(b Bootstrap) Option {
	return func(d *Driver) { d.bootstrap = b }
}

func WithLogger(l *logging.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// Driver advances one simulated cell window by window.
type Driver struct {
	solver         Solver
	state          *State
	initialSOC     float64
	samples        int
	primingSamples int
	bootstrap      Bootstrap
	logger         *logging.Logger
}

func New(solver Solver, params cell.Parameters, opts ...Option) (*Driver, error) {
	if solver == nil {
		return nil, errors.New("stepper: nil solver")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	d := &Driver{
		solver:         solver,
		initialSOC:     DefaultInitialSOC,
		samples:        DefaultSamples,
		primingSamples: DefaultPrimingSamples,
		bootstrap:      BootstrapCold,
		logger:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.samples < 1 || d.primingSamples < 1 {
		return nil, fmt.Errorf("stepper: sample counts must be positive (samples=%d, priming=%d)", d.samples, d.primingSamples)
	}
	if math.IsNaN(d.initialSOC) {
		return nil, errors.New("stepper: initial soc is NaN")
	}

	d.state = NewState(params, d.initialSOC)
	return d, nil
}

// State exposes the driver's state for reading.
func (d *Driver) State() *State {
	return d.state
}

// Step solves [t, t+dt) at the applied current and returns the window's mean
// terminal voltage and the updated state of charge.
func (d *Driver) Step(t, dt, current float64) (float64, float64, error) {
	r, err := d.StepReport(t, dt, current)
	if err != nil {
		return 0, 0, err
	}
	return r.AvgVoltageV, r.SOC, nil
}

// StepReport is Step with the full window summary.
func (d *Driver) StepReport(t, dt, current float64) (Report, error) {
	if err := d.validate(t, dt, current); err != nil {
		return Report{}, err
	}

	s := d.state
	fail := func(event string, err error) (Report, error) {
		return Report{}, &StepError{Time: t, Window: dt, Event: event, Err: err}
	}

	x0, err := d.seed(dt)
	if err != nil {
		var se *StepError
		if errors.As(err, &se) {
			return Report{}, err
		}
		return fail("", err)
	}

	overlay := cell.Overlay{AppliedCurrentA: current}
	tr, err := d.solver.Solve(s.params, overlay, x0, dynamo.Window{Start: t, End: t + dt, Samples: d.samples})
	if err != nil {
		return fail("", fmt.Errorf("%w: %w", ErrSolverDivergence, err))
	}
	if tr.Len() == 0 {
		return fail(tr.Event, ErrEmptyTrajectory)
	}

	avgI, err := tr.Mean(dynamo.VarCurrent)
	if err != nil {
		return fail(tr.Event, fmt.Errorf("%w: %w", ErrMalformedTrajectory, err))
	}
	avgV, err := tr.Mean(dynamo.VarVoltage)
	if err != nil {
		return fail(tr.Event, fmt.Errorf("%w: %w", ErrMalformedTrajectory, err))
	}
	if !finite(avgI) || !finite(avgV) {
		return fail(tr.Event, fmt.Errorf("%w: non-finite window average", ErrSolverDivergence))
	}
	avgT, err := tr.Mean(dynamo.VarTemperature)
	if err != nil {
		d.logger.Debug("no temperature series", "t", t)
		avgT = math.NaN()
	}

	dischargedAh := avgI * dt / 3600
	s.apply(update{
		simTime:    t + dt,
		overlay:    overlay,
		trajectory: tr,
		socDelta:   dischargedAh / s.params.NominalCapacityAh,
	})

	r := Report{
		Time:            t,
		Duration:        dt,
		AvgCurrentA:     avgI,
		AvgVoltageV:     avgV,
		AvgTemperatureK: avgT,
		DischargedAh:    dischargedAh,
		SOC:             s.soc,
		Samples:         tr.Len(),
		Event:           tr.Event,
	}

	d.logger.Debug("window solved",
		"t", t, "dt", dt, "current", avgI, "voltage", avgV,
		"soc", r.SOC, "samples", r.Samples, "event", r.Event)

	return r, nil
}

func (d *Driver) validate(t, dt, current float64) error {
	s := d.state
	if !finite(t) || !finite(dt) || dt <= 0 {
		return &StepError{Time: t, Window: dt, Err: fmt.Errorf("%w: need finite time and positive duration", ErrInvalidWindow)}
	}
	if t < s.simTime-1e-9*math.Max(1, math.Abs(s.simTime)) {
		return &StepError{Time: t, Window: dt, Err: fmt.Errorf("%w: window starts at %g before simulation time %g", ErrInvalidWindow, t, s.simTime)}
	}
	if !finite(current) {
		return &StepError{Time: t, Window: dt, Err: ErrInvalidCurrent}
	}
	return nil
}

// seed returns the initial condition for the next solve: the end of the
// previous window, or the bootstrap state on the very first call. Nothing is
// written to the State here.
func (d *Driver) seed(dt float64) (dynamo.State, error) {
	s := d.state
	if s.bootstrapped {
		return s.last.Final()
	}

	x, err := d.solver.InitialState(s.params, s.soc)
	if err != nil {
		return nil, err
	}
	if d.bootstrap == BootstrapCold {
		d.logger.Debug("bootstrap", "mode", d.bootstrap.String(), "soc", s.soc)
		return x, nil
	}

	w := dynamo.Window{Start: s.simTime, End: s.simTime + dt, Samples: d.primingSamples}
	tr, err := d.solver.Solve(s.params, s.overlay, x, w)
	if err != nil {
		return nil, &StepError{Time: w.Start, Window: dt, Err: fmt.Errorf("%w: priming solve: %w", ErrSolverDivergence, err)}
	}
	if tr.Len() == 0 {
		return nil, &StepError{Time: w.Start, Window: dt, Event: tr.Event, Err: fmt.Errorf("priming solve: %w", ErrEmptyTrajectory)}
	}

	d.logger.Debug("bootstrap", "mode", d.bootstrap.String(), "soc", s.soc, "samples", tr.Len())
	return tr.Final()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
