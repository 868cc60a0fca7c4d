package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/batsim/internal/cell"
	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/logging"
	"github.com/san-kum/batsim/internal/metrics"
	"github.com/san-kum/batsim/internal/stepper"
)

// ErrFinished is returned by Next once the run has terminated.
var ErrFinished = errors.New("experiment: run finished")

// Termination says why a run stopped.
type Termination string

const (
	Completed Termination = "completed"
	Cutoff    Termination = "cutoff"
	// Depleted means a window started outside the voltage band, so the
	// solve had nothing to report.
	Depleted  Termination = "depleted"
	Cancelled Termination = "cancelled"
	Failed    Termination = "failed"
)

type Observer interface {
	OnWindow(r stepper.Report)
}

type ObserverFunc func(r stepper.Report)

func (f ObserverFunc) OnWindow(r stepper.Report) { f(r) }

type Result struct {
	Name        string
	Records     []stepper.Report
	Metrics     map[string]float64
	Termination Termination
	FinalSOC    float64
	SimTime     float64
}

type Option func(*Experiment)

func WithLogger(l *logging.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithObserver(o Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, o) }
}

// WithMetrics adds metrics on top of metrics.Defaults.
func WithMetrics(ms ...metrics.Metric) Option {
	return func(e *Experiment) { e.metrics = append(e.metrics, ms...) }
}

// WithSolver replaces the cell solver built from the config.
func WithSolver(s stepper.Solver) Option {
	return func(e *Experiment) { e.solver = s }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// Experiment runs one cell through a current profile window by window.
// It is not safe for concurrent use.
type Experiment struct {
	cfg       *config.Config
	solver    stepper.Solver
	registry  *Registry
	driver    *stepper.Driver
	profile   Profile
	metrics   []metrics.Metric
	observers []Observer
	logger    *logging.Logger

	windows int
	window  int
	records []stepper.Report
	reason  Termination
}

func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:     cfg,
		metrics: metrics.Defaults(),
		logger:  logging.Nop(),
		windows: cfg.Windows(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("run", cfg.Name)

	if e.registry == nil {
		e.registry = NewRegistry()
	}
	profile, err := e.registry.Build(cfg.Profile)
	if err != nil {
		return nil, err
	}
	e.profile = profile

	if e.solver == nil {
		solver, err := cell.NewSolver(cfg.Solver)
		if err != nil {
			return nil, err
		}
		e.solver = solver
	}

	dopts, err := cfg.DriverOptions()
	if err != nil {
		return nil, err
	}
	dopts = append(dopts, stepper.WithLogger(e.logger))

	driver, err := stepper.New(e.solver, cfg.Cell, dopts...)
	if err != nil {
		return nil, err
	}
	e.driver = driver
	e.records = make([]stepper.Report, 0, min(e.windows, 4096))

	for _, m := range e.metrics {
		m.Reset()
	}
	return e, nil
}

func (e *Experiment) Driver() *stepper.Driver { return e.driver }

func (e *Experiment) Windows() int { return e.windows }

// Window is the index of the next window to run.
func (e *Experiment) Window() int { return e.window }

func (e *Experiment) Done() bool { return e.reason != "" }

// Next runs the next window. A step error ends the run: it is classified
// and returned, and later calls return ErrFinished.
func (e *Experiment) Next() (stepper.Report, error) {
	if e.reason != "" {
		return stepper.Report{}, ErrFinished
	}
	if e.window >= e.windows {
		e.finish(Completed)
		return stepper.Report{}, ErrFinished
	}

	t := e.cfg.Run.StartTime + float64(e.window)*e.cfg.Run.Dt
	current := e.profile.Current(t)

	r, err := e.driver.StepReport(t, e.cfg.Run.Dt, current)
	if err != nil {
		if errors.Is(err, stepper.ErrEmptyTrajectory) {
			e.finish(Depleted)
		} else {
			e.finish(Failed)
		}
		return r, err
	}

	e.window++
	e.records = append(e.records, r)
	for _, m := range e.metrics {
		m.Observe(r)
	}
	for _, o := range e.observers {
		o.OnWindow(r)
	}

	switch {
	case r.Event != "" && e.cfg.Run.StopOnCutoff:
		e.finish(Cutoff)
	case e.window >= e.windows:
		e.finish(Completed)
	}
	return r, nil
}

// Run steps until the window count is reached, a cutoff stops the run, a
// window comes back empty, or ctx is done. Only Failed runs and
// cancellation return an error; the partial result is returned either way.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	for !e.Done() {
		select {
		case <-ctx.Done():
			e.finish(Cancelled)
			return e.Result(), ctx.Err()
		default:
		}

		if _, err := e.Next(); err != nil {
			if e.reason == Depleted {
				break
			}
			return e.Result(), fmt.Errorf("%s: %w", e.cfg.Name, err)
		}
	}
	return e.Result(), nil
}

func (e *Experiment) Result() *Result {
	st := e.driver.State()
	return &Result{
		Name:        e.cfg.Name,
		Records:     e.records,
		Metrics:     metrics.Collect(e.metrics),
		Termination: e.reason,
		FinalSOC:    st.SOC(),
		SimTime:     st.SimTime(),
	}
}

func (e *Experiment) finish(reason Termination) {
	if e.reason != "" {
		return
	}
	e.reason = reason
	e.logger.Info("run finished",
		"reason", string(reason),
		"windows", e.window,
		"soc", e.driver.State().SOC(),
		"sim_time", e.driver.State().SimTime(),
	)
}
