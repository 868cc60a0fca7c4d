package cell

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/batsim/internal/dynamo"
)

func newTestSolver(t *testing.T) *Solver {
	t.Helper()
	s, err := NewSolver(DefaultSolverOptions())
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	return s
}

func TestSolverOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SolverOptions)
	}{
		{"unknown integrator", func(o *SolverOptions) { o.Integrator = "leapfrog" }},
		{"zero rtol", func(o *SolverOptions) { o.RelTol = 0 }},
		{"inverted bounds", func(o *SolverOptions) { o.MinDt = 2; o.MaxDt = 1 }},
		{"no steps", func(o *SolverOptions) { o.MaxSteps = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultSolverOptions()
			tt.mutate(&opts)
			if _, err := NewSolver(opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSolveFullWindow(t *testing.T) {
	s := newTestSolver(t)
	p := Default()

	x0, err := s.InitialState(p, 0.9)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}

	tr, err := s.Solve(p, Overlay{AppliedCurrentA: 5}, x0, dynamo.Window{Start: 10, End: 11, Samples: 100})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if tr.Len() != 100 {
		t.Fatalf("expected 100 samples, got %d", tr.Len())
	}
	if tr.Event != "" {
		t.Errorf("unexpected event %q", tr.Event)
	}
	if tr.Times[0] != 10 || tr.Times[99] != 11 {
		t.Errorf("sample times should span the window, got [%g, %g]", tr.Times[0], tr.Times[99])
	}

	current, _ := tr.Series(dynamo.VarCurrent)
	for _, c := range current {
		if c != 5 {
			t.Fatalf("current series should hold the applied current, got %g", c)
		}
	}

	final, err := tr.Final()
	if err != nil {
		t.Fatalf("Final: %v", err)
	}
	wantZ := 0.9 - 5.0/3600/p.NominalCapacityAh
	if math.Abs(final[0]-wantZ) > 1e-9 {
		t.Errorf("final z = %.10f, want %.10f", final[0], wantZ)
	}

	voltage, _ := tr.Series(dynamo.VarVoltage)
	if voltage[99] >= voltage[0] {
		t.Errorf("voltage should sag over a loaded window: %g -> %g", voltage[0], voltage[99])
	}
}

func TestSolveFixedStepIntegrators(t *testing.T) {
	for _, name := range []string{"rk4", "euler"} {
		t.Run(name, func(t *testing.T) {
			opts := DefaultSolverOptions()
			opts.Integrator = name
			opts.MaxDt = 0.01
			s, err := NewSolver(opts)
			if err != nil {
				t.Fatalf("NewSolver: %v", err)
			}
			p := Default()
			x0, _ := s.InitialState(p, 0.5)
			tr, err := s.Solve(p, Overlay{AppliedCurrentA: 2}, x0, dynamo.Window{Start: 0, End: 1, Samples: 10})
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}
			if tr.Len() != 10 {
				t.Errorf("expected 10 samples, got %d", tr.Len())
			}
		})
	}
}

func TestSolveTruncatesAtLowerCutoff(t *testing.T) {
	s := newTestSolver(t)
	p := Default()

	// 10 A from z=0.2 starts in band and crosses 3.0 V near z=0.13.
	x0, _ := s.InitialState(p, 0.2)
	tr, err := s.Solve(p, Overlay{AppliedCurrentA: 10}, x0, dynamo.Window{Start: 0, End: 600, Samples: 100})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if tr.Event != EventLowerCutoff {
		t.Fatalf("expected lower cutoff event, got %q", tr.Event)
	}
	if tr.Len() == 0 || tr.Len() >= 100 {
		t.Fatalf("expected a truncated, non-empty trajectory, got %d samples", tr.Len())
	}

	voltage, _ := tr.Series(dynamo.VarVoltage)
	for _, v := range voltage {
		if v < p.LowerCutoffV || v > p.UpperCutoffV {
			t.Fatalf("sample %g outside cutoff band", v)
		}
	}
}

func TestSolveEmptyWhenStartOutOfBand(t *testing.T) {
	s := newTestSolver(t)
	p := Default()

	x0, _ := s.InitialState(p, 0.01)
	tr, err := s.Solve(p, Overlay{AppliedCurrentA: 5}, x0, dynamo.Window{Start: 0, End: 1, Samples: 100})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if tr.Len() != 0 {
		t.Errorf("expected empty trajectory, got %d samples", tr.Len())
	}
	if tr.Event != EventLowerCutoff {
		t.Errorf("expected lower cutoff event, got %q", tr.Event)
	}
}

func TestSolveUpperCutoff(t *testing.T) {
	s := newTestSolver(t)
	p := Default()
	p.UpperCutoffV = 4.2

	x0, _ := s.InitialState(p, 0.99)
	tr, err := s.Solve(p, Overlay{AppliedCurrentA: -5}, x0, dynamo.Window{Start: 0, End: 1, Samples: 10})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if tr.Event != EventUpperCutoff {
		t.Errorf("expected upper cutoff event, got %q", tr.Event)
	}
}

func TestSolveRejectsBadInput(t *testing.T) {
	s := newTestSolver(t)
	p := Default()
	x0, _ := s.InitialState(p, 0.5)
	o := Overlay{AppliedCurrentA: 1}

	if _, err := s.Solve(p, o, x0, dynamo.Window{Start: 1, End: 1, Samples: 10}); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow for empty window, got %v", err)
	}
	if _, err := s.Solve(p, o, x0, dynamo.Window{Start: 0, End: 1, Samples: 0}); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow for zero samples, got %v", err)
	}
	if _, err := s.Solve(p, o, dynamo.State{0.5}, dynamo.Window{Start: 0, End: 1, Samples: 10}); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := s.Solve(p, o, dynamo.State{math.NaN(), 0, 298}, dynamo.Window{Start: 0, End: 1, Samples: 10}); !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}

	bad := p
	bad.NominalCapacityAh = 0
	if _, err := s.Solve(bad, o, x0, dynamo.Window{Start: 0, End: 1, Samples: 10}); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestSolveDivergenceSurfaces(t *testing.T) {
	opts := DefaultSolverOptions()
	opts.MaxSteps = 1
	opts.MaxDt = 1e-4
	s, err := NewSolver(opts)
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}

	p := Default()
	x0, _ := s.InitialState(p, 0.5)
	_, err = s.Solve(p, Overlay{AppliedCurrentA: 1}, x0, dynamo.Window{Start: 0, End: 1, Samples: 2})
	if !errors.Is(err, dynamo.ErrMaxSteps) {
		t.Errorf("expected ErrMaxSteps, got %v", err)
	}
}
