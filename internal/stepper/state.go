package stepper

import (
	"math"

	"github.com/san-kum/batsim/internal/cell"
	"github.com/san-kum/batsim/internal/dynamo"
)

// State is the data that persists between windows of one simulated cell.
// Only the Driver mutates it, through apply.
type State struct {
	simTime      float64
	soc          float64
	params       cell.Parameters
	overlay      cell.Overlay
	last         *dynamo.Trajectory
	bootstrapped bool
}

// NewState creates the state for a fresh run at time zero. The initial SOC
// is clamped to [0, 1]; the overlay starts at the default current.
func NewState(params cell.Parameters, initialSOC float64) *State {
	return &State{
		soc:     clampSOC(initialSOC),
		params:  params.Clone(),
		overlay: cell.Overlay{AppliedCurrentA: params.DefaultCurrentA},
	}
}

// SimTime is the end of the last solved window, in seconds.
func (s *State) SimTime() float64 { return s.simTime }

func (s *State) SOC() float64 { return s.soc }

func (s *State) Parameters() cell.Parameters { return s.params.Clone() }

func (s *State) Overlay() cell.Overlay { return s.overlay }

// LastTrajectory is the most recent solved window, nil before the first step.
// Callers must treat it as read-only.
func (s *State) LastTrajectory() *dynamo.Trajectory { return s.last }

func (s *State) Bootstrapped() bool { return s.bootstrapped }

type update struct {
	simTime    float64
	overlay    cell.Overlay
	trajectory *dynamo.Trajectory
	// socDelta is subtracted from the SOC before clamping.
	socDelta float64
}

func (s *State) apply(u update) {
	s.simTime = u.simTime
	s.overlay = u.overlay
	s.last = u.trajectory
	s.soc = clampSOC(s.soc - u.socDelta)
	s.bootstrapped = true
}

func clampSOC(soc float64) float64 {
	if math.IsNaN(soc) {
		return 0
	}
	return math.Max(0, math.Min(1, soc))
}
