package experiment

import "math"

// Profile gives the applied current for a window starting at t.
// Positive current discharges the cell.
type Profile interface {
	Current(t float64) float64
}

type Constant struct {
	I float64
}

func (c Constant) Current(float64) float64 { return c.I }

// Pulse applies On for the first Duty fraction of every Period and Off for
// the rest.
type Pulse struct {
	On     float64
	Off    float64
	Period float64
	Duty   float64
}

func (p Pulse) Current(t float64) float64 {
	phase := math.Mod(t, p.Period)
	if phase < 0 {
		phase += p.Period
	}
	if phase < p.Duty*p.Period {
		return p.On
	}
	return p.Off
}

type Segment struct {
	Until   float64
	Current float64
}

// Steps is a piecewise-constant schedule. Segments are ordered by Until;
// past the last one the final segment's current is held.
type Steps struct {
	Segments []Segment
}

func (s Steps) Current(t float64) float64 {
	for _, seg := range s.Segments {
		if t < seg.Until {
			return seg.Current
		}
	}
	if len(s.Segments) == 0 {
		return 0
	}
	return s.Segments[len(s.Segments)-1].Current
}
