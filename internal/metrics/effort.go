package metrics

import (
	"math"

	"github.com/san-kum/batsim/internal/stepper"
)

// MeanCurrent is the time-weighted mean of |I| over the run.
type MeanCurrent struct {
	name     string
	sum      float64
	duration float64
}

func NewMeanCurrent() *MeanCurrent {
	return &MeanCurrent{
		name: "mean_abs_current",
	}
}

func (c *MeanCurrent) Name() string {
	return c.name
}

func (c *MeanCurrent) Observe(r stepper.Report) {
	c.sum += math.Abs(r.AvgCurrentA) * r.Duration
	c.duration += r.Duration
}

func (c *MeanCurrent) Value() float64 {
	if c.duration == 0 {
		return 0
	}
	return c.sum / c.duration
}

func (c *MeanCurrent) Reset() {
	c.sum = 0
	c.duration = 0
}
