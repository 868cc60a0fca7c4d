package metrics

import (
	"math"

	"github.com/san-kum/batsim/internal/stepper"
)

// Energy is the delivered energy in Wh, positive on discharge.
type Energy struct {
	name  string
	total float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy_wh"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(r stepper.Report) {
	e.total += r.AvgVoltageV * r.AvgCurrentA * r.Duration / 3600
}

func (e *Energy) Value() float64 { return e.total }

func (e *Energy) Reset() { e.total = 0 }

// Throughput is the charge moved through the cell in Ah regardless of
// direction.
type Throughput struct {
	name  string
	total float64
}

func NewThroughput() *Throughput {
	return &Throughput{name: "throughput_ah"}
}

func (t *Throughput) Name() string { return t.name }

func (t *Throughput) Observe(r stepper.Report) {
	t.total += math.Abs(r.DischargedAh)
}

func (t *Throughput) Value() float64 { return t.total }

func (t *Throughput) Reset() { t.total = 0 }
