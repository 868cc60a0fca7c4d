package metrics

import "github.com/san-kum/batsim/internal/stepper"

// Metric accumulates a scalar over the windows of one run.
type Metric interface {
	Name() string
	Observe(r stepper.Report)
	Value() float64
	Reset()
}

// Defaults is the metric set every experiment collects.
func Defaults() []Metric {
	return []Metric{
		NewEnergy(),
		NewThroughput(),
		NewMeanCurrent(),
		NewMinVoltage(),
		NewPeakTemperature(),
	}
}

func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
