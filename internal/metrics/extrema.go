package metrics

import (
	"math"

	"github.com/san-kum/batsim/internal/stepper"
)

type MinVoltage struct {
	name    string
	min     float64
	samples int
}

func NewMinVoltage() *MinVoltage {
	return &MinVoltage{name: "min_voltage", min: math.Inf(1)}
}

func (m *MinVoltage) Name() string { return m.name }

func (m *MinVoltage) Observe(r stepper.Report) {
	if math.IsNaN(r.AvgVoltageV) {
		return
	}
	m.min = math.Min(m.min, r.AvgVoltageV)
	m.samples++
}

// Value is zero before any window has been observed.
func (m *MinVoltage) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.min
}

func (m *MinVoltage) Reset() {
	m.min = math.Inf(1)
	m.samples = 0
}

type PeakTemperature struct {
	name    string
	peak    float64
	samples int
}

func NewPeakTemperature() *PeakTemperature {
	return &PeakTemperature{name: "peak_temperature", peak: math.Inf(-1)}
}

func (p *PeakTemperature) Name() string { return p.name }

// Observe skips windows without a temperature reading.
func (p *PeakTemperature) Observe(r stepper.Report) {
	if math.IsNaN(r.AvgTemperatureK) {
		return
	}
	p.peak = math.Max(p.peak, r.AvgTemperatureK)
	p.samples++
}

func (p *PeakTemperature) Value() float64 {
	if p.samples == 0 {
		return 0
	}
	return p.peak
}

func (p *PeakTemperature) Reset() {
	p.peak = math.Inf(-1)
	p.samples = 0
}
