package cell

import "github.com/san-kum/batsim/internal/dynamo"

type Model struct {
	params  Parameters
	overlay Overlay
}

func NewModel(p Parameters, o Overlay) *Model {
	return &Model{params: p, overlay: o}
}

func (m *Model) StateDim() int {
	return 3
}

func (m *Model) ControlDim() int {
	return 1
}

// RestState is the relaxed cell at the given state of charge.
func (m *Model) RestState(soc float64) dynamo.State {
	return dynamo.State{soc, 0, m.params.AmbientTemperatureK}
}

func (m *Model) current(u dynamo.Control) float64 {
	if len(u) > 0 {
		return u[0]
	}
	return m.overlay.AppliedCurrentA
}

func (m *Model) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	p := m.params
	i := m.current(u)
	v1, temp := x[1], x[2]

	dz := -i / (3600 * p.NominalCapacityAh)

	dv1 := 0.0
	if p.PolarizationResistance > 0 {
		dv1 = i/p.PolarizationCapacitance - v1/(p.PolarizationResistance*p.PolarizationCapacitance)
	}

	heat := i*i*p.OhmicResistance(temp) + v1*i
	dT := (heat - p.HeatTransfer*(temp-p.AmbientTemperatureK)) / p.ThermalMass

	return dynamo.State{dz, dv1, dT}
}

// Voltage is the terminal voltage at state x under the overlay current.
func (m *Model) Voltage(x dynamo.State) float64 {
	i := m.overlay.AppliedCurrentA
	return m.params.OpenCircuitVoltage(x[0]) - x[1] - i*m.params.OhmicResistance(x[2])
}
