package cell

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidParameters = errors.New("cell: invalid parameters")

type OCVPoint struct {
	SOC     float64 `yaml:"soc" json:"soc"`
	Voltage float64 `yaml:"voltage" json:"voltage"`
}

// Parameters is the fixed chemistry and cell configuration. It is never
// mutated while stepping; the applied current lives in Overlay.
type Parameters struct {
	NominalCapacityAh       float64    `yaml:"nominal_capacity_ah" json:"nominal_capacity_ah"`
	LowerCutoffV            float64    `yaml:"lower_cutoff_v" json:"lower_cutoff_v"`
	UpperCutoffV            float64    `yaml:"upper_cutoff_v" json:"upper_cutoff_v"`
	AmbientTemperatureK     float64    `yaml:"ambient_temperature_k" json:"ambient_temperature_k"`
	ElectrolyteConductivity float64    `yaml:"electrolyte_conductivity" json:"electrolyte_conductivity"`
	DefaultCurrentA         float64    `yaml:"default_current_a" json:"default_current_a"`
	SeriesResistance        float64    `yaml:"series_resistance" json:"series_resistance"`
	ElectrolyteResistance   float64    `yaml:"electrolyte_resistance" json:"electrolyte_resistance"`
	ReferenceConductivity   float64    `yaml:"reference_conductivity" json:"reference_conductivity"`
	PolarizationResistance  float64    `yaml:"polarization_resistance" json:"polarization_resistance"`
	PolarizationCapacitance float64    `yaml:"polarization_capacitance" json:"polarization_capacitance"`
	ThermalMass             float64    `yaml:"thermal_mass" json:"thermal_mass"`
	HeatTransfer            float64    `yaml:"heat_transfer" json:"heat_transfer"`
	ActivationTemperature   float64    `yaml:"activation_temperature" json:"activation_temperature"`
	ReferenceTemperatureK   float64    `yaml:"reference_temperature_k" json:"reference_temperature_k"`
	OCV                     []OCVPoint `yaml:"ocv" json:"ocv"`
}

// Overlay carries the per-window inputs layered on top of Parameters.
type Overlay struct {
	AppliedCurrentA float64 `json:"applied_current_a"`
}

// DefaultOCV is an NMC811/graphite-like open-circuit curve.
func DefaultOCV() []OCVPoint {
	return []OCVPoint{
		{0.00, 2.80}, {0.05, 3.30}, {0.10, 3.45}, {0.20, 3.56},
		{0.30, 3.63}, {0.40, 3.68}, {0.50, 3.74}, {0.60, 3.83},
		{0.70, 3.92}, {0.80, 4.00}, {0.90, 4.08}, {1.00, 4.19},
	}
}

// Default is a 5 Ah cylindrical cell at 25 C with the cutoff band widened
// to [3.0, 5.2] V and a low electrolyte conductivity of 0.07 S/m.
func Default() Parameters {
	return Parameters{
		NominalCapacityAh:       5.0,
		LowerCutoffV:            3.0,
		UpperCutoffV:            5.2,
		AmbientTemperatureK:     298.15,
		ElectrolyteConductivity: 0.07,
		DefaultCurrentA:         5.0,
		SeriesResistance:        0.02,
		ElectrolyteResistance:   0.001,
		ReferenceConductivity:   1.0,
		PolarizationResistance:  0.015,
		PolarizationCapacitance: 2000,
		ThermalMass:             70,
		HeatTransfer:            0.1,
		ActivationTemperature:   2000,
		ReferenceTemperatureK:   298.15,
		OCV:                     DefaultOCV(),
	}
}

func (p Parameters) Validate() error {
	check := func(ok bool, format string, args ...any) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInvalidParameters, fmt.Sprintf(format, args...))
	}

	for _, err := range []error{
		check(p.NominalCapacityAh > 0, "nominal capacity must be positive, got %g", p.NominalCapacityAh),
		check(p.LowerCutoffV < p.UpperCutoffV, "lower cutoff %g must be below upper cutoff %g", p.LowerCutoffV, p.UpperCutoffV),
		check(p.AmbientTemperatureK > 0, "ambient temperature must be positive kelvin, got %g", p.AmbientTemperatureK),
		check(p.ReferenceTemperatureK > 0, "reference temperature must be positive kelvin, got %g", p.ReferenceTemperatureK),
		check(p.ElectrolyteConductivity > 0, "electrolyte conductivity must be positive, got %g", p.ElectrolyteConductivity),
		check(p.ReferenceConductivity > 0, "reference conductivity must be positive, got %g", p.ReferenceConductivity),
		check(p.SeriesResistance >= 0 && p.ElectrolyteResistance >= 0, "resistances must be non-negative"),
		check(p.PolarizationResistance >= 0, "polarization resistance must be non-negative, got %g", p.PolarizationResistance),
		check(p.PolarizationCapacitance > 0, "polarization capacitance must be positive, got %g", p.PolarizationCapacitance),
		check(p.ThermalMass > 0, "thermal mass must be positive, got %g", p.ThermalMass),
		check(p.HeatTransfer >= 0, "heat transfer must be non-negative, got %g", p.HeatTransfer),
		check(!math.IsNaN(p.DefaultCurrentA) && !math.IsInf(p.DefaultCurrentA, 0), "default current must be finite"),
		check(len(p.OCV) >= 2, "ocv table needs at least two points, got %d", len(p.OCV)),
	} {
		if err != nil {
			return err
		}
	}

	for i := 1; i < len(p.OCV); i++ {
		if p.OCV[i].SOC <= p.OCV[i-1].SOC {
			return fmt.Errorf("%w: ocv table soc must be strictly increasing at index %d", ErrInvalidParameters, i)
		}
	}
	return nil
}

// OpenCircuitVoltage interpolates the open-circuit voltage table, holding the end values
// outside the tabulated range.
func (p Parameters) OpenCircuitVoltage(z float64) float64 {
	tbl := p.OCV
	if len(tbl) == 0 {
		return 0
	}
	if z <= tbl[0].SOC {
		return tbl[0].Voltage
	}
	last := tbl[len(tbl)-1]
	if z >= last.SOC {
		return last.Voltage
	}
	for i := 1; i < len(tbl); i++ {
		if z <= tbl[i].SOC {
			lo, hi := tbl[i-1], tbl[i]
			frac := (z - lo.SOC) / (hi.SOC - lo.SOC)
			return lo.Voltage + frac*(hi.Voltage-lo.Voltage)
		}
	}
	return last.Voltage
}

// OhmicResistance is the series resistance at temperature T.
func (p Parameters) OhmicResistance(T float64) float64 {
	r := p.SeriesResistance + p.ElectrolyteResistance*p.ReferenceConductivity/p.ElectrolyteConductivity
	if p.ActivationTemperature == 0 || T <= 0 {
		return r
	}
	return r * math.Exp(p.ActivationTemperature*(1/T-1/p.ReferenceTemperatureK))
}

// GetParams exposes the scalar parameters by name, for reporting.
func (p Parameters) GetParams() map[string]float64 {
	return map[string]float64{
		"nominal_capacity_ah":      p.NominalCapacityAh,
		"lower_cutoff_v":           p.LowerCutoffV,
		"upper_cutoff_v":           p.UpperCutoffV,
		"ambient_temperature_k":    p.AmbientTemperatureK,
		"electrolyte_conductivity": p.ElectrolyteConductivity,
		"default_current_a":        p.DefaultCurrentA,
	}
}

// Clone returns a deep copy; the OCV table is not shared.
func (p Parameters) Clone() Parameters {
	c := p
	c.OCV = append([]OCVPoint(nil), p.OCV...)
	return c
}
