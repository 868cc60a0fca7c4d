// Package cell is a lumped equivalent-circuit lithium-ion cell: an
// open-circuit voltage table, a series resistance with an electrolyte term
// scaled by conductivity and an Arrhenius temperature factor, one RC
// polarization pair, and a single thermal node.
//
// It is the stand-in solve capability for the window stepper. The state
// vector is [z, v1, T]: model state of charge, RC voltage and cell
// temperature in kelvin. Positive current discharges the cell.
package cell
