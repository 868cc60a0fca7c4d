// Package dynamo provides the numeric primitives shared by the cell model,
// the integrators and the window stepper.
//
//   - [State]: vector representing the internal model state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical integrator interface
//   - [Trajectory]: a solved time series over one window, with named
//     variables and the final state used to seed the next window
//
// # Example
//
//	model := cell.NewModel(params, cell.Overlay{AppliedCurrentA: 5})
//	integ := integrators.NewRK45()
//	x, err := integrators.Integrate(model, integ, x0, u, 0, 1, opts)
//
// # Thread Safety
//
// Trajectories are immutable once returned by a solver. Integrators keep
// scratch buffers and must not be shared between goroutines.
package dynamo
