// Package stepper advances a simulated cell one window at a time.
//
// Each call to [Driver.Step] re-solves the cell model over [t, t+dt) with
// the applied current held constant, starting from the final state of the
// previous window rather than from rest. It then coulomb-counts the
// window's mean current into the running state of charge. The model and
// its numerical solver sit behind [Solver]; the driver only orchestrates.
//
// # Example
//
//	solver, _ := cell.NewSolver(cell.DefaultSolverOptions())
//	d, _ := stepper.New(solver, cell.Default(), stepper.WithInitialSOC(0.9))
//	for t := 0.0; t < 3600; t++ {
//		v, soc, err := d.Step(t, 1, 5)
//		...
//	}
//
// # Thread Safety
//
// A Driver and its State are NOT safe for concurrent use. One stepping loop
// owns each Driver; run independent cells on independent Drivers.
package stepper
