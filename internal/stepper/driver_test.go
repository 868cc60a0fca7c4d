package stepper_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/batsim/internal/cell"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/stepper"
)

func nan() float64 { return math.NaN() }

type snapshot struct {
	simTime      float64
	soc          float64
	overlay      cell.Overlay
	last         *dynamo.Trajectory
	bootstrapped bool
}

func snap(s *stepper.State) snapshot {
	return snapshot{s.SimTime(), s.SOC(), s.Overlay(), s.LastTrajectory(), s.Bootstrapped()}
}

var _ = Describe("Driver", func() {
	var (
		solver *fakeSolver
		params cell.Parameters
		driver *stepper.Driver
	)

	newDriver := func(opts ...stepper.Option) *stepper.Driver {
		d, err := stepper.New(solver, params, opts...)
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	BeforeEach(func() {
		solver = newFakeSolver()
		params = cell.Default()
		driver = newDriver()
	})

	Describe("construction", func() {
		It("rejects a nil solver", func() {
			_, err := stepper.New(nil, params)
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid parameters", func() {
			params.NominalCapacityAh = 0
			_, err := stepper.New(solver, params)
			Expect(err).To(MatchError(cell.ErrInvalidParameters))
		})

		It("rejects non-positive sample counts", func() {
			_, err := stepper.New(solver, params, stepper.WithSamples(0, 10))
			Expect(err).To(HaveOccurred())
		})

		It("starts uninitialized with a clamped SOC", func() {
			d := newDriver(stepper.WithInitialSOC(1.4))
			Expect(d.State().SOC()).To(Equal(1.0))
			Expect(d.State().Bootstrapped()).To(BeFalse())
			Expect(d.State().LastTrajectory()).To(BeNil())
			Expect(d.State().SimTime()).To(Equal(0.0))
			Expect(solver.calls).To(BeEmpty())
		})
	})

	Describe("stepping", func() {
		It("reports the mean voltage and the coulomb-counted SOC", func() {
			v, soc, err := driver.Step(0, 1, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeNumerically("~", 3.7, 1e-12))
			Expect(soc).To(BeNumerically("~", 0.9-5.0/3600/5.0, 1e-12))
		})

		It("advances simulation time to the end of every window", func() {
			for _, w := range []struct{ t, dt float64 }{{0, 1}, {1, 2.5}, {10, 0.5}, {10.5, 60}} {
				_, _, err := driver.Step(w.t, w.dt, 5)
				Expect(err).NotTo(HaveOccurred())
				Expect(driver.State().SimTime()).To(Equal(w.t + w.dt))
			}
		})

		It("solves the requested window at full resolution with the caller's current", func() {
			_, _, err := driver.Step(0, 1, 2.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(solver.calls).To(HaveLen(1))
			call := solver.calls[0]
			Expect(call.window).To(Equal(dynamo.Window{Start: 0, End: 1, Samples: 100}))
			Expect(call.overlay.AppliedCurrentA).To(Equal(2.5))
			Expect(driver.State().Overlay().AppliedCurrentA).To(Equal(2.5))
		})

		It("carries the final state of each window into the next", func() {
			_, _, err := driver.Step(0, 1, 5)
			Expect(err).NotTo(HaveOccurred())
			final, err := driver.State().LastTrajectory().Final()
			Expect(err).NotTo(HaveOccurred())

			_, _, err = driver.Step(1, 1, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(solver.calls[1].seed).To(Equal(final))
		})

		It("never changes the chemistry parameters", func() {
			for i := 0; i < 5; i++ {
				_, _, err := driver.Step(float64(i), 1, float64(i+1))
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(driver.State().Parameters()).To(Equal(cell.Default()))
		})

		It("keeps SOC non-increasing under discharge", func() {
			prev := driver.State().SOC()
			currents := []float64{0.1, 5, 20, 0.5, 12, 3}
			for i, c := range currents {
				_, soc, err := driver.Step(float64(i)*30, 30, c)
				Expect(err).NotTo(HaveOccurred())
				Expect(soc).To(BeNumerically("<=", prev))
				prev = soc
			}
		})

		It("matches coulomb counting over equal windows", func() {
			const n, dt, current = 40, 2.0, 4.0
			for i := 0; i < n; i++ {
				_, _, err := driver.Step(float64(i)*dt, dt, current)
				Expect(err).NotTo(HaveOccurred())
			}
			want := current * n * dt / 3600 / params.NominalCapacityAh
			Expect(0.9 - driver.State().SOC()).To(BeNumerically("~", want, 1e-12))
		})

		It("clamps SOC at zero on deep discharge", func() {
			_, soc, err := driver.Step(0, 3600, 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(soc).To(Equal(0.0))
		})

		It("clamps SOC at one when charging past full", func() {
			_, soc, err := driver.Step(0, 3600, -50)
			Expect(err).NotTo(HaveOccurred())
			Expect(soc).To(Equal(1.0))
		})

		It("averages over however many samples a truncated window has", func() {
			solver.samples = 3
			solver.event = cell.EventLowerCutoff
			solver.voltageAt = func(i int) float64 { return []float64{3.6, 3.7, 3.8}[i] }

			r, err := driver.StepReport(0, 1, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Samples).To(Equal(3))
			Expect(r.AvgVoltageV).To(BeNumerically("~", 3.7, 1e-12))
			Expect(r.Event).To(Equal(cell.EventLowerCutoff))
			Expect(r.DischargedAh).To(BeNumerically("~", 5.0/3600, 1e-15))
		})

		It("accepts back-to-back windows with float rounding at the boundary", func() {
			t := 0.0
			for i := 0; i < 10; i++ {
				_, _, err := driver.Step(t, 0.1, 1)
				Expect(err).NotTo(HaveOccurred())
				t += 0.1
			}
		})
	})

	Describe("bootstrap", func() {
		It("seeds the first window from the rest state exactly once in cold mode", func() {
			for i := 0; i < 20; i++ {
				_, _, err := driver.Step(float64(i), 1, 5)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(solver.initialCalls).To(Equal(1))
			Expect(solver.calls).To(HaveLen(20))
			Expect(solver.calls[0].seed).To(Equal(dynamo.State{0.9, 0, params.AmbientTemperatureK}))
			Expect(driver.State().Bootstrapped()).To(BeTrue())
		})

		It("primes with one coarse solve at the default current in prime mode", func() {
			driver = newDriver(stepper.WithBootstrap(stepper.BootstrapPrime))

			for i := 0; i < 20; i++ {
				_, _, err := driver.Step(float64(i), 1, 2)
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(solver.calls).To(HaveLen(21))
			prime := solver.calls[0]
			Expect(prime.window).To(Equal(dynamo.Window{Start: 0, End: 1, Samples: stepper.DefaultPrimingSamples}))
			Expect(prime.overlay.AppliedCurrentA).To(Equal(params.DefaultCurrentA))
			Expect(solver.realSolves()).To(HaveLen(20))
			for _, c := range solver.realSolves() {
				Expect(c.overlay.AppliedCurrentA).To(Equal(2.0))
			}
		})

		It("seeds the first real solve from the end of the priming solve", func() {
			driver = newDriver(stepper.WithBootstrap(stepper.BootstrapPrime))
			_, _, err := driver.Step(0, 1, 2)
			Expect(err).NotTo(HaveOccurred())

			primedZ := 0.9 - params.DefaultCurrentA*1/(3600*params.NominalCapacityAh)
			Expect(solver.calls[1].seed[0]).To(BeNumerically("~", primedZ, 1e-12))
		})

		It("does not count the priming solve into the SOC", func() {
			driver = newDriver(stepper.WithBootstrap(stepper.BootstrapPrime))
			_, soc, err := driver.Step(0, 1, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(soc).To(BeNumerically("~", 0.9-2.0/3600/5.0, 1e-12))
		})

		It("parses bootstrap names", func() {
			b, err := stepper.ParseBootstrap("PRIME")
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(stepper.BootstrapPrime))
			Expect(b.String()).To(Equal("prime"))

			b, err = stepper.ParseBootstrap("")
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(stepper.BootstrapCold))

			_, err = stepper.ParseBootstrap("warm")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("failures", func() {
		var before snapshot

		BeforeEach(func() {
			_, _, err := driver.Step(0, 1, 5)
			Expect(err).NotTo(HaveOccurred())
			before = snap(driver.State())
		})

		expectUnchanged := func() {
			Expect(snap(driver.State())).To(Equal(before))
		}

		DescribeTable("rejects invalid windows before solving",
			func(t, dt float64) {
				calls := len(solver.calls)
				_, _, err := driver.Step(t, dt, 5)
				Expect(err).To(MatchError(stepper.ErrInvalidWindow))

				var se *stepper.StepError
				Expect(errors.As(err, &se)).To(BeTrue())
				Expect(solver.calls).To(HaveLen(calls))
				expectUnchanged()
			},
			Entry("zero duration", 1.0, 0.0),
			Entry("negative duration", 1.0, -1.0),
			Entry("NaN duration", 1.0, math.NaN()),
			Entry("infinite time", math.Inf(1), 1.0),
			Entry("regressive time", 0.5, 1.0),
		)

		It("rejects a non-finite current", func() {
			_, _, err := driver.Step(1, 1, math.Inf(-1))
			Expect(err).To(MatchError(stepper.ErrInvalidCurrent))
			expectUnchanged()
		})

		It("surfaces solver failures as divergence", func() {
			cause := errors.New("newton iteration failed")
			solver.err = cause

			_, _, err := driver.Step(1, 1, 5)
			Expect(err).To(MatchError(stepper.ErrSolverDivergence))
			Expect(errors.Is(err, cause)).To(BeTrue())
			expectUnchanged()
		})

		It("allows a retry after a failed solve", func() {
			solver.err = errors.New("transient")
			_, _, err := driver.Step(1, 1, 5)
			Expect(err).To(HaveOccurred())

			solver.err = nil
			_, soc, err := driver.Step(1, 1, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(soc).To(BeNumerically("<", before.soc))
		})

		It("reports an empty trajectory distinctly", func() {
			empty := &emptySolver{fakeSolver: newFakeSolver()}
			d, err := stepper.New(empty, params)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = d.Step(0, 1, 5)
			Expect(err).To(MatchError(stepper.ErrEmptyTrajectory))
			Expect(errors.Is(err, stepper.ErrSolverDivergence)).To(BeFalse())

			var se *stepper.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Event).To(Equal(cell.EventLowerCutoff))
			Expect(d.State().Bootstrapped()).To(BeFalse())
			Expect(d.State().SOC()).To(Equal(0.9))
		})

		It("treats non-finite averages as divergence", func() {
			solver.nanCurrent = true
			_, _, err := driver.Step(1, 1, 5)
			Expect(err).To(MatchError(stepper.ErrSolverDivergence))
			expectUnchanged()
		})

		It("rejects trajectories without a voltage series", func() {
			solver.skipVars = []string{dynamo.VarVoltage}
			_, _, err := driver.Step(1, 1, 5)
			Expect(err).To(MatchError(stepper.ErrMalformedTrajectory))
			expectUnchanged()
		})
	})

	Describe("priming failures", func() {
		It("leaves the state uninitialized when the priming solve fails", func() {
			solver.err = errors.New("diverged")
			solver.failOnCall = 1
			driver = newDriver(stepper.WithBootstrap(stepper.BootstrapPrime))

			_, _, err := driver.Step(0, 1, 5)
			Expect(err).To(MatchError(stepper.ErrSolverDivergence))
			Expect(driver.State().Bootstrapped()).To(BeFalse())
			Expect(driver.State().LastTrajectory()).To(BeNil())
		})
	})
})

// emptySolver always returns a trajectory with no samples.
type emptySolver struct {
	*fakeSolver
}

func (e *emptySolver) Solve(p cell.Parameters, o cell.Overlay, x0 dynamo.State, w dynamo.Window) (*dynamo.Trajectory, error) {
	tr := dynamo.NewTrajectory(0, dynamo.VarCurrent, dynamo.VarVoltage)
	tr.Event = cell.EventLowerCutoff
	return tr, nil
}
