package stepper_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/batsim/internal/cell"
	"github.com/san-kum/batsim/internal/stepper"
)

var _ = Describe("Driver with the equivalent-circuit cell", func() {
	var (
		params cell.Parameters
		solver *cell.Solver
	)

	BeforeEach(func() {
		var err error
		params = cell.Default()
		solver, err = cell.NewSolver(cell.DefaultSolverOptions())
		Expect(err).NotTo(HaveOccurred())
	})

	It("discharges within the cutoff band with falling voltage", func() {
		d, err := stepper.New(solver, params, stepper.WithInitialSOC(0.9))
		Expect(err).NotTo(HaveOccurred())

		var voltages []float64
		for i := 0; i < 120; i++ {
			v, _, err := d.Step(float64(i), 1, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeNumerically(">=", params.LowerCutoffV))
			Expect(v).To(BeNumerically("<=", params.UpperCutoffV))
			voltages = append(voltages, v)
		}

		Expect(voltages[len(voltages)-1]).To(BeNumerically("<", voltages[0]))
		Expect(0.9 - d.State().SOC()).To(BeNumerically("~", 120*5.0/3600/5.0, 1e-9))
		Expect(d.State().SimTime()).To(Equal(120.0))
	})

	It("keeps the model state continuous across windows", func() {
		d, err := stepper.New(solver, params)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 10; i++ {
			_, _, err := d.Step(float64(i)*6, 6, 5)
			Expect(err).NotTo(HaveOccurred())
		}

		final, err := d.State().LastTrajectory().Final()
		Expect(err).NotTo(HaveOccurred())
		// The polarization voltage only builds up if each window starts
		// where the previous one ended.
		Expect(final[1]).To(BeNumerically(">", 0.5*5*params.PolarizationResistance))
		Expect(final[0]).To(BeNumerically("~", d.State().SOC(), 1e-9))
	})

	It("behaves the same from a primed start", func() {
		d, err := stepper.New(solver, params, stepper.WithBootstrap(stepper.BootstrapPrime))
		Expect(err).NotTo(HaveOccurred())

		v, soc, err := d.Step(0, 1, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeNumerically(">=", params.LowerCutoffV))
		Expect(soc).To(BeNumerically("~", 0.9-5.0/3600/5.0, 1e-12))
	})

	It("fails with an empty trajectory when the cell is already below cutoff", func() {
		d, err := stepper.New(solver, params, stepper.WithInitialSOC(0.01))
		Expect(err).NotTo(HaveOccurred())

		_, _, err = d.Step(0, 1, 5)
		Expect(err).To(MatchError(stepper.ErrEmptyTrajectory))
		Expect(d.State().SOC()).To(Equal(0.01))
	})
})
