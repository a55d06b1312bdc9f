package experiment_test

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/experiment"
	"github.com/kr1s0404/fmm/internal/physics"
)

var _ = Describe("Schedule", func() {
	It("starts at ten thousand bodies by default", func() {
		Expect(experiment.DefaultSchedule().Counts()).To(Equal([]int{10000, 13335, 17783, 23714, 31623, 42170}))
	})

	It("covers all levels without a cap", func() {
		s := experiment.DefaultSchedule()
		s.MaxBodies = 0
		counts := s.Counts()
		Expect(counts).To(HaveLen(25))
		Expect(counts[24]).To(Equal(10000000))
		for i := 1; i < len(counts); i++ {
			Expect(counts[i]).To(BeNumerically(">", counts[i-1]))
		}
	})

	It("is empty for a zero divisor", func() {
		Expect(experiment.Schedule{Levels: 3}.Counts()).To(BeEmpty())
	})
})

var _ = Describe("Discrepancy", func() {
	It("is zero for identical fields", func() {
		a := []r3.Vec{{X: 1}, {Y: -3, Z: 2}}
		Expect(experiment.Discrepancy(a, a)).To(BeZero())
	})

	It("normalizes per body and averages over all bodies", func() {
		ref := []r3.Vec{{X: 1}, {Y: 2}}
		approx := []r3.Vec{{X: 1.1}, {Y: 2}}
		Expect(experiment.Discrepancy(ref, approx)).To(BeNumerically("~", 0.0707106781, 1e-9))
	})

	It("ignores bodies with no reference acceleration", func() {
		ref := []r3.Vec{{}, {X: 1}}
		approx := []r3.Vec{{X: 5}, {X: 1}}
		Expect(experiment.Discrepancy(ref, approx)).To(BeZero())
	})
})

var _ = Describe("Validator", func() {
	var g physics.Gravity

	BeforeEach(func() {
		g = physics.NewGravity()
	})

	DescribeTable("accepts a correct accelerated solver at ten bodies",
		func(name string) {
			fast, err := compute.New(name, g, compute.Options{Workers: 2})
			Expect(err).NotTo(HaveOccurred())

			v := experiment.NewValidator(compute.NewDirect(g, 2), fast, g, experiment.Schedule{Levels: 1, Offset: 8, Divisor: 8}, 0)
			report, err := v.WithSeed(3).Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Levels).To(HaveLen(1))
			Expect(report.Levels[0].N).To(Equal(10))
			Expect(report.Levels[0].L2).To(BeNumerically("<", 1e-2))
			Expect(report.Passed()).To(BeTrue())
		},
		Entry("tree", "tree"),
		Entry("multipole", "multipole"),
	)

	It("writes nine fields per level", func() {
		fast := compute.NewMultipole(g, 0, 1)
		v := experiment.NewValidator(compute.NewDirect(g, 1), fast, g, experiment.Schedule{Levels: 3, Offset: 8, Divisor: 8}, experiment.DefaultTolerance)
		report, err := v.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		_, err = report.WriteTo(&buf)
		Expect(err).NotTo(HaveOccurred())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(3))
		for i, want := range []int{10, 13, 18} {
			fields := strings.Fields(lines[i])
			Expect(fields).To(HaveLen(9))
			Expect(fields[0]).To(Equal(strconv.Itoa(want)))
			for _, f := range fields {
				_, err := strconv.ParseFloat(f, 64)
				Expect(err).NotTo(HaveOccurred())
			}
		}
	})

	It("fails a level above tolerance", func() {
		fast := compute.NewTree(g, 5, 1)
		v := experiment.NewValidator(compute.NewDirect(g, 1), fast, g, experiment.Schedule{Levels: 1, Offset: 24, Divisor: 8}, 1e-12)
		report, err := v.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Levels[0].Pass).To(BeFalse())
		Expect(report.Passed()).To(BeFalse())
	})

	It("needs an accelerated solver", func() {
		v := experiment.NewValidator(compute.NewDirect(g, 1), nil, g, experiment.DefaultSchedule(), 0)
		_, err := v.Run(context.Background())
		Expect(err).To(MatchError(dynamo.ErrNoAccelerator))
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		v := experiment.NewValidator(compute.NewDirect(g, 1), compute.NewTree(g, 0, 1), g, experiment.DefaultSchedule(), 0)
		report, err := v.Run(ctx)
		Expect(err).To(MatchError(context.Canceled))
		Expect(report.Levels).To(BeEmpty())
	})
})

var _ = Describe("Report", func() {
	It("fits the scaling exponent of each solver", func() {
		report := &experiment.Report{}
		for _, n := range []int{100, 1000, 10000} {
			report.Levels = append(report.Levels, experiment.Level{
				N:      n,
				Fast:   time.Duration(n) * time.Microsecond,
				Direct: time.Duration(n * n),
			})
		}
		fast, direct, ok := report.Scaling()
		Expect(ok).To(BeTrue())
		Expect(fast).To(BeNumerically("~", 1, 1e-9))
		Expect(direct).To(BeNumerically("~", 2, 1e-9))
	})

	It("has no fit for a single level", func() {
		report := &experiment.Report{Levels: []experiment.Level{{N: 10, Fast: 1, Direct: 1}}}
		_, _, ok := report.Scaling()
		Expect(ok).To(BeFalse())
		Expect((&experiment.Report{}).Passed()).To(BeFalse())
	})
})
