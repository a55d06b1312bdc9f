package sim

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/export"
	"github.com/kr1s0404/fmm/internal/integrators"
	"github.com/kr1s0404/fmm/internal/physics"
	"github.com/kr1s0404/fmm/internal/render"
)

type recordingSink struct {
	indices []int
	scales  []float64
}

func (r *recordingSink) WriteFrame(f *render.Frame) error {
	r.indices = append(r.indices, f.Index)
	r.scales = append(r.scales, f.Scale)
	return nil
}

type brokenSink struct {
	opens int
}

func (b *brokenSink) Open(string, string, int, int, int) error {
	b.opens++
	return errors.New("codec not available")
}
func (b *brokenSink) WriteFrame(*render.Frame) error { return nil }
func (b *brokenSink) Close() error                   { return nil }

type nanBackend struct{}

func (nanBackend) Name() string { return "nan" }
func (nanBackend) Solve(s *body.Store, count int) error {
	for i := 0; i < count; i++ {
		s.Acc[i] = r3.Vec{X: math.NaN()}
	}
	return nil
}

func smallCanvas() render.Config {
	cfg := render.DefaultConfig("test")
	cfg.Width, cfg.Height = 64, 48
	return cfg
}

var _ = Describe("Simulator", func() {
	var (
		g   physics.Gravity
		st  *body.Store
		sim *Simulator
		cfg Config
	)

	BeforeEach(func() {
		g = physics.NewGravity()
		st = restingPair()
		eval := compute.NewEvaluator(compute.NewDirect(g, 1), compute.NewTree(g, compute.DefaultTreeTheta, 1))
		sim = New(eval, integrators.NewSymplecticEuler(), g)
		cfg = DefaultConfig()
		cfg.Frames = 20
	})

	It("runs the configured number of frames", func() {
		res, err := sim.Run(context.Background(), st, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Frames).To(Equal(20))
		Expect(res.Times).To(HaveLen(20))
		Expect(res.Time).To(BeNumerically("~", 0.2, 1e-12))
		Expect(res.Errors).To(BeEmpty())
	})

	It("pulls a resting pair together", func() {
		_, err := sim.Run(context.Background(), st, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Pos[0].X).To(BeNumerically(">", -2))
		Expect(st.Pos[1].X).To(BeNumerically("<", 2))
		Expect(st.Pos[0].X).To(BeNumerically("~", -st.Pos[1].X, 1e-12))
	})

	It("emits one frame per step in order", func() {
		sink := &recordingSink{}
		sim.WithRenderer(render.NewProjector(smallCanvas()), sink)

		res, err := sim.Run(context.Background(), st, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(sink.indices).To(HaveLen(cfg.Frames))
		for i, idx := range sink.indices {
			Expect(idx).To(Equal(i))
		}
		Expect(res.Scales).To(Equal(sink.scales))
		for _, s := range res.Scales {
			Expect(s).To(BeNumerically("<=", 1.0))
		}
	})

	It("records the energy of every frame", func() {
		cfg.RecordEnergy = true
		res, err := sim.Run(context.Background(), st, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Energies).To(HaveLen(cfg.Frames))
		Expect(res.Energies[0]).To(BeNumerically("~", g.Energy(restingPair()), 1e-12))
		Expect(res.EnergyDrift).To(BeNumerically("<", 1e-3))
	})

	Context("when the frame sink cannot be opened", func() {
		It("keeps simulating and reports the failure once", func() {
			broken := &brokenSink{}
			lazy := export.NewLazy(broken, smallCanvas(), zerolog.Nop())
			sim.WithRenderer(render.NewProjector(smallCanvas()), lazy)

			res, err := sim.Run(context.Background(), st, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Frames).To(Equal(cfg.Frames))
			Expect(broken.opens).To(Equal(1))
			Expect(res.Errors).To(HaveLen(1))
			Expect(errors.Is(res.Errors[0], dynamo.ErrSinkUnavailable)).To(BeTrue())
			Expect(lazy.Disabled()).To(BeTrue())
		})
	})

	Context("when forces are not finite", func() {
		It("stops the run with a numeric instability", func() {
			sim = New(compute.NewEvaluator(nanBackend{}, nil), integrators.NewSymplecticEuler(), g)

			res, err := sim.Run(context.Background(), st, cfg)
			Expect(errors.Is(err, dynamo.ErrNumericInstability)).To(BeTrue())

			var simErr *dynamo.SimError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Frame).To(Equal(0))
			Expect(res.Frames).To(Equal(0))
		})

		It("lets them through when validation is off", func() {
			sim = New(compute.NewEvaluator(nanBackend{}, nil), integrators.NewSymplecticEuler(), g)
			cfg.ValidateState = false

			res, err := sim.Run(context.Background(), st, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Frames).To(Equal(cfg.Frames))
			Expect(st.IsValid()).To(BeFalse())
		})
	})

	Context("in accelerated mode", func() {
		It("tracks the direct trajectory", func() {
			ref := st.Clone()
			_, err := sim.Run(context.Background(), ref, cfg)
			Expect(err).NotTo(HaveOccurred())

			cfg.Mode = compute.ModeAccelerated
			_, err = sim.Run(context.Background(), st, cfg)
			Expect(err).NotTo(HaveOccurred())
			for i := range st.Pos {
				Expect(r3.Norm(r3.Sub(st.Pos[i], ref.Pos[i]))).To(BeNumerically("<", 1e-9))
			}
		})

		It("fails without an accelerator", func() {
			sim = New(compute.NewEvaluator(compute.NewDirect(g, 1), nil), integrators.NewSymplecticEuler(), g)
			cfg.Mode = compute.ModeAccelerated

			_, err := sim.Run(context.Background(), st, cfg)
			Expect(errors.Is(err, dynamo.ErrNoAccelerator)).To(BeTrue())
		})
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := sim.Run(ctx, st, cfg)
		Expect(err).To(MatchError(context.Canceled))
		Expect(res.Frames).To(Equal(0))
	})
})
