package experiment

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/physics"
	"github.com/kr1s0404/fmm/internal/scene"
)

const (
	DefaultTolerance = 1e-2
	// minReference is the squared reference magnitude below which a body
	// is left out of the discrepancy sum.
	minReference = 1e-30
)

// Schedule yields body counts n_k = round(10^((k+Offset)/Divisor)) for
// k in [0, Levels). Counts above MaxBodies are skipped when it is set.
type Schedule struct {
	Levels    int     `yaml:"levels" mapstructure:"levels"`
	Offset    float64 `yaml:"offset" mapstructure:"offset"`
	Divisor   float64 `yaml:"divisor" mapstructure:"divisor"`
	MaxBodies int     `yaml:"max_bodies" mapstructure:"max_bodies"`
}

func DefaultSchedule() Schedule {
	return Schedule{Levels: 25, Offset: 32, Divisor: 8, MaxBodies: 50000}
}

func (s Schedule) Counts() []int {
	counts := make([]int, 0, s.Levels)
	if s.Divisor == 0 {
		return counts
	}
	for k := 0; k < s.Levels; k++ {
		n := int(math.Round(math.Pow(10, (float64(k)+s.Offset)/s.Divisor)))
		if n < 1 || (s.MaxBodies > 0 && n > s.MaxBodies) {
			continue
		}
		counts = append(counts, n)
	}
	return counts
}

// Level is one row of a validation run.
type Level struct {
	N       int
	Fast    time.Duration
	Direct  time.Duration
	L2      float64
	Timings compute.Timings
	Pass    bool
}

// Fields returns the row as written to the timing artifact: n, fast and
// direct seconds, discrepancy, the three solver phases in seconds and the
// cell and body interaction counts.
func (l Level) Fields() []string {
	return []string{
		fmt.Sprintf("%d", l.N),
		fmt.Sprintf("%.6e", l.Fast.Seconds()),
		fmt.Sprintf("%.6e", l.Direct.Seconds()),
		fmt.Sprintf("%.6e", l.L2),
		fmt.Sprintf("%.6e", l.Timings.Build.Seconds()),
		fmt.Sprintf("%.6e", l.Timings.Moments.Seconds()),
		fmt.Sprintf("%.6e", l.Timings.Traverse.Seconds()),
		fmt.Sprintf("%d", l.Timings.CellInteractions),
		fmt.Sprintf("%d", l.Timings.BodyInteractions),
	}
}

type Report struct {
	Backend   string
	Tolerance float64
	Levels    []Level
}

func (r *Report) Passed() bool {
	for _, l := range r.Levels {
		if !l.Pass {
			return false
		}
	}
	return len(r.Levels) > 0
}

// Scaling fits log(time) against log(n) and returns the slopes for the
// fast and direct solvers. A direct solver should come out near 2.
func (r *Report) Scaling() (fast, direct float64, ok bool) {
	var logN, logFast, logDirect []float64
	for _, l := range r.Levels {
		if l.Fast <= 0 || l.Direct <= 0 {
			continue
		}
		logN = append(logN, math.Log(float64(l.N)))
		logFast = append(logFast, math.Log(l.Fast.Seconds()))
		logDirect = append(logDirect, math.Log(l.Direct.Seconds()))
	}
	if len(logN) < 2 {
		return 0, 0, false
	}
	_, fast = stat.LinearRegression(logN, logFast, nil, false)
	_, direct = stat.LinearRegression(logN, logDirect, nil, false)
	return fast, direct, true
}

// WriteTo writes one space-separated line of Level.Fields per level.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, l := range r.Levels {
		fields := l.Fields()
		for i, f := range fields {
			if i > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return total, err
				}
				total++
			}
			n, err := bw.WriteString(f)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return total, err
		}
		total++
	}
	return total, bw.Flush()
}

// Discrepancy is the normalized L2 difference
// sqrt(Σ |ref_i − approx_i|² / |ref_i|² / n). Bodies whose reference
// acceleration is numerically zero do not contribute.
func Discrepancy(ref, approx []r3.Vec) float64 {
	n := len(ref)
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		den := r3.Norm2(ref[i])
		if den < minReference {
			continue
		}
		sum += r3.Norm2(r3.Sub(ref[i], approx[i])) / den
	}
	return math.Sqrt(sum / float64(n))
}

// Validator compares an accelerated backend against the direct solver on
// random cubes of increasing size.
type Validator struct {
	direct    compute.Backend
	fast      compute.Backend
	gravity   physics.Gravity
	schedule  Schedule
	tolerance float64
	seed      int64
	log       zerolog.Logger
}

func NewValidator(direct, fast compute.Backend, g physics.Gravity, schedule Schedule, tolerance float64) *Validator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Validator{
		direct:    direct,
		fast:      fast,
		gravity:   g,
		schedule:  schedule,
		tolerance: tolerance,
		log:       zerolog.Nop(),
	}
}

func (v *Validator) WithSeed(seed int64) *Validator {
	v.seed = seed
	return v
}

func (v *Validator) WithLogger(l zerolog.Logger) *Validator {
	v.log = l
	return v
}

// Run measures every level of the schedule. It stops early only on
// cancellation or a solver error; failing levels are reported, not
// returned as errors.
func (v *Validator) Run(ctx context.Context) (*Report, error) {
	if v.direct == nil || v.fast == nil {
		return nil, dynamo.ErrNoAccelerator
	}
	report := &Report{Backend: v.fast.Name(), Tolerance: v.tolerance}

	for _, n := range v.schedule.Counts() {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		level, err := v.level(n)
		if err != nil {
			return report, fmt.Errorf("level n=%d: %w", n, err)
		}
		report.Levels = append(report.Levels, level)

		ev := v.log.Info()
		if !level.Pass {
			ev = v.log.Warn()
		}
		ev.Int("n", n).Dur("fast", level.Fast).Dur("direct", level.Direct).
			Float64("l2", level.L2).Bool("pass", level.Pass).Msg("validation level")
	}
	return report, nil
}

func (v *Validator) level(n int) (Level, error) {
	ref := scene.NewGenerator(v.seed, v.gravity).Cube(n)
	approx := ref.Clone()

	start := time.Now()
	if err := v.fast.Solve(approx, n); err != nil {
		return Level{}, err
	}
	fast := time.Since(start)

	start = time.Now()
	if err := v.direct.Solve(ref, n); err != nil {
		return Level{}, err
	}
	direct := time.Since(start)

	level := Level{
		N:      n,
		Fast:   fast,
		Direct: direct,
		L2:     Discrepancy(ref.Acc, approx.Acc),
	}
	if p, ok := v.fast.(compute.Profiler); ok {
		level.Timings = p.LastTimings()
	}
	level.Pass = level.L2 < v.tolerance
	return level, nil
}
