package scene

import (
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/physics"
)

type Variant int

const (
	Random Variant = iota
	SpiralGalaxy
	BinarySystem
	SolarSystem
)

var variantNames = map[Variant]string{
	Random:       "random",
	SpiralGalaxy: "spiral_galaxy",
	BinarySystem: "binary_system",
	SolarSystem:  "solar_system",
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return variantNames[Random]
}

// ParseVariant maps a scene name to its variant. Hyphens and case are
// ignored; anything unrecognized is Random.
func ParseVariant(name string) Variant {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	switch key {
	case "spiral_galaxy", "spiral", "galaxy":
		return SpiralGalaxy
	case "binary_system", "binary":
		return BinarySystem
	case "solar_system", "solar":
		return SolarSystem
	default:
		return Random
	}
}

func Variants() []Variant {
	return []Variant{Random, SpiralGalaxy, BinarySystem, SolarSystem}
}

const (
	galaxyCoreMass = 100.0
	binaryStarMass = 50.0
	sunMass        = 50.0
)

var (
	planetRadii = [9]float64{0.4, 0.7, 1.0, 1.5, 5.2, 9.5, 19.2, 30.1, 39.5}
	// planet masses relative to earth
	planetMasses = [9]float64{0.055, 0.815, 1.0, 0.107, 317.8, 95.2, 14.5, 17.1, 0.002}
)

// Generator populates body stores. Only scene generation consumes
// randomness.
type Generator struct {
	rng     *rand.Rand
	gravity physics.Gravity
}

func NewGenerator(seed int64, g physics.Gravity) *Generator {
	return &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		gravity: g,
	}
}

func (g *Generator) Generate(v Variant, n int) *body.Store {
	s := body.NewStore(n)
	switch v {
	case SpiralGalaxy:
		g.spiralGalaxy(s)
	case BinarySystem:
		g.binarySystem(s)
	case SolarSystem:
		g.solarSystem(s)
	default:
		g.random(s)
	}
	return s
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// tangential returns the circular-orbit velocity direction at angle a.
func tangential(speed, a float64) r3.Vec {
	return r3.Vec{X: -speed * math.Sin(a), Y: speed * math.Cos(a)}
}

func onCircle(radius, a, z float64) r3.Vec {
	return r3.Vec{X: radius * math.Cos(a), Y: radius * math.Sin(a), Z: z}
}

func (g *Generator) random(s *body.Store) {
	for i := 0; i < s.Len(); i++ {
		pos := r3.Vec{X: g.uniform(-10, 10), Y: g.uniform(-10, 10), Z: g.uniform(-10, 10)}
		mass := g.uniform(0.1, 1.0)
		vel := r3.Vec{X: g.uniform(-10, 10) * 0.1, Y: g.uniform(-10, 10) * 0.1, Z: g.uniform(-10, 10) * 0.1}
		s.Set(i, pos, vel, mass)
	}
}

func (g *Generator) spiralGalaxy(s *body.Store) {
	if s.Len() == 0 {
		return
	}
	s.Set(0, r3.Vec{}, r3.Vec{}, galaxyCoreMass)

	for i := 1; i < s.Len(); i++ {
		angle := g.uniform(0, 2*math.Pi)
		radius := g.uniform(0.1, 10)
		// spiral arms
		arm := angle + angle/10
		z := g.uniform(-0.5, 0.5) * (radius / 10)
		mass := g.uniform(0.1, 1.0)

		speed := g.gravity.OrbitalSpeed(galaxyCoreMass, radius)
		s.Set(i, onCircle(radius, arm, z), tangential(speed, arm), mass)
	}
}

func (g *Generator) binarySystem(s *body.Store) {
	stars := []struct{ pos, vel r3.Vec }{
		{r3.Vec{X: -2}, r3.Vec{Y: -1}},
		{r3.Vec{X: 2}, r3.Vec{Y: 1}},
	}
	for i := 0; i < len(stars) && i < s.Len(); i++ {
		s.Set(i, stars[i].pos, stars[i].vel, binaryStarMass)
	}

	for i := len(stars); i < s.Len(); i++ {
		angle := g.uniform(0, 2*math.Pi)
		radius := g.uniform(3, 10)
		mass := g.uniform(0.1, 0.5)
		z := (g.uniform(0, 2*math.Pi) - math.Pi) * 0.1

		speed := g.gravity.OrbitalSpeed(2*binaryStarMass, radius) * 0.7
		s.Set(i, onCircle(radius, angle, z), tangential(speed, angle), mass)
	}
}

func (g *Generator) solarSystem(s *body.Store) {
	if s.Len() == 0 {
		return
	}
	s.Set(0, r3.Vec{}, r3.Vec{}, sunMass)

	for i := 0; i < len(planetRadii) && i+1 < s.Len(); i++ {
		angle := 2 * math.Pi * float64(i) / float64(len(planetRadii))
		r := planetRadii[i]
		speed := g.gravity.OrbitalSpeed(sunMass, r) * 0.5
		s.Set(i+1, onCircle(r, angle, 0), tangential(speed, angle), 0.5+planetMasses[i]*0.1)
	}

	for i := len(planetRadii) + 1; i < s.Len(); i++ {
		angle := g.uniform(0, 2*math.Pi)
		radius := g.uniform(0.3, 40)
		z := g.uniform(-0.5, 0.5)
		mass := g.uniform(0.01, 0.1)

		speed := g.gravity.OrbitalSpeed(sunMass, radius) * 0.5
		s.Set(i, onCircle(radius, angle, z), tangential(speed, angle), mass)
	}
}

// minValidationMass keeps masses drawn from [0,1) strictly positive.
const minValidationMass = 1e-6

// Cube fills a store with bodies uniform in [-π,π]^3 at rest with masses
// uniform in [0,1). It is the initial state the solver comparison uses.
func (g *Generator) Cube(n int) *body.Store {
	s := body.NewStore(n)
	for i := 0; i < n; i++ {
		pos := r3.Vec{
			X: g.uniform(-math.Pi, math.Pi),
			Y: g.uniform(-math.Pi, math.Pi),
			Z: g.uniform(-math.Pi, math.Pi),
		}
		s.Set(i, pos, r3.Vec{}, math.Max(g.rng.Float64(), minValidationMass))
	}
	return s
}
