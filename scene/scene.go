// Package scene seeds a fluid solver and drives it frame by frame with
// pointer interaction and static obstacles.
package scene

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/esimov/flip-fluid/config"
	fluid "github.com/esimov/flip-fluid/fluid-solver"
)

const (
	lidDamping   = 0.3
	tintSpeed    = 5.0  // Pointer speed needed before particles are tinted
	tintSpeedMax = 50.0 // Pointer speed mapped to the full tint
	tintBlendMax = 0.2
	forceEpsilon = 1e-4
)

// noObstacle never overlaps a particle.
var noObstacle = fluid.Obstacle{X: math.Inf(-1), Y: math.Inf(-1)}

type pointer struct {
	x, y   float64
	vx, vy float64
	down   bool
	active bool
}

// Scene owns a solver together with the state needed to advance it.
// It is not safe for concurrent use.
type Scene struct {
	cfg       *config.Config
	solver    *fluid.Solver
	obstacles []fluid.Obstacle
	pointer   pointer

	steps int
	time  float64
}

// New builds the solver described by cfg, walls it in and seeds the
// initial block of particles.
func New(cfg *config.Config) (*Scene, error) {
	s := &Scene{cfg: cfg}
	for _, o := range cfg.Obstacles {
		s.obstacles = append(s.obstacles, o.Obstacle())
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset discards the current solver and reseeds it from the configuration.
// The same seed always produces the same particles.
func (s *Scene) Reset() error {
	solver, err := fluid.NewSolver(s.cfg.Fluid.SolverParams())
	if err != nil {
		return fmt.Errorf("creating solver: %w", err)
	}

	nx, ny := solver.NumX(), solver.NumY()
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			if i == 0 || i == nx-1 || j == 0 || j == ny-1 {
				solver.SetSolid(i, j, true)
			}
		}
	}

	seed(solver, s.cfg.Fluid.Spacing, s.cfg.Scene)

	s.solver = solver
	s.pointer = pointer{}
	s.steps = 0
	s.time = 0
	return nil
}

// seed fills the lower part of the domain with a jittered lattice of
// particles coloured by a diagonal rainbow.
func seed(solver *fluid.Solver, spacing float64, sc config.SceneConfig) {
	rng := rand.New(rand.NewSource(sc.Seed))
	minX, minY, maxX, maxY := solver.Bounds()

	step := spacing * sc.Lattice
	fillW := (maxX - minX) * sc.FillWidth
	fillH := (maxY - minY) * sc.FillHeight
	numX := int(fillW/step) + 1
	numY := int(fillH/step) + 1
	startX := minX + ((maxX-minX)-float64(numX-1)*step)/2
	startY := minY

	for i := 0; i < numX; i++ {
		for j := 0; j < numY; j++ {
			if solver.NumParticles() >= solver.MaxParticles() {
				return
			}
			x := startX + float64(i)*step + (rng.Float64()-0.5)*spacing*sc.Jitter
			y := startY + float64(j)*step + (rng.Float64()-0.5)*spacing*sc.Jitter
			if x < minX || x > maxX || y < minY || y > maxY {
				continue
			}

			hue := (float64(i)/float64(numX) + float64(j)/float64(numY)) * 0.5
			c := colorful.Hsv(hue*360, 1, 1)
			// Capacity was checked above.
			_, _ = solver.AddParticle(x, y, c.R, c.G, c.B)
		}
	}
}

// Solver returns the underlying solver.
func (s *Scene) Solver() *fluid.Solver { return s.solver }

// Steps returns the number of frames simulated since the last reset.
func (s *Scene) Steps() int { return s.steps }

// Time returns the simulated time since the last reset.
func (s *Scene) Time() float64 { return s.time }

// Obstacles returns the static obstacles.
func (s *Scene) Obstacles() []fluid.Obstacle { return s.obstacles }

// SetObstacles replaces the static obstacles.
func (s *Scene) SetObstacles(obstacles []fluid.Obstacle) {
	s.obstacles = append(s.obstacles[:0], obstacles...)
}

// SetPointer moves the pointer to {x, y} in domain coordinates. The pointer
// velocity is the displacement since the previous call.
func (s *Scene) SetPointer(x, y float64, down bool) {
	p := &s.pointer
	if p.active {
		p.vx, p.vy = x-p.x, y-p.y
	}
	p.x, p.y = x, y
	p.down = down
	p.active = true
}

// Pointer returns the pointer position and whether it is pressed.
func (s *Scene) Pointer() (x, y float64, down, active bool) {
	return s.pointer.x, s.pointer.y, s.pointer.down, s.pointer.active
}

// Step advances the scene by dt seconds. Non-positive frame times are
// ignored and long ones are clamped to the configured maximum.
func (s *Scene) Step(dt float64) {
	if !(dt > 0) {
		return
	}
	dt = math.Min(dt, s.cfg.Step.MaxDT)

	for _, o := range s.obstacles {
		s.solver.HandleCollisions(o)
	}
	obstacle := s.applyPointer(dt)

	s.solver.Simulate(s.cfg.Step.Params(dt, obstacle))

	if s.cfg.Scene.Lid {
		s.applyLid()
	}
	s.steps++
	s.time += dt
}

func (s *Scene) radius() (radius, strength float64) {
	pc := s.cfg.Pointer
	if s.pointer.down {
		return pc.PressedRadius, pc.PressedStrength
	}
	return pc.Radius, pc.Strength
}

// applyPointer pushes the particles near the pointer away from it and
// returns the pointer as this frame's obstacle. The pointer velocity is
// consumed.
func (s *Scene) applyPointer(dt float64) fluid.Obstacle {
	p := &s.pointer
	if !p.active {
		return noObstacle
	}
	radius, strength := s.radius()
	forceRadius := 2 * radius
	gain := s.cfg.Pointer.VelocityGain

	speed := math.Hypot(p.vx, p.vy)
	tint := p.down && speed > tintSpeed
	var (
		target colorful.Color
		blend  float64
	)
	if tint {
		hue := math.Mod((math.Atan2(p.vy, p.vx)+math.Pi)/(2*math.Pi), 1.0)
		target = colorful.Hsv(hue*360, 1, 1)
		blend = math.Min(speed/tintSpeedMax, tintBlendMax)
	}

	for i := 0; i < s.solver.NumParticles(); i++ {
		x, y := s.solver.Position(i)
		dx, dy := x-p.x, y-p.y
		d2 := dx*dx + dy*dy
		if d2 >= forceRadius*forceRadius {
			continue
		}
		d := math.Sqrt(d2)
		nx, ny := dx/(d+forceEpsilon), dy/(d+forceEpsilon)
		force := (1.0 - d/forceRadius) * strength
		s.solver.AddVelocity(i, nx*force*dt+p.vx*gain, ny*force*dt+p.vy*gain)

		if tint {
			r, g, b := s.solver.Color(i)
			c := colorful.Color{R: r, G: g, B: b}.BlendRgb(target, blend)
			s.solver.SetColor(i, c.R, c.G, c.B)
		}
	}
	p.vx, p.vy = 0, 0

	return fluid.Obstacle{X: p.x, Y: p.y, Radius: radius}
}

// applyLid bounces particles off the top of the domain.
func (s *Scene) applyLid() {
	_, _, _, maxY := s.solver.Bounds()
	lid := maxY - s.solver.ParticleRadius()
	for i := 0; i < s.solver.NumParticles(); i++ {
		x, y := s.solver.Position(i)
		if y > lid {
			vx, vy := s.solver.Velocity(i)
			s.solver.SetPosition(i, x, lid)
			s.solver.SetVelocity(i, vx, -vy*lidDamping)
		}
	}
}
