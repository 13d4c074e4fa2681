package fluid

import (
	"errors"
	"fmt"
	"math"
)

type cell []float64

// CellType classifies a grid cell for the pressure solve.
type CellType int

const (
	FluidCell CellType = iota
	AirCell
	SolidCell
)

func (c CellType) String() string {
	switch c {
	case FluidCell:
		return "fluid"
	case AirCell:
		return "air"
	case SolidCell:
		return "solid"
	}
	return fmt.Sprintf("CellType(%d)", int(c))
}

var (
	// ErrInvalidParams is returned by NewSolver for unusable construction parameters.
	ErrInvalidParams = errors.New("fluid: invalid parameters")
	// ErrCapacity is returned when a particle is added to a full solver.
	ErrCapacity = errors.New("fluid: particle capacity reached")
)

// Params holds the construction parameters of the solver.
type Params struct {
	Density        float64
	Width          float64
	Height         float64
	Spacing        float64
	ParticleRadius float64
	MaxParticles   int
}

// Obstacle is a circular region which stops every particle entering it.
type Obstacle struct {
	X, Y   float64
	Radius float64
}

// StepParams holds the parameters of a single Simulate call.
type StepParams struct {
	DT                float64
	Gravity           float64
	FlipRatio         float64
	PressureIters     int
	ParticleIters     int
	OverRelaxation    float64
	CompensateDrift   bool
	SeparateParticles bool
	Obstacle          Obstacle
	// SubSteps splits DT into equal parts. Values below 1 run a single step.
	SubSteps int
}

// Solver is a 2D FLIP fluid: particles carry the fluid, a staggered MAC grid
// enforces incompressibility. All buffers are allocated once in NewSolver.
type Solver struct {
	density float64

	// fluid grid
	fNumX, fNumY int
	fNumCells    int
	h            float64
	fInvSpacing  float64

	u, v         cell
	du, dv       cell
	prevU, prevV cell
	p            cell
	s            cell
	cellType     []CellType
	cellColor    cell

	// particles
	maxParticles   int
	numParticles   int
	particleRadius float64
	particlePos    cell
	particleVel    cell
	particleColor  cell

	particleDensity     cell
	particleRestDensity float64

	// particle hash grid
	pInvSpacing       float64
	pNumX, pNumY      int
	pNumCells         int
	numCellParticles  []int
	firstCellParticle []int
	cellParticleIds   []int
}

// NewSolver allocates a solver covering a width x height domain.
func NewSolver(p Params) (*Solver, error) {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return nil, fmt.Errorf("%w: domain %gx%g", ErrInvalidParams, p.Width, p.Height)
	case p.Spacing <= 0:
		return nil, fmt.Errorf("%w: spacing %g", ErrInvalidParams, p.Spacing)
	case p.ParticleRadius <= 0:
		return nil, fmt.Errorf("%w: particle radius %g", ErrInvalidParams, p.ParticleRadius)
	case p.MaxParticles <= 0:
		return nil, fmt.Errorf("%w: max particles %d", ErrInvalidParams, p.MaxParticles)
	case p.Density <= 0:
		return nil, fmt.Errorf("%w: density %g", ErrInvalidParams, p.Density)
	}

	fs := &Solver{
		density: p.Density,
		fNumX:   int(math.Floor(p.Width/p.Spacing)) + 1,
		fNumY:   int(math.Floor(p.Height/p.Spacing)) + 1,
	}
	if fs.fNumX < 3 || fs.fNumY < 3 {
		return nil, fmt.Errorf("%w: grid %dx%d is smaller than 3x3", ErrInvalidParams, fs.fNumX, fs.fNumY)
	}
	fs.h = math.Max(p.Width/float64(fs.fNumX), p.Height/float64(fs.fNumY))
	fs.fInvSpacing = 1.0 / fs.h
	fs.fNumCells = fs.fNumX * fs.fNumY

	fs.u = make(cell, fs.fNumCells)
	fs.v = make(cell, fs.fNumCells)
	fs.du = make(cell, fs.fNumCells)
	fs.dv = make(cell, fs.fNumCells)
	fs.prevU = make(cell, fs.fNumCells)
	fs.prevV = make(cell, fs.fNumCells)
	fs.p = make(cell, fs.fNumCells)
	fs.s = make(cell, fs.fNumCells)
	fs.cellType = make([]CellType, fs.fNumCells)
	fs.cellColor = make(cell, 3*fs.fNumCells)
	fs.particleDensity = make(cell, fs.fNumCells)

	// Every cell starts open. The seeding code marks the walls.
	for i := range fs.s {
		fs.s[i] = 1.0
		fs.cellType[i] = AirCell
	}

	fs.maxParticles = p.MaxParticles
	fs.particleRadius = p.ParticleRadius
	fs.particlePos = make(cell, 2*fs.maxParticles)
	fs.particleVel = make(cell, 2*fs.maxParticles)
	fs.particleColor = make(cell, 3*fs.maxParticles)
	for i := 0; i < fs.maxParticles; i++ {
		fs.particleColor[3*i+2] = 1.0
	}

	fs.pInvSpacing = 1.0 / (2.2 * p.ParticleRadius)
	fs.pNumX = int(math.Floor(p.Width*fs.pInvSpacing)) + 1
	fs.pNumY = int(math.Floor(p.Height*fs.pInvSpacing)) + 1
	fs.pNumCells = fs.pNumX * fs.pNumY

	fs.numCellParticles = make([]int, fs.pNumCells)
	fs.firstCellParticle = make([]int, fs.pNumCells+1)
	fs.cellParticleIds = make([]int, fs.maxParticles)

	return fs, nil
}

func (fs *Solver) idx(i, j int) int {
	if i < 0 || i >= fs.fNumX || j < 0 || j >= fs.fNumY {
		panic(fmt.Sprintf("fluid: cell (%d,%d) outside %dx%d grid", i, j, fs.fNumX, fs.fNumY))
	}
	return i*fs.fNumY + j
}

// SetSolid marks the cell (i, j) as an impermeable wall or as open space.
func (fs *Solver) SetSolid(i, j int, solid bool) {
	if solid {
		fs.s[fs.idx(i, j)] = 0.0
	} else {
		fs.s[fs.idx(i, j)] = 1.0
	}
}

// Solid reports whether the cell (i, j) is a wall.
func (fs *Solver) Solid(i, j int) bool {
	return fs.s[fs.idx(i, j)] == 0.0
}

// CellType returns the classification of the cell (i, j) after the last step.
func (fs *Solver) CellType(i, j int) CellType {
	return fs.cellType[fs.idx(i, j)]
}

// NumX returns the number of grid cells along x.
func (fs *Solver) NumX() int { return fs.fNumX }

// NumY returns the number of grid cells along y.
func (fs *Solver) NumY() int { return fs.fNumY }

// Spacing returns the grid cell size h.
func (fs *Solver) Spacing() float64 { return fs.h }

// ParticleRadius returns the particle radius.
func (fs *Solver) ParticleRadius() float64 { return fs.particleRadius }

// Bounds returns the rectangle every particle is kept inside.
func (fs *Solver) Bounds() (minX, minY, maxX, maxY float64) {
	r := fs.particleRadius
	return fs.h + r, fs.h + r, float64(fs.fNumX-1)*fs.h - r, float64(fs.fNumY-1)*fs.h - r
}

// Density returns the per-cell particle density of the last step, indexed i*NumY()+j.
func (fs *Solver) Density() []float64 { return fs.particleDensity }

// RestDensity returns the reference density, zero until the first step with fluid cells.
func (fs *Solver) RestDensity() float64 { return fs.particleRestDensity }

// Pressure returns the accumulated pressure of the last projection, indexed i*NumY()+j.
// It is diagnostic only and never read back by the solver.
func (fs *Solver) Pressure() []float64 { return fs.p }

// CellColors returns RGB triples per cell, indexed 3*(i*NumY()+j).
func (fs *Solver) CellColors() []float64 { return fs.cellColor }

// Simulate advances the fluid by one frame.
func (fs *Solver) Simulate(sp StepParams) {
	switch {
	case !(sp.DT > 0):
		panic(fmt.Sprintf("fluid: non-positive time step %g", sp.DT))
	case sp.FlipRatio < 0 || sp.FlipRatio > 1:
		panic(fmt.Sprintf("fluid: flip ratio %g outside [0,1]", sp.FlipRatio))
	case sp.PressureIters < 1 || sp.ParticleIters < 1:
		panic(fmt.Sprintf("fluid: iteration counts must be positive (pressure %d, particle %d)", sp.PressureIters, sp.ParticleIters))
	case !(sp.OverRelaxation > 0):
		panic(fmt.Sprintf("fluid: non-positive over-relaxation %g", sp.OverRelaxation))
	}

	numSubSteps := sp.SubSteps
	if numSubSteps < 1 {
		numSubSteps = 1
	}
	sdt := sp.DT / float64(numSubSteps)

	for step := 0; step < numSubSteps; step++ {
		fs.integrateParticles(sdt, sp.Gravity)
		if sp.SeparateParticles {
			fs.pushParticlesApart(sp.ParticleIters)
		}
		fs.HandleCollisions(sp.Obstacle)
		fs.transferVelocities(true, 0)
		fs.updateParticleDensity()
		fs.solveIncompressibility(sp.PressureIters, sdt, sp.OverRelaxation, sp.CompensateDrift)
		fs.transferVelocities(false, sp.FlipRatio)
	}

	fs.updateParticleColors()
	fs.updateCellColors()
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

func clampInt(x, min, max int) int {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
