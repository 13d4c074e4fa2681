package fluid

import "fmt"

// AddParticle places a new particle at {x, y} with the given colour and
// returns its index. Particles are never removed.
func (fs *Solver) AddParticle(x, y, r, g, b float64) (int, error) {
	if fs.numParticles >= fs.maxParticles {
		return -1, fmt.Errorf("%w: %d", ErrCapacity, fs.maxParticles)
	}
	i := fs.numParticles
	fs.particlePos[2*i] = x
	fs.particlePos[2*i+1] = y
	fs.particleVel[2*i] = 0
	fs.particleVel[2*i+1] = 0
	fs.SetColor(i, r, g, b)
	fs.numParticles++

	return i, nil
}

// NumParticles returns the number of live particles.
func (fs *Solver) NumParticles() int {
	return fs.numParticles
}

// MaxParticles returns the particle capacity.
func (fs *Solver) MaxParticles() int {
	return fs.maxParticles
}

// Positions returns the live particle positions as x,y pairs.
// The slice aliases the solver state and must not be modified.
func (fs *Solver) Positions() []float64 {
	return fs.particlePos[:2*fs.numParticles]
}

// Velocities returns the live particle velocities as vx,vy pairs.
func (fs *Solver) Velocities() []float64 {
	return fs.particleVel[:2*fs.numParticles]
}

// Colors returns the live particle colours as r,g,b triples.
func (fs *Solver) Colors() []float64 {
	return fs.particleColor[:3*fs.numParticles]
}

// Position returns the position of particle i.
func (fs *Solver) Position(i int) (x, y float64) {
	fs.checkParticle(i)
	return fs.particlePos[2*i], fs.particlePos[2*i+1]
}

// Velocity returns the velocity of particle i.
func (fs *Solver) Velocity(i int) (vx, vy float64) {
	fs.checkParticle(i)
	return fs.particleVel[2*i], fs.particleVel[2*i+1]
}

// SetPosition moves particle i without touching its velocity.
func (fs *Solver) SetPosition(i int, x, y float64) {
	fs.checkParticle(i)
	fs.particlePos[2*i] = x
	fs.particlePos[2*i+1] = y
}

// SetVelocity overrides the velocity of particle i.
func (fs *Solver) SetVelocity(i int, vx, vy float64) {
	fs.checkParticle(i)
	fs.particleVel[2*i] = vx
	fs.particleVel[2*i+1] = vy
}

// AddVelocity adds an external impulse to particle i.
func (fs *Solver) AddVelocity(i int, dvx, dvy float64) {
	fs.checkParticle(i)
	fs.particleVel[2*i] += dvx
	fs.particleVel[2*i+1] += dvy
}

// Color returns the colour of particle i.
func (fs *Solver) Color(i int) (r, g, b float64) {
	fs.checkParticle(i)
	return fs.particleColor[3*i], fs.particleColor[3*i+1], fs.particleColor[3*i+2]
}

// SetColor overrides the colour of particle i.
func (fs *Solver) SetColor(i int, r, g, b float64) {
	if i < 0 || i >= fs.maxParticles {
		panic(fmt.Sprintf("fluid: particle %d outside capacity %d", i, fs.maxParticles))
	}
	fs.particleColor[3*i] = r
	fs.particleColor[3*i+1] = g
	fs.particleColor[3*i+2] = b
}

func (fs *Solver) checkParticle(i int) {
	if i < 0 || i >= fs.numParticles {
		panic(fmt.Sprintf("fluid: particle %d outside [0,%d)", i, fs.numParticles))
	}
}

func (fs *Solver) integrateParticles(dt, gravity float64) {
	for i := 0; i < fs.numParticles; i++ {
		fs.particleVel[2*i+1] += dt * gravity
		fs.particlePos[2*i] += fs.particleVel[2*i] * dt
		fs.particlePos[2*i+1] += fs.particleVel[2*i+1] * dt
	}
}

// HandleCollisions stops every particle touching the obstacle and keeps all
// particles inside the domain walls. Particles are not pushed out of the
// obstacle, only halted.
func (fs *Solver) HandleCollisions(o Obstacle) {
	minDist := o.Radius + fs.particleRadius
	minDist2 := minDist * minDist

	minX, minY, maxX, maxY := fs.Bounds()

	for i := 0; i < fs.numParticles; i++ {
		x := fs.particlePos[2*i]
		y := fs.particlePos[2*i+1]

		dx := x - o.X
		dy := y - o.Y
		if dx*dx+dy*dy < minDist2 {
			fs.particleVel[2*i] = 0.0
			fs.particleVel[2*i+1] = 0.0
		}

		if x < minX {
			x = minX
			fs.particleVel[2*i] = 0.0
		}
		if x > maxX {
			x = maxX
			fs.particleVel[2*i] = 0.0
		}
		if y < minY {
			y = minY
			fs.particleVel[2*i+1] = 0.0
		}
		if y > maxY {
			y = maxY
			fs.particleVel[2*i+1] = 0.0
		}

		fs.particlePos[2*i] = x
		fs.particlePos[2*i+1] = y
	}
}
