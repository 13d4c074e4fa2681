package fluid

import "math"

// updateParticleDensity splats a unit mass per particle onto the cell
// centres. The first call which finds fluid cells fixes the rest density.
func (fs *Solver) updateParticleDensity() {
	n := fs.fNumY
	h := fs.h
	h1 := fs.fInvSpacing
	h2 := 0.5 * h

	d := fs.particleDensity
	for i := range d {
		d[i] = 0.0
	}

	for i := 0; i < fs.numParticles; i++ {
		x := fs.particlePos[2*i]
		y := fs.particlePos[2*i+1]

		x0 := clampInt(int(math.Floor((x-h2)*h1)), 0, fs.fNumX-2)
		tx := ((x - h2) - float64(x0)*h) * h1
		x1 := min(x0+1, fs.fNumX-2)

		y0 := clampInt(int(math.Floor((y-h2)*h1)), 0, fs.fNumY-2)
		ty := ((y - h2) - float64(y0)*h) * h1
		y1 := min(y0+1, fs.fNumY-2)

		sx := 1.0 - tx
		sy := 1.0 - ty

		d[x0*n+y0] += sx * sy
		d[x1*n+y0] += tx * sy
		d[x1*n+y1] += tx * ty
		d[x0*n+y1] += sx * ty
	}

	if fs.particleRestDensity == 0.0 {
		var sum float64
		numFluidCells := 0

		for i := 0; i < fs.fNumCells; i++ {
			if fs.cellType[i] == FluidCell {
				sum += d[i]
				numFluidCells++
			}
		}

		if numFluidCells > 0 {
			fs.particleRestDensity = sum / float64(numFluidCells)
		}
	}
}

// solveIncompressibility runs Gauss-Seidel sweeps over the fluid cells,
// updating the face velocities in place until the divergence vanishes.
func (fs *Solver) solveIncompressibility(numIters int, dt, overRelaxation float64, compensateDrift bool) {
	for i := range fs.p {
		fs.p[i] = 0.0
	}
	copy(fs.prevU, fs.u)
	copy(fs.prevV, fs.v)

	n := fs.fNumY
	cp := fs.density * fs.h / dt

	for iter := 0; iter < numIters; iter++ {
		for i := 1; i < fs.fNumX-1; i++ {
			for j := 1; j < fs.fNumY-1; j++ {
				if fs.cellType[i*n+j] != FluidCell {
					continue
				}

				center := i*n + j
				left := (i-1)*n + j
				right := (i+1)*n + j
				bottom := i*n + j - 1
				top := i*n + j + 1

				sx0 := fs.s[left]
				sx1 := fs.s[right]
				sy0 := fs.s[bottom]
				sy1 := fs.s[top]
				sSum := sx0 + sx1 + sy0 + sy1
				if sSum == 0.0 {
					continue
				}

				div := fs.u[right] - fs.u[center] + fs.v[top] - fs.v[center]

				if fs.particleRestDensity > 0.0 && compensateDrift {
					const k = 1.0
					compression := fs.particleDensity[center] - fs.particleRestDensity
					if compression > 0.0 {
						div -= k * compression
					}
				}

				p := -div / sSum
				p *= overRelaxation
				fs.p[center] += cp * p

				fs.u[center] -= sx0 * p
				fs.u[right] += sx1 * p
				fs.v[center] -= sy0 * p
				fs.v[top] += sy1 * p
			}
		}
	}
}

// divergence returns the velocity divergence of the fluid cell (i, j).
func (fs *Solver) divergence(i, j int) float64 {
	n := fs.fNumY
	return fs.u[(i+1)*n+j] - fs.u[i*n+j] + fs.v[i*n+j+1] - fs.v[i*n+j]
}

// MaxDivergence returns the largest absolute velocity divergence over the
// fluid cells after the last projection.
func (fs *Solver) MaxDivergence() float64 {
	var m float64
	for i := 1; i < fs.fNumX-1; i++ {
		for j := 1; j < fs.fNumY-1; j++ {
			if fs.cellType[i*fs.fNumY+j] != FluidCell {
				continue
			}
			m = math.Max(m, math.Abs(fs.divergence(i, j)))
		}
	}
	return m
}
