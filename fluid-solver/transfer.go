package fluid

import "math"

// classifyCells marks walls as solid, every other cell as air, and then
// promotes the cells holding at least one particle to fluid.
func (fs *Solver) classifyCells() {
	for i := 0; i < fs.fNumCells; i++ {
		if fs.s[i] == 0.0 {
			fs.cellType[i] = SolidCell
		} else {
			fs.cellType[i] = AirCell
		}
	}

	for i := 0; i < fs.numParticles; i++ {
		x := fs.particlePos[2*i]
		y := fs.particlePos[2*i+1]
		xi := clampInt(int(math.Floor(x*fs.fInvSpacing)), 0, fs.fNumX-1)
		yi := clampInt(int(math.Floor(y*fs.fInvSpacing)), 0, fs.fNumY-1)
		c := xi*fs.fNumY + yi
		if fs.cellType[c] == AirCell {
			fs.cellType[c] = FluidCell
		}
	}
}

// stencil holds the four grid samples surrounding a particle and their
// bilinear weights, in the order (x0,y0) (x1,y0) (x1,y1) (x0,y1).
type stencil struct {
	nr [4]int
	w  [4]float64
}

// sampleStencil computes the bilinear stencil of the point {x, y} on a
// grid shifted by {dx, dy}.
func (fs *Solver) sampleStencil(x, y, dx, dy float64) stencil {
	n := fs.fNumY
	h := fs.h
	h1 := fs.fInvSpacing

	x0 := clampInt(int(math.Floor((x-dx)*h1)), 0, fs.fNumX-2)
	tx := ((x - dx) - float64(x0)*h) * h1
	x1 := min(x0+1, fs.fNumX-2)

	y0 := clampInt(int(math.Floor((y-dy)*h1)), 0, fs.fNumY-2)
	ty := ((y - dy) - float64(y0)*h) * h1
	y1 := min(y0+1, fs.fNumY-2)

	sx := 1.0 - tx
	sy := 1.0 - ty

	return stencil{
		nr: [4]int{x0*n + y0, x1*n + y0, x1*n + y1, x0*n + y1},
		w:  [4]float64{sx * sy, tx * sy, tx * ty, sx * ty},
	}
}

// transferVelocities moves the particle velocities onto the grid (toGrid)
// or blends the grid velocities back into the particles.
func (fs *Solver) transferVelocities(toGrid bool, flipRatio float64) {
	n := fs.fNumY
	h2 := 0.5 * fs.h

	if toGrid {
		copy(fs.prevU, fs.u)
		copy(fs.prevV, fs.v)

		for i := 0; i < fs.fNumCells; i++ {
			fs.du[i] = 0.0
			fs.dv[i] = 0.0
			fs.u[i] = 0.0
			fs.v[i] = 0.0
		}
		fs.classifyCells()
	}

	for component := 0; component < 2; component++ {
		dx, dy := 0.0, h2
		f, prevF, d := fs.u, fs.prevU, fs.du
		offset := n
		if component == 1 {
			dx, dy = h2, 0.0
			f, prevF, d = fs.v, fs.prevV, fs.dv
			offset = 1
		}

		for i := 0; i < fs.numParticles; i++ {
			st := fs.sampleStencil(fs.particlePos[2*i], fs.particlePos[2*i+1], dx, dy)

			if toGrid {
				pv := fs.particleVel[2*i+component]
				for k := 0; k < 4; k++ {
					f[st.nr[k]] += pv * st.w[k]
					d[st.nr[k]] += st.w[k]
				}
				continue
			}

			var wsum, pic, corr float64
			for k := 0; k < 4; k++ {
				nr := st.nr[k]
				// A face only carries a velocity when one of its two cells is not air.
				if fs.cellType[nr] == AirCell && (nr < offset || fs.cellType[nr-offset] == AirCell) {
					continue
				}
				w := st.w[k]
				wsum += w
				pic += w * f[nr]
				corr += w * (f[nr] - prevF[nr])
			}
			if wsum > 0.0 {
				v := fs.particleVel[2*i+component]
				picV := pic / wsum
				flipV := v + corr/wsum
				fs.particleVel[2*i+component] = (1.0-flipRatio)*picV + flipRatio*flipV
			}
		}

		if toGrid {
			for i := range f {
				if d[i] > 0.0 {
					f[i] /= d[i]
				}
			}
		}
	}

	if toGrid {
		fs.restoreSolidCells()
	}
}

// restoreSolidCells resets the faces touching a solid cell to their value
// before the particle splat.
func (fs *Solver) restoreSolidCells() {
	n := fs.fNumY
	for i := 0; i < fs.fNumX; i++ {
		for j := 0; j < fs.fNumY; j++ {
			solid := fs.cellType[i*n+j] == SolidCell
			if solid || (i > 0 && fs.cellType[(i-1)*n+j] == SolidCell) {
				fs.u[i*n+j] = fs.prevU[i*n+j]
			}
			if solid || (j > 0 && fs.cellType[i*n+j-1] == SolidCell) {
				fs.v[i*n+j] = fs.prevV[i*n+j]
			}
		}
	}
}
