package fluid

import "math"

// colorDiffusionCoeff is the fraction of the colour difference exchanged by
// two overlapping particles on every push.
const colorDiffusionCoeff = 0.001

// hashCell returns the hash grid cell holding the point {x, y}.
func (fs *Solver) hashCell(x, y float64) int {
	xi := clampInt(int(math.Floor(x*fs.pInvSpacing)), 0, fs.pNumX-1)
	yi := clampInt(int(math.Floor(y*fs.pInvSpacing)), 0, fs.pNumY-1)
	return xi*fs.pNumY + yi
}

// buildHash sorts the particle ids by hash cell. The ids of cell c are
// cellParticleIds[firstCellParticle[c]:firstCellParticle[c+1]].
func (fs *Solver) buildHash() {
	for i := range fs.numCellParticles {
		fs.numCellParticles[i] = 0
	}
	for i := 0; i < fs.numParticles; i++ {
		fs.numCellParticles[fs.hashCell(fs.particlePos[2*i], fs.particlePos[2*i+1])]++
	}

	// partial sums
	first := 0
	for i := 0; i < fs.pNumCells; i++ {
		first += fs.numCellParticles[i]
		fs.firstCellParticle[i] = first
	}
	fs.firstCellParticle[fs.pNumCells] = first

	// fill particles into cells
	for i := 0; i < fs.numParticles; i++ {
		c := fs.hashCell(fs.particlePos[2*i], fs.particlePos[2*i+1])
		fs.firstCellParticle[c]--
		fs.cellParticleIds[fs.firstCellParticle[c]] = i
	}
}

// pushParticlesApart separates overlapping particles so that no two of them
// get closer than twice the particle radius.
func (fs *Solver) pushParticlesApart(numIters int) {
	fs.buildHash()

	minDist := 2.0 * fs.particleRadius
	minDist2 := minDist * minDist

	for iter := 0; iter < numIters; iter++ {
		for i := 0; i < fs.numParticles; i++ {
			px := fs.particlePos[2*i]
			py := fs.particlePos[2*i+1]

			pxi := int(math.Floor(px * fs.pInvSpacing))
			pyi := int(math.Floor(py * fs.pInvSpacing))
			x0 := max(pxi-1, 0)
			y0 := max(pyi-1, 0)
			x1 := min(pxi+1, fs.pNumX-1)
			y1 := min(pyi+1, fs.pNumY-1)

			for xi := x0; xi <= x1; xi++ {
				for yi := y0; yi <= y1; yi++ {
					c := xi*fs.pNumY + yi
					first := fs.firstCellParticle[c]
					last := fs.firstCellParticle[c+1]
					for j := first; j < last; j++ {
						id := fs.cellParticleIds[j]
						if id == i {
							continue
						}
						qx := fs.particlePos[2*id]
						qy := fs.particlePos[2*id+1]

						dx := qx - px
						dy := qy - py
						d2 := dx*dx + dy*dy
						// Coincident particles have no separating axis.
						if d2 > minDist2 || d2 == 0.0 {
							continue
						}

						d := math.Sqrt(d2)
						s := 0.5 * (minDist - d) / d
						dx *= s
						dy *= s

						fs.particlePos[2*i] -= dx
						fs.particlePos[2*i+1] -= dy
						fs.particlePos[2*id] += dx
						fs.particlePos[2*id+1] += dy

						fs.diffuseColors(i, id)
					}
				}
			}
		}
	}
}

func (fs *Solver) diffuseColors(a, b int) {
	for k := 0; k < 3; k++ {
		c0 := fs.particleColor[3*a+k]
		c1 := fs.particleColor[3*b+k]
		c := (c0 + c1) * 0.5
		fs.particleColor[3*a+k] = c0 + (c-c0)*colorDiffusionCoeff
		fs.particleColor[3*b+k] = c1 + (c-c1)*colorDiffusionCoeff
	}
}
