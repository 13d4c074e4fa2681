package fluid

import "math"

const (
	// colorDrift is the per step shift of every particle toward blue.
	colorDrift = 0.01
	// foamDensity is the relative density below which particles turn to foam.
	foamDensity = 0.7
	// foamTint is the red and green level of foam particles.
	foamTint = 0.8
	// solidGrey is the colour of wall cells.
	solidGrey = 0.5
	// maxRelDensity is the top of the density colour map.
	maxRelDensity = 2.0
)

// updateParticleColors drifts the particle colours toward blue and paints
// the sparse regions as foam. Colours never feed back into the physics.
func (fs *Solver) updateParticleColors() {
	h1 := fs.fInvSpacing
	d0 := fs.particleRestDensity

	for i := 0; i < fs.numParticles; i++ {
		fs.particleColor[3*i] = clamp(fs.particleColor[3*i]-colorDrift, 0.0, 1.0)
		fs.particleColor[3*i+1] = clamp(fs.particleColor[3*i+1]-colorDrift, 0.0, 1.0)
		fs.particleColor[3*i+2] = clamp(fs.particleColor[3*i+2]+colorDrift, 0.0, 1.0)

		if d0 <= 0.0 {
			continue
		}

		x := fs.particlePos[2*i]
		y := fs.particlePos[2*i+1]
		xi := clampInt(int(math.Floor(x*h1)), 1, fs.fNumX-1)
		yi := clampInt(int(math.Floor(y*h1)), 1, fs.fNumY-1)

		if fs.particleDensity[xi*fs.fNumY+yi]/d0 < foamDensity {
			fs.particleColor[3*i] = foamTint
			fs.particleColor[3*i+1] = foamTint
			fs.particleColor[3*i+2] = 1.0
		}
	}
}

// SciColor maps val within [minVal, maxVal] onto a blue, cyan, green,
// yellow, red colour ramp.
func SciColor(val, minVal, maxVal float64) (r, g, b float64) {
	val = math.Min(math.Max(val, minVal), maxVal-0.0001)
	d := maxVal - minVal
	if d == 0.0 {
		val = 0.5
	} else {
		val = (val - minVal) / d
	}
	const m = 0.25
	num := math.Floor(val / m)
	s := (val - num*m) / m

	switch int(num) {
	case 0:
		return 0.0, s, 1.0
	case 1:
		return 0.0, 1.0, 1.0 - s
	case 2:
		return s, 1.0, 0.0
	default:
		return 1.0, 1.0 - s, 0.0
	}
}

func (fs *Solver) updateCellColors() {
	for i := range fs.cellColor {
		fs.cellColor[i] = 0.0
	}

	for i := 0; i < fs.fNumCells; i++ {
		switch fs.cellType[i] {
		case SolidCell:
			fs.cellColor[3*i] = solidGrey
			fs.cellColor[3*i+1] = solidGrey
			fs.cellColor[3*i+2] = solidGrey
		case FluidCell:
			if fs.particleRestDensity > 0.0 {
				r, g, b := SciColor(fs.particleDensity[i]/fs.particleRestDensity, 0.0, maxRelDensity)
				fs.cellColor[3*i] = r
				fs.cellColor[3*i+1] = g
				fs.cellColor[3*i+2] = b
			}
		}
	}
}
