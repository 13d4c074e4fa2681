package fluid

import (
	"math"
	"testing"
)

func TestSciColor(t *testing.T) {
	tests := []struct {
		name                string
		val, min, max       float64
		wantR, wantG, wantB float64
	}{
		{"bottom", 0, 0, 2, 0, 0, 1},
		{"quarter", 0.5, 0, 2, 0, 1, 1},
		{"half", 1, 0, 2, 0, 1, 0},
		{"three quarters", 1.5, 0, 2, 1, 1, 0},
		{"below range", -4, 0, 2, 0, 0, 1},
		{"empty range", 3, 1, 1, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := SciColor(tt.val, tt.min, tt.max)
			if math.Abs(r-tt.wantR) > 1e-9 || math.Abs(g-tt.wantG) > 1e-9 || math.Abs(b-tt.wantB) > 1e-9 {
				t.Errorf("SciColor(%v, %v, %v) = (%v, %v, %v), want (%v, %v, %v)",
					tt.val, tt.min, tt.max, r, g, b, tt.wantR, tt.wantG, tt.wantB)
			}
		})
	}

	if r, g, b := SciColor(10, 0, 2); r != 1 || g > 0.001 || b != 0 {
		t.Errorf("SciColor above range = (%v, %v, %v), want red", r, g, b)
	}
}

func TestUpdateParticleColorsDrift(t *testing.T) {
	fs := newTestSolver(t, 10, 10, 1, 0.1, 2)
	fs.AddParticle(5, 5, 0.5, 0.5, 0.5)
	fs.AddParticle(6, 6, 0, 0.005, 1)

	fs.updateParticleColors()

	if r, g, b := fs.Color(0); math.Abs(r-0.49) > 1e-12 || math.Abs(g-0.49) > 1e-12 || math.Abs(b-0.51) > 1e-12 {
		t.Errorf("drifted colour = (%v, %v, %v), want (0.49, 0.49, 0.51)", r, g, b)
	}
	if r, g, b := fs.Color(1); r != 0 || g != 0 || b != 1 {
		t.Errorf("clamped colour = (%v, %v, %v), want (0, 0, 1)", r, g, b)
	}
}

func TestUpdateParticleColorsFoam(t *testing.T) {
	fs := newTestSolver(t, 10, 10, 1, 0.1, 2)
	fs.AddParticle(5.5, 5.5, 0, 0, 1)
	fs.AddParticle(2.5, 2.5, 0, 0, 1)
	fs.particleRestDensity = 1
	for i := range fs.particleDensity {
		fs.particleDensity[i] = 1
	}
	h1 := fs.fInvSpacing
	fs.particleDensity[int(5.5*h1)*fs.NumY()+int(5.5*h1)] = 0.5

	fs.updateParticleColors()

	if r, g, b := fs.Color(0); r != foamTint || g != foamTint || b != 1 {
		t.Errorf("sparse particle colour = (%v, %v, %v), want foam", r, g, b)
	}
	if r, g, b := fs.Color(1); r != 0 || g != 0 || b != 1 {
		t.Errorf("dense particle colour = (%v, %v, %v), want blue", r, g, b)
	}
}

func TestUpdateCellColors(t *testing.T) {
	fs := newTestSolver(t, 10, 10, 1, 0.1, 1)
	fillInterior(fs)
	fs.particleRestDensity = 1
	for i := range fs.particleDensity {
		fs.particleDensity[i] = 1
	}
	fs.cellType[3*fs.NumY()+3] = AirCell

	fs.updateCellColors()

	colors := fs.CellColors()
	at := func(i, j int) [3]float64 {
		c := 3 * (i*fs.NumY() + j)
		return [3]float64{colors[c], colors[c+1], colors[c+2]}
	}
	if got := at(0, 0); got != [3]float64{solidGrey, solidGrey, solidGrey} {
		t.Errorf("solid cell colour = %v", got)
	}
	if got := at(3, 3); got != [3]float64{} {
		t.Errorf("air cell colour = %v, want black", got)
	}
	if got := at(5, 5); got != [3]float64{0, 1, 0} {
		t.Errorf("fluid cell at rest density colour = %v, want green", got)
	}
}
