package fluid

import (
	"math"
	"testing"
)

// fillInterior marks every open cell as fluid.
func fillInterior(fs *Solver) {
	for i := range fs.cellType {
		if fs.s[i] == 0 {
			fs.cellType[i] = SolidCell
		} else {
			fs.cellType[i] = FluidCell
		}
	}
}

func TestSolveIncompressibilityRemovesDivergence(t *testing.T) {
	fs := newTestSolver(t, 10, 10, 1, 0.1, 1)
	fillInterior(fs)
	n := fs.NumY()
	fs.u[5*n+5] = 1
	fs.u[3*n+7] = -0.5
	fs.v[3*n+6] = -2
	fs.v[7*n+2] = 0.75

	if fs.MaxDivergence() < 1 {
		t.Fatalf("initial divergence %v is too small for the test", fs.MaxDivergence())
	}

	fs.solveIncompressibility(1000, 0.1, 1.0, false)

	if d := fs.MaxDivergence(); d > 1e-6 {
		t.Errorf("max divergence after projection = %v", d)
	}
	for j := 0; j < n; j++ {
		if fs.u[n+j] != 0 || fs.u[(fs.NumX()-1)*n+j] != 0 {
			t.Errorf("wall face in row %d moved: %v, %v", j, fs.u[n+j], fs.u[(fs.NumX()-1)*n+j])
		}
	}
}

func TestSolveIncompressibilityOverRelaxationConverges(t *testing.T) {
	for _, omega := range []float64{1.0, 1.5, 1.9} {
		fs := newTestSolver(t, 10, 10, 1, 0.1, 1)
		fillInterior(fs)
		n := fs.NumY()
		fs.u[4*n+4] = 2

		fs.solveIncompressibility(2000, 0.1, omega, false)

		if d := fs.MaxDivergence(); d > 1e-6 {
			t.Errorf("omega %v: max divergence = %v", omega, d)
		}
	}
}

func TestSolveIncompressibilitySkipsEnclosedCells(t *testing.T) {
	fs := newTestSolver(t, 10, 10, 1, 0.1, 1)
	for _, c := range [][2]int{{4, 5}, {6, 5}, {5, 4}, {5, 6}} {
		fs.SetSolid(c[0], c[1], true)
	}
	fillInterior(fs)
	for i := range fs.cellType {
		if i != 5*fs.NumY()+5 {
			fs.cellType[i] = SolidCell
		}
	}
	n := fs.NumY()
	fs.u[5*n+5] = 1
	fs.v[5*n+6] = -1

	fs.solveIncompressibility(10, 0.1, 1.9, true)

	if fs.u[5*n+5] != 1 || fs.v[5*n+6] != -1 {
		t.Errorf("enclosed cell faces changed: u=%v v=%v", fs.u[5*n+5], fs.v[5*n+6])
	}
	if fs.p[5*n+5] != 0 {
		t.Errorf("enclosed cell pressure = %v, want 0", fs.p[5*n+5])
	}
}

func TestSolveIncompressibilityDriftCompensation(t *testing.T) {
	setup := func() *Solver {
		fs := newTestSolver(t, 10, 10, 1, 0.1, 1)
		fillInterior(fs)
		fs.particleRestDensity = 1
		for i := range fs.particleDensity {
			fs.particleDensity[i] = 1
		}
		fs.particleDensity[5*fs.NumY()+5] = 3
		return fs
	}
	n := 11

	fs := setup()
	fs.solveIncompressibility(1, 0.1, 1.0, true)
	if fs.u[5*n+5] >= 0 || fs.u[6*n+5] <= 0 || fs.v[5*n+5] >= 0 || fs.v[5*n+6] <= 0 {
		t.Errorf("overpacked cell not pushed apart: left %v right %v bottom %v top %v",
			fs.u[5*n+5], fs.u[6*n+5], fs.v[5*n+5], fs.v[5*n+6])
	}
	if fs.p[5*n+5] <= 0 {
		t.Errorf("pressure of the overpacked cell = %v, want > 0", fs.p[5*n+5])
	}

	fs = setup()
	fs.solveIncompressibility(1, 0.1, 1.0, false)
	for i := range fs.u {
		if fs.u[i] != 0 || fs.v[i] != 0 {
			t.Fatalf("velocity without drift compensation at %d: (%v, %v)", i, fs.u[i], fs.v[i])
		}
	}
}

func TestUpdateParticleDensity(t *testing.T) {
	fs := newTestSolver(t, 10, 10, 1, 0.1, 3)
	fs.AddParticle(5.5, 5.5, 0, 0, 1)
	fs.AddParticle(2.3, 7.1, 0, 0, 1)
	fs.AddParticle(8.2, 1.6, 0, 0, 1)
	fs.classifyCells()

	fs.updateParticleDensity()

	var total float64
	for _, d := range fs.Density() {
		total += d
	}
	// Each particle splats a unit mass.
	if math.Abs(total-3) > 1e-12 {
		t.Errorf("total density = %v, want 3", total)
	}
	if fs.RestDensity() <= 0 {
		t.Errorf("rest density = %v, want > 0", fs.RestDensity())
	}
}

func TestUpdateParticleDensityWithoutFluid(t *testing.T) {
	fs := newTestSolver(t, 10, 10, 1, 0.1, 1)
	fs.classifyCells()

	fs.updateParticleDensity()

	if fs.RestDensity() != 0 {
		t.Errorf("rest density = %v without fluid cells, want 0", fs.RestDensity())
	}
}
