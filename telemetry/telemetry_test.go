package telemetry

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/esimov/flip-fluid/config"
	fluid "github.com/esimov/flip-fluid/fluid-solver"
)

func newSolver(t *testing.T) *fluid.Solver {
	t.Helper()
	fs, err := fluid.NewSolver(fluid.Params{
		Density:        1000,
		Width:          10,
		Height:         10,
		Spacing:        1,
		ParticleRadius: 0.1,
		MaxParticles:   4,
	})
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	for i := 0; i < fs.NumX(); i++ {
		for j := 0; j < fs.NumY(); j++ {
			if i == 0 || i == fs.NumX()-1 || j == 0 || j == fs.NumY()-1 {
				fs.SetSolid(i, j, true)
			}
		}
	}
	return fs
}

func TestCollectEmptySolver(t *testing.T) {
	fs := newSolver(t)

	s := Collect(fs, 0, 0, 0)

	if s.Particles != 0 || s.FluidCells != 0 || s.MaxSpeed != 0 || s.MeanDensity != 0 {
		t.Errorf("sample of an empty solver = %+v", s)
	}
}

func TestCollect(t *testing.T) {
	fs := newSolver(t)
	fs.AddParticle(5.5, 5.5, 0, 0, 1)
	fs.AddParticle(2.5, 7.5, 0, 0, 1)
	fs.Simulate(fluid.StepParams{
		DT:             0.01,
		FlipRatio:      0.9,
		PressureIters:  10,
		ParticleIters:  1,
		OverRelaxation: 1.9,
		Obstacle:       fluid.Obstacle{X: -10, Y: -10},
	})
	fs.SetVelocity(0, 3, 4)
	fs.SetVelocity(1, 0, 1)

	s := Collect(fs, 7, 0.5, 1500*time.Microsecond)

	if s.Step != 7 || s.Time != 0.5 || s.StepMicros != 1500 {
		t.Errorf("frame fields = %d, %v, %d", s.Step, s.Time, s.StepMicros)
	}
	if s.Particles != 2 {
		t.Errorf("particles = %d, want 2", s.Particles)
	}
	if s.FluidCells != 2 {
		t.Errorf("fluid cells = %d, want 2", s.FluidCells)
	}
	if s.MaxSpeed != 5 {
		t.Errorf("max speed = %v, want 5", s.MaxSpeed)
	}
	if math.Abs(s.KineticEnergy-13) > 1e-12 {
		t.Errorf("kinetic energy = %v, want 13", s.KineticEnergy)
	}
	if s.RestDensity <= 0 || s.MeanDensity <= 0 {
		t.Errorf("densities = %v rest, %v mean", s.RestDensity, s.MeanDensity)
	}
}

func TestOutputDisabled(t *testing.T) {
	out, err := NewOutput("")
	if err != nil || out != nil {
		t.Fatalf("NewOutput(\"\") = %v, %v", out, err)
	}
	if err := out.Write(Sample{}); err != nil {
		t.Errorf("Write on nil output: %v", err)
	}
	if err := out.WriteConfig(config.Default()); err != nil {
		t.Errorf("WriteConfig on nil output: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("Close on nil output: %v", err)
	}
}

func TestOutputWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	out, err := NewOutput(dir)
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}
	for step := 1; step <= 3; step++ {
		if err := out.Write(Sample{Step: step, Particles: 10}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := out.WriteConfig(config.Default()); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "steps.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("steps.csv has %d lines, want a header and 3 rows:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "step,sim_time,particles") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[3], "3,") {
		t.Errorf("last row = %q", lines[3])
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config snapshot missing: %v", err)
	}
}
