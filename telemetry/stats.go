// Package telemetry samples solver diagnostics and writes them to CSV.
package telemetry

import (
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	fluid "github.com/esimov/flip-fluid/fluid-solver"
)

// Sample holds the solver statistics of one frame.
type Sample struct {
	Step      int     `csv:"step"`
	Time      float64 `csv:"sim_time"`
	Particles int     `csv:"particles"`

	// Fluid cells at the end of the frame
	FluidCells    int     `csv:"fluid_cells"`
	RestDensity   float64 `csv:"rest_density"`
	MeanDensity   float64 `csv:"density_mean"`
	DensityStdDev float64 `csv:"density_std"`
	MaxPressure   float64 `csv:"pressure_max"`

	// Particle motion
	MaxSpeed      float64 `csv:"speed_max"`
	KineticEnergy float64 `csv:"kinetic_energy"` // Per unit particle mass

	StepMicros int64 `csv:"step_us"`
}

// Collect samples the solver state after step frames and t seconds of
// simulated time. d is the wall time the last frame took.
func Collect(s *fluid.Solver, step int, t float64, d time.Duration) Sample {
	smp := Sample{
		Step:        step,
		Time:        t,
		Particles:   s.NumParticles(),
		RestDensity: s.RestDensity(),
		StepMicros:  d.Microseconds(),
	}

	var densities, pressures []float64
	density, pressure := s.Density(), s.Pressure()
	for i := 0; i < s.NumX(); i++ {
		for j := 0; j < s.NumY(); j++ {
			if s.CellType(i, j) != fluid.FluidCell {
				continue
			}
			c := i*s.NumY() + j
			densities = append(densities, density[c])
			pressures = append(pressures, pressure[c])
		}
	}
	smp.FluidCells = len(densities)
	if len(densities) > 0 {
		smp.MeanDensity, smp.DensityStdDev = stat.PopMeanStdDev(densities, nil)
		smp.MaxPressure = floats.Max(pressures)
	}

	vel := s.Velocities()
	if n := s.NumParticles(); n > 0 {
		speeds := make([]float64, n)
		for i := range speeds {
			vx, vy := vel[2*i], vel[2*i+1]
			speeds[i] = math.Hypot(vx, vy)
			smp.KineticEnergy += 0.5 * (vx*vx + vy*vy)
		}
		smp.MaxSpeed = floats.Max(speeds)
	}

	return smp
}

// LogValue implements slog.LogValuer.
func (s Sample) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("step", s.Step),
		slog.Float64("time", s.Time),
		slog.Int("particles", s.Particles),
		slog.Int("fluid_cells", s.FluidCells),
		slog.Float64("density_mean", s.MeanDensity),
		slog.Float64("speed_max", s.MaxSpeed),
		slog.Int64("step_us", s.StepMicros),
	)
}
