// Package config provides configuration loading for the fluid simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	fluid "github.com/esimov/flip-fluid/fluid-solver"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid value")

// Config holds all simulation configuration parameters.
type Config struct {
	Fluid     FluidConfig      `yaml:"fluid"`
	Step      StepConfig       `yaml:"step"`
	Scene     SceneConfig      `yaml:"scene"`
	Pointer   PointerConfig    `yaml:"pointer"`
	Obstacles []ObstacleConfig `yaml:"obstacles"`
	Terminal  TerminalConfig   `yaml:"terminal"`
	Server    ServerConfig     `yaml:"server"`
	Detector  DetectorConfig   `yaml:"detector"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
}

// FluidConfig holds the solver construction parameters.
type FluidConfig struct {
	Density        float64 `yaml:"density"`
	Width          float64 `yaml:"width"`
	Height         float64 `yaml:"height"`
	Spacing        float64 `yaml:"spacing"`
	ParticleRadius float64 `yaml:"particle_radius"`
	MaxParticles   int     `yaml:"max_particles"`
}

// StepConfig holds the per frame solver parameters.
type StepConfig struct {
	DT                float64 `yaml:"dt"`
	MaxDT             float64 `yaml:"max_dt"` // Frame times above this are clamped
	Gravity           float64 `yaml:"gravity"`
	FlipRatio         float64 `yaml:"flip_ratio"`
	PressureIters     int     `yaml:"pressure_iters"`
	ParticleIters     int     `yaml:"particle_iters"`
	OverRelaxation    float64 `yaml:"over_relaxation"`
	CompensateDrift   bool    `yaml:"compensate_drift"`
	SeparateParticles bool    `yaml:"separate_particles"`
	SubSteps          int     `yaml:"sub_steps"`
}

// SceneConfig holds the initial particle layout.
type SceneConfig struct {
	Seed       int64   `yaml:"seed"`
	FillWidth  float64 `yaml:"fill_width"`  // Fraction of the domain width filled with particles
	FillHeight float64 `yaml:"fill_height"` // Fraction of the domain height filled with particles
	Lattice    float64 `yaml:"lattice"`     // Particle distance in grid spacings
	Jitter     float64 `yaml:"jitter"`      // Random offset in grid spacings
	Lid        bool    `yaml:"lid"`         // Bounce particles off the top of the domain
}

// PointerConfig holds the pointer interaction parameters.
type PointerConfig struct {
	Radius          float64 `yaml:"radius"`
	PressedRadius   float64 `yaml:"pressed_radius"`
	Strength        float64 `yaml:"strength"`
	PressedStrength float64 `yaml:"pressed_strength"`
	VelocityGain    float64 `yaml:"velocity_gain"` // Share of the pointer velocity passed to the particles
}

// ObstacleConfig describes a static circular obstacle.
type ObstacleConfig struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
}

// TerminalConfig holds the terminal renderer settings.
type TerminalConfig struct {
	FPS  int    `yaml:"fps"`
	View string `yaml:"view"` // particles, density or pressure
}

// ServerConfig holds the websocket server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Prefix  string `yaml:"prefix"`
	Root    string `yaml:"root"`
	FPS     int    `yaml:"fps"`
}

// DetectorConfig holds the face detector settings.
type DetectorConfig struct {
	Cascade      string  `yaml:"cascade"`
	Image        string  `yaml:"image"`
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	ShiftFactor  float64 `yaml:"shift_factor"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	IoUThreshold float64 `yaml:"iou_threshold"`
	MinQuality   float32 `yaml:"min_quality"`
}

// TelemetryConfig holds the diagnostics output settings.
type TelemetryConfig struct {
	OutputDir string `yaml:"output_dir"`
	Every     int    `yaml:"every"` // Record one sample every N steps
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only the fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the solver and the front-ends rely on.
func (c *Config) Validate() error {
	checks := []struct {
		ok   bool
		what string
	}{
		{c.Fluid.Density > 0, "fluid.density must be positive"},
		{c.Fluid.Width > 0 && c.Fluid.Height > 0, "fluid.width and fluid.height must be positive"},
		{c.Fluid.Spacing > 0, "fluid.spacing must be positive"},
		{c.Fluid.ParticleRadius > 0, "fluid.particle_radius must be positive"},
		{c.Fluid.MaxParticles > 0, "fluid.max_particles must be positive"},
		{c.Step.DT > 0, "step.dt must be positive"},
		{c.Step.MaxDT >= c.Step.DT, "step.max_dt must not be below step.dt"},
		{c.Step.FlipRatio >= 0 && c.Step.FlipRatio <= 1, "step.flip_ratio must be within [0,1]"},
		{c.Step.PressureIters > 0, "step.pressure_iters must be positive"},
		{c.Step.ParticleIters > 0, "step.particle_iters must be positive"},
		{c.Step.OverRelaxation > 0 && c.Step.OverRelaxation < 2, "step.over_relaxation must be within (0,2)"},
		{c.Step.SubSteps > 0, "step.sub_steps must be positive"},
		{c.Scene.FillWidth > 0 && c.Scene.FillWidth <= 1, "scene.fill_width must be within (0,1]"},
		{c.Scene.FillHeight > 0 && c.Scene.FillHeight <= 1, "scene.fill_height must be within (0,1]"},
		{c.Scene.Lattice > 0, "scene.lattice must be positive"},
		{c.Scene.Jitter >= 0, "scene.jitter must not be negative"},
		{c.Terminal.FPS > 0, "terminal.fps must be positive"},
		{c.Server.FPS > 0, "server.fps must be positive"},
		{c.Telemetry.Every > 0, "telemetry.every must be positive"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s", ErrInvalid, chk.what)
		}
	}

	switch c.Terminal.View {
	case "particles", "density", "pressure":
	default:
		return fmt.Errorf("%w: terminal.view %q", ErrInvalid, c.Terminal.View)
	}

	for i, o := range c.Obstacles {
		if o.Radius < 0 {
			return fmt.Errorf("%w: obstacles[%d].radius is negative", ErrInvalid, i)
		}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// SolverParams returns the solver construction parameters.
func (c FluidConfig) SolverParams() fluid.Params {
	return fluid.Params{
		Density:        c.Density,
		Width:          c.Width,
		Height:         c.Height,
		Spacing:        c.Spacing,
		ParticleRadius: c.ParticleRadius,
		MaxParticles:   c.MaxParticles,
	}
}

// Params returns the parameters of one Simulate call of length dt.
func (c StepConfig) Params(dt float64, o fluid.Obstacle) fluid.StepParams {
	return fluid.StepParams{
		DT:                dt,
		Gravity:           c.Gravity,
		FlipRatio:         c.FlipRatio,
		PressureIters:     c.PressureIters,
		ParticleIters:     c.ParticleIters,
		OverRelaxation:    c.OverRelaxation,
		CompensateDrift:   c.CompensateDrift,
		SeparateParticles: c.SeparateParticles,
		Obstacle:          o,
		SubSteps:          c.SubSteps,
	}
}

// Obstacle converts the configured obstacle.
func (o ObstacleConfig) Obstacle() fluid.Obstacle {
	return fluid.Obstacle{X: o.X, Y: o.Y, Radius: o.Radius}
}
