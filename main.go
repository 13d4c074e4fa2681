package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/esimov/flip-fluid/config"
	"github.com/esimov/flip-fluid/detector"
	"github.com/esimov/flip-fluid/scene"
	"github.com/esimov/flip-fluid/telemetry"
	"github.com/esimov/flip-fluid/terminal"
	"github.com/esimov/flip-fluid/websocket"
)

const debugLog = "debug.log"

func main() {
	configPath := flag.String("config", "", "Path to config YAML file (empty = use embedded defaults)")
	mode := flag.String("mode", "terminal", "Front-end: terminal, serve or headless")
	steps := flag.Int("steps", 600, "Number of frames to simulate in headless mode")
	outputDir := flag.String("output-dir", "", "Directory for telemetry CSV and config snapshot")
	seed := flag.Int64("seed", 0, "Seed of the initial particle jitter (0 = use config)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	logOut := io.Writer(os.Stderr)
	if *mode == "terminal" {
		// The terminal owns the screen, so logs go to a file.
		f, err := os.OpenFile(debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening %s: %v\n", debugLog, err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, *configPath, *mode, *steps, *outputDir, *seed); err != nil {
		logger.Error("fatal", "err", err)
		if *mode == "terminal" {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, mode string, steps int, outputDir string, seed int64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if seed != 0 {
		cfg.Scene.Seed = seed
	}
	if outputDir != "" {
		cfg.Telemetry.OutputDir = outputDir
	}

	sc, err := scene.New(cfg)
	if err != nil {
		return err
	}
	logger.Info("scene ready",
		"grid_x", sc.Solver().NumX(),
		"grid_y", sc.Solver().NumY(),
		"particles", sc.Solver().NumParticles(),
		"obstacles", len(sc.Obstacles()),
	)

	if err := addDetectedObstacles(logger, sc, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "terminal":
		return terminal.New(sc, cfg.Terminal, logger).Render(ctx)
	case "serve":
		return websocket.NewServer(sc, cfg.Server, logger).Run(ctx)
	case "headless":
		return runHeadless(ctx, logger, sc, cfg, steps)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// addDetectedObstacles turns the faces found in the configured image into
// static obstacles.
func addDetectedObstacles(logger *slog.Logger, sc *scene.Scene, cfg *config.Config) error {
	dc := cfg.Detector
	if dc.Cascade == "" || dc.Image == "" {
		return nil
	}
	cascade, err := os.ReadFile(dc.Cascade)
	if err != nil {
		return fmt.Errorf("reading cascade: %w", err)
	}
	det, err := detector.New(cascade, detector.Params{
		MinSize:      dc.MinSize,
		MaxSize:      dc.MaxSize,
		ShiftFactor:  dc.ShiftFactor,
		ScaleFactor:  dc.ScaleFactor,
		IoUThreshold: dc.IoUThreshold,
		MinQuality:   dc.MinQuality,
	})
	if err != nil {
		return err
	}
	img, err := detector.LoadImage(dc.Image)
	if err != nil {
		return err
	}

	b := img.Bounds()
	dets := det.Detect(img)
	faces := detector.Obstacles(dets, b.Dx(), b.Dy(), cfg.Fluid.Width, cfg.Fluid.Height)
	sc.SetObstacles(append(sc.Obstacles(), faces...))
	logger.Info("faces detected", "image", dc.Image, "faces", len(faces))
	return nil
}

func runHeadless(ctx context.Context, logger *slog.Logger, sc *scene.Scene, cfg *config.Config, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("headless mode needs a positive step count, got %d", steps)
	}
	out, err := telemetry.NewOutput(cfg.Telemetry.OutputDir)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		return err
	}

	var (
		last  telemetry.Sample
		total time.Duration
	)
	start := time.Now()
	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("interrupted", "step", i-1)
			break
		}
		t0 := time.Now()
		sc.Step(cfg.Step.DT)
		d := time.Since(t0)
		total += d

		if i%cfg.Telemetry.Every == 0 || i == steps {
			last = telemetry.Collect(sc.Solver(), sc.Steps(), sc.Time(), d)
			if err := out.Write(last); err != nil {
				return err
			}
			logger.Debug("sample", "sample", last)
		}
	}

	logger.Info("headless run complete",
		"summary", last,
		"wall", time.Since(start).Round(time.Millisecond),
		"mean_step_us", meanMicros(total, sc.Steps()),
		"output", out.Dir(),
	)
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}

func meanMicros(total time.Duration, steps int) int64 {
	if steps == 0 {
		return 0
	}
	return total.Microseconds() / int64(steps)
}
