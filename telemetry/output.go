package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/esimov/flip-fluid/config"
)

// Output writes samples to steps.csv inside an output directory.
// A nil *Output discards everything.
type Output struct {
	dir           string
	stepsFile     *os.File
	headerWritten bool
}

// NewOutput creates the output directory and opens steps.csv.
// Returns nil if dir is empty (output disabled).
func NewOutput(dir string) (*Output, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "steps.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating steps.csv: %w", err)
	}
	return &Output{dir: dir, stepsFile: f}, nil
}

// WriteConfig saves the effective configuration as YAML.
func (o *Output) WriteConfig(cfg *config.Config) error {
	if o == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(o.dir, "config.yaml"))
}

// Write appends a sample to steps.csv.
func (o *Output) Write(s Sample) error {
	if o == nil {
		return nil
	}

	records := []Sample{s}
	if !o.headerWritten {
		if err := gocsv.Marshal(records, o.stepsFile); err != nil {
			return fmt.Errorf("writing sample: %w", err)
		}
		o.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, o.stepsFile); err != nil {
		return fmt.Errorf("writing sample: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (o *Output) Dir() string {
	if o == nil {
		return ""
	}
	return o.dir
}

// Close closes steps.csv.
func (o *Output) Close() error {
	if o == nil {
		return nil
	}
	return o.stepsFile.Close()
}
