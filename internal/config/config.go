package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/batsim/internal/cell"
	"github.com/san-kum/batsim/internal/stepper"
)

const (
	DefaultDt         = 1.0
	DefaultDuration   = 3600.0
	DefaultInitialSOC = stepper.DefaultInitialSOC
	DefaultCurrent    = 5.0
	DefaultLogLevel   = "INFO"

	// MaxWindows bounds a single run.
	MaxWindows = 10_000_000
)

type Config struct {
	Name    string             `yaml:"name"`
	Cell    cell.Parameters    `yaml:"cell"`
	Solver  cell.SolverOptions `yaml:"solver"`
	Run     RunConfig          `yaml:"run"`
	Profile ProfileConfig      `yaml:"profile"`
	Log     LogConfig          `yaml:"log"`
}

type RunConfig struct {
	Dt             float64 `yaml:"dt"`
	Duration       float64 `yaml:"duration"`
	StartTime      float64 `yaml:"start_time"`
	InitialSOC     float64 `yaml:"initial_soc"`
	Samples        int     `yaml:"samples"`
	PrimingSamples int     `yaml:"priming_samples"`
	Bootstrap      string  `yaml:"bootstrap"`
	StopOnCutoff   bool    `yaml:"stop_on_cutoff"`
	// Inclusive adds one window so the last window starts at Duration.
	Inclusive bool `yaml:"inclusive"`
}

// ProfileConfig describes the applied current per window. Which fields
// matter depends on Kind: constant uses Current; pulse uses Current,
// RestCurrent, Period and Duty; steps uses Steps.
type ProfileConfig struct {
	Kind        string       `yaml:"kind"`
	Current     float64      `yaml:"current"`
	RestCurrent float64      `yaml:"rest_current"`
	Period      float64      `yaml:"period"`
	Duty        float64      `yaml:"duty"`
	Steps       []StepConfig `yaml:"steps"`
}

// StepConfig holds Current until the simulation time reaches Until.
type StepConfig struct {
	Until   float64 `yaml:"until"`
	Current float64 `yaml:"current"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:   "default",
		Cell:   cell.Default(),
		Solver: cell.DefaultSolverOptions(),
		Run: RunConfig{
			Dt:             DefaultDt,
			Duration:       DefaultDuration,
			InitialSOC:     DefaultInitialSOC,
			Samples:        stepper.DefaultSamples,
			PrimingSamples: stepper.DefaultPrimingSamples,
			Bootstrap:      stepper.BootstrapCold.String(),
			StopOnCutoff:   true,
		},
		Profile: ProfileConfig{
			Kind:    "constant",
			Current: DefaultCurrent,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: "text",
		},
	}
}

// Load reads a yaml file on top of DefaultConfig, so omitted keys keep
// their defaults.
func Load(path string) (*Config, error) {
	return LoadOnto(path, DefaultConfig())
}

// LoadOnto reads a yaml file on top of base, typically a preset.
func LoadOnto(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if err := c.Cell.Validate(); err != nil {
		return err
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}

	r := c.Run
	for name, v := range map[string]float64{
		"dt": r.Dt, "duration": r.Duration, "start_time": r.StartTime, "initial_soc": r.InitialSOC,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %f", name, v)
		}
	}
	if r.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", r.Dt)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", r.Duration)
	}
	if r.StartTime < 0 {
		return fmt.Errorf("start_time must be non-negative, got %f", r.StartTime)
	}
	if r.InitialSOC < 0 || r.InitialSOC > 1 {
		return fmt.Errorf("initial_soc must be in [0, 1], got %f", r.InitialSOC)
	}
	if r.Samples < 1 || r.PrimingSamples < 1 {
		return fmt.Errorf("samples and priming_samples must be positive")
	}
	if _, err := stepper.ParseBootstrap(r.Bootstrap); err != nil {
		return err
	}
	if n := r.Duration / r.Dt; n > MaxWindows {
		return fmt.Errorf("duration/dt gives %.0f windows, more than %d", n, MaxWindows)
	}
	return nil
}

// Windows is the number of windows a run covers.
func (c *Config) Windows() int {
	n := int(math.Round(c.Run.Duration / c.Run.Dt))
	if c.Run.Inclusive {
		n++
	}
	return n
}

// DriverOptions translates the run section into stepper options.
func (c *Config) DriverOptions() ([]stepper.Option, error) {
	b, err := stepper.ParseBootstrap(c.Run.Bootstrap)
	if err != nil {
		return nil, err
	}
	return []stepper.Option{
		stepper.WithInitialSOC(c.Run.InitialSOC),
		stepper.WithSamples(c.Run.Samples, c.Run.PrimingSamples),
		stepper.WithBootstrap(b),
	}, nil
}
