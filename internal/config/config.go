package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kartoza/labcalc/internal/fitting"
)

// Config holds the application configuration
type Config struct {
	Port         int       `yaml:"port"`
	Version      string    `yaml:"-"`
	CORSOrigins  []string  `yaml:"cors_origins"`
	CacheSize    int       `yaml:"cache_size"`
	MaxBodyBytes int64     `yaml:"max_body_bytes"`
	StrictParams bool      `yaml:"strict_params"`
	Fit          FitConfig `yaml:"fit"`
}

// FitConfig holds the server-wide fit defaults. A request may still override
// the error scaling policy.
type FitConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	ErrorScaling  string  `yaml:"error_scaling"`
	CurvePoints   int     `yaml:"curve_points"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	opts := fitting.DefaultOptions()
	return Config{
		Port:         8000,
		Version:      "dev",
		CORSOrigins:  []string{"*"},
		CacheSize:    256,
		MaxBodyBytes: 1 << 20,
		Fit: FitConfig{
			MaxIterations: opts.MaxIterations,
			Tolerance:     opts.Tolerance,
			ErrorScaling:  opts.ErrorScaling.String(),
			CurvePoints:   opts.CurvePoints,
		},
	}
}

// Load reads a YAML file over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and that the fit section produces usable options.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	if _, err := c.FitOptions(); err != nil {
		return err
	}
	return nil
}

// FitOptions converts the fit section into fitting options.
func (c Config) FitOptions() ([]fitting.Option, error) {
	scaling, err := fitting.ParseErrorScaling(c.Fit.ErrorScaling)
	if err != nil {
		return nil, err
	}
	opts := []fitting.Option{
		fitting.WithMaxIterations(c.Fit.MaxIterations),
		fitting.WithTolerance(c.Fit.Tolerance),
		fitting.WithErrorScaling(scaling),
		fitting.WithCurvePoints(c.Fit.CurvePoints),
	}
	if err := fitting.CheckOptions(opts...); err != nil {
		return nil, err
	}
	return opts, nil
}
