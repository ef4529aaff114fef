package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/labcalc/internal/calcerr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labcalc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "absolute", cfg.Fit.ErrorScaling)
	assert.Equal(t, 200, cfg.Fit.MaxIterations)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
port: 9000
cors_origins: ["http://localhost:5173"]
strict_params: true
fit:
  error_scaling: chi2
  curve_points: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.True(t, cfg.StrictParams)
	assert.Equal(t, "chi2", cfg.Fit.ErrorScaling)
	assert.Equal(t, 50, cfg.Fit.CurvePoints)
	// Untouched keys keep their defaults.
	assert.Equal(t, 200, cfg.Fit.MaxIterations)
	assert.Equal(t, 1e-8, cfg.Fit.Tolerance)
	assert.Equal(t, 256, cfg.CacheSize)

	opts, err := cfg.FitOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 4)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "port: [1, 2"},
		{"port out of range", "port: 70000"},
		{"negative cache", "cache_size: -1"},
		{"zero body limit", "max_body_bytes: 0"},
		{"bad scaling", "fit:\n  error_scaling: relative"},
		{"bad tolerance", "fit:\n  tolerance: -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFitOptionsReportsInvalidInput(t *testing.T) {
	cfg := Default()
	cfg.Fit.CurvePoints = 1
	_, err := cfg.FitOptions()
	assert.ErrorIs(t, err, calcerr.ErrInvalidInput)
}
