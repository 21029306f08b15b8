package config

import (
	"os"
	"path/filepath"
	"testing"

	"feature-matcher/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Validate())
	assert.Equal(t, features.DefaultRatio, opts.Ratio)
	assert.False(t, opts.Verify.Enabled)
}

func TestParseOverridesDefaults(t *testing.T) {
	opts, err := Parse([]byte(`
ratio: 0.6
workers: 4
verify:
  enabled: true
  threshold: 2.5
render:
  label: false
`))
	require.NoError(t, err)
	assert.Equal(t, 0.6, opts.Ratio)
	assert.Equal(t, 4, opts.Workers)
	assert.True(t, opts.Verify.Enabled)
	assert.Equal(t, 2.5, opts.Verify.Threshold)
	assert.Equal(t, Default().Verify.Iterations, opts.Verify.Iterations)
	assert.False(t, opts.Render.Label)
	assert.True(t, opts.StrictRatio)
	assert.Equal(t, 1.0, opts.Scale)
}

func TestParseEmpty(t *testing.T) {
	opts, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), opts)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "ratoi: 0.5\n",
		"ratio too high": "ratio: 1.5\n",
		"ratio zero":     "ratio: 0\n",
		"negative work":  "workers: -2\n",
		"negative scale": "scale: -1\n",
		"scale too big":  "scale: 8\n",
		"bad verify":     "verify:\n  enabled: true\n  iterations: 0\n",
		"not yaml":       "ratio: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestZeroScaleMeansUnscaled(t *testing.T) {
	assert.NoError(t, Options{Ratio: 0.75, StrictRatio: true}.Validate())

	opts, err := Parse([]byte("scale: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, opts.Scale)
}

func TestLenientRatio(t *testing.T) {
	opts, err := Parse([]byte("strict_ratio: false\nratio: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, opts.Ratio)
}

func TestLoadAndMarshal(t *testing.T) {
	want := Default()
	want.Ratio = 0.8
	want.Verify.Enabled = true

	data, err := want.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "match.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRatioErrorIsWrapped(t *testing.T) {
	opts := Default()
	opts.Ratio = 2
	assert.ErrorIs(t, opts.Validate(), features.ErrInvalidRatio)
}
