// Package config holds the matching options and loads them from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"feature-matcher/internal/features"
	"feature-matcher/internal/verify"

	"gopkg.in/yaml.v3"
)

// Options configures one matching run.
type Options struct {
	Ratio       float64 `yaml:"ratio"`        // Lowe's ratio threshold
	StrictRatio bool    `yaml:"strict_ratio"` // Reject ratios outside (0, 1] instead of computing a degenerate result
	Workers     int     `yaml:"workers"`      // Ratio-test workers; <= 1 runs serially
	Scale       float64 `yaml:"scale"`        // Resize inputs by this factor before detection; 0 or 1 keeps them as is

	Verify VerifyOptions `yaml:"verify"`
	Render RenderOptions `yaml:"render"`
}

// VerifyOptions configures the RANSAC consistency pass.
type VerifyOptions struct {
	Enabled    bool    `yaml:"enabled"`
	Iterations int     `yaml:"iterations"`
	Threshold  float64 `yaml:"threshold"`
	Seed       int64   `yaml:"seed"`
}

// Params converts to verify.Params.
func (v VerifyOptions) Params() verify.Params {
	return verify.Params{Iterations: v.Iterations, Threshold: v.Threshold, Seed: v.Seed}
}

// RenderOptions configures the visualization.
type RenderOptions struct {
	Skip  bool `yaml:"skip"`  // Do not render at all
	Label bool `yaml:"label"` // Draw the match count on the image
}

// Default returns the options used when no config file is given.
func Default() Options {
	vp := verify.DefaultParams()
	return Options{
		Ratio:       features.DefaultRatio,
		StrictRatio: true,
		Workers:     1,
		Scale:       1,
		Verify: VerifyOptions{
			Enabled:    false,
			Iterations: vp.Iterations,
			Threshold:  vp.Threshold,
			Seed:       vp.Seed,
		},
		Render: RenderOptions{Label: true},
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	var errs []error
	if o.StrictRatio {
		if err := features.ValidateRatio(o.Ratio); err != nil {
			errs = append(errs, err)
		}
	}
	if o.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", o.Workers))
	}
	if o.Scale < 0 || o.Scale > 4 {
		errs = append(errs, fmt.Errorf("scale must be in [0, 4], got %v", o.Scale))
	}
	if o.Verify.Enabled {
		if o.Verify.Iterations <= 0 {
			errs = append(errs, fmt.Errorf("verify.iterations must be positive, got %d", o.Verify.Iterations))
		}
		if o.Verify.Threshold <= 0 {
			errs = append(errs, fmt.Errorf("verify.threshold must be positive, got %v", o.Verify.Threshold))
		}
	}
	return errors.Join(errs...)
}

// Load reads options from a YAML file on top of Default. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read config: %w", err)
	}
	opts, err := Parse(data)
	if err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Parse decodes YAML options on top of Default and validates them.
func Parse(data []byte) (Options, error) {
	opts := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("parse config: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("invalid config: %w", err)
	}
	return opts, nil
}

// Marshal encodes options as YAML, e.g. to write a starter config.
func (o Options) Marshal() ([]byte, error) {
	return yaml.Marshal(o)
}
