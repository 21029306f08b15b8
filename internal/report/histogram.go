// Package report summarizes the ratio-test distribution of a matching run.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"feature-matcher/internal/features"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoRatios is returned when there are no finite ratios to plot.
var ErrNoRatios = errors.New("no finite best/second ratios")

// Summary describes the best/second distance ratios of candidate pairs.
type Summary struct {
	Count    int     // Pairs with a finite ratio
	Mean     float64 // Mean ratio
	Median   float64 // Median ratio
	StdDev   float64 // Sample standard deviation
	Accepted int     // Pairs that pass the ratio test at Threshold
}

// Ratios returns the finite ratios of pairs in input order.
func Ratios(pairs []features.CandidatePair) []float64 {
	ratios := make([]float64, 0, len(pairs))
	for _, p := range pairs {
		r := p.Ratio()
		if math.IsInf(r, 0) || math.IsNaN(r) {
			continue
		}
		ratios = append(ratios, r)
	}
	return ratios
}

// RatioSummary computes count, mean, median and spread of the pair ratios.
// Accepted uses the same test as features.FilterMatches.
func RatioSummary(pairs []features.CandidatePair, threshold float64) Summary {
	s := Summary{Accepted: len(features.FilterMatches(pairs, threshold))}

	ratios := Ratios(pairs)
	s.Count = len(ratios)
	if s.Count == 0 {
		return s
	}
	sort.Float64s(ratios)
	s.Mean, s.StdDev = stat.MeanStdDev(ratios, nil)
	if s.Count == 1 {
		s.StdDev = 0
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, ratios, nil)
	return s
}

// String formats the summary for terminal output.
func (s Summary) String() string {
	return fmt.Sprintf("ratios: n=%d mean=%.3f median=%.3f sd=%.3f accepted=%d",
		s.Count, s.Mean, s.Median, s.StdDev, s.Accepted)
}

// RatioHistogram writes a PNG histogram of pair ratios with a vertical line
// at threshold. Pairs left of the line are the ones the ratio test keeps.
func RatioHistogram(path string, pairs []features.CandidatePair, threshold float64, bins int) error {
	ratios := Ratios(pairs)
	if len(ratios) == 0 {
		return ErrNoRatios
	}
	if bins <= 0 {
		bins = 20
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Best/second distance ratio (n=%d)", len(ratios))
	p.X.Label.Text = "ratio"
	p.Y.Label.Text = "pairs"
	p.X.Min = 0
	p.X.Max = 1

	hist, err := plotter.NewHist(plotter.Values(ratios), bins)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	hist.FillColor = color.RGBA{R: 0x2E, G: 0x7D, B: 0x32, A: 0xFF}
	p.Add(hist)

	maxCount := 0.0
	for _, b := range hist.Bins {
		maxCount = math.Max(maxCount, b.Weight)
	}
	cut, err := plotter.NewLine(plotter.XYs{{X: threshold, Y: 0}, {X: threshold, Y: maxCount}})
	if err != nil {
		return fmt.Errorf("threshold line: %w", err)
	}
	cut.Color = color.RGBA{R: 255, A: 255}
	cut.Width = vg.Points(2)
	p.Add(cut)
	p.Legend.Add(fmt.Sprintf("threshold %.2f", threshold), cut)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
