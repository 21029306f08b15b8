package report

import (
	"os"
	"path/filepath"
	"testing"

	"feature-matcher/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(best, second float64) features.CandidatePair {
	return features.CandidatePair{
		Best:   features.Neighbor{Distance: best},
		Second: features.Neighbor{Distance: second},
	}
}

func TestRatioSummary(t *testing.T) {
	pairs := []features.CandidatePair{
		pair(10, 20), // 0.5
		pair(18, 20), // 0.9
		pair(5, 5),   // 1.0
		pair(1, 0),   // +Inf, skipped
		pair(2, 10),  // 0.2
	}
	s := RatioSummary(pairs, 0.75)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 2, s.Accepted)
	assert.InDelta(t, 0.65, s.Mean, 1e-9)
	assert.InDelta(t, 0.5, s.Median, 1e-9)
	assert.Greater(t, s.StdDev, 0.0)
	assert.Contains(t, s.String(), "n=4")
}

func TestRatioSummaryEmpty(t *testing.T) {
	s := RatioSummary(nil, 0.75)
	assert.Equal(t, Summary{}, s)

	one := RatioSummary([]features.CandidatePair{pair(3, 4)}, 0.75)
	assert.Equal(t, 1, one.Count)
	assert.Equal(t, 0.0, one.StdDev)
	assert.Equal(t, 0, one.Accepted)
}

func TestRatioHistogram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ratios.png")
	pairs := []features.CandidatePair{pair(1, 10), pair(5, 10), pair(7, 10), pair(9, 10)}
	require.NoError(t, RatioHistogram(path, pairs, 0.75, 10))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRatioHistogramEmpty(t *testing.T) {
	err := RatioHistogram(filepath.Join(t.TempDir(), "x.png"), []features.CandidatePair{pair(1, 0)}, 0.75, 10)
	assert.ErrorIs(t, err, ErrNoRatios)
}
