package features

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(q int, best, second float64) CandidatePair {
	return CandidatePair{
		Best:   Neighbor{QueryIdx: q, TrainIdx: q + 100, Distance: best},
		Second: Neighbor{QueryIdx: q, TrainIdx: q + 200, Distance: second},
	}
}

func TestFilterMatchesScenarios(t *testing.T) {
	tests := []struct {
		name  string
		pairs []CandidatePair
		ratio float64
		want  MatchSet
	}{
		{
			name:  "mixed accept, reject, tie",
			pairs: []CandidatePair{pair(0, 10, 20), pair(1, 18, 20), pair(2, 5, 5)},
			ratio: 0.75,
			want:  MatchSet{{QueryIdx: 0, TrainIdx: 100, Distance: 10}},
		},
		{
			name:  "empty input",
			pairs: []CandidatePair{},
			ratio: 0.75,
			want:  MatchSet{},
		},
		{
			name:  "nil input",
			pairs: nil,
			ratio: 0.75,
			want:  MatchSet{},
		},
		{
			name:  "ratio one keeps strictly closer best",
			pairs: []CandidatePair{pair(0, 9, 10)},
			ratio: 1.0,
			want:  MatchSet{{QueryIdx: 0, TrainIdx: 100, Distance: 9}},
		},
		{
			name:  "ratio zero keeps nothing",
			pairs: []CandidatePair{pair(0, 0, 10), pair(1, 1, 10)},
			ratio: 0,
			want:  MatchSet{},
		},
		{
			name:  "exact boundary is rejected",
			pairs: []CandidatePair{pair(0, 15, 20)},
			ratio: 0.75,
			want:  MatchSet{},
		},
		{
			name:  "zero best distance with positive second",
			pairs: []CandidatePair{pair(0, 0, 4)},
			ratio: 0.75,
			want:  MatchSet{{QueryIdx: 0, TrainIdx: 100, Distance: 0}},
		},
		{
			name:  "both distances zero is a tie",
			pairs: []CandidatePair{pair(0, 0, 0)},
			ratio: 1.0,
			want:  MatchSet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterMatches(tt.pairs, tt.ratio)
			require.NotNil(t, got)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FilterMatches mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterMatchesTiesRejectedUpToOne(t *testing.T) {
	for _, ratio := range []float64{0.1, 0.5, 0.75, 0.99, 1.0} {
		for _, d := range []float64{0, 0.5, 3, 250} {
			got := FilterMatches([]CandidatePair{pair(0, d, d)}, ratio)
			assert.Empty(t, got, "ratio=%v distance=%v", ratio, d)
		}
	}
}

func TestFilterMatchesTiesKeptAboveOne(t *testing.T) {
	pairs := []CandidatePair{pair(0, 3, 3), pair(1, 4, 9)}
	assert.Equal(t, []int{0, 1}, FilterMatches(pairs, 1.5).QueryIndices())
	assert.Empty(t, FilterMatches([]CandidatePair{pair(0, 0, 0)}, 5))
}

func randomPairs(rng *rand.Rand, n int) []CandidatePair {
	pairs := make([]CandidatePair, n)
	for i := range pairs {
		a := rng.Float64() * 400
		b := rng.Float64() * 400
		if a > b {
			a, b = b, a
		}
		if rng.Intn(10) == 0 {
			b = a
		}
		pairs[i] = pair(i, a, b)
	}
	return pairs
}

func TestFilterMatchesProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pairs := randomPairs(rng, 2000)

	for _, ratio := range []float64{0.3, 0.6, 0.75, 0.8, 1.0} {
		got := FilterMatches(pairs, ratio)
		require.LessOrEqual(t, len(got), len(pairs))

		// Retained iff best < ratio*second.
		j := 0
		for _, p := range pairs {
			if p.Best.Distance < ratio*p.Second.Distance {
				require.Less(t, j, len(got))
				assert.Equal(t, Match(p.Best), got[j])
				j++
			}
		}
		assert.Equal(t, j, len(got), "ratio=%v", ratio)

		// Input order is preserved.
		for i := 1; i < len(got); i++ {
			assert.Less(t, got[i-1].QueryIdx, got[i].QueryIdx)
		}
	}
}

func TestFilterMatchesRatioOneIsStrict(t *testing.T) {
	pairs := []CandidatePair{pair(0, 1, 2), pair(1, 2, 2), pair(2, 3, 3.0001)}
	got := FilterMatches(pairs, 1.0)
	assert.Equal(t, []int{0, 2}, got.QueryIndices())
}

func TestFilterMatchesParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pairs := randomPairs(rng, 10*minParallelSegment+17)
	want := FilterMatches(pairs, DefaultRatio)

	for _, workers := range []int{0, 1, 2, 3, 8, 64} {
		got, err := FilterMatchesParallel(context.Background(), pairs, DefaultRatio, workers)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("workers=%d mismatch (-want +got):\n%s", workers, diff)
		}
	}
}

func TestFilterMatchesParallelSmallInput(t *testing.T) {
	got, err := FilterMatchesParallel(context.Background(), []CandidatePair{pair(0, 10, 20)}, DefaultRatio, 8)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = FilterMatchesParallel(context.Background(), nil, DefaultRatio, 8)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilterMatchesParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pairs := randomPairs(rand.New(rand.NewSource(1)), 4*minParallelSegment)
	_, err := FilterMatchesParallel(ctx, pairs, DefaultRatio, 4)
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = FilterMatchesParallel(ctx, pairs[:10], DefaultRatio, 4)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestValidateRatio(t *testing.T) {
	for _, ok := range []float64{0.0001, 0.5, DefaultRatio, 1} {
		assert.NoError(t, ValidateRatio(ok), "ratio %v", ok)
	}
	for _, bad := range []float64{0, -0.1, 1.0001, 2, math.NaN(), math.Inf(1)} {
		err := ValidateRatio(bad)
		assert.ErrorIs(t, err, ErrInvalidRatio, "ratio %v", bad)
	}
}

func TestCandidatePairRatio(t *testing.T) {
	assert.InDelta(t, 0.5, pair(0, 10, 20).Ratio(), 1e-12)
	assert.Equal(t, 0.0, pair(0, 0, 0).Ratio())
	assert.True(t, math.IsInf(CandidatePair{Best: Neighbor{Distance: 1}}.Ratio(), 1))
}

func TestStatsRetainedFraction(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.RetainedFraction())
	assert.InDelta(t, 0.25, Stats{Candidates: 8, Retained: 2}.RetainedFraction(), 1e-12)
}
