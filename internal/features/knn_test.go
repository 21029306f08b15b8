package features

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBruteForceSearcher(t *testing.T) {
	query := []Descriptor{
		{0, 0},
		{10, 10},
	}
	train := []Descriptor{
		{3, 4},   // 5 from q0
		{1, 0},   // 1 from q0
		{10, 11}, // 1 from q1
		{0, 0},   // 0 from q0
	}

	got, err := BruteForceSearcher{}.KnnSearch(query, train, 2)
	require.NoError(t, err)

	want := [][]Neighbor{
		{
			{QueryIdx: 0, TrainIdx: 3, Distance: 0},
			{QueryIdx: 0, TrainIdx: 1, Distance: 1},
		},
		{
			{QueryIdx: 1, TrainIdx: 2, Distance: 1},
			{QueryIdx: 1, TrainIdx: 0, Distance: 9.219544457292887},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("KnnSearch mismatch (-want +got):\n%s", diff)
	}
}

func TestBruteForceSearcherTieKeepsLowerIndex(t *testing.T) {
	got, err := BruteForceSearcher{}.KnnSearch(
		[]Descriptor{{0}},
		[]Descriptor{{2}, {-2}, {1}},
		3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []int{2, 0, 1}, []int{got[0][0].TrainIdx, got[0][1].TrainIdx, got[0][2].TrainIdx})
}

func TestBruteForceSearcherShortTrain(t *testing.T) {
	got, err := BruteForceSearcher{}.KnnSearch([]Descriptor{{1, 1}, {2, 2}}, []Descriptor{{0, 0}}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Len(t, got[0], 1)
	assert.Empty(t, CandidatePairs(got))
}

func TestBruteForceSearcherErrors(t *testing.T) {
	_, err := BruteForceSearcher{}.KnnSearch([]Descriptor{{1}}, []Descriptor{{1}}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = BruteForceSearcher{}.KnnSearch([]Descriptor{{1, 2}}, []Descriptor{{1}}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = BruteForceSearcher{}.KnnSearch([]Descriptor{{1}}, []Descriptor{{1}, {1, 2}}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCandidatePairsDropsShortRows(t *testing.T) {
	knn := [][]Neighbor{
		{{QueryIdx: 0, TrainIdx: 1, Distance: 1}, {QueryIdx: 0, TrainIdx: 2, Distance: 2}},
		{{QueryIdx: 1, TrainIdx: 1, Distance: 1}},
		{},
		{{QueryIdx: 3, TrainIdx: 4, Distance: 3}, {QueryIdx: 3, TrainIdx: 5, Distance: 4}, {QueryIdx: 3, TrainIdx: 6, Distance: 9}},
	}
	pairs := CandidatePairs(knn)
	require.Len(t, pairs, 2)
	assert.Equal(t, 0, pairs[0].Best.QueryIdx)
	assert.Equal(t, 3, pairs[1].Best.QueryIdx)
	assert.Equal(t, 5, pairs[1].Second.TrainIdx)
}
