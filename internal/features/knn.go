package features

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrInvalidK is returned when fewer than one neighbour is requested.
	ErrInvalidK = errors.New("k must be at least 1")

	// ErrDimensionMismatch is returned when descriptors have different lengths.
	ErrDimensionMismatch = errors.New("descriptor length mismatch")
)

// BruteForceSearcher is an exhaustive L2 nearest-neighbour search in pure Go.
// It gives the same answers as OpenCV's BFMatcher with NORM_L2 and works
// without the native library.
type BruteForceSearcher struct{}

var _ Searcher = BruteForceSearcher{}

// KnnSearch compares every query descriptor with every train descriptor.
// Equal distances keep the lower train index first.
func (BruteForceSearcher) KnnSearch(query, train []Descriptor, k int) ([][]Neighbor, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	trainVecs, err := widen(train)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	queryVecs, err := widen(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if len(trainVecs) > 0 && len(queryVecs) > 0 && len(trainVecs[0]) != len(queryVecs[0]) {
		return nil, fmt.Errorf("%w: query %d, train %d", ErrDimensionMismatch, len(queryVecs[0]), len(trainVecs[0]))
	}

	result := make([][]Neighbor, len(queryVecs))
	all := make([]Neighbor, len(trainVecs))
	for qi, q := range queryVecs {
		for ti, t := range trainVecs {
			all[ti] = Neighbor{QueryIdx: qi, TrainIdx: ti, Distance: floats.Distance(q, t, 2)}
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].Distance < all[j].Distance })

		n := min(k, len(all))
		row := make([]Neighbor, n)
		copy(row, all[:n])
		result[qi] = row
	}
	return result, nil
}

// widen converts descriptors to float64 vectors once, checking that they all
// share a length.
func widen(descs []Descriptor) ([][]float64, error) {
	vecs := make([][]float64, len(descs))
	for i, d := range descs {
		if i > 0 && len(d) != len(descs[0]) {
			return nil, fmt.Errorf("%w: descriptor %d has length %d, want %d", ErrDimensionMismatch, i, len(d), len(descs[0]))
		}
		v := make([]float64, len(d))
		for j, x := range d {
			v[j] = float64(x)
		}
		vecs[i] = v
	}
	return vecs, nil
}
