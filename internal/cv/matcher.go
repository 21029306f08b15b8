package cv

import (
	"fmt"
	"sync"

	"feature-matcher/internal/features"

	"gocv.io/x/gocv"
)

// BFSearcher is OpenCV's brute-force matcher with NORM_L2, the standard
// distance for SIFT descriptors. Cross-checking is off so every query row
// gets k neighbours.
type BFSearcher struct {
	mu sync.Mutex
	bf gocv.BFMatcher
}

var _ features.Searcher = (*BFSearcher)(nil)

// NewBFSearcher creates an L2 brute-force matcher.
func NewBFSearcher() *BFSearcher {
	return &BFSearcher{bf: gocv.NewBFMatcherWithParams(gocv.NormL2, false)}
}

// Close releases the native matcher.
func (s *BFSearcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bf.Close()
}

// KnnSearch returns up to k neighbours per query descriptor, nearest first.
func (s *BFSearcher) KnnSearch(query, train []features.Descriptor, k int) ([][]features.Neighbor, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", features.ErrInvalidK, k)
	}
	if len(query) == 0 || len(train) == 0 {
		return make([][]features.Neighbor, len(query)), nil
	}
	if len(query[0]) != len(train[0]) {
		return nil, fmt.Errorf("%w: query %d, train %d", features.ErrDimensionMismatch, len(query[0]), len(train[0]))
	}

	q, err := DescriptorsToMat(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer q.Close()
	t, err := DescriptorsToMat(train)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	defer t.Close()

	s.mu.Lock()
	knn := s.bf.KnnMatch(q, t, k)
	s.mu.Unlock()

	// KnnMatch returns one row per query in query order.
	result := make([][]features.Neighbor, len(query))
	for _, row := range knn {
		if len(row) == 0 {
			continue
		}
		neighbors := make([]features.Neighbor, len(row))
		for i, m := range row {
			neighbors[i] = features.Neighbor{
				QueryIdx: m.QueryIdx,
				TrainIdx: m.TrainIdx,
				Distance: m.Distance,
			}
		}
		qi := row[0].QueryIdx
		if qi >= 0 && qi < len(result) {
			result[qi] = neighbors
		}
	}
	return result, nil
}
