package features

import (
	"image"
)

// Detector finds keypoints and computes one descriptor per keypoint.
// The two returned slices are parallel.
type Detector interface {
	Detect(img image.Image) ([]Keypoint, []Descriptor, error)
}

// Searcher returns, for every query descriptor, up to k nearest train
// descriptors sorted by ascending distance. A row has fewer than k entries
// only when train has fewer than k descriptors.
type Searcher interface {
	KnnSearch(query, train []Descriptor, k int) ([][]Neighbor, error)
}

// Renderer draws accepted matches between two images.
type Renderer interface {
	Render(img1 image.Image, kp1 []Keypoint, img2 image.Image, kp2 []Keypoint, matches MatchSet) (image.Image, error)
}

// CandidatePairs turns 2-NN search output into candidate pairs. Rows with
// fewer than two neighbours cannot be ratio-tested and are dropped; order is
// otherwise preserved.
func CandidatePairs(knn [][]Neighbor) []CandidatePair {
	pairs := make([]CandidatePair, 0, len(knn))
	for _, row := range knn {
		if len(row) < 2 {
			continue
		}
		pairs = append(pairs, CandidatePair{Best: row[0], Second: row[1]})
	}
	return pairs
}
