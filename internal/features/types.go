// Package features holds the keypoint/descriptor data model, the ratio-test
// match filter, and the capability interfaces for the vision collaborators.
package features

import (
	"math"

	"feature-matcher/pkg/geometry"
)

// Keypoint is a detected interest point. The matcher never modifies it.
type Keypoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Size     float64 `json:"size"`     // Diameter of the meaningful neighbourhood
	Angle    float64 `json:"angle"`    // Orientation in degrees, -1 if not applicable
	Response float64 `json:"response"` // Detector response strength
	Octave   int     `json:"octave"`   // Pyramid layer the point was found in
}

// Point returns the keypoint position.
func (k Keypoint) Point() geometry.Point2D {
	return geometry.Point2D{X: k.X, Y: k.Y}
}

// Descriptor is a fixed-length appearance vector (128 components for SIFT).
type Descriptor []float32

// Neighbor is one k-NN result: the descriptor at QueryIdx in image 1 and the
// descriptor at TrainIdx in image 2, Distance apart (L2).
type Neighbor struct {
	QueryIdx int     `json:"queryIdx"`
	TrainIdx int     `json:"trainIdx"`
	Distance float64 `json:"distance"`
}

// CandidatePair holds the two closest image-2 descriptors for one image-1
// descriptor. Best.Distance <= Second.Distance is guaranteed by the searcher.
type CandidatePair struct {
	Best   Neighbor
	Second Neighbor
}

// Ratio returns Best.Distance / Second.Distance. Two zero distances give 0;
// a zero Second with a positive Best gives +Inf.
func (p CandidatePair) Ratio() float64 {
	if p.Second.Distance == 0 {
		if p.Best.Distance == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return p.Best.Distance / p.Second.Distance
}

// Match is an accepted correspondence between one descriptor in each image.
type Match Neighbor

// MatchSet is the accepted matches in the order their pairs were supplied.
type MatchSet []Match

// QueryIndices returns the image-1 descriptor index of every match.
func (ms MatchSet) QueryIndices() []int {
	idx := make([]int, len(ms))
	for i, m := range ms {
		idx[i] = m.QueryIdx
	}
	return idx
}

// Stats carries the diagnostic counts of one matching run. It is reported
// next to the MatchSet and never feeds back into it.
type Stats struct {
	Keypoints1 int // Keypoints detected in image 1
	Keypoints2 int // Keypoints detected in image 2
	Candidates int // Candidate pairs considered by the ratio test
	Retained   int // Pairs that passed the ratio test
	Inliers    int // Matches kept by geometric verification, -1 if it did not run
}

// RetainedFraction returns Retained/Candidates, or 0 when nothing was considered.
func (s Stats) RetainedFraction() float64 {
	if s.Candidates == 0 {
		return 0
	}
	return float64(s.Retained) / float64(s.Candidates)
}
