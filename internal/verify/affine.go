// Package verify checks that ratio-test matches agree on a single geometric
// transform and drops the ones that do not.
package verify

import (
	"errors"
	"fmt"
	"math/rand"

	"feature-matcher/internal/features"
	"feature-matcher/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// ErrTooFewMatches is returned when fewer than three matches are supplied.
var ErrTooFewMatches = errors.New("need at least 3 matches")

// Params configures RANSAC.
type Params struct {
	Iterations int     // Random 3-point samples to try
	Threshold  float64 // Max reprojection error in pixels for an inlier
	Seed       int64   // Sampling seed; same seed, same result
}

// DefaultParams returns settings that suit photographs scaled to ~1000px.
func DefaultParams() Params {
	return Params{
		Iterations: 2000,
		Threshold:  3.0,
		Seed:       1,
	}
}

// Result is the outcome of geometric verification.
type Result struct {
	Transform geometry.AffineTransform // Maps image-1 keypoints onto image 2
	Inliers   []int                    // Indices into the verified MatchSet, ascending
	MeanError float64                  // Mean reprojection error over inliers
}

// Filter returns the inlier matches in their original order.
func (r Result) Filter(matches features.MatchSet) features.MatchSet {
	out := make(features.MatchSet, 0, len(r.Inliers))
	for _, i := range r.Inliers {
		if i >= 0 && i < len(matches) {
			out = append(out, matches[i])
		}
	}
	return out
}

// Affine estimates an affine transform from image-1 keypoints to image-2
// keypoints over the given matches using RANSAC, then refits it on all
// inliers by least squares.
func Affine(kp1, kp2 []features.Keypoint, matches features.MatchSet, params Params) (Result, error) {
	if len(matches) < 3 {
		return Result{}, fmt.Errorf("%w: got %d", ErrTooFewMatches, len(matches))
	}
	if params.Iterations <= 0 {
		params.Iterations = DefaultParams().Iterations
	}
	if params.Threshold <= 0 {
		params.Threshold = DefaultParams().Threshold
	}

	src := make([]geometry.Point2D, len(matches))
	dst := make([]geometry.Point2D, len(matches))
	for i, m := range matches {
		if m.QueryIdx < 0 || m.QueryIdx >= len(kp1) || m.TrainIdx < 0 || m.TrainIdx >= len(kp2) {
			return Result{}, fmt.Errorf("match %d references keypoint (%d, %d) out of range", i, m.QueryIdx, m.TrainIdx)
		}
		src[i] = kp1[m.QueryIdx].Point()
		dst[i] = kp2[m.TrainIdx].Point()
	}

	rng := rand.New(rand.NewSource(params.Seed))
	n := len(src)
	var bestInliers []int

	for iter := 0; iter < params.Iterations; iter++ {
		indices := rng.Perm(n)[:3]

		sample := make([]geometry.Point2D, 3)
		target := make([]geometry.Point2D, 3)
		for i, idx := range indices {
			sample[i] = src[idx]
			target[i] = dst[idx]
		}

		transform, err := affineFrom3(sample, target)
		if err != nil {
			continue
		}

		inliers := countInliers(src, dst, transform, params.Threshold)
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			if len(bestInliers) == n {
				break
			}
		}
	}

	if len(bestInliers) < 3 {
		return Result{}, fmt.Errorf("RANSAC found %d inliers: %w", len(bestInliers), ErrTooFewMatches)
	}

	inSrc := make([]geometry.Point2D, len(bestInliers))
	inDst := make([]geometry.Point2D, len(bestInliers))
	for i, idx := range bestInliers {
		inSrc[i] = src[idx]
		inDst[i] = dst[idx]
	}

	final, err := refit(inSrc, inDst)
	if err != nil {
		return Result{}, fmt.Errorf("refit on inliers: %w", err)
	}

	// The refit can shift the boundary slightly; recount against it.
	inliers := countInliers(src, dst, final, params.Threshold)
	if len(inliers) < 3 {
		inliers = bestInliers
	}

	return Result{
		Transform: final,
		Inliers:   inliers,
		MeanError: meanError(src, dst, final, inliers),
	}, nil
}

func countInliers(src, dst []geometry.Point2D, t geometry.AffineTransform, threshold float64) []int {
	var inliers []int
	for i := range src {
		if t.Apply(src[i]).Distance(dst[i]) < threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

func meanError(src, dst []geometry.Point2D, t geometry.AffineTransform, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var total float64
	for _, i := range idx {
		total += t.Apply(src[i]).Distance(dst[i])
	}
	return total / float64(len(idx))
}

// affineFrom3 solves the six affine parameters from exactly three pairs.
func affineFrom3(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	// [x', y'] = [a, b, tx; c, d, ty] * [x, y, 1]
	A := mat.NewDense(6, 6, nil)
	B := mat.NewVecDense(6, nil)
	fillSystem(A, B, src, dst)

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return geometry.AffineTransform{}, err
	}
	return fromParams(&params), nil
}

// affineLeastSquares fits an affine transform to n >= 3 pairs with QR.
func affineLeastSquares(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	n := len(src)
	if n < 3 {
		return geometry.AffineTransform{}, ErrTooFewMatches
	}

	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)
	fillSystem(A, B, src, dst)

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.AffineTransform{}, err
	}
	return fromParams(&params), nil
}

// refit solves the least-squares affine transform in coordinates centred on
// each point set's centroid and maps it back to image coordinates.
func refit(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	cs, cd := geometry.Centroid(src), geometry.Centroid(dst)
	local, err := affineLeastSquares(shift(src, cs.Neg()), shift(dst, cd.Neg()))
	if err != nil {
		return geometry.AffineTransform{}, err
	}
	return geometry.Translation(cd).Compose(local).Compose(geometry.Translation(cs.Neg())), nil
}

func shift(points []geometry.Point2D, offset geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(points))
	for i, p := range points {
		out[i] = p.Add(offset)
	}
	return out
}

func fillSystem(A *mat.Dense, B *mat.VecDense, src, dst []geometry.Point2D) {
	for i := range src {
		x, y := src[i].X, src[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, dst[i].X)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, dst[i].Y)
	}
}

func fromParams(p *mat.VecDense) geometry.AffineTransform {
	return geometry.AffineTransform{
		A: p.AtVec(0), B: p.AtVec(1), TX: p.AtVec(2),
		C: p.AtVec(3), D: p.AtVec(4), TY: p.AtVec(5),
	}
}
