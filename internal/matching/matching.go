// Package matching runs the full correspondence pipeline between two images:
// detect, 2-NN search, ratio test, optional geometric check, render.
package matching

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"time"

	"feature-matcher/internal/config"
	"feature-matcher/internal/features"
	pimage "feature-matcher/internal/image"
	"feature-matcher/internal/verify"
)

var (
	// ErrNoDetector is returned when a Matcher has no detector or searcher.
	ErrNoDetector = errors.New("matcher needs a detector and a searcher")
	// ErrNoPrevious is returned by Refilter when there is no earlier result.
	ErrNoPrevious = errors.New("no previous result to refilter")
)

// Matcher wires the vision collaborators together. Collaborators are owned by
// the caller; the Matcher never closes them.
type Matcher struct {
	Detector features.Detector
	Searcher features.Searcher
	Renderer features.Renderer // Optional; no visualization when nil
	Logger   *log.Logger       // Optional; diagnostics are discarded when nil
}

// Result is everything one run produces.
type Result struct {
	Keypoints1    []features.Keypoint
	Keypoints2    []features.Keypoint
	Pairs         []features.CandidatePair // Ratio-test input, kept for re-filtering
	Matches       features.MatchSet
	Verification  *verify.Result // Nil unless verification ran and succeeded
	Visualization image.Image    // Nil when rendering was skipped
	Stats         features.Stats
	Timings       Timings
}

// Timings records how long each stage took.
type Timings struct {
	Detect time.Duration
	Search time.Duration
	Filter time.Duration
	Verify time.Duration
	Render time.Duration
}

// Total sums all stages.
func (t Timings) Total() time.Duration {
	return t.Detect + t.Search + t.Filter + t.Verify + t.Render
}

func (m *Matcher) logger() *log.Logger {
	if m.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return m.Logger
}

// FindAndFilterMatches detects features in both images, finds the two nearest
// image-2 descriptors for every image-1 descriptor, keeps the matches that
// pass Lowe's ratio test and renders them.
//
// An image without descriptors yields an empty MatchSet, not an error.
func (m *Matcher) FindAndFilterMatches(ctx context.Context, img1, img2 image.Image, opts config.Options) (*Result, error) {
	if m.Detector == nil || m.Searcher == nil {
		return nil, ErrNoDetector
	}
	if img1 == nil || img2 == nil {
		return nil, pimage.ErrEmptyImage
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	lg := m.logger()

	if opts.Scale > 0 && opts.Scale != 1 {
		img1 = pimage.Scale(img1, opts.Scale)
		img2 = pimage.Scale(img2, opts.Scale)
	}

	res := &Result{Stats: features.Stats{Inliers: -1}}

	start := time.Now()
	kp1, des1, err := m.Detector.Detect(img1)
	if err != nil {
		return nil, fmt.Errorf("detect image 1: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kp2, des2, err := m.Detector.Detect(img2)
	if err != nil {
		return nil, fmt.Errorf("detect image 2: %w", err)
	}
	res.Timings.Detect = time.Since(start)
	res.Keypoints1, res.Keypoints2 = kp1, kp2
	res.Stats.Keypoints1, res.Stats.Keypoints2 = len(kp1), len(kp2)

	lg.Printf("Found %d keypoints in img1 and %d in img2.", len(kp1), len(kp2))

	if len(des1) == 0 || len(des2) == 0 {
		res.Matches = features.MatchSet{}
		res.Pairs = []features.CandidatePair{}
		lg.Printf("Found 0 initial matches.")
		lg.Printf("Filtered down to 0 good matches using Lowe's ratio test.")
		return res, m.render(ctx, res, img1, img2, opts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	knn, err := m.Searcher.KnnSearch(des1, des2, 2)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	res.Pairs = features.CandidatePairs(knn)
	res.Timings.Search = time.Since(start)
	res.Stats.Candidates = len(res.Pairs)
	lg.Printf("Found %d initial matches.", len(res.Pairs))

	start = time.Now()
	if opts.Workers > 1 {
		res.Matches, err = features.FilterMatchesParallel(ctx, res.Pairs, opts.Ratio, opts.Workers)
		if err != nil {
			return nil, err
		}
	} else {
		res.Matches = features.FilterMatches(res.Pairs, opts.Ratio)
	}
	res.Timings.Filter = time.Since(start)
	res.Stats.Retained = len(res.Matches)
	lg.Printf("Filtered down to %d good matches using Lowe's ratio test.", len(res.Matches))

	if opts.Verify.Enabled {
		start = time.Now()
		m.verify(res, opts.Verify.Params())
		res.Timings.Verify = time.Since(start)
	}

	return res, m.render(ctx, res, img1, img2, opts)
}

// verify replaces the MatchSet with its RANSAC inliers. Too few matches, or
// no consistent transform, leaves the ratio-test result untouched.
func (m *Matcher) verify(res *Result, params verify.Params) {
	lg := m.logger()
	if len(res.Matches) < 3 {
		lg.Printf("Skipping geometric verification: %d matches", len(res.Matches))
		return
	}
	v, err := verify.Affine(res.Keypoints1, res.Keypoints2, res.Matches, params)
	if err != nil {
		lg.Printf("Geometric verification failed: %v", err)
		return
	}
	res.Verification = &v
	res.Matches = v.Filter(res.Matches)
	res.Stats.Inliers = len(res.Matches)
	lg.Printf("Kept %d of %d matches consistent with one affine transform (mean error %.2f px).",
		res.Stats.Inliers, res.Stats.Retained, v.MeanError)
}

func (m *Matcher) render(ctx context.Context, res *Result, img1, img2 image.Image, opts config.Options) error {
	if m.Renderer == nil || opts.Render.Skip {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	vis, err := m.Renderer.Render(img1, res.Keypoints1, img2, res.Keypoints2, res.Matches)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	res.Visualization = vis
	res.Timings.Render = time.Since(start)
	return nil
}

// Refilter reruns the ratio test (and verification, if configured) over a
// previous result's candidate pairs without detecting or searching again.
func (m *Matcher) Refilter(ctx context.Context, prev *Result, img1, img2 image.Image, opts config.Options) (*Result, error) {
	if prev == nil {
		return nil, ErrNoPrevious
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Scale > 0 && opts.Scale != 1 {
		img1 = pimage.Scale(img1, opts.Scale)
		img2 = pimage.Scale(img2, opts.Scale)
	}
	res := &Result{
		Keypoints1: prev.Keypoints1,
		Keypoints2: prev.Keypoints2,
		Pairs:      prev.Pairs,
		Stats: features.Stats{
			Keypoints1: prev.Stats.Keypoints1,
			Keypoints2: prev.Stats.Keypoints2,
			Candidates: len(prev.Pairs),
			Inliers:    -1,
		},
		Timings: Timings{Detect: prev.Timings.Detect, Search: prev.Timings.Search},
	}

	start := time.Now()
	res.Matches = features.FilterMatches(prev.Pairs, opts.Ratio)
	res.Timings.Filter = time.Since(start)
	res.Stats.Retained = len(res.Matches)

	if opts.Verify.Enabled {
		start = time.Now()
		m.verify(res, opts.Verify.Params())
		res.Timings.Verify = time.Since(start)
	}
	return res, m.render(ctx, res, img1, img2, opts)
}
