package features

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// DefaultRatio is Lowe's suggested threshold for SIFT descriptors.
const DefaultRatio = 0.75

// Segments smaller than this are not worth a goroutine.
const minParallelSegment = 1024

// ErrInvalidRatio is returned by ValidateRatio for thresholds outside (0, 1].
var ErrInvalidRatio = errors.New("ratio threshold must be in (0, 1]")

// ValidateRatio reports whether ratio is usable as a ratio-test threshold.
// FilterMatches does not call it; out-of-range thresholds there produce a
// degenerate but well-defined result.
func ValidateRatio(ratio float64) error {
	if math.IsNaN(ratio) || ratio <= 0 || ratio > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidRatio, ratio)
	}
	return nil
}

// FilterMatches applies Lowe's ratio test to each candidate pair and keeps
// the best neighbour when Best.Distance < ratio*Second.Distance.
//
// Each decision only looks at its own pair, so the result is in input order.
// Ties (Best == Second) are rejected for any ratio <= 1; a lenient ratio
// above 1 accepts them. Pairs are assumed sorted by the searcher and are not
// re-checked.
func FilterMatches(pairs []CandidatePair, ratio float64) MatchSet {
	matches := make(MatchSet, 0, len(pairs)/2)
	for _, p := range pairs {
		if p.Best.Distance < ratio*p.Second.Distance {
			matches = append(matches, Match(p.Best))
		}
	}
	return matches
}

// FilterMatchesParallel is FilterMatches split across workers. The input is
// cut into contiguous segments, each worker fills its own output segment, and
// segments are joined in input order, so the result equals FilterMatches.
func FilterMatchesParallel(ctx context.Context, pairs []CandidatePair, ratio float64, workers int) (MatchSet, error) {
	if workers > len(pairs)/minParallelSegment {
		workers = len(pairs) / minParallelSegment
	}
	if workers <= 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return FilterMatches(pairs, ratio), nil
	}

	segments := make([]MatchSet, workers)
	chunk := (len(pairs) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(pairs))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			segments[w] = FilterMatches(pairs[lo:hi], ratio)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, s := range segments {
		total += len(s)
	}
	matches := make(MatchSet, 0, total)
	for _, s := range segments {
		matches = append(matches, s...)
	}
	return matches, nil
}
