package cv

import (
	"errors"
	"fmt"
	"log"

	"feature-matcher/internal/config"
	"feature-matcher/internal/features"
	"feature-matcher/internal/matching"
	"feature-matcher/internal/render"
)

// Backend names accepted by NewMatcher.
const (
	BackendGoCV = "gocv" // OpenCV search and drawing
	BackendGo   = "go"   // Pure-Go search and drawing
)

// Backend is a Matcher plus the native resources behind it.
type Backend struct {
	*matching.Matcher
	closers []func() error
}

// Close releases the native detector and matcher.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewMatcher builds a Matcher for the named backend. Detection always uses
// OpenCV's SIFT; the backend selects the k-NN search and the renderer.
func NewMatcher(name string, opts config.Options, logger *log.Logger) (*Backend, error) {
	detector := NewSIFTDetector()
	b := &Backend{
		Matcher: &matching.Matcher{Detector: detector, Logger: logger},
		closers: []func() error{detector.Close},
	}

	switch name {
	case BackendGoCV, "":
		searcher := NewBFSearcher()
		b.closers = append(b.closers, searcher.Close)
		b.Searcher = searcher
		b.Renderer = MatchDrawer{Label: opts.Render.Label}
	case BackendGo:
		b.Searcher = features.BruteForceSearcher{}
		r := render.DefaultSideBySide()
		r.Label = opts.Render.Label
		b.Renderer = r
	default:
		b.Close()
		return nil, fmt.Errorf("unknown backend %q (want %q or %q)", name, BackendGoCV, BackendGo)
	}
	return b, nil
}
