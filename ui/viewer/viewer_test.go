package viewer

import (
	"testing"

	"feature-matcher/internal/features"

	"github.com/stretchr/testify/assert"
)

func TestStatusText(t *testing.T) {
	s := features.Stats{Keypoints1: 120, Keypoints2: 98, Candidates: 120, Retained: 30, Inliers: -1}
	text := statusText(s)
	assert.Contains(t, text, "Keypoints 120 / 98")
	assert.Contains(t, text, "ratio test kept 30 (25%)")
	assert.NotContains(t, text, "geometric")

	s.Inliers = 22
	assert.Contains(t, statusText(s), "geometric inliers 22")
}
