package cv

import (
	"fmt"
	"image"
	"sync"

	"feature-matcher/internal/features"

	"gocv.io/x/gocv"
)

// SIFTDetector detects SIFT keypoints and 128-float descriptors.
// The native detector is not safe for concurrent use, so calls are serialized.
type SIFTDetector struct {
	mu   sync.Mutex
	sift gocv.SIFT
}

var _ features.Detector = (*SIFTDetector)(nil)

// NewSIFTDetector creates a detector with OpenCV's default SIFT parameters.
func NewSIFTDetector() *SIFTDetector {
	return &SIFTDetector{sift: gocv.NewSIFT()}
}

// Close releases the native detector.
func (d *SIFTDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sift.Close()
}

// Detect runs DetectAndCompute on the grayscale version of img.
func (d *SIFTDetector) Detect(img image.Image) ([]features.Keypoint, []features.Descriptor, error) {
	gray, err := ImageToGrayMat(img)
	if err != nil {
		return nil, nil, fmt.Errorf("convert image: %w", err)
	}
	defer gray.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	d.mu.Lock()
	kps, des := d.sift.DetectAndCompute(gray, mask)
	d.mu.Unlock()
	defer des.Close()

	descs, err := MatToDescriptors(des)
	if err != nil {
		return nil, nil, err
	}
	if len(descs) != len(kps) {
		return nil, nil, fmt.Errorf("detector returned %d keypoints but %d descriptors", len(kps), len(descs))
	}
	return FromKeyPoints(kps), descs, nil
}
