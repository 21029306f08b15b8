// Package cv implements the feature collaborators on top of OpenCV via gocv:
// SIFT detection, brute-force k-NN matching and match drawing.
package cv

import (
	"fmt"
	"image"

	"feature-matcher/internal/features"
	pimage "feature-matcher/internal/image"

	"gocv.io/x/gocv"
)

// ImageToMat converts a Go image.Image to a gocv.Mat in BGR format.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), fmt.Errorf("nil image")
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("empty image %dx%d", w, h)
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}

	return mat, nil
}

// ImageToGrayMat converts an image to a single-channel 8-bit Mat, which is
// what the SIFT detector works on.
func ImageToGrayMat(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.NewMat(), pimage.ErrEmptyImage
	}
	g := pimage.Gray(img)
	b := g.Bounds()
	mat := gocv.NewMatWithSize(b.Dy(), b.Dx(), gocv.MatTypeCV8U)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			mat.SetUCharAt(y, x, g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
	}
	return mat, nil
}

// FromKeyPoints converts gocv keypoints to the matcher's keypoint type.
func FromKeyPoints(kps []gocv.KeyPoint) []features.Keypoint {
	out := make([]features.Keypoint, len(kps))
	for i, kp := range kps {
		out[i] = features.Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
		}
	}
	return out
}

// ToKeyPoints converts keypoints back to gocv for drawing.
func ToKeyPoints(kps []features.Keypoint) []gocv.KeyPoint {
	out := make([]gocv.KeyPoint, len(kps))
	for i, kp := range kps {
		out[i] = gocv.KeyPoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
			ClassID:  -1,
		}
	}
	return out
}

// MatToDescriptors copies a descriptor Mat (one row per keypoint) into Go
// slices. CV_32F (SIFT) and CV_8U (ORB, BRISK) rows are both accepted.
func MatToDescriptors(m gocv.Mat) ([]features.Descriptor, error) {
	if m.Empty() {
		return nil, nil
	}
	rows, cols := m.Rows(), m.Cols()
	descs := make([]features.Descriptor, rows)

	switch m.Type() {
	case gocv.MatTypeCV32F:
		for r := 0; r < rows; r++ {
			d := make(features.Descriptor, cols)
			for c := 0; c < cols; c++ {
				d[c] = m.GetFloatAt(r, c)
			}
			descs[r] = d
		}
	case gocv.MatTypeCV8U:
		for r := 0; r < rows; r++ {
			d := make(features.Descriptor, cols)
			for c := 0; c < cols; c++ {
				d[c] = float32(m.GetUCharAt(r, c))
			}
			descs[r] = d
		}
	default:
		return nil, fmt.Errorf("unsupported descriptor mat type %v", m.Type())
	}
	return descs, nil
}

// DescriptorsToMat packs descriptors into a CV_32F Mat. All descriptors must
// have the same length.
func DescriptorsToMat(descs []features.Descriptor) (gocv.Mat, error) {
	if len(descs) == 0 {
		return gocv.NewMat(), nil
	}
	cols := len(descs[0])
	mat := gocv.NewMatWithSize(len(descs), cols, gocv.MatTypeCV32F)
	for r, d := range descs {
		if len(d) != cols {
			mat.Close()
			return gocv.NewMat(), fmt.Errorf("%w: row %d has %d values, want %d",
				features.ErrDimensionMismatch, r, len(d), cols)
		}
		for c, v := range d {
			mat.SetFloatAt(r, c, v)
		}
	}
	return mat, nil
}
