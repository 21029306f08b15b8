// Package geometry provides the planar types shared by matching and verification.
package geometry

import (
	"math"
)

// Point2D is an image-space position in pixels.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Neg returns the point mirrored through the origin.
func (p Point2D) Neg() Point2D {
	return Point2D{X: -p.X, Y: -p.Y}
}

// AffineTransform is a 2x3 matrix mapping image-2 points into image 1 (or any
// other source to destination pair).
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() AffineTransform {
	return AffineTransform{A: 1, D: 1}
}

// Translation returns the transform that shifts points by offset.
func Translation(offset Point2D) AffineTransform {
	t := Identity()
	t.TX, t.TY = offset.X, offset.Y
	return t
}

// Apply maps a point through the transform.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Compose returns t*other, i.e. other is applied first.
func (t AffineTransform) Compose(other AffineTransform) AffineTransform {
	return AffineTransform{
		A:  t.A*other.A + t.B*other.C,
		B:  t.A*other.B + t.B*other.D,
		TX: t.A*other.TX + t.B*other.TY + t.TX,
		C:  t.C*other.A + t.D*other.C,
		D:  t.C*other.B + t.D*other.D,
		TY: t.C*other.TX + t.D*other.TY + t.TY,
	}
}

// Inverse returns the inverse transform and false if t is singular.
func (t AffineTransform) Inverse() (AffineTransform, bool) {
	det := t.A*t.D - t.B*t.C
	if math.Abs(det) < 1e-10 {
		return AffineTransform{}, false
	}

	invDet := 1.0 / det
	return AffineTransform{
		A:  t.D * invDet,
		B:  -t.B * invDet,
		TX: (t.B*t.TY - t.D*t.TX) * invDet,
		C:  -t.C * invDet,
		D:  t.A * invDet,
		TY: (t.C*t.TX - t.A*t.TY) * invDet,
	}, true
}

// RotationDegrees extracts the rotation angle, assuming no shear.
func (t AffineTransform) RotationDegrees() float64 {
	return math.Atan2(t.C, t.A) * 180 / math.Pi
}

// ScaleFactor extracts the x-axis scale, assuming no shear.
func (t AffineTransform) ScaleFactor() float64 {
	return math.Hypot(t.A, t.C)
}

// Centroid computes the mean position of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}
