// Package render draws match visualizations without OpenCV.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"feature-matcher/internal/features"
	pimage "feature-matcher/internal/image"
	"feature-matcher/pkg/colorutil"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SideBySide places image 1 left of image 2 and connects matched keypoints.
type SideBySide struct {
	Background color.Color  // Fill for the area outside the shorter image; black when nil
	Colors     []color.RGBA // Line colors, cycled per match; a generated palette when empty
	Radius     int          // Endpoint circle radius in pixels; 0 disables circles
	Label      bool         // Draw "Matches: N" in the top-left corner
}

var _ features.Renderer = SideBySide{}

// DefaultSideBySide returns the renderer used by the command-line tool.
func DefaultSideBySide() SideBySide {
	return SideBySide{Radius: 3, Label: true}
}

// Render returns a (w1+w2) x max(h1,h2) composite. Matches whose indices fall
// outside the keypoint slices are skipped.
func (r SideBySide) Render(img1 image.Image, kp1 []features.Keypoint, img2 image.Image, kp2 []features.Keypoint, matches features.MatchSet) (image.Image, error) {
	if img1 == nil || img2 == nil {
		return nil, fmt.Errorf("render: %w", pimage.ErrEmptyImage)
	}
	b1, b2 := img1.Bounds(), img2.Bounds()
	w := b1.Dx() + b2.Dx()
	h := max(b1.Dy(), b2.Dy())
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("render: %w", pimage.ErrEmptyImage)
	}

	bg := r.Background
	if bg == nil {
		bg = colorutil.Black
	}
	dst := pimage.Fill(w, h, bg)
	draw.Draw(dst, image.Rect(0, 0, b1.Dx(), b1.Dy()), img1, b1.Min, draw.Src)
	draw.Draw(dst, image.Rect(b1.Dx(), 0, w, b2.Dy()), img2, b2.Min, draw.Src)

	palette := r.Colors
	if len(palette) == 0 {
		palette = colorutil.Palette(16)
	}

	offset := float64(b1.Dx())
	drawn := 0
	for _, m := range matches {
		if m.QueryIdx < 0 || m.QueryIdx >= len(kp1) || m.TrainIdx < 0 || m.TrainIdx >= len(kp2) {
			continue
		}
		c := palette[drawn%len(palette)]
		p1 := kp1[m.QueryIdx]
		p2 := kp2[m.TrainIdx]
		x0, y0 := round(p1.X), round(p1.Y)
		x1, y1 := round(p2.X+offset), round(p2.Y)

		Line(dst, x0, y0, x1, y1, c)
		if r.Radius > 0 {
			Circle(dst, x0, y0, r.Radius, c)
			Circle(dst, x1, y1, r.Radius, c)
		}
		drawn++
	}

	if r.Label {
		Text(dst, 10, 20, fmt.Sprintf("Matches: %d", drawn), colorutil.Green)
	}
	return dst, nil
}

func round(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}

// Line draws a 1px line with Bresenham's algorithm, clipped to dst.
func Line(dst *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	bounds := dst.Bounds()
	e := dx + dy
	for {
		if (image.Point{X: x0, Y: y0}).In(bounds) {
			dst.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Circle draws a 1px circle outline (midpoint algorithm), clipped to dst.
func Circle(dst *image.RGBA, cx, cy, radius int, c color.RGBA) {
	bounds := dst.Bounds()
	set := func(x, y int) {
		if (image.Point{X: x, Y: y}).In(bounds) {
			dst.SetRGBA(x, y, c)
		}
	}
	x, y := radius, 0
	err := 1 - radius
	for x >= y {
		set(cx+x, cy+y)
		set(cx+y, cy+x)
		set(cx-y, cy+x)
		set(cx-x, cy+y)
		set(cx-x, cy-y)
		set(cx-y, cy-x)
		set(cx+y, cy-x)
		set(cx+x, cy-y)
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

// Text draws s with the 7x13 bitmap face; (x, y) is the baseline origin.
func Text(dst draw.Image, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
