// Package colorutil provides the colors used when drawing correspondences.
package colorutil

import (
	"image/color"
	"math"
)

// Common overlay colors.
var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// HSVToRGB converts HSV (H 0-360, S and V 0-1) to an opaque RGBA color.
func HSVToRGB(h, s, v float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}

// Palette returns n saturated colors spaced evenly around the hue wheel.
// Consecutive entries are far apart so neighbouring match lines stay distinct.
func Palette(n int) []color.RGBA {
	if n <= 0 {
		return nil
	}
	colors := make([]color.RGBA, n)
	// Golden-angle stepping.
	const step = 137.508
	for i := range colors {
		colors[i] = HSVToRGB(float64(i)*step, 0.85, 0.95)
	}
	return colors
}
