package colorutil

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHSVToRGB(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 255, A: 255}, HSVToRGB(0, 1, 1))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, HSVToRGB(120, 1, 1))
	assert.Equal(t, color.RGBA{B: 255, A: 255}, HSVToRGB(-120, 1, 1))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, HSVToRGB(42, 0, 1))
}

func TestPalette(t *testing.T) {
	assert.Nil(t, Palette(0))
	p := Palette(8)
	assert.Len(t, p, 8)
	for i := 1; i < len(p); i++ {
		assert.NotEqual(t, p[i-1], p[i])
	}
}
