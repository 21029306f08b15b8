package cv

import (
	"fmt"
	"image"
	"image/color"

	"feature-matcher/internal/features"
	"feature-matcher/pkg/colorutil"

	"gocv.io/x/gocv"
)

// MatchDrawer renders matches with cv::drawMatches. Unmatched keypoints are
// not drawn.
type MatchDrawer struct {
	// LineColor is used for every match; green when zero.
	LineColor color.RGBA
	// Label draws "Matches: N" in the top-left corner.
	Label bool
}

var _ features.Renderer = MatchDrawer{}

// Render draws img1 and img2 side by side with a line per match.
func (d MatchDrawer) Render(img1 image.Image, kp1 []features.Keypoint, img2 image.Image, kp2 []features.Keypoint, matches features.MatchSet) (image.Image, error) {
	m1, err := ImageToMat(img1)
	if err != nil {
		return nil, fmt.Errorf("image 1: %w", err)
	}
	defer m1.Close()
	m2, err := ImageToMat(img2)
	if err != nil {
		return nil, fmt.Errorf("image 2: %w", err)
	}
	defer m2.Close()

	dmatches := make([]gocv.DMatch, 0, len(matches))
	for _, m := range matches {
		if m.QueryIdx < 0 || m.QueryIdx >= len(kp1) || m.TrainIdx < 0 || m.TrainIdx >= len(kp2) {
			continue
		}
		dmatches = append(dmatches, gocv.DMatch{
			QueryIdx: m.QueryIdx,
			TrainIdx: m.TrainIdx,
			ImgIdx:   0,
			Distance: m.Distance,
		})
	}

	out := gocv.NewMat()
	defer out.Close()

	lineColor := d.LineColor
	if lineColor == (color.RGBA{}) {
		lineColor = colorutil.Green
	}
	mask := make([]byte, len(dmatches))
	for i := range mask {
		mask[i] = 1
	}
	gocv.DrawMatches(m1, ToKeyPoints(kp1), m2, ToKeyPoints(kp2), dmatches, &out,
		lineColor, colorutil.Yellow, mask, gocv.NotDrawSinglePoints)

	if d.Label {
		gocv.PutText(&out, fmt.Sprintf("Matches: %d", len(dmatches)), image.Pt(10, 20),
			gocv.FontHersheyPlain, 1.2, colorutil.Green, 2)
	}

	img, err := out.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert result: %w", err)
	}
	return img, nil
}
