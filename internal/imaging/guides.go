package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultGuideColor is the alignment guide color.
const DefaultGuideColor = "#3b82f6"

const (
	guideBorderWidth = 2
	guideDash        = 6
	guideGap         = 4
	guideBorderAlpha = 128
	guideCrossAlpha  = 77
)

// parseGuideColor parses "#rgb" or "#rrggbb" into an opaque color.
func parseGuideColor(hex string) (color.NRGBA, error) {
	if hex == "" {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// drawGuides draws the alignment aids shown while the overlay can be moved:
// a dashed border around the image and a crosshair through its center.
func drawGuides(img *image.NRGBA, c color.NRGBA) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return
	}

	border := &image.Uniform{color.NRGBA{R: c.R, G: c.G, B: c.B, A: guideBorderAlpha}}
	cross := &image.Uniform{color.NRGBA{R: c.R, G: c.G, B: c.B, A: guideCrossAlpha}}

	// Dashed border
	for x := 0; x < width; x += guideDash + guideGap {
		end := min(x+guideDash, width)
		fillRect(img, image.Rect(x, 0, end, guideBorderWidth), border)
		fillRect(img, image.Rect(x, height-guideBorderWidth, end, height), border)
	}
	for y := guideBorderWidth; y < height-guideBorderWidth; y += guideDash + guideGap {
		end := min(y+guideDash, height-guideBorderWidth)
		fillRect(img, image.Rect(0, y, guideBorderWidth, end), border)
		fillRect(img, image.Rect(width-guideBorderWidth, y, width, end), border)
	}

	// Center crosshair
	fillRect(img, image.Rect(0, height/2, width, height/2+1), cross)
	fillRect(img, image.Rect(width/2, 0, width/2+1, height), cross)
}

// fillRect blends src over the part of r (relative to the image origin) that
// lies inside img.
func fillRect(img *image.NRGBA, r image.Rectangle, src image.Image) {
	r = r.Add(img.Bounds().Min).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, src, image.Point{}, draw.Over)
}
