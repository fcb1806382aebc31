package imaging

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/tracevision-mcp/internal/overlay"
)

// DefaultFitFraction is the share of the backdrop an unscaled overlay may
// cover in each dimension.
const DefaultFitFraction = 0.8

// ComposeOptions controls how an overlay is rendered onto a backdrop.
type ComposeOptions struct {
	// Width and Height size the black backdrop used when no camera frame is
	// available. Ignored when a backdrop is given.
	Width  int
	Height int

	// FitFraction bounds the overlay to this share of the backdrop before
	// scaling. Values outside (0, 1] select DefaultFitFraction.
	FitFraction float64

	// GuideColor is the hex color of the alignment guides drawn while the
	// transform is unlocked. Empty or invalid selects DefaultGuideColor.
	GuideColor string
}

// ComposeResult contains a rendered frame encoded as base64 PNG.
type ComposeResult struct {
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	ImageBase64 string            `json:"image_base64"`
	MimeType    string            `json:"mime_type"`
	Transform   overlay.Transform `json:"transform"`
}

// Compose renders img through the transform t on top of backdrop.
//
// The overlay is first fitted into FitFraction of the backdrop (never
// upscaled), then guides are drawn if t is unlocked. It is then mirrored if
// flipped, rotated clockwise by t.Rotation and scaled by t.Scale. Finally it
// is centered on the backdrop, offset by (t.X, t.Y), and blended with
// t.Opacity.
//
// A nil backdrop is replaced by a black Width x Height frame.
func Compose(backdrop, img image.Image, t overlay.Transform, opts ComposeOptions) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("nil overlay image")
	}
	if backdrop == nil {
		if opts.Width <= 0 || opts.Height <= 0 {
			return nil, fmt.Errorf("invalid viewport %dx%d", opts.Width, opts.Height)
		}
		backdrop = imaging.New(opts.Width, opts.Height, color.Black)
	}

	bw, bh := backdrop.Bounds().Dx(), backdrop.Bounds().Dy()
	if bw == 0 || bh == 0 {
		return nil, fmt.Errorf("empty backdrop")
	}

	fit := opts.FitFraction
	if fit <= 0 || fit > 1 {
		fit = DefaultFitFraction
	}
	maxW := max(1, int(float64(bw)*fit))
	maxH := max(1, int(float64(bh)*fit))
	layer := imaging.Fit(img, maxW, maxH, imaging.Linear)

	if !t.Locked {
		guide, err := parseGuideColor(opts.GuideColor)
		if err != nil {
			guide, _ = parseGuideColor(DefaultGuideColor)
		}
		drawGuides(layer, guide)
	}

	if t.Flipped {
		layer = imaging.FlipH(layer)
	}
	if t.Rotation != 0 {
		// imaging rotates counter-clockwise.
		layer = imaging.Rotate(layer, -float64(t.Rotation), color.Transparent)
	}
	if t.Scale > 0 && t.Scale != 1 {
		w := max(1, int(math.Round(float64(layer.Bounds().Dx())*t.Scale)))
		h := max(1, int(math.Round(float64(layer.Bounds().Dy())*t.Scale)))
		layer = imaging.Resize(layer, w, h, imaging.Linear)
	}

	lw, lh := layer.Bounds().Dx(), layer.Bounds().Dy()
	pos := image.Pt(
		(bw-lw)/2+int(math.Round(t.X)),
		(bh-lh)/2+int(math.Round(t.Y)),
	)

	return imaging.Overlay(backdrop, layer, pos, t.Opacity), nil
}

// ComposePNG renders like Compose and encodes the frame.
func ComposePNG(backdrop, img image.Image, t overlay.Transform, opts ComposeOptions) (*ComposeResult, error) {
	frame, err := Compose(backdrop, img, t, opts)
	if err != nil {
		return nil, err
	}
	data, err := EncodePNG(frame)
	if err != nil {
		return nil, err
	}
	return &ComposeResult{
		Width:       frame.Bounds().Dx(),
		Height:      frame.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
		Transform:   t,
	}, nil
}
