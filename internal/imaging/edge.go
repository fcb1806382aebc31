package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultEdgeThreshold is the neighbor-difference sum above which a pixel is
// classified as an edge.
const DefaultEdgeThreshold = 15

// DefaultContrast is the contrast multiplier applied after desaturation
// (3 = 300%).
const DefaultContrast = 3.0

// MinEdgeDimension is the smallest width and height ExtractEdges accepts.
const MinEdgeDimension = 3

var (
	// ErrImageTooSmall is returned for sources narrower or shorter than
	// MinEdgeDimension pixels.
	ErrImageTooSmall = errors.New("image must be at least 3x3 pixels")

	// ErrInvalidThreshold is returned for negative thresholds.
	ErrInvalidThreshold = errors.New("threshold must be non-negative")
)

// Luma selects the grayscale formula used by the normalization pass.
type Luma int

const (
	// LumaRec601 weights channels 0.3R + 0.6G + 0.1B.
	LumaRec601 Luma = iota

	// LumaPerceptual uses CIE L* lightness scaled to 0-255.
	LumaPerceptual
)

// String returns the name accepted by ParseLuma.
func (l Luma) String() string {
	switch l {
	case LumaRec601:
		return "rec601"
	case LumaPerceptual:
		return "perceptual"
	default:
		return fmt.Sprintf("Luma(%d)", int(l))
	}
}

// ParseLuma maps a name to a Luma. An empty name selects LumaRec601.
func ParseLuma(name string) (Luma, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rec601":
		return LumaRec601, nil
	case "perceptual", "lab":
		return LumaPerceptual, nil
	default:
		return 0, fmt.Errorf("unknown luma %q (want rec601 or perceptual)", name)
	}
}

// EdgeOptions tunes edge extraction.
type EdgeOptions struct {
	// Threshold is compared against the 4-neighbor difference sum. Higher
	// values give fewer, bolder edges. Must be >= 0.
	Threshold int

	// Luma selects the grayscale formula.
	Luma Luma

	// Contrast multiplies the distance of every intensity from mid-gray.
	// Values <= 0 select DefaultContrast; 1 leaves intensities unchanged.
	Contrast float64
}

// DefaultEdgeOptions returns the options used by ExtractEdges.
func DefaultEdgeOptions() EdgeOptions {
	return EdgeOptions{
		Threshold: DefaultEdgeThreshold,
		Luma:      LumaRec601,
		Contrast:  DefaultContrast,
	}
}

// EdgeMap is the outline derived from a source image.
//
// Every pixel is either an edge, opaque black (0,0,0,255), or background,
// transparent white (255,255,255,0). The map is never modified after
// ExtractEdges returns it.
type EdgeMap struct {
	img       *image.NRGBA
	threshold int
	edges     int
}

// Image returns the edge map as an image anchored at (0,0). Callers must not
// modify it.
func (m *EdgeMap) Image() image.Image { return m.img }

// Width returns the width in pixels, equal to the source width.
func (m *EdgeMap) Width() int { return m.img.Rect.Dx() }

// Height returns the height in pixels, equal to the source height.
func (m *EdgeMap) Height() int { return m.img.Rect.Dy() }

// Threshold returns the threshold the map was extracted with.
func (m *EdgeMap) Threshold() int { return m.threshold }

// EdgeCount returns the number of edge (opaque) pixels.
func (m *EdgeMap) EdgeCount() int { return m.edges }

// EncodePNG serializes the map as PNG so transparency survives transport.
func (m *EdgeMap) EncodePNG() ([]byte, error) {
	return EncodePNG(m.img)
}

// EdgeDetectResult contains an edge map encoded as base64 PNG.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// Threshold used for classification.
	Threshold int `json:"threshold"`

	// EdgeCount is the number of opaque edge pixels.
	EdgeCount int `json:"edge_count"`

	// ImageBase64 is the edge map encoded as base64 PNG with alpha.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png".
	MimeType string `json:"mime_type"`
}

// Result encodes the map into an EdgeDetectResult.
func (m *EdgeMap) Result() (*EdgeDetectResult, error) {
	data, err := m.EncodePNG()
	if err != nil {
		return nil, err
	}
	return &EdgeDetectResult{
		Width:       m.Width(),
		Height:      m.Height(),
		Threshold:   m.threshold,
		EdgeCount:   m.edges,
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}, nil
}

// ExtractEdges converts a photograph into a tracing outline using the default
// normalization and the given threshold.
func ExtractEdges(src image.Image, threshold int) (*EdgeMap, error) {
	opts := DefaultEdgeOptions()
	opts.Threshold = threshold
	return ExtractEdgesWithOptions(src, opts)
}

// ExtractEdgesWithOptions converts a photograph into a tracing outline.
//
// # Algorithm
//
//  1. Normalization: desaturate with the selected Luma formula, then stretch
//     contrast around mid-gray by opts.Contrast. The result is one 8-bit
//     intensity per pixel.
//
//  2. Edge pass: for every interior pixel (1 <= x <= w-2, 1 <= y <= h-2)
//
//     diff = |N-C| + |S-C| + |W-C| + |E-C|
//
//     where C is the pixel's intensity and N, S, W, E its 4-connected
//     neighbors. diff > Threshold marks an edge.
//
// This is not a gradient-magnitude operator. It is a single O(w*h) pass with
// no smoothing or non-maximum suppression, and changing the kernel would
// change every output pixel.
//
// The outermost one-pixel ring is never classified and is left as background.
//
// The output has the same width and height as src and is anchored at (0,0).
// The function is pure: the same input and options always give identical pixels.
func ExtractEdgesWithOptions(src image.Image, opts EdgeOptions) (*EdgeMap, error) {
	if src == nil {
		return nil, fmt.Errorf("nil source image")
	}
	if opts.Threshold < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, opts.Threshold)
	}
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < MinEdgeDimension || height < MinEdgeDimension {
		return nil, fmt.Errorf("%w: got %dx%d", ErrImageTooSmall, width, height)
	}

	gray := normalize(src, opts)

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(out.Pix); i += 4 {
		setBackground(out.Pix[i : i+4 : i+4])
	}

	edges := 0
	for y := 1; y < height-1; y++ {
		row := y * width
		for x := 1; x < width-1; x++ {
			c := int(gray[row+x])
			p := int(gray[row-width+x])
			n := int(gray[row+width+x])
			w := int(gray[row+x-1])
			e := int(gray[row+x+1])

			diff := absInt(p-c) + absInt(n-c) + absInt(w-c) + absInt(e-c)
			if diff > opts.Threshold {
				off := out.PixOffset(x, y)
				setEdge(out.Pix[off : off+4 : off+4])
				edges++
			}
		}
	}

	return &EdgeMap{img: out, threshold: opts.Threshold, edges: edges}, nil
}

// ExtractEdgesFromBytes runs the whole boundary pipeline: decode, extract and
// encode as PNG. Decode failures are *DecodeError and encode failures
// *EncodeError; no partial output is returned on any error.
func ExtractEdgesFromBytes(data []byte, opts EdgeOptions) ([]byte, *EdgeMap, error) {
	src, _, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	m, err := ExtractEdgesWithOptions(src, opts)
	if err != nil {
		return nil, nil, err
	}
	out, err := m.EncodePNG()
	if err != nil {
		return nil, nil, err
	}
	return out, m, nil
}

// normalize returns one intensity per pixel in row-major order. Both Luma
// formulas read premultiplied color, so translucent pixels are darkened as if
// composited over black.
func normalize(src image.Image, opts EdgeOptions) []uint8 {
	src = imaging.Clone(src)

	var gray *image.RGBA
	switch opts.Luma {
	case LumaPerceptual:
		gray = perceptualGray(src)
	default:
		gray = effect.Grayscale(src)
	}

	contrast := opts.Contrast
	if contrast <= 0 {
		contrast = DefaultContrast
	}
	if contrast != 1 {
		gray = adjust.Contrast(gray, contrast-1)
	}

	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// R == G == B after desaturation, so any channel is the intensity.
			out[y*width+x] = gray.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y).R
		}
	}
	return out
}

// perceptualGray maps each pixel to CIE L* lightness stored in R, G and B.
func perceptualGray(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	gray := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			c := colorful.Color{R: float64(r) / 0xffff, G: float64(g) / 0xffff, B: float64(b) / 0xffff}
			l, _, _ := c.Lab()
			v := uint8(math.Round(math.Max(0, math.Min(1, l)) * 255))
			off := gray.PixOffset(x-bounds.Min.X, y-bounds.Min.Y)
			gray.Pix[off], gray.Pix[off+1], gray.Pix[off+2], gray.Pix[off+3] = v, v, v, 255
		}
	}
	return gray
}

func setEdge(px []uint8) {
	px[0], px[1], px[2], px[3] = 0, 0, 0, 255
}

func setBackground(px []uint8) {
	px[0], px[1], px[2], px[3] = 255, 255, 255, 0
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
