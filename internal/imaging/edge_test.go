package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// createInMemoryImage creates a solid-color RGBA image.
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createNoiseImage creates a deterministic multi-colored image.
func createNoiseImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x*37 + y*91) % 256),
				G: uint8((x*13 + y*7) % 256),
				B: uint8((x*x + y*3) % 256),
				A: 255,
			})
		}
	}
	return img
}

// createCheckerImage alternates black and white on every pixel.
func createCheckerImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func nrgbaAt(t *testing.T, img image.Image, x, y int) color.NRGBA {
	t.Helper()
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

var (
	wantEdge       = color.NRGBA{0, 0, 0, 255}
	wantBackground = color.NRGBA{255, 255, 255, 0}
)

func TestExtractEdges_SizePreserved(t *testing.T) {
	tests := []struct {
		name   string
		bounds image.Rectangle
	}{
		{"minimum", image.Rect(0, 0, 3, 3)},
		{"wide", image.Rect(0, 0, 40, 3)},
		{"tall", image.Rect(0, 0, 3, 25)},
		{"square", image.Rect(0, 0, 64, 64)},
		{"offset origin", image.Rect(10, 20, 42, 36)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(tt.bounds)
			m, err := ExtractEdges(src, DefaultEdgeThreshold)
			if err != nil {
				t.Fatalf("ExtractEdges failed: %v", err)
			}
			if m.Width() != tt.bounds.Dx() || m.Height() != tt.bounds.Dy() {
				t.Errorf("dimensions: got %dx%d, want %dx%d",
					m.Width(), m.Height(), tt.bounds.Dx(), tt.bounds.Dy())
			}
		})
	}
}

func TestExtractEdges_PixelInvariant(t *testing.T) {
	for _, threshold := range []int{0, 15, 100, 400} {
		m, err := ExtractEdges(createNoiseImage(48, 32), threshold)
		if err != nil {
			t.Fatalf("ExtractEdges(threshold=%d) failed: %v", threshold, err)
		}
		img := m.Image()
		for y := 0; y < m.Height(); y++ {
			for x := 0; x < m.Width(); x++ {
				got := nrgbaAt(t, img, x, y)
				if got != wantEdge && got != wantBackground {
					t.Fatalf("threshold=%d pixel (%d,%d): got %v, want edge or background", threshold, x, y, got)
				}
			}
		}
	}
}

func TestExtractEdges_Deterministic(t *testing.T) {
	src := createNoiseImage(50, 40)

	m1, err := ExtractEdges(src, DefaultEdgeThreshold)
	if err != nil {
		t.Fatalf("first ExtractEdges failed: %v", err)
	}
	m2, err := ExtractEdges(src, DefaultEdgeThreshold)
	if err != nil {
		t.Fatalf("second ExtractEdges failed: %v", err)
	}

	p1, err := m1.EncodePNG()
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	p2, err := m2.EncodePNG()
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	if !bytes.Equal(p1, p2) {
		t.Error("two extractions of the same input produced different bytes")
	}
	if m1.EdgeCount() != m2.EdgeCount() {
		t.Errorf("EdgeCount: got %d and %d", m1.EdgeCount(), m2.EdgeCount())
	}
}

func TestExtractEdges_ThresholdMonotonic(t *testing.T) {
	src := createNoiseImage(60, 60)

	prev := -1
	for threshold := 0; threshold <= 1100; threshold += 25 {
		m, err := ExtractEdges(src, threshold)
		if err != nil {
			t.Fatalf("ExtractEdges(threshold=%d) failed: %v", threshold, err)
		}
		if prev >= 0 && m.EdgeCount() > prev {
			t.Errorf("threshold %d: edge count rose from %d to %d", threshold, prev, m.EdgeCount())
		}
		prev = m.EdgeCount()
	}
	if prev != 0 {
		t.Errorf("edge count above maximum diff: got %d, want 0", prev)
	}
}

func TestExtractEdges_BorderIsBackground(t *testing.T) {
	// Every interior pixel of a 1px checkerboard differs from all 4 neighbors.
	m, err := ExtractEdges(createCheckerImage(9, 7), DefaultEdgeThreshold)
	if err != nil {
		t.Fatalf("ExtractEdges failed: %v", err)
	}
	img := m.Image()
	w, h := m.Width(), m.Height()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			border := x == 0 || y == 0 || x == w-1 || y == h-1
			got := nrgbaAt(t, img, x, y)
			if border && got != wantBackground {
				t.Errorf("border pixel (%d,%d): got %v, want background", x, y, got)
			}
			if !border && got != wantEdge {
				t.Errorf("interior pixel (%d,%d): got %v, want edge", x, y, got)
			}
		}
	}
	if want := (w - 2) * (h - 2); m.EdgeCount() != want {
		t.Errorf("EdgeCount: got %d, want %d", m.EdgeCount(), want)
	}
}

func TestExtractEdges_UniformGray3x3(t *testing.T) {
	src := createInMemoryImage(3, 3, color.RGBA{128, 128, 128, 255})

	m, err := ExtractEdges(src, DefaultEdgeThreshold)
	if err != nil {
		t.Fatalf("ExtractEdges failed: %v", err)
	}
	if got := nrgbaAt(t, m.Image(), 1, 1); got != wantBackground {
		t.Errorf("center: got %v, want background", got)
	}
	if m.EdgeCount() != 0 {
		t.Errorf("EdgeCount: got %d, want 0", m.EdgeCount())
	}
}

func TestExtractEdges_BlackCenter3x3(t *testing.T) {
	for _, luma := range []Luma{LumaRec601, LumaPerceptual} {
		t.Run(luma.String(), func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, 3, 3))
			for y := 0; y < 3; y++ {
				for x := 0; x < 3; x++ {
					src.Set(x, y, color.White)
				}
			}
			src.Set(1, 1, color.Black)

			opts := DefaultEdgeOptions()
			opts.Luma = luma
			m, err := ExtractEdgesWithOptions(src, opts)
			if err != nil {
				t.Fatalf("ExtractEdges failed: %v", err)
			}
			if got := nrgbaAt(t, m.Image(), 1, 1); got != wantEdge {
				t.Errorf("center: got %v, want edge", got)
			}
			if m.EdgeCount() != 1 {
				t.Errorf("EdgeCount: got %d, want 1", m.EdgeCount())
			}
		})
	}
}

func TestExtractEdges_MaximumDiff(t *testing.T) {
	// Black center with white neighbors sums to 4*255 = 1020.
	src := createInMemoryImage(3, 3, color.White).(*image.RGBA)
	src.Set(1, 1, color.Black)

	tests := []struct {
		threshold int
		wantEdges int
	}{
		{1019, 1},
		{1020, 0},
	}
	for _, tt := range tests {
		m, err := ExtractEdges(src, tt.threshold)
		if err != nil {
			t.Fatalf("ExtractEdges failed: %v", err)
		}
		if m.EdgeCount() != tt.wantEdges {
			t.Errorf("threshold %d: EdgeCount got %d, want %d", tt.threshold, m.EdgeCount(), tt.wantEdges)
		}
	}
}

func TestExtractEdges_SubImageDefaultPath(t *testing.T) {
	// A 3x3 window cut from a larger canvas keeps its non-zero origin.
	canvas := createInMemoryImage(9, 9, color.White).(*image.RGBA)
	canvas.Set(5, 4, color.Black)
	src := canvas.SubImage(image.Rect(4, 3, 7, 6))

	m, err := ExtractEdges(src, DefaultEdgeThreshold)
	if err != nil {
		t.Fatalf("ExtractEdges failed: %v", err)
	}
	if got, want := m.Image().Bounds(), image.Rect(0, 0, 3, 3); got != want {
		t.Errorf("bounds: got %v, want %v", got, want)
	}
	if got := nrgbaAt(t, m.Image(), 1, 1); got != wantEdge {
		t.Errorf("center: got %v, want edge", got)
	}
	if m.EdgeCount() != 1 {
		t.Errorf("EdgeCount: got %d, want 1", m.EdgeCount())
	}

	for _, tt := range []struct {
		threshold int
		wantEdges int
	}{
		{1019, 1},
		{1020, 0},
	} {
		m, err := ExtractEdges(src, tt.threshold)
		if err != nil {
			t.Fatalf("ExtractEdges failed: %v", err)
		}
		if m.EdgeCount() != tt.wantEdges {
			t.Errorf("threshold %d: EdgeCount got %d, want %d", tt.threshold, m.EdgeCount(), tt.wantEdges)
		}
	}
}

func TestNormalize_TranslucentOverBlack(t *testing.T) {
	// Half-transparent white reads like opaque mid-gray and fully transparent
	// pixels read like black, whichever luma formula is selected.
	translucent := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	translucent.SetNRGBA(0, 0, color.NRGBA{255, 255, 255, 128})
	translucent.SetNRGBA(1, 0, color.NRGBA{200, 40, 90, 0})
	translucent.SetNRGBA(2, 0, color.NRGBA{255, 255, 255, 255})

	opaque := image.NewRGBA(image.Rect(0, 0, 3, 1))
	opaque.SetRGBA(0, 0, color.RGBA{128, 128, 128, 255})
	opaque.SetRGBA(1, 0, color.RGBA{0, 0, 0, 255})
	opaque.SetRGBA(2, 0, color.RGBA{255, 255, 255, 255})

	for _, luma := range []Luma{LumaRec601, LumaPerceptual} {
		for _, contrast := range []float64{1, DefaultContrast} {
			opts := EdgeOptions{Luma: luma, Contrast: contrast}
			got := normalize(translucent, opts)
			want := normalize(opaque, opts)
			if !bytes.Equal(got, want) {
				t.Errorf("%s contrast %v: got %v, want %v", luma, contrast, got, want)
			}
		}
	}
}

func TestExtractEdges_StrongEdge(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}

	m, err := ExtractEdges(img, DefaultEdgeThreshold)
	if err != nil {
		t.Fatalf("ExtractEdges failed: %v", err)
	}
	out := m.Image()

	for _, x := range []int{49, 50} {
		if got := nrgbaAt(t, out, x, 50); got != wantEdge {
			t.Errorf("pixel (%d,50) beside the boundary: got %v, want edge", x, got)
		}
	}
	for _, x := range []int{10, 48, 51, 90} {
		if got := nrgbaAt(t, out, x, 50); got != wantBackground {
			t.Errorf("pixel (%d,50) away from the boundary: got %v, want background", x, got)
		}
	}
	if want := 2 * 98; m.EdgeCount() != want {
		t.Errorf("EdgeCount: got %d, want %d", m.EdgeCount(), want)
	}
}

func TestExtractEdges_ContrastOne(t *testing.T) {
	// Without a contrast boost, two grays 5 apart sum to 5 at the boundary.
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			v := uint8(100)
			if x >= 2 {
				v = 105
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	opts := EdgeOptions{Threshold: 4, Contrast: 1}
	m, err := ExtractEdgesWithOptions(img, opts)
	if err != nil {
		t.Fatalf("ExtractEdges failed: %v", err)
	}
	if m.EdgeCount() != 2 {
		t.Errorf("threshold 4: EdgeCount got %d, want 2", m.EdgeCount())
	}

	opts.Threshold = 5
	m, err = ExtractEdgesWithOptions(img, opts)
	if err != nil {
		t.Fatalf("ExtractEdges failed: %v", err)
	}
	if m.EdgeCount() != 0 {
		t.Errorf("threshold 5: EdgeCount got %d, want 0", m.EdgeCount())
	}
}

func TestExtractEdges_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		src       image.Image
		threshold int
		wantErr   error
	}{
		{"too narrow", image.NewRGBA(image.Rect(0, 0, 2, 10)), 15, ErrImageTooSmall},
		{"too short", image.NewRGBA(image.Rect(0, 0, 10, 2)), 15, ErrImageTooSmall},
		{"empty", image.NewRGBA(image.Rect(0, 0, 0, 0)), 15, ErrImageTooSmall},
		{"negative threshold", image.NewRGBA(image.Rect(0, 0, 5, 5)), -1, ErrInvalidThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ExtractEdges(tt.src, tt.threshold)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error: got %v, want %v", err, tt.wantErr)
			}
			if m != nil {
				t.Error("expected nil EdgeMap on error")
			}
		})
	}

	if _, err := ExtractEdges(nil, 15); err == nil {
		t.Error("ExtractEdges(nil) should fail")
	}
}

func TestExtractEdgesFromBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, createCheckerImage(6, 5)); err != nil {
		t.Fatalf("failed to encode source: %v", err)
	}

	out, m, err := ExtractEdgesFromBytes(buf.Bytes(), DefaultEdgeOptions())
	if err != nil {
		t.Fatalf("ExtractEdgesFromBytes failed: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 6 || decoded.Bounds().Dy() != 5 {
		t.Errorf("decoded dimensions: got %dx%d, want 6x5", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}

	// Transparency must survive the PNG round trip.
	if got := nrgbaAt(t, decoded, 0, 0); got != wantBackground {
		t.Errorf("decoded corner: got %v, want background", got)
	}
	if got := nrgbaAt(t, decoded, 2, 2); got != wantEdge {
		t.Errorf("decoded interior: got %v, want edge", got)
	}
	if m.EdgeCount() != 12 {
		t.Errorf("EdgeCount: got %d, want 12", m.EdgeCount())
	}
}

func TestExtractEdgesFromBytes_DecodeError(t *testing.T) {
	out, m, err := ExtractEdgesFromBytes([]byte("not an image"), DefaultEdgeOptions())

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("error: got %v, want *DecodeError", err)
	}
	if out != nil || m != nil {
		t.Error("expected no partial output on decode failure")
	}
}

func TestEdgeMap_Result(t *testing.T) {
	m, err := ExtractEdges(createCheckerImage(10, 10), 30)
	if err != nil {
		t.Fatalf("ExtractEdges failed: %v", err)
	}

	result, err := m.Result()
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	if result.Threshold != 30 {
		t.Errorf("Threshold: got %d, want 30", result.Threshold)
	}
	if result.EdgeCount != 64 {
		t.Errorf("EdgeCount: got %d, want 64", result.EdgeCount)
	}

	decoded, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(decoded)); err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
}

func TestParseLuma(t *testing.T) {
	tests := []struct {
		in      string
		want    Luma
		wantErr bool
	}{
		{"", LumaRec601, false},
		{"rec601", LumaRec601, false},
		{"Perceptual", LumaPerceptual, false},
		{"lab", LumaPerceptual, false},
		{"sobel", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLuma(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLuma(%q) error: got %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLuma(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAbsInt(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0},
		{7, 7},
		{-7, 7},
	}
	for _, tt := range tests {
		if got := absInt(tt.in); got != tt.want {
			t.Errorf("absInt(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}
