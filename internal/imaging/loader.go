package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DecodeError reports that a byte buffer could not be interpreted as a raster image.
//
// No partially decoded image is ever returned alongside a DecodeError.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports that an image could not be serialized to bytes.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode image: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Decode turns an encoded image buffer into a RasterImage.
//
// Any format with a registered decoder is accepted: PNG, JPEG, GIF, WebP, BMP
// and TIFF. JPEG photos are rotated according to their EXIF orientation tag so
// the outline matches what the user sees in their gallery.
//
// Returns the decoded image and the format name reported by the decoder
// ("png", "jpeg", ...). Failures are always *DecodeError.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &DecodeError{Err: fmt.Errorf("empty buffer")}
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}

	return img, format, nil
}

// EncodePNG serializes an image as PNG, the only boundary format that keeps
// the alpha channel an EdgeMap relies on. Failures are always *EncodeError.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, &EncodeError{Err: fmt.Errorf("nil image")}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, &EncodeError{Err: err}
	}
	return buf.Bytes(), nil
}

// MaxCachedImages bounds the number of decoded images an ImageCache holds.
const MaxCachedImages = 16

// ImageCache provides thread-safe caching of decoded images keyed by file path.
//
// An entry is reused only while the file keeps the size and modification time
// it had when it was decoded, so a file rewritten in place (a camera frame, a
// photo edited between requests) is decoded again on the next Load.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cachedImage
}

type cachedImage struct {
	img     image.Image
	size    int64
	modTime time.Time
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cachedImage),
	}
}

// Load returns the decoded image at path, reading the file only when it
// changed since the last Load.
//
// The image is cached using the exact path string provided. Read failures are
// returned wrapped; decode failures are *DecodeError. Either way nothing stays
// cached for path.
func (c *ImageCache) Load(path string) (image.Image, error) {
	fi, err := os.Stat(path)
	if err != nil {
		c.Evict(path)
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.RLock()
	entry, ok := c.images[path]
	c.mu.RUnlock()
	if ok && entry.size == fi.Size() && entry.modTime.Equal(fi.ModTime()) {
		return entry.img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.Evict(path)
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, _, err := Decode(data)
	if err != nil {
		c.Evict(path)
		return nil, err
	}

	c.mu.Lock()
	if _, ok := c.images[path]; !ok && len(c.images) >= MaxCachedImages {
		for k := range c.images {
			delete(c.images, k)
			break
		}
	}
	c.images[path] = cachedImage{img: img, size: fi.Size(), modTime: fi.ModTime()}
	c.mu.Unlock()

	return img, nil
}

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// ImageInfo contains metadata about a decoded source image.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the format name reported by the decoder: "png", "jpeg", "gif",
	// "webp", "bmp" or "tiff".
	Format string `json:"format"`

	// HasAlpha indicates whether the decoded color model carries transparency.
	HasAlpha bool `json:"has_alpha"`

	// SizeBytes is the size of the encoded buffer in bytes.
	SizeBytes int64 `json:"size_bytes"`
}

// Describe builds an ImageInfo for a decoded image.
//
// Alpha detection is based on the Go image type: *image.RGBA, *image.NRGBA and
// their 16-bit variants report HasAlpha.
func Describe(img image.Image, format string, size int64) *ImageInfo {
	bounds := img.Bounds()

	hasAlpha := false
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
	}

	return &ImageInfo{
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Format:    format,
		HasAlpha:  hasAlpha,
		SizeBytes: size,
	}
}
