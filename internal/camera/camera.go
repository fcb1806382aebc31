// Package camera supplies the live backdrop the overlay is traced against.
//
// The rest of the system treats a Source as opaque: frames are only ever
// handed to the compositor, never analyzed. Failing to acquire a camera is
// reported to the user but never blocks loading images or extracting
// outlines.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/ironsheep/tracevision-mcp/internal/imaging"
)

// ErrUnavailable is wrapped by every error caused by a missing camera,
// denied permission or an unreadable frame.
var ErrUnavailable = errors.New("camera unavailable")

// Source produces the current backdrop frame.
type Source interface {
	Frame(ctx context.Context) (image.Image, error)
}

// FileSource reads frames from an image file that an external capture
// process keeps overwriting. A frame is decoded again whenever the file
// changes; an unchanged file is served from the cache.
type FileSource struct {
	path  string
	cache *imaging.ImageCache
}

// NewFileSource returns a Source backed by the frame file at path. A nil
// cache gives the source a cache of its own.
func NewFileSource(path string, cache *imaging.ImageCache) *FileSource {
	if cache == nil {
		cache = imaging.NewImageCache()
	}
	return &FileSource{path: path, cache: cache}
}

// Frame decodes the latest frame. Missing, unreadable or corrupt frames are
// reported as ErrUnavailable.
func (s *FileSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := s.cache.Load(s.path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: permission denied for %s", ErrUnavailable, s.path)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return img, nil
}

// Unavailable is a Source for hosts without a camera.
type Unavailable struct {
	Reason string
}

// Frame always fails with ErrUnavailable.
func (u Unavailable) Frame(context.Context) (image.Image, error) {
	reason := u.Reason
	if reason == "" {
		reason = "no camera configured"
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, reason)
}

// Open returns a FileSource for path sharing cache, or Unavailable when path
// is empty.
func Open(path string, cache *imaging.ImageCache) Source {
	if path == "" {
		return Unavailable{}
	}
	return NewFileSource(path, cache)
}

// Message turns a camera error into the text shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnavailable):
		return "Camera unavailable. Tracing still works on a black backdrop: " + err.Error()
	default:
		return err.Error()
	}
}
