// Package session owns the single active tracing document: the source image,
// its outline, and the overlay transform that positions it.
//
// Edge extraction runs on its own goroutine. Every image load (or threshold
// change) starts a new generation; a finished extraction is applied only if
// its generation is still the current one, so a slow extraction for an old
// image can never overwrite the outline of a newer one.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/ironsheep/tracevision-mcp/internal/imaging"
	"github.com/ironsheep/tracevision-mcp/internal/overlay"
)

var (
	// ErrNoImage is returned when an operation needs a loaded image.
	ErrNoImage = errors.New("no image loaded")

	// ErrOutlinePending is returned while extraction for the current image
	// is still running.
	ErrOutlinePending = errors.New("outline extraction in progress")
)

// Extractor computes an edge map. It exists so tests can control timing.
type Extractor func(src image.Image, opts imaging.EdgeOptions) (*imaging.EdgeMap, error)

// Options configures a Session.
type Options struct {
	// Edge is used for every extraction. The zero value selects
	// imaging.DefaultEdgeOptions; any other value is taken as given, so an
	// explicit threshold of 0 is kept.
	Edge      imaging.EdgeOptions
	Logger    *slog.Logger
	Extractor Extractor
}

// Status is a point-in-time summary of the session.
type Status struct {
	HasImage     bool               `json:"has_image"`
	Generation   uint64             `json:"generation"`
	Extracting   bool               `json:"extracting"`
	OutlineReady bool               `json:"outline_ready"`
	LastError    string             `json:"last_error,omitempty"`
	Threshold    int                `json:"threshold"`
	Image        *imaging.ImageInfo `json:"image,omitempty"`
	Outline      *OutlineInfo       `json:"outline,omitempty"`
	Transform    overlay.Transform  `json:"transform"`
}

// OutlineInfo describes a finished edge map.
type OutlineInfo struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	Threshold int `json:"threshold"`
	EdgeCount int `json:"edge_count"`
}

// Session is safe for concurrent use.
type Session struct {
	logger  *slog.Logger
	extract Extractor
	state   *overlay.State

	mu         sync.Mutex
	edge       imaging.EdgeOptions
	source     image.Image
	info       *imaging.ImageInfo
	outline    *imaging.EdgeMap
	generation uint64
	done       chan struct{}
	extracting bool
	lastErr    error
}

// New creates an empty session.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	extract := opts.Extractor
	if extract == nil {
		extract = imaging.ExtractEdgesWithOptions
	}
	edge := opts.Edge
	if edge == (imaging.EdgeOptions{}) {
		edge = imaging.DefaultEdgeOptions()
	}
	if edge.Threshold < 0 {
		edge.Threshold = imaging.DefaultEdgeThreshold
	}
	if edge.Contrast <= 0 {
		edge.Contrast = imaging.DefaultContrast
	}
	return &Session{
		logger:  logger,
		extract: extract,
		state:   overlay.NewState(),
		edge:    edge,
	}
}

// Overlay returns the transform state of the session.
func (s *Session) Overlay() *overlay.State {
	return s.state
}

// LoadImage decodes data and makes it the active document. A decode failure
// leaves the previous document untouched. On success the outline is cleared,
// the transform geometry is reset, and extraction starts in the background.
func (s *Session) LoadImage(ctx context.Context, data []byte) (*imaging.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, format, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	info := imaging.Describe(img, format, int64(len(data)))

	s.mu.Lock()
	s.source = img
	s.info = info
	gen := s.startLocked()
	s.mu.Unlock()

	s.state.Reset()
	s.logger.Info("image loaded",
		"generation", gen,
		"format", format,
		"width", info.Width,
		"height", info.Height)
	return info, nil
}

// LoadImageFile reads path and loads it as LoadImage does.
func (s *Session) LoadImageFile(ctx context.Context, path string) (*imaging.ImageInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return s.LoadImage(ctx, data)
}

// SetThreshold changes the edge threshold and, if an image is loaded,
// re-extracts it under a new generation. The transform is not touched.
func (s *Session) SetThreshold(threshold int) error {
	if threshold < 0 {
		return imaging.ErrInvalidThreshold
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.edge.Threshold = threshold
	if s.source == nil {
		return nil
	}
	gen := s.startLocked()
	s.logger.Info("threshold changed", "generation", gen, "threshold", threshold)
	return nil
}

// startLocked discards the current outline and launches extraction of
// s.source under a fresh generation. s.mu must be held.
func (s *Session) startLocked() uint64 {
	s.generation++
	gen := s.generation
	done := make(chan struct{})

	s.outline = nil
	s.lastErr = nil
	s.extracting = true
	s.done = done

	src, opts := s.source, s.edge
	go s.run(gen, done, src, opts)
	return gen
}

func (s *Session) run(gen uint64, done chan struct{}, src image.Image, opts imaging.EdgeOptions) {
	defer close(done)

	edges, err := s.extract(src, opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("discarding stale extraction",
			"generation", gen,
			"current", s.generation)
		return
	}
	s.extracting = false
	if err != nil {
		s.lastErr = err
		s.logger.Error("edge extraction failed", "generation", gen, "error", err)
		return
	}
	s.outline = edges
	s.logger.Info("edge extraction complete",
		"generation", gen,
		"edges", edges.EdgeCount(),
		"threshold", edges.Threshold())
}

// Wait blocks until extraction for the current generation has finished. If a
// newer generation starts while waiting, Wait follows it.
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		done := s.done
		s.mu.Unlock()

		if done == nil {
			return ErrNoImage
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.mu.Lock()
		current := s.done == done
		s.mu.Unlock()
		if current {
			return nil
		}
	}
}

// Source returns the active source image.
func (s *Session) Source() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return nil, ErrNoImage
	}
	return s.source, nil
}

// Outline returns the edge map of the active image. It returns
// ErrOutlinePending while extraction runs and the extraction error if it
// failed.
func (s *Session) Outline() (*imaging.EdgeMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.source == nil:
		return nil, ErrNoImage
	case s.outline != nil:
		return s.outline, nil
	case s.extracting:
		return nil, ErrOutlinePending
	case s.lastErr != nil:
		return nil, s.lastErr
	}
	return nil, ErrOutlinePending
}

// Display returns the image that should be shown for the current mode and
// the mode it actually represents. Outline mode falls back to the source
// until an outline exists.
func (s *Session) Display() (image.Image, overlay.Mode, error) {
	t := s.state.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == nil {
		return nil, t.Mode, ErrNoImage
	}
	if t.Mode == overlay.ModeOutline && s.outline != nil {
		return s.outline.Image(), overlay.ModeOutline, nil
	}
	return s.source, overlay.ModeOriginal, nil
}

// Status returns a summary of the session.
func (s *Session) Status() Status {
	t := s.state.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		HasImage:   s.source != nil,
		Generation: s.generation,
		Extracting: s.extracting,
		Threshold:  s.edge.Threshold,
		Image:      s.info,
		Transform:  t,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if s.outline != nil {
		st.OutlineReady = true
		st.Outline = &OutlineInfo{
			Width:     s.outline.Width(),
			Height:    s.outline.Height(),
			Threshold: s.outline.Threshold(),
			EdgeCount: s.outline.EdgeCount(),
		}
	}
	return st
}
