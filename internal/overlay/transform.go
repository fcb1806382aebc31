// Package overlay holds the live transform applied to the traced image.
//
// A Transform is an immutable value. State owns the current Transform and
// funnels every change through a named operation, each of which returns the
// new snapshot. Renderers read Snapshot and compare Version to notice
// changes. Drag gestures only ever move the position and are suppressed
// while the overlay is locked; slider and toggle mutators never are.
package overlay

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Limits for adjustable parameters.
const (
	MinScale       = 0.1
	MaxScale       = 5.0
	MinRotation    = -180
	MaxRotation    = 180
	DefaultOpacity = 0.5
)

// Mode selects which image variant is rendered through the transform.
type Mode int

const (
	// ModeOriginal renders the loaded photograph.
	ModeOriginal Mode = iota

	// ModeOutline renders the extracted edge map.
	ModeOutline
)

func (m Mode) String() string {
	switch m {
	case ModeOriginal:
		return "original"
	case ModeOutline:
		return "outline"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps "original" or "outline" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "original":
		return ModeOriginal, nil
	case "outline":
		return ModeOutline, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want original or outline)", s)
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Transform is one snapshot of the overlay parameters.
type Transform struct {
	// X and Y offset the overlay from the center of the view, in display pixels.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Scale is the zoom factor in [MinScale, MaxScale].
	Scale float64 `json:"scale"`

	// Rotation is clockwise degrees in [MinRotation, MaxRotation].
	Rotation int `json:"rotation"`

	// Opacity is in [0, 1].
	Opacity float64 `json:"opacity"`

	// Flipped mirrors the overlay horizontally.
	Flipped bool `json:"flipped"`

	Mode Mode `json:"mode"`

	// Locked suppresses drag gestures.
	Locked bool `json:"locked"`

	// Version increases by one for every applied change.
	Version uint64 `json:"version"`
}

// Default returns the transform of a freshly started session.
func Default() Transform {
	return Transform{
		Scale:   1,
		Opacity: DefaultOpacity,
		Mode:    ModeOriginal,
	}
}

// State is the mutable owner of the current Transform. It is safe for
// concurrent use; events are applied in the order they acquire the lock.
type State struct {
	mu       sync.Mutex
	current  Transform
	dragging bool
	anchorX  float64
	anchorY  float64
}

// NewState returns a State holding Default().
func NewState() *State {
	return &State{current: Default()}
}

// Snapshot returns the current transform.
func (s *State) Snapshot() Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Dragging reports whether a drag gesture is active.
func (s *State) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging
}

// update applies fn to a copy of the current transform and stores the copy
// under the next version. Must be called with s.mu held.
func (s *State) update(fn func(t *Transform)) Transform {
	next := s.current
	fn(&next)
	next.Version = s.current.Version + 1
	s.current = next
	return next
}

// Reset restores position (0,0), scale 1 and rotation 0. Opacity, flip,
// mode and lock are left as they are.
func (s *State) Reset() Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging = false
	return s.update(func(t *Transform) {
		t.X, t.Y = 0, 0
		t.Scale = 1
		t.Rotation = 0
	})
}

// BeginDrag records the pointer offset from the current position. It does
// nothing while locked.
func (s *State) BeginDrag(pointerX, pointerY float64) Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Locked {
		return s.current
	}
	s.dragging = true
	s.anchorX = pointerX - s.current.X
	s.anchorY = pointerY - s.current.Y
	return s.current
}

// ContinueDrag moves the overlay so the anchor stays under the pointer. It
// does nothing unless a drag is active and the overlay is unlocked.
func (s *State) ContinueDrag(pointerX, pointerY float64) Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dragging || s.current.Locked {
		return s.current
	}
	return s.update(func(t *Transform) {
		t.X = pointerX - s.anchorX
		t.Y = pointerY - s.anchorY
	})
}

// EndDrag clears the active drag.
func (s *State) EndDrag() Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging = false
	return s.current
}

// SetScale clamps scale to [MinScale, MaxScale]. NaN is ignored.
func (s *State) SetScale(scale float64) Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(scale) {
		return s.current
	}
	return s.update(func(t *Transform) {
		t.Scale = math.Max(MinScale, math.Min(MaxScale, scale))
	})
}

// SetRotation clamps degrees to [MinRotation, MaxRotation].
func (s *State) SetRotation(degrees int) Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(func(t *Transform) {
		t.Rotation = clampInt(degrees, MinRotation, MaxRotation)
	})
}

// SetOpacity clamps opacity to [0, 1]. NaN is ignored.
func (s *State) SetOpacity(opacity float64) Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(opacity) {
		return s.current
	}
	return s.update(func(t *Transform) {
		t.Opacity = math.Max(0, math.Min(1, opacity))
	})
}

// SetFlipped sets horizontal mirroring.
func (s *State) SetFlipped(flipped bool) Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(func(t *Transform) { t.Flipped = flipped })
}

// ToggleFlip inverts horizontal mirroring.
func (s *State) ToggleFlip() Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(func(t *Transform) { t.Flipped = !t.Flipped })
}

// SetMode selects the rendered image variant.
func (s *State) SetMode(mode Mode) Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(func(t *Transform) { t.Mode = mode })
}

// SetLocked locks or unlocks drag gestures. Locking ends any active drag.
func (s *State) SetLocked(locked bool) Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	if locked {
		s.dragging = false
	}
	return s.update(func(t *Transform) { t.Locked = locked })
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
