// Package config holds runtime configuration for the trace server.
package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/tracevision-mcp/internal/imaging"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvConfig    = "TRACEVISION_CONFIG"
	EnvLogLevel  = "TRACEVISION_LOG_LEVEL"
	EnvStateDir  = "TRACEVISION_STATE_DIR"
	EnvCamera    = "TRACEVISION_CAMERA"
	EnvThreshold = "TRACEVISION_THRESHOLD"
)

// Config holds runtime configuration. Fields may be loaded from a JSON file
// and overridden by environment variables.
type Config struct {
	LogLevel string `json:"log_level"`

	// StateDir holds prefs.json.
	StateDir string `json:"state_dir"`

	// CameraPath is a frame file rewritten by an external capture process.
	// Empty means no camera.
	CameraPath string `json:"camera_path"`

	// Edge extraction
	Threshold int     `json:"threshold"`
	Luma      string  `json:"luma"`
	Contrast  float64 `json:"contrast"`

	// Rendering
	ViewportWidth  int     `json:"viewport_width"`
	ViewportHeight int     `json:"viewport_height"`
	FitFraction    float64 `json:"fit_fraction"`
	GuideColor     string  `json:"guide_color"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		StateDir:       DefaultStateDir(),
		Threshold:      imaging.DefaultEdgeThreshold,
		Luma:           imaging.LumaRec601.String(),
		Contrast:       imaging.DefaultContrast,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		FitFraction:    imaging.DefaultFitFraction,
		GuideColor:     imaging.DefaultGuideColor,
	}
}

// DefaultStateDir returns <user config dir>/tracevision, or .tracevision in
// the working directory when no user config dir is known.
func DefaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tracevision"
	}
	return filepath.Join(dir, "tracevision")
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.Threshold < 0 {
		c.Threshold = imaging.DefaultEdgeThreshold
	}
	if _, err := imaging.ParseLuma(c.Luma); err != nil {
		c.Luma = imaging.LumaRec601.String()
	}
	if c.Contrast <= 0 {
		c.Contrast = imaging.DefaultContrast
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1280
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 720
	}
	if c.FitFraction <= 0 || c.FitFraction > 1 {
		c.FitFraction = imaging.DefaultFitFraction
	}
	if c.GuideColor == "" {
		c.GuideColor = imaging.DefaultGuideColor
	}
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir()
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	return nil
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EdgeOptions returns the extraction options the config describes.
func (c *Config) EdgeOptions() imaging.EdgeOptions {
	luma, _ := imaging.ParseLuma(c.Luma)
	return imaging.EdgeOptions{
		Threshold: c.Threshold,
		Luma:      luma,
		Contrast:  c.Contrast,
	}
}

// ComposeOptions returns the render options the config describes.
func (c *Config) ComposeOptions() imaging.ComposeOptions {
	return imaging.ComposeOptions{
		Width:       c.ViewportWidth,
		Height:      c.ViewportHeight,
		FitFraction: c.FitFraction,
		GuideColor:  c.GuideColor,
	}
}

// ApplyEnv overrides fields from TRACEVISION_* variables looked up through
// getenv. Unparseable numbers are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvStateDir); v != "" {
		c.StateDir = v
	}
	if v := getenv(EnvCamera); v != "" {
		c.CameraPath = v
	}
	if v := getenv(EnvThreshold); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Threshold = n
		}
	}
	_ = c.Validate()
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// FromEnv loads the file named by TRACEVISION_CONFIG (if any) and applies
// the remaining environment overrides.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg, err := Load(getenv(EnvConfig))
	cfg.ApplyEnv(getenv)
	return cfg, err
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
