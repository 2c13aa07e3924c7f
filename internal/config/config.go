// Package config loads outfitai settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/outfitai/internal/autocapture"
	"github.com/lehigh-university-libraries/outfitai/internal/entries"
	"github.com/lehigh-university-libraries/outfitai/internal/models"
	"github.com/lehigh-university-libraries/outfitai/internal/submission"
)

const DefaultPath = "outfitai.yaml"

type Config struct {
	Endpoint    string              `yaml:"endpoint"`
	Timeout     time.Duration       `yaml:"timeout"`
	Store       StoreConfig         `yaml:"store"`
	Camera      CameraConfig        `yaml:"camera"`
	Capture     CaptureConfig       `yaml:"capture"`
	Suggestions []models.Suggestion `yaml:"suggestions"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite
	Path   string `yaml:"path"`
	Key    string `yaml:"key"`
}

type CameraConfig struct {
	Device     string `yaml:"device"` // synthetic, directory, none
	FramesDir  string `yaml:"frames_dir"`
	FacingMode string `yaml:"facing_mode"`
}

type CaptureConfig struct {
	Shots    int           `yaml:"shots"`
	Interval time.Duration `yaml:"interval"`
}

func Default() *Config {
	return &Config{
		Endpoint: submission.DefaultEndpoint,
		Timeout:  submission.DefaultTimeout,
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(".outfitai", "entries.db"),
			Key:    entries.DefaultKey,
		},
		Camera: CameraConfig{
			Device:     "synthetic",
			FacingMode: "user",
		},
		Capture: CaptureConfig{
			Shots:    autocapture.DefaultShots,
			Interval: autocapture.DefaultInterval,
		},
		Suggestions: slices.Clone(models.DefaultSuggestions),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is only an error when path is not
// DefaultPath.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
			slog.Debug("Loaded config file", "path", path)
		case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
			slog.Debug("No config file, using defaults", "path", path)
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		name   string
		target *string
	}{
		{"OUTFITAI_ENDPOINT", &c.Endpoint},
		{"OUTFITAI_STORE", &c.Store.Driver},
		{"OUTFITAI_STORE_PATH", &c.Store.Path},
		{"OUTFITAI_DEVICE", &c.Camera.Device},
		{"OUTFITAI_FRAMES_DIR", &c.Camera.FramesDir},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.name); v != "" {
			*o.target = v
		}
	}
}

// Validate checks the configuration and fills in zero values that have a default
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute http(s) URL, got %q", c.Endpoint)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver)
	}
	if c.Store.Key == "" {
		c.Store.Key = entries.DefaultKey
	}

	switch c.Camera.Device {
	case "synthetic", "none":
	case "directory":
		if c.Camera.FramesDir == "" {
			return fmt.Errorf("camera.frames_dir is required for the directory device")
		}
	default:
		return fmt.Errorf("camera.device must be synthetic, directory or none, got %q", c.Camera.Device)
	}
	if c.Camera.FacingMode == "" {
		c.Camera.FacingMode = "user"
	}

	if c.Capture.Shots < 1 || c.Capture.Shots > models.MaxCameraShots {
		return fmt.Errorf("capture.shots must be between 1 and %d", models.MaxCameraShots)
	}
	if c.Capture.Interval <= 0 {
		return fmt.Errorf("capture.interval must be > 0")
	}

	if len(c.Suggestions) == 0 {
		c.Suggestions = slices.Clone(models.DefaultSuggestions)
	}
	return nil
}
