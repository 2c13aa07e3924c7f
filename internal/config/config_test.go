package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "outfitai.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Endpoint != "http://localhost:8888/api/analyze" {
		t.Errorf("Unexpected endpoint %s", cfg.Endpoint)
	}
	if cfg.Store.Key != "gemini_image_entries" {
		t.Errorf("Unexpected store key %s", cfg.Store.Key)
	}
	if cfg.Capture.Shots != 4 || cfg.Capture.Interval != 3*time.Second {
		t.Errorf("Unexpected capture settings %+v", cfg.Capture)
	}
	if len(cfg.Suggestions) != 5 || cfg.Suggestions[0].Text != "Rate my outfit" {
		t.Errorf("Unexpected suggestions %+v", cfg.Suggestions)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
endpoint: https://example.com/api/analyze
timeout: 30s
store:
  driver: memory
camera:
  device: directory
  frames_dir: ./frames
capture:
  shots: 2
  interval: 500ms
suggestions:
  - icon: "🎉"
    text: For party
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Endpoint != "https://example.com/api/analyze" || cfg.Timeout != 30*time.Second {
		t.Errorf("Unexpected endpoint settings %s %s", cfg.Endpoint, cfg.Timeout)
	}
	if cfg.Store.Driver != "memory" || cfg.Store.Key != "gemini_image_entries" {
		t.Errorf("Unexpected store %+v", cfg.Store)
	}
	if cfg.Camera.Device != "directory" || cfg.Camera.FramesDir != "./frames" || cfg.Camera.FacingMode != "user" {
		t.Errorf("Unexpected camera %+v", cfg.Camera)
	}
	if cfg.Capture.Shots != 2 || cfg.Capture.Interval != 500*time.Millisecond {
		t.Errorf("Unexpected capture %+v", cfg.Capture)
	}
	if len(cfg.Suggestions) != 1 || cfg.Suggestions[0].Text != "For party" {
		t.Errorf("Unexpected suggestions %+v", cfg.Suggestions)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OUTFITAI_ENDPOINT", "http://analysis:9000/api/analyze")
	t.Setenv("OUTFITAI_STORE", "memory")
	t.Setenv("OUTFITAI_DEVICE", "none")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Endpoint != "http://analysis:9000/api/analyze" {
		t.Errorf("Expected endpoint override, got %s", cfg.Endpoint)
	}
	if cfg.Store.Driver != "memory" || cfg.Camera.Device != "none" {
		t.Errorf("Expected store and device overrides, got %s %s", cfg.Store.Driver, cfg.Camera.Device)
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for explicit missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "relative endpoint", mutate: func(c *Config) { c.Endpoint = "/api/analyze" }, errMsg: "endpoint"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, errMsg: "timeout"},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Driver = "redis" }, errMsg: "store.driver"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Store.Path = "" }, errMsg: "store.path"},
		{name: "unknown device", mutate: func(c *Config) { c.Camera.Device = "webcam" }, errMsg: "camera.device"},
		{name: "directory without frames", mutate: func(c *Config) { c.Camera.Device = "directory" }, errMsg: "frames_dir"},
		{name: "too many shots", mutate: func(c *Config) { c.Capture.Shots = 5 }, errMsg: "capture.shots"},
		{name: "no interval", mutate: func(c *Config) { c.Capture.Interval = 0 }, errMsg: "capture.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}
