package device

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/outfitai/internal/camera"
)

// Directory replays the images of a folder as camera frames, in name order, looping
type Directory struct {
	Dir    string
	Warmup time.Duration
}

func NewDirectory(dir string) *Directory {
	return &Directory{Dir: dir, Warmup: 50 * time.Millisecond}
}

func (d *Directory) RequestStream(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frames, err := listFrames(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", camera.ErrUnavailable, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", camera.ErrUnavailable, d.Dir)
	}

	stream := newBaseStream("dir-" + uuid.NewString()[:8])
	stream.render = func(seq uint64) ([]byte, error) {
		path := frames[int((seq-1)%uint64(len(frames)))]
		return loadFrame(path)
	}
	stream.warmup(d.Warmup)

	slog.Info("Directory camera stream started", "stream", stream.id, "dir", d.Dir, "frames", len(frames), "facing_mode", c.FacingMode)
	return stream, nil
}

func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".gif":
			frames = append(frames, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(frames)
	return frames, nil
}

// loadFrame returns JPEG bytes for path, re-encoding non-JPEG images
func loadFrame(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".jpg" || ext == ".jpeg" {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", filepath.Base(path), err)
	}
	return encodeJPEG(img)
}

// Open returns the provider named by kind. "none" yields nil, which the camera
// manager reports as an unsupported environment.
func Open(kind, framesDir string) (camera.Provider, error) {
	switch kind {
	case "", "synthetic":
		return NewSynthetic(), nil
	case "directory":
		if framesDir == "" {
			return nil, fmt.Errorf("directory device requires frames_dir")
		}
		return NewDirectory(framesDir), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported camera device: %s", kind)
	}
}
