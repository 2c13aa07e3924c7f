// Package device provides capture device implementations for environments
// without a browser camera: a synthetic test-pattern source and a
// directory-backed source that replays still images as frames.
package device

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/outfitai/internal/camera"
)

// JPEGQuality matches the quality used for browser canvas snapshots
const JPEGQuality = 92

// Synthetic renders a moving gradient test pattern
type Synthetic struct {
	Width  int
	Height int
	// Warmup is the delay before metadata and first frame become available
	Warmup time.Duration
}

func NewSynthetic() *Synthetic {
	return &Synthetic{Width: 640, Height: 480, Warmup: 100 * time.Millisecond}
}

func (s *Synthetic) RequestStream(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, height := s.Width, s.Height
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}

	stream := newBaseStream("synthetic-" + uuid.NewString()[:8])
	stream.render = func(seq uint64) ([]byte, error) {
		return encodeJPEG(testPattern(width, height, seq))
	}
	stream.warmup(s.Warmup)

	slog.Info("Synthetic camera stream started", "stream", stream.id, "facing_mode", c.FacingMode, "resolution", fmt.Sprintf("%dx%d", width, height))
	return stream, nil
}

// baseStream implements the readiness and stop bookkeeping shared by the devices
type baseStream struct {
	id       string
	metadata chan struct{}
	frame    chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	seq      atomic.Uint64
	render   func(seq uint64) ([]byte, error)
}

func newBaseStream(id string) *baseStream {
	return &baseStream{
		id:       id,
		metadata: make(chan struct{}),
		frame:    make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// warmup closes the metadata channel after half of d and the first-frame channel after d
func (b *baseStream) warmup(d time.Duration) {
	go func() {
		for _, ch := range []chan struct{}{b.metadata, b.frame} {
			select {
			case <-time.After(d / 2):
				close(ch)
			case <-b.stopped:
				return
			}
		}
	}()
}

func (b *baseStream) ID() string                      { return b.id }
func (b *baseStream) MetadataLoaded() <-chan struct{} { return b.metadata }
func (b *baseStream) FrameDecoded() <-chan struct{}   { return b.frame }

func (b *baseStream) Snapshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-b.stopped:
		return nil, camera.ErrNotLive
	default:
	}
	return b.render(b.seq.Add(1))
}

func (b *baseStream) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopped)
		slog.Debug("Camera tracks stopped", "stream", b.id)
	})
}

func testPattern(width, height int, seq uint64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	shift := int(seq * 16)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x + shift) * 255 / max(width, 1)),
				G: uint8(y * 255 / max(height, 1)),
				B: uint8((seq * 40) % 256),
				A: 255,
			})
		}
	}
	return img
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
