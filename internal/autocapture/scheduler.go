// Package autocapture drives the fixed, timer-spaced photo sequence on top of a live camera.
package autocapture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/outfitai/internal/camera"
	"github.com/lehigh-university-libraries/outfitai/internal/models"
)

const (
	DefaultShots    = models.MaxCameraShots
	DefaultInterval = 3 * time.Second

	msgCaptureFailed = "Unable to capture photo. Please try again."
)

// State of the scheduler, orthogonal to the camera state
type State int

const (
	Idle State = iota
	Starting
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Camera is the part of camera.Manager the scheduler drives
type Camera interface {
	Status() camera.Status
	Open(ctx context.Context) error
	Snapshot(ctx context.Context) (*models.File, error)
	OnClose(fn func())
}

// Sink receives captured frames
type Sink interface {
	ClearCameraImages()
	AddFromCapture(file *models.File) string
}

type Status struct {
	State State
	// Shots is the number of photos taken in the current or last run
	Shots int
	// Progress is Shots clamped to the batch size
	Progress int
	Err      string
}

type Options struct {
	Shots    int
	Interval time.Duration
}

type Scheduler struct {
	mu       sync.Mutex
	camera   Camera
	sink     Sink
	shots    int
	interval time.Duration

	state  State
	taken  int
	errMsg string
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an idle scheduler and registers Cancel as a close hook on cam
func New(cam Camera, sink Sink, opts Options) *Scheduler {
	if opts.Shots <= 0 || opts.Shots > models.MaxCameraShots {
		opts.Shots = DefaultShots
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	closed := make(chan struct{})
	close(closed)

	s := &Scheduler{
		camera:   cam,
		sink:     sink,
		shots:    opts.Shots,
		interval: opts.Interval,
		done:     closed,
	}
	cam.OnClose(s.Cancel)
	return s
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:    s.state,
		Shots:    s.taken,
		Progress: min(s.taken, s.shots),
		Err:      s.errMsg,
	}
}

// Shots is the batch size of one run
func (s *Scheduler) Shots() int { return s.shots }

// Interval is the delay between shots
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Running reports whether a sequence is starting or in progress
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != Idle
}

// Done returns a channel closed when the current or most recent run ends
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Start begins a new batch. It returns once the first stage has been launched;
// the shots themselves run on a goroutine. If the camera cannot be opened the
// run is abandoned without an error, the camera status carries the message.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.state = Starting
	s.errMsg = ""
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	if s.camera.Status().State != camera.Live {
		slog.Info("No active camera stream, opening camera before auto capture")
		if err := s.camera.Open(ctx); err != nil || s.camera.Status().State != camera.Live {
			slog.Warn("Auto capture abandoned, camera did not open", "err", err)
			s.finish(gen, "")
			return nil
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.gen != gen {
		// cancelled while the camera was opening
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.sink.ClearCameraImages()
	s.taken = 0
	s.state = Running
	s.cancel = cancel
	s.mu.Unlock()

	slog.Info("Auto capture sequence started", "shots", s.shots, "interval", s.interval)
	go s.run(runCtx, gen)
	return nil
}

func (s *Scheduler) run(ctx context.Context, gen uint64) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.mu.Lock()
		next := s.taken + 1
		s.mu.Unlock()
		slog.Info("Capturing photo", "index", next)

		file, err := s.camera.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("Capture failed", "err", err)
			s.finish(gen, msgCaptureFailed)
			return
		}

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.sink.AddFromCapture(file)
		s.taken++
		completed := s.taken
		s.mu.Unlock()

		if completed >= s.shots {
			slog.Info("Completed capture batch, stopping capture loop", "shots", completed)
			s.finish(gen, "")
			return
		}
		slog.Debug("Scheduling next capture", "in", s.interval)
		timer.Reset(s.interval)
	}
}

// finish returns the scheduler to Idle if gen is still the active run
func (s *Scheduler) finish(gen uint64, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.resetLocked()
	s.errMsg = errMsg
}

// Cancel stops the sequence immediately, keeping photos already taken.
// It is safe to call at any time.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Idle {
		return
	}
	s.gen++
	s.resetLocked()
	slog.Info("Auto capture cancelled", "shots", s.taken)
}

func (s *Scheduler) resetLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = Idle
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
