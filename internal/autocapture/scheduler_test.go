package autocapture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/outfitai/internal/camera"
	"github.com/lehigh-university-libraries/outfitai/internal/device"
	"github.com/lehigh-university-libraries/outfitai/internal/models"
)

type fakeCamera struct {
	mu      sync.Mutex
	state   camera.State
	openErr error
	failAt  int
	shots   int
	block   chan struct{}
	hooks   []func()
}

func (c *fakeCamera) Status() camera.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return camera.Status{State: c.state, Ready: c.state == camera.Live}
}

func (c *fakeCamera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		c.state = camera.Error
		return c.openErr
	}
	c.state = camera.Live
	return nil
}

func (c *fakeCamera) Snapshot(ctx context.Context) (*models.File, error) {
	c.mu.Lock()
	c.shots++
	n := c.shots
	block := c.block
	c.mu.Unlock()

	if block != nil && n > 1 {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.failAt > 0 && n == c.failAt {
		return nil, &models.DeviceError{Message: "Failed to capture photo", Err: camera.ErrNoFrame}
	}
	return &models.File{Name: fmt.Sprintf("shot_%d.jpg", n), ContentType: "image/jpeg", Data: []byte("jpeg")}, nil
}

func (c *fakeCamera) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

func (c *fakeCamera) close() {
	c.mu.Lock()
	hooks := c.hooks
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	c.mu.Lock()
	c.state = camera.Closed
	c.mu.Unlock()
}

type fakeSink struct {
	mu      sync.Mutex
	clears  int
	added   []*models.File
	initial int
}

func (s *fakeSink) ClearCameraImages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.initial = 0
}

func (s *fakeSink) AddFromCapture(file *models.File) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, file)
	return file.Name
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initial + len(s.added)
}

func waitDone(t *testing.T, s *Scheduler) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("capture sequence never finished")
	}
}

func TestFullBatch(t *testing.T) {
	cam := &fakeCamera{state: camera.Live}
	sink := &fakeSink{initial: 3}
	s := New(cam, sink, Options{Interval: time.Millisecond})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, s)

	if sink.clears != 1 {
		t.Errorf("Expected existing camera images cleared once, got %d", sink.clears)
	}
	if got := sink.count(); got != DefaultShots {
		t.Errorf("Expected %d camera entries, got %d", DefaultShots, got)
	}
	st := s.Status()
	if st.State != Idle || st.Progress != DefaultShots || st.Err != "" {
		t.Errorf("Unexpected final status %+v", st)
	}
}

func TestShotFailureStopsSequence(t *testing.T) {
	cam := &fakeCamera{state: camera.Live, failAt: 3}
	sink := &fakeSink{}
	s := New(cam, sink, Options{Interval: time.Millisecond})

	_ = s.Start(context.Background())
	waitDone(t, s)

	if got := sink.count(); got != 2 {
		t.Errorf("Expected 2 entries before the failure, got %d", got)
	}
	st := s.Status()
	if st.State != Idle || st.Err != msgCaptureFailed {
		t.Errorf("Expected idle with capture error, got %+v", st)
	}
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	cam := &fakeCamera{state: camera.Live, block: make(chan struct{})}
	sink := &fakeSink{}
	s := New(cam, sink, Options{Interval: time.Millisecond})

	_ = s.Start(context.Background())
	_ = s.Start(context.Background())
	_ = s.Start(context.Background())
	if !s.Running() {
		t.Fatal("Expected scheduler running")
	}
	close(cam.block)
	waitDone(t, s)

	if sink.clears != 1 {
		t.Errorf("Expected one batch, got %d clears", sink.clears)
	}
	if got := sink.count(); got != DefaultShots {
		t.Errorf("Expected %d entries, got %d", DefaultShots, got)
	}
}

func TestCancelKeepsTakenPhotos(t *testing.T) {
	cam := &fakeCamera{state: camera.Live, block: make(chan struct{})}
	sink := &fakeSink{}
	s := New(cam, sink, Options{Interval: time.Millisecond})

	_ = s.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for sink.count() < 1 {
		select {
		case <-deadline:
			t.Fatal("first photo never taken")
		case <-time.After(time.Millisecond):
		}
	}

	s.Cancel()
	s.Cancel()
	waitDone(t, s)
	close(cam.block)
	time.Sleep(10 * time.Millisecond)

	if got := sink.count(); got != 1 {
		t.Errorf("Expected the photo taken before cancel to remain, got %d", got)
	}
	if st := s.Status(); st.State != Idle || st.Err != "" {
		t.Errorf("Expected idle without error, got %+v", st)
	}
}

func TestStartOpensCamera(t *testing.T) {
	cam := &fakeCamera{state: camera.Closed}
	sink := &fakeSink{}
	s := New(cam, sink, Options{Interval: time.Millisecond})

	_ = s.Start(context.Background())
	waitDone(t, s)

	if cam.Status().State != camera.Live {
		t.Error("Expected camera opened by the scheduler")
	}
	if got := sink.count(); got != DefaultShots {
		t.Errorf("Expected %d entries, got %d", DefaultShots, got)
	}
}

func TestStartAbandonedWhenOpenFails(t *testing.T) {
	cam := &fakeCamera{state: camera.Closed, openErr: errors.New("denied")}
	sink := &fakeSink{initial: 2}
	s := New(cam, sink, Options{Interval: time.Millisecond})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Expected no error from abandoned start, got %v", err)
	}
	waitDone(t, s)

	st := s.Status()
	if st.State != Idle || st.Err != "" {
		t.Errorf("Expected idle with no capture error, got %+v", st)
	}
	if sink.clears != 0 || sink.count() != 2 {
		t.Error("Existing camera images must stay when the camera never opened")
	}
}

func TestCameraCloseCancelsRun(t *testing.T) {
	cam := &fakeCamera{state: camera.Live, block: make(chan struct{})}
	sink := &fakeSink{}
	s := New(cam, sink, Options{Interval: time.Millisecond})

	_ = s.Start(context.Background())
	cam.close()
	waitDone(t, s)
	close(cam.block)
	time.Sleep(10 * time.Millisecond)

	if got := sink.count(); got > 1 {
		t.Errorf("No shots may land after close, got %d", got)
	}
	if s.Running() {
		t.Error("Expected scheduler idle after camera close")
	}
}

func TestWithManager(t *testing.T) {
	mgr := camera.New(&device.Synthetic{Width: 16, Height: 16, Warmup: 2 * time.Millisecond}, camera.Options{})
	sink := &fakeSink{}
	s := New(mgr, sink, Options{Shots: 2, Interval: time.Millisecond})

	_ = s.Start(context.Background())
	waitDone(t, s)
	defer mgr.Close()

	if got := sink.count(); got != 2 {
		t.Errorf("Expected 2 captures, got %d", got)
	}
	for _, f := range sink.added {
		if f.ContentType != "image/jpeg" || len(f.Data) == 0 {
			t.Errorf("Unexpected capture %+v", f.Name)
		}
	}
}
