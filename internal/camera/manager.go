// Package camera runs the open/close/error lifecycle of a capture device and
// owns the live stream exclusively.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/outfitai/internal/models"
)

// State of the capture device
type State int

const (
	Closed State = iota
	Opening
	Live
	Error
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Live:
		return "live"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State][]State{
	Closed:  {Opening},
	Opening: {Live, Error, Closed},
	Live:    {Closed, Error},
	Error:   {Closed, Opening},
}

// CanTransition reports whether from -> to is a legal lifecycle step
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

const (
	msgUnsupported = "Camera is not supported in this environment."
	msgUnavailable = "Unable to access camera. Please check permissions and try again."
	msgCapture     = "Failed to capture photo"
)

// Status is a read-only view of the manager
type Status struct {
	State State
	// Err is the user-facing message while State is Error
	Err string
	// Ready is true once the live stream has decoded its first frame
	Ready    bool
	StreamID string
}

type Options struct {
	Surface    Surface
	FacingMode string
}

// attachment is the stream currently bound to the preview surface
type attachment struct {
	stream   Stream
	ready    chan struct{}
	gone     chan struct{}
	stopOnce sync.Once
}

type openAttempt struct {
	gen  uint64
	done chan struct{}
	err  error
}

type Manager struct {
	mu          sync.Mutex
	provider    Provider
	surface     Surface
	constraints Constraints

	state      State
	errMsg     string
	current    *attachment
	attempt    *openAttempt
	gen        uint64
	closeHooks []func()
}

// New returns a closed manager. A nil provider models an environment without capture support.
func New(provider Provider, opts Options) *Manager {
	if opts.Surface == nil {
		opts.Surface = noopSurface{}
	}
	if opts.FacingMode == "" {
		opts.FacingMode = "user"
	}
	return &Manager{
		provider:    provider,
		surface:     opts.Surface,
		constraints: Constraints{FacingMode: opts.FacingMode},
		state:       Closed,
	}
}

// OnClose registers fn to run at the start of every Close
func (m *Manager) OnClose(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeHooks = append(m.closeHooks, fn)
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{State: m.state, Err: m.errMsg}
	if m.current != nil {
		st.StreamID = m.current.stream.ID()
		select {
		case <-m.current.ready:
			st.Ready = true
		default:
		}
	}
	return st
}

// Open acquires a stream and waits for it to become ready for capture. When an
// open is already in flight the call joins it; when the camera is live it returns nil.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case Live:
		m.mu.Unlock()
		return nil
	case Opening:
		a := m.attempt
		m.mu.Unlock()
		select {
		case <-a.done:
			return a.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// never two attached streams
	m.teardownLocked()
	m.gen++
	a := &openAttempt{gen: m.gen, done: make(chan struct{})}
	m.attempt = a
	m.errMsg = ""
	m.transitionLocked(Opening)
	m.mu.Unlock()

	err := m.open(ctx, a)

	m.mu.Lock()
	a.err = err
	if m.attempt == a {
		m.attempt = nil
	}
	m.mu.Unlock()
	close(a.done)
	return err
}

func (m *Manager) open(ctx context.Context, a *openAttempt) error {
	if m.provider == nil {
		return m.fail(a, ErrUnsupported)
	}

	slog.Info("Requesting camera stream", "facing_mode", m.constraints.FacingMode)
	stream, err := m.provider.RequestStream(ctx, m.constraints)
	if err != nil {
		if stream != nil {
			stream.Stop()
		}
		return m.fail(a, err)
	}

	m.mu.Lock()
	if m.gen != a.gen {
		m.mu.Unlock()
		stream.Stop()
		slog.Info("Camera closed while opening, discarding stream", "stream", stream.ID())
		return ErrOpenAborted
	}
	att := &attachment{
		stream: stream,
		ready:  make(chan struct{}),
		gone:   make(chan struct{}),
	}
	m.current = att
	m.transitionLocked(Live)
	m.surface.Attach(stream)
	m.mu.Unlock()

	slog.Info("Camera stream attached", "stream", stream.ID())

	for _, stage := range []struct {
		name string
		ch   <-chan struct{}
	}{
		{name: "metadata", ch: stream.MetadataLoaded()},
		{name: "first frame", ch: stream.FrameDecoded()},
	} {
		select {
		case <-stage.ch:
			slog.Debug("Camera stream stage reached", "stage", stage.name)
		case <-att.gone:
			return ErrOpenAborted
		case <-ctx.Done():
			return m.fail(a, fmt.Errorf("waiting for %s: %w", stage.name, ctx.Err()))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != att {
		return ErrOpenAborted
	}
	close(att.ready)
	slog.Info("Camera ready for capture", "stream", stream.ID())
	return nil
}

// fail moves the attempt to Error, releasing anything it acquired
func (m *Manager) fail(a *openAttempt, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != a.gen {
		return ErrOpenAborted
	}

	msg := msgUnavailable
	if errors.Is(cause, ErrUnsupported) {
		msg = msgUnsupported
	}
	m.teardownLocked()
	m.transitionLocked(Error)
	m.errMsg = msg
	slog.Error("Unable to access camera", "err", cause)
	return &models.DeviceError{Message: msg, Err: cause}
}

// Snapshot captures the current frame as a JPEG file
func (m *Manager) Snapshot(ctx context.Context) (*models.File, error) {
	m.mu.Lock()
	att := m.current
	live := m.state == Live
	m.mu.Unlock()

	if !live || att == nil {
		return nil, &models.DeviceError{Message: msgCapture, Err: ErrNotLive}
	}

	select {
	case <-att.ready:
	case <-att.gone:
		return nil, &models.DeviceError{Message: msgCapture, Err: ErrNotLive}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	data, err := att.stream.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &models.DeviceError{Message: msgCapture, Err: err}
	}
	if len(data) == 0 {
		slog.Error("Snapshot returned no data", "stream", att.stream.ID())
		return nil, &models.DeviceError{Message: msgCapture, Err: ErrNoFrame}
	}

	file := &models.File{
		Name:        fmt.Sprintf("camera_capture_%d.jpg", time.Now().UnixMilli()),
		ContentType: "image/jpeg",
		Data:        data,
	}
	slog.Debug("Snapshot captured", "stream", att.stream.ID(), "size", file.Size())
	return file, nil
}

// Close cancels pending auto-capture through the close hooks, stops the stream,
// detaches the preview and clears any error. It never fails and may be called repeatedly.
func (m *Manager) Close() {
	m.mu.Lock()
	hooks := slices.Clone(m.closeHooks)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.attempt = nil
	hadStream := m.current != nil
	m.teardownLocked()
	if m.state != Closed {
		m.transitionLocked(Closed)
	}
	m.errMsg = ""
	if hadStream {
		slog.Info("Camera closed")
	}
}

// teardownLocked stops and detaches the current stream, if any
func (m *Manager) teardownLocked() {
	att := m.current
	if att == nil {
		return
	}
	m.current = nil
	att.stopOnce.Do(func() {
		close(att.gone)
		att.stream.Stop()
		m.surface.Detach()
	})
}

func (m *Manager) transitionLocked(to State) {
	if !CanTransition(m.state, to) {
		slog.Error("Illegal camera transition", "from", m.state, "to", to)
		return
	}
	slog.Debug("Camera state changed", "from", m.state, "to", to)
	m.state = to
}
