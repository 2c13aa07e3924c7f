package camera

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported means the environment has no capture capability at all
	ErrUnsupported = errors.New("camera: capture not supported")
	// ErrPermissionDenied means the user or platform refused access
	ErrPermissionDenied = errors.New("camera: permission denied")
	// ErrUnavailable means the device exists but cannot be opened
	ErrUnavailable = errors.New("camera: device unavailable")
	// ErrNoFrame means the device produced an empty snapshot
	ErrNoFrame = errors.New("camera: no frame available")
	// ErrNotLive means a snapshot was requested without a live stream
	ErrNotLive = errors.New("camera: stream not live")
	// ErrOpenAborted means the camera was closed while an open was in flight
	ErrOpenAborted = errors.New("camera: open aborted")
)

// Constraints describe the stream being requested
type Constraints struct {
	// FacingMode is "user" for the front camera, "environment" for the rear one
	FacingMode string
}

// Provider is the capture device capability. RequestStream blocks until the
// stream is granted or refused and must honour ctx.
type Provider interface {
	RequestStream(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live video stream with snapshot rendering.
//
// MetadataLoaded is closed once frame dimensions are known and FrameDecoded once
// the first frame has been decoded; a snapshot before FrameDecoded yields nothing.
// Stop stops every track and must tolerate repeated calls.
type Stream interface {
	ID() string
	MetadataLoaded() <-chan struct{}
	FrameDecoded() <-chan struct{}
	// Snapshot renders the current frame as JPEG bytes. Empty output means no frame.
	Snapshot(ctx context.Context) ([]byte, error)
	Stop()
}

// Surface is the live preview target a stream is bound to while the camera is open
type Surface interface {
	Attach(s Stream)
	Detach()
}

type noopSurface struct{}

func (noopSurface) Attach(Stream) {}
func (noopSurface) Detach()       {}
