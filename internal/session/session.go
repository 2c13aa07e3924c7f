// Package session combines the entry store, camera, auto-capture scheduler and
// submission pipeline into the state of one capture-and-submission visit.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/outfitai/internal/autocapture"
	"github.com/lehigh-university-libraries/outfitai/internal/camera"
	"github.com/lehigh-university-libraries/outfitai/internal/entries"
	"github.com/lehigh-university-libraries/outfitai/internal/markdown"
	"github.com/lehigh-university-libraries/outfitai/internal/models"
	"github.com/lehigh-university-libraries/outfitai/internal/submission"
)

type SubmissionState int

const (
	SubmissionIdle SubmissionState = iota
	SubmissionPending
	SubmissionSucceeded
	SubmissionFailed
)

func (s SubmissionState) String() string {
	switch s {
	case SubmissionIdle:
		return "idle"
	case SubmissionPending:
		return "pending"
	case SubmissionSucceeded:
		return "succeeded"
	case SubmissionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Options struct {
	Suggestions []models.Suggestion
	Capture     autocapture.Options
}

type Session struct {
	store    *entries.Store
	camera   *camera.Manager
	capture  *autocapture.Scheduler
	pipeline *submission.Pipeline

	suggestions []models.Suggestion

	mu       sync.Mutex
	prompt   string
	selected []string
	state    SubmissionState
	result   *submission.Result
	errMsg   string
	starting bool
	tornDown bool
}

func New(store *entries.Store, cam *camera.Manager, pipeline *submission.Pipeline, opts Options) *Session {
	if len(opts.Suggestions) == 0 {
		opts.Suggestions = models.DefaultSuggestions
	}
	return &Session{
		store:       store,
		camera:      cam,
		capture:     autocapture.New(cam, store, opts.Capture),
		pipeline:    pipeline,
		suggestions: slices.Clone(opts.Suggestions),
	}
}

// Mount restores persisted entries. It is a no-op after the first call.
func (s *Session) Mount(ctx context.Context) (int, error) {
	n, err := s.store.Restore(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to restore image entries: %w", err)
	}
	return n, nil
}

func (s *Session) Suggestions() []models.Suggestion {
	return slices.Clone(s.suggestions)
}

// SetPrompt replaces the prompt text and reselects the suggestions it contains
func (s *Session) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPromptLocked(prompt)
}

func (s *Session) setPromptLocked(prompt string) {
	s.prompt = prompt
	s.selected = s.selected[:0]
	for _, sg := range s.suggestions {
		if containsPhrase(prompt, sg.Text) {
			s.selected = append(s.selected, sg.Text)
		}
	}
}

// ToggleSuggestion adds the phrase to the prompt, or removes it when selected.
// It returns the resulting prompt.
func (s *Session) ToggleSuggestion(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.selected, text) {
		s.prompt = removePhrase(s.prompt, text)
		s.selected = slices.DeleteFunc(s.selected, func(v string) bool { return v == text })
	} else {
		s.prompt = appendPhrase(s.prompt, text)
		s.selected = append(s.selected, text)
	}
	return s.prompt
}

func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

func (s *Session) AddUpload(file *models.File) string {
	return s.store.AddFromUpload(file)
}

func (s *Session) RemoveImage(id string) {
	s.store.Remove(id)
}

func (s *Session) ClearCameraImages() {
	s.store.ClearCameraImages()
}

func (s *Session) ClearAll() {
	s.store.ClearAll()
}

func (s *Session) Entries() []entries.Entry {
	return s.store.Snapshot()
}

func (s *Session) OpenCamera(ctx context.Context) error {
	return s.camera.Open(ctx)
}

// CloseCamera stops the stream, cancelling any auto-capture first
func (s *Session) CloseCamera() {
	s.camera.Close()
}

// StartAutoCapture launches the shot sequence. It fails with models.ErrBusy
// while a submission is pending.
func (s *Session) StartAutoCapture(ctx context.Context) error {
	s.mu.Lock()
	if s.state == SubmissionPending || s.tornDown {
		s.mu.Unlock()
		return models.ErrBusy
	}
	s.starting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()
	return s.capture.Start(ctx)
}

func (s *Session) CancelCapture() {
	s.capture.Cancel()
}

// CaptureDone returns a channel closed when the current auto-capture run ends
func (s *Session) CaptureDone() <-chan struct{} {
	return s.capture.Done()
}

// Submit sends the prompt and the current entries. Only one submission may be
// in flight and none may start while auto-capture runs. The submission always
// leaves Pending, ending Succeeded or Failed.
func (s *Session) Submit(ctx context.Context) (*submission.Result, error) {
	s.mu.Lock()
	if s.state == SubmissionPending || s.starting || s.capture.Running() || s.tornDown {
		s.mu.Unlock()
		return nil, models.ErrBusy
	}
	s.state = SubmissionPending
	s.result = nil
	s.errMsg = ""
	prompt := s.prompt
	s.mu.Unlock()

	images := s.store.Snapshot()
	result, err := s.pipeline.Submit(ctx, prompt, images)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = SubmissionFailed
		s.errMsg = err.Error()
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			slog.Error("Submission failed", "endpoint", s.pipeline.Endpoint(), "kind", models.KindOf(err), "err", err)
		}
		return nil, err
	}
	s.state = SubmissionSucceeded
	s.result = result
	slog.Info("Submission succeeded", "endpoint", s.pipeline.Endpoint(), "images", len(images), "has_text", result.HasText)
	return result, nil
}

// NewAnalysis resets the response, prompt and every image for a fresh query
func (s *Session) NewAnalysis() {
	s.capture.Cancel()

	s.mu.Lock()
	if s.state != SubmissionPending {
		s.state = SubmissionIdle
		s.result = nil
		s.errMsg = ""
	}
	s.setPromptLocked("")
	s.mu.Unlock()

	s.store.ClearAll()
}

// Display returns the response as safe HTML when it carries text, otherwise
// the pretty printed JSON body. ok is false when there is no response.
func (s *Session) Display() (body string, isHTML bool, ok bool) {
	s.mu.Lock()
	result := s.result
	s.mu.Unlock()

	if result == nil {
		return "", false, false
	}
	if result.HasText {
		return markdown.Render(result.Text), true, true
	}
	return result.Pretty(), false, true
}

// Teardown cancels capture, stops the camera and releases every revocable
// preview. Persisted records are kept.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return nil
	}
	s.tornDown = true
	s.mu.Unlock()

	s.capture.Cancel()
	s.camera.Close()
	if err := s.store.Close(ctx); err != nil {
		return fmt.Errorf("failed to close image store: %w", err)
	}
	if n := s.store.PersistFailures(); n > 0 {
		slog.Warn("Some image changes were not saved", "failures", n)
	}
	if live := s.store.Previews().Live(); live != 0 {
		slog.Warn("Image previews still held after teardown", "count", live)
	}
	return nil
}

// View is a consistent read of the session
type View struct {
	Camera              camera.Status
	Capture             autocapture.Status
	Batch               int
	Interval            time.Duration
	Entries             []entries.Entry
	CaptureCount        int
	Prompt              string
	SelectedSuggestions []string
	Submission          SubmissionState
	Result              *submission.Result
	Error               string
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Camera:              s.camera.Status(),
		Capture:             s.capture.Status(),
		Batch:               s.capture.Shots(),
		Interval:            s.capture.Interval(),
		Entries:             s.store.Snapshot(),
		CaptureCount:        s.store.CaptureCount(),
		Prompt:              s.prompt,
		SelectedSuggestions: slices.Clone(s.selected),
		Submission:          s.state,
		Result:              s.result,
		Error:               s.errMsg,
	}
}

// CameraError is the message to show next to the camera, capture failures first
func (v View) CameraError() string {
	if v.Capture.Err != "" {
		return v.Capture.Err
	}
	return v.Camera.Err
}

// CaptureStatus is the progress line shown under the camera preview
func (v View) CaptureStatus() string {
	batch := v.batch()
	if v.Capture.State != autocapture.Idle {
		return fmt.Sprintf("Capturing photos... (%d/%d)", min(v.Capture.Progress, batch), batch)
	}
	return fmt.Sprintf("Captured %d/%d photos", min(v.CaptureCount, batch), batch)
}

// Hint describes the capture sequence and how many photos are ready
func (v View) Hint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Collect %d photos automatically, %s apart", v.batch(), describeInterval(v.Interval))
	if n := len(v.Entries); n > 0 {
		fmt.Fprintf(&b, " • %d %s ready", n, plural(n, "photo"))
	}
	return b.String()
}

func (v View) batch() int {
	if v.Batch <= 0 {
		return autocapture.DefaultShots
	}
	return v.Batch
}

// describeInterval spells whole seconds out ("3 seconds") and falls back to Duration.String
func describeInterval(d time.Duration) string {
	if d <= 0 {
		d = autocapture.DefaultInterval
	}
	if d%time.Second == 0 {
		n := int(d / time.Second)
		return fmt.Sprintf("%d %s", n, plural(n, "second"))
	}
	return d.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// CanSubmit reports whether the send action is enabled
func (v View) CanSubmit() bool {
	return v.Submission != SubmissionPending && v.Capture.State == autocapture.Idle
}

// ShowSuggestions reports whether the suggestion chips are offered
func (v View) ShowSuggestions() bool {
	return v.Result == nil && v.Error == "" && v.Submission != SubmissionPending
}
