// Package entries owns the ordered set of images selected for submission, their
// preview handles, and the background synchronization of that set to a
// persisted store.
package entries

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/outfitai/internal/dataurl"
	"github.com/lehigh-university-libraries/outfitai/internal/models"
	"github.com/lehigh-university-libraries/outfitai/internal/preview"
	"github.com/lehigh-university-libraries/outfitai/internal/storage"
)

// Entry is one selected image. File is nil for entries restored from persistence,
// in which case Preview is the durable data URL.
type Entry struct {
	ID      string
	Origin  models.Origin
	Preview preview.Handle
	File    *models.File
}

// Restored reports whether the entry has no live bytes
func (e Entry) Restored() bool {
	return e.File == nil
}

type Options struct {
	// Key overrides DefaultKey
	Key string
	// NewID overrides the UUIDv7 generator
	NewID func() string
	// TaskTimeout bounds each persistence task
	TaskTimeout time.Duration
}

// Store is safe for concurrent use
type Store struct {
	mu       sync.Mutex
	entries  []Entry
	restored bool
	closed   bool

	previews *preview.Registry
	records  recordSet
	queue    *persistQueue
	newID    func() string
}

func NewStore(kv storage.Store, previews *preview.Registry, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.NewID == nil {
		opts.NewID = newEntryID
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 10 * time.Second
	}
	if previews == nil {
		previews = preview.NewRegistry()
	}

	return &Store{
		previews: previews,
		records:  recordSet{kv: kv, key: opts.Key},
		queue:    newPersistQueue(opts.TaskTimeout),
		newID:    opts.NewID,
	}
}

func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// AddFromUpload adds a user-selected file and returns its id. A nil file or a
// closed store adds nothing and yields an empty id.
func (s *Store) AddFromUpload(file *models.File) string {
	return s.add(file, models.OriginUpload)
}

// AddFromCapture adds a camera snapshot and returns its id, with the same
// empty-id cases as AddFromUpload
func (s *Store) AddFromCapture(file *models.File) string {
	return s.add(file, models.OriginCamera)
}

func (s *Store) add(file *models.File, origin models.Origin) string {
	if file == nil {
		slog.Warn("Ignoring image entry without a file", "source", origin)
		return ""
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Warn("Ignoring image entry added after teardown", "source", origin)
		return ""
	}
	id := s.newID()
	entry := Entry{
		ID:      id,
		Origin:  origin,
		Preview: s.previews.Create(file.Data),
		File:    file,
	}
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	slog.Info("Image entry added", "id", id, "source", origin, "size", file.Size())

	contentType := file.ContentType
	data := file.Data
	s.queue.push(task{op: "add", id: id, run: func(ctx context.Context) error {
		record := Record{ID: id, DataURL: dataurl.Encode(contentType, data), Source: origin}
		return s.records.update(ctx, func(records []Record) []Record {
			return append(records, record)
		})
	}})

	return id
}

// Remove drops the entry with the given id. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	idx := slices.IndexFunc(s.entries, func(e Entry) bool { return e.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	removed := s.entries[idx]
	s.entries = slices.Delete(s.entries, idx, idx+1)
	s.mu.Unlock()

	preview.Release(removed.Preview)
	slog.Info("Removed image entry", "id", id, "source", removed.Origin)

	s.queue.push(task{op: "remove", id: id, run: func(ctx context.Context) error {
		return s.records.update(ctx, func(records []Record) []Record {
			return slices.DeleteFunc(records, func(r Record) bool { return r.ID == id })
		})
	}})
}

// ClearCameraImages drops every camera entry and keeps uploads in their original order
func (s *Store) ClearCameraImages() {
	s.mu.Lock()
	var dropped []Entry
	retained := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Origin == models.OriginCamera {
			dropped = append(dropped, e)
		} else {
			retained = append(retained, e)
		}
	}
	s.entries = retained
	s.mu.Unlock()

	for _, e := range dropped {
		preview.Release(e.Preview)
	}
	slog.Info("Clearing camera-derived images", "count", len(dropped))

	s.queue.push(task{op: "clear-camera", run: func(ctx context.Context) error {
		return s.records.update(ctx, func(records []Record) []Record {
			return slices.DeleteFunc(records, func(r Record) bool { return r.Source == models.OriginCamera })
		})
	}})
}

// ClearAll drops every entry and erases the persisted record set
func (s *Store) ClearAll() {
	s.mu.Lock()
	dropped := s.entries
	s.entries = nil
	s.mu.Unlock()

	for _, e := range dropped {
		preview.Release(e.Preview)
	}
	slog.Info("Clearing all image entries", "count", len(dropped))

	s.queue.push(task{op: "clear-all", run: s.records.clear})
}

// Restore loads persisted records as entries with durable previews. Only the
// first call has an effect; it returns the number of entries restored.
func (s *Store) Restore(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.restored || s.closed {
		s.mu.Unlock()
		return 0, nil
	}
	s.restored = true
	s.mu.Unlock()

	if err := s.queue.flush(ctx); err != nil {
		return 0, err
	}

	records, err := s.records.load(ctx)
	if err != nil {
		return 0, &models.PersistenceError{Op: "restore", Err: err}
	}
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	// entries added before Restore were persisted by the flush above
	held := make(map[string]bool, len(s.entries))
	for _, e := range s.entries {
		held[e.ID] = true
	}
	restored := make([]Entry, 0, len(records))
	for _, r := range records {
		if held[r.ID] {
			continue
		}
		held[r.ID] = true
		restored = append(restored, Entry{
			ID:      r.ID,
			Origin:  r.Source,
			Preview: preview.Durable(r.DataURL),
		})
	}
	s.entries = append(restored, s.entries...)
	s.mu.Unlock()

	if len(restored) == 0 {
		return 0, nil
	}

	slog.Info("Restored persisted images", "count", len(restored), "camera", s.CaptureCount())
	return len(restored), nil
}

// Snapshot returns a copy of the entries in insertion order
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Len returns the number of entries held
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// CaptureCount returns the number of camera entries held, clamped to MaxCameraShots
func (s *Store) CaptureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.Origin == models.OriginCamera {
			n++
		}
	}
	return min(n, models.MaxCameraShots)
}

// Previews returns the registry backing revocable preview handles
func (s *Store) Previews() *preview.Registry {
	return s.previews
}

// PersistFailures returns the number of persistence tasks that failed
func (s *Store) PersistFailures() int {
	return int(s.queue.failures.Load())
}

// Flush waits for all pending persistence work
func (s *Store) Flush(ctx context.Context) error {
	return s.queue.flush(ctx)
}

// Close releases every revocable preview and drains the persistence queue.
// Persisted records are left in place for the next session.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dropped := s.entries
	s.entries = nil
	s.mu.Unlock()

	released := 0
	for _, e := range dropped {
		if preview.Release(e.Preview) {
			released++
		}
	}
	slog.Debug("Image entry store closed", "released_previews", released)

	return s.queue.close(ctx)
}
