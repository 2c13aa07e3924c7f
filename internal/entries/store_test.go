package entries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/outfitai/internal/dataurl"
	"github.com/lehigh-university-libraries/outfitai/internal/models"
	"github.com/lehigh-university-libraries/outfitai/internal/preview"
	"github.com/lehigh-university-libraries/outfitai/internal/storage"
)

func jpeg(name string) *models.File {
	return &models.File{Name: name, ContentType: "image/jpeg", Data: []byte("jpeg:" + name)}
}

func newTestStore(t *testing.T, kv storage.Store) *Store {
	t.Helper()
	s := NewStore(kv, preview.NewRegistry(), Options{})
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})
	return s
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestOrderIsInsertionOrderMinusRemoved(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		s := newTestStore(t, storage.NewMemoryStore())
		var expected []string

		for op := 0; op < 30; op++ {
			switch rng.Intn(3) {
			case 0:
				expected = append(expected, s.AddFromUpload(jpeg(fmt.Sprintf("u%d", op))))
			case 1:
				expected = append(expected, s.AddFromCapture(jpeg(fmt.Sprintf("c%d", op))))
			case 2:
				if len(expected) == 0 {
					s.Remove("missing")
					continue
				}
				idx := rng.Intn(len(expected))
				s.Remove(expected[idx])
				expected = slices.Delete(expected, idx, idx+1)
			}

			got := ids(s.Snapshot())
			if !slices.Equal(got, expected) {
				t.Fatalf("round %d op %d: expected %v, got %v", round, op, expected, got)
			}
		}
	}
}

func TestCaptureCountTracksCameraEntries(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := newTestStore(t, storage.NewMemoryStore())

	for op := 0; op < 200; op++ {
		switch rng.Intn(5) {
		case 0:
			s.AddFromUpload(jpeg("u"))
		case 1, 2:
			s.AddFromCapture(jpeg("c"))
		case 3:
			snap := s.Snapshot()
			if len(snap) > 0 {
				s.Remove(snap[rng.Intn(len(snap))].ID)
			}
		case 4:
			if rng.Intn(4) == 0 {
				s.ClearCameraImages()
			}
		}

		held := 0
		for _, e := range s.Snapshot() {
			if e.Origin == models.OriginCamera {
				held++
			}
		}
		count := s.CaptureCount()
		if count < 0 || count > models.MaxCameraShots {
			t.Fatalf("capture count %d out of range", count)
		}
		if count != min(held, models.MaxCameraShots) {
			t.Fatalf("Expected capture count %d, got %d", min(held, models.MaxCameraShots), count)
		}
	}
}

func TestClearCameraImagesKeepsUploadsInOrder(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := newTestStore(t, kv)

	u1 := s.AddFromUpload(jpeg("u1"))
	s.AddFromCapture(jpeg("c1"))
	u2 := s.AddFromUpload(jpeg("u2"))
	s.AddFromCapture(jpeg("c2"))
	u3 := s.AddFromUpload(jpeg("u3"))

	s.ClearCameraImages()

	if got := ids(s.Snapshot()); !slices.Equal(got, []string{u1, u2, u3}) {
		t.Errorf("Expected uploads only, got %v", got)
	}
	if s.CaptureCount() != 0 {
		t.Errorf("Expected capture count 0, got %d", s.CaptureCount())
	}

	flush(t, s)
	records, err := LoadRecords(context.Background(), kv, "")
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	for _, r := range records {
		if r.Source == models.OriginCamera {
			t.Errorf("Camera record %s should have been removed", r.ID)
		}
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 persisted uploads, got %d", len(records))
	}
}

func TestPreviewHandlesReleased(t *testing.T) {
	registry := preview.NewRegistry()
	s := NewStore(storage.NewMemoryStore(), registry, Options{})

	a := s.AddFromUpload(jpeg("a"))
	s.AddFromCapture(jpeg("b"))
	s.AddFromUpload(jpeg("c"))
	s.AddFromCapture(jpeg("d"))

	if registry.Live() != 4 {
		t.Fatalf("Expected 4 live previews, got %d", registry.Live())
	}

	s.Remove(a)
	s.Remove(a)
	if registry.Live() != 3 || registry.Revoked() != 1 {
		t.Errorf("Expected one revoked preview, live=%d revoked=%d", registry.Live(), registry.Revoked())
	}

	s.ClearCameraImages()
	if registry.Live() != 1 {
		t.Errorf("Expected 1 live preview after clearing camera images, got %d", registry.Live())
	}

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}
	if registry.Live() != 0 || registry.Revoked() != 4 {
		t.Errorf("Expected all previews released exactly once, live=%d revoked=%d", registry.Live(), registry.Revoked())
	}
}

func TestPersistAndRestore(t *testing.T) {
	kv := storage.NewMemoryStore()
	first := NewStore(kv, preview.NewRegistry(), Options{})

	upload := first.AddFromUpload(jpeg("upload"))
	cam1 := first.AddFromCapture(jpeg("cam1"))
	cam2 := first.AddFromCapture(jpeg("cam2"))
	if err := first.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	records, err := LoadRecords(context.Background(), kv, DefaultKey)
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records to survive teardown, got %d", len(records))
	}

	second := newTestStore(t, kv)
	n, err := second.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 restored entries, got %d", n)
	}

	snap := second.Snapshot()
	if got := ids(snap); !slices.Equal(got, []string{upload, cam1, cam2}) {
		t.Fatalf("Expected restored ids in order, got %v", got)
	}
	for i, e := range snap {
		if !e.Restored() {
			t.Errorf("Entry %s should have no live file", e.ID)
		}
		if e.Origin != records[i].Source {
			t.Errorf("Expected origin %s, got %s", records[i].Source, e.Origin)
		}
		durable, ok := e.Preview.(preview.Durable)
		if !ok {
			t.Fatalf("Expected durable preview, got %T", e.Preview)
		}
		if string(durable) != records[i].DataURL {
			t.Errorf("Preview does not match persisted data URL for %s", e.ID)
		}
	}

	_, data, err := dataurl.Decode(snap[1].Preview.URL())
	if err != nil || string(data) != "jpeg:cam1" {
		t.Errorf("Expected persisted bytes to round trip, got %q err=%v", data, err)
	}
	if second.CaptureCount() != 2 {
		t.Errorf("Expected capture count 2, got %d", second.CaptureCount())
	}

	if n, _ := second.Restore(context.Background()); n != 0 {
		t.Errorf("Second restore should be a no-op, restored %d", n)
	}
}

func TestRemoveBeforePersistLeavesNoRecord(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := newTestStore(t, kv)

	id := s.AddFromUpload(jpeg("quick"))
	s.Remove(id)
	keep := s.AddFromUpload(jpeg("keep"))
	flush(t, s)

	records, _ := LoadRecords(context.Background(), kv, "")
	if len(records) != 1 || records[0].ID != keep {
		t.Errorf("Expected only %s persisted, got %+v", keep, records)
	}
}

func TestClearAllErasesRecords(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := newTestStore(t, kv)

	s.AddFromUpload(jpeg("a"))
	s.AddFromCapture(jpeg("b"))
	s.ClearAll()
	flush(t, s)

	if s.Len() != 0 || s.CaptureCount() != 0 {
		t.Errorf("Expected empty store, len=%d count=%d", s.Len(), s.CaptureCount())
	}
	if _, ok, _ := kv.Get(context.Background(), DefaultKey); ok {
		t.Error("Expected persisted key to be erased")
	}
}

type failingStore struct {
	storage.Store
}

func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func TestPersistenceFailureKeepsEntries(t *testing.T) {
	s := newTestStore(t, failingStore{Store: storage.NewMemoryStore()})

	id := s.AddFromUpload(jpeg("a"))
	flush(t, s)

	if s.PersistFailures() != 1 {
		t.Errorf("Expected 1 persistence failure, got %d", s.PersistFailures())
	}
	if got := ids(s.Snapshot()); !slices.Equal(got, []string{id}) {
		t.Errorf("Entry should survive a persistence failure, got %v", got)
	}
}

func TestRestoreIgnoresCorruptValue(t *testing.T) {
	kv := storage.NewMemoryStore()
	_ = kv.Set(context.Background(), DefaultKey, []byte("{not json"))

	s := newTestStore(t, kv)
	n, err := s.Restore(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Expected corrupt value to restore nothing, n=%d err=%v", n, err)
	}

	s.AddFromUpload(jpeg("a"))
	flush(t, s)

	raw, _, _ := kv.Get(context.Background(), DefaultKey)
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil || len(records) != 1 {
		t.Errorf("Expected corrupt value to be replaced, got %s", raw)
	}
}

func TestAddAfterCloseIgnored(t *testing.T) {
	s := NewStore(storage.NewMemoryStore(), nil, Options{})
	_ = s.Close(context.Background())

	if id := s.AddFromUpload(jpeg("late")); id != "" {
		t.Errorf("Expected no id after close, got %s", id)
	}
	if id := s.AddFromUpload(nil); id != "" {
		t.Errorf("Expected no id for nil file, got %s", id)
	}
}

func TestRestoreAfterAddKeepsIdsUnique(t *testing.T) {
	kv := storage.NewMemoryStore()
	first := NewStore(kv, preview.NewRegistry(), Options{})
	old := first.AddFromCapture(jpeg("old"))
	if err := first.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s := newTestStore(t, kv)
	upload := s.AddFromUpload(jpeg("a"))
	cam := s.AddFromCapture(jpeg("b"))

	n, err := s.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected only the earlier session's record restored, got %d", n)
	}
	if got := ids(s.Snapshot()); !slices.Equal(got, []string{old, upload, cam}) {
		t.Fatalf("Expected each id once, got %v", got)
	}
	if got := s.CaptureCount(); got != 2 {
		t.Errorf("Expected capture count 2, got %d", got)
	}

	s.Remove(upload)
	if got := ids(s.Snapshot()); !slices.Equal(got, []string{old, cam}) {
		t.Errorf("Expected upload removed entirely, got %v", got)
	}
}

func TestAddNilFileAddsNothing(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore())

	if id := s.AddFromCapture(nil); id != "" {
		t.Errorf("Expected empty id for nil file, got %s", id)
	}
	if s.Len() != 0 || s.CaptureCount() != 0 {
		t.Errorf("Expected no entry for nil file, got len=%d count=%d", s.Len(), s.CaptureCount())
	}
}
