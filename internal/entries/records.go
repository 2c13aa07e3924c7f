package entries

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/outfitai/internal/models"
	"github.com/lehigh-university-libraries/outfitai/internal/storage"
)

// DefaultKey is the well-known key holding the persisted record set
const DefaultKey = "gemini_image_entries"

// Record is the persisted form of one entry
type Record struct {
	ID      string        `json:"id"`
	DataURL string        `json:"dataUrl"`
	Source  models.Origin `json:"source"`
}

// recordSet reads and writes the whole record array under one key. Last writer wins.
type recordSet struct {
	kv  storage.Store
	key string
}

func (r recordSet) load(ctx context.Context) ([]Record, error) {
	raw, ok, err := r.kv.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.key, err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		slog.Warn("Failed to parse saved images, starting from an empty set", "key", r.key, "err", err)
		return nil, nil
	}
	return records, nil
}

func (r recordSet) save(ctx context.Context, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := r.kv.Set(ctx, r.key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.key, err)
	}
	return nil
}

func (r recordSet) update(ctx context.Context, fn func([]Record) []Record) error {
	records, err := r.load(ctx)
	if err != nil {
		return err
	}
	return r.save(ctx, fn(records))
}

func (r recordSet) clear(ctx context.Context) error {
	if err := r.kv.Delete(ctx, r.key); err != nil {
		return fmt.Errorf("failed to clear %s: %w", r.key, err)
	}
	return nil
}

// LoadRecords returns the persisted records under key without creating a session
func LoadRecords(ctx context.Context, kv storage.Store, key string) ([]Record, error) {
	if key == "" {
		key = DefaultKey
	}
	return recordSet{kv: kv, key: key}.load(ctx)
}
