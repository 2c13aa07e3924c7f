// Package preview models on-screen preview references for image entries.
//
// A Handle is either Revocable, a transient blob reference registered in a Registry
// that must be released exactly once, or Durable, a self-contained data URL that
// needs no release. Release switches over both so teardown logic stays exhaustive.
package preview

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handle is the preview reference held by an image entry
type Handle interface {
	URL() string
	isHandle()
}

// Durable is a self-contained encoded preview restored from persistence
type Durable string

func (d Durable) URL() string { return string(d) }
func (Durable) isHandle()     {}

// Revocable is a transient reference to bytes held by a Registry
type Revocable struct {
	url      string
	registry *Registry
	once     sync.Once
}

func (r *Revocable) URL() string { return r.url }
func (*Revocable) isHandle()     {}

// Revoke releases the underlying bytes. Only the first call has an effect;
// it reports whether this call performed the release.
func (r *Revocable) Revoke() bool {
	released := false
	r.once.Do(func() {
		r.registry.revoke(r.url)
		released = true
	})
	return released
}

// Release frees h if it is revocable. Durable handles and nil are ignored.
func Release(h Handle) bool {
	switch v := h.(type) {
	case *Revocable:
		return v.Revoke()
	case Durable:
		return false
	case nil:
		return false
	default:
		panic(fmt.Sprintf("preview: unknown handle type %T", h))
	}
}

// Registry hands out blob references for in-memory bytes, like an object URL table
type Registry struct {
	mu      sync.RWMutex
	objects map[string][]byte
	revoked int
}

func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[string][]byte),
	}
}

// Create registers data and returns a revocable handle for it
func (r *Registry) Create(data []byte) *Revocable {
	url := "blob:" + uuid.NewString()

	r.mu.Lock()
	r.objects[url] = data
	r.mu.Unlock()

	return &Revocable{url: url, registry: r}
}

// resolve returns the bytes behind a live blob reference
func (r *Registry) resolve(url string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.objects[url]
	return data, ok
}

// Live returns the number of references not yet released
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Revoked returns the number of references released so far
func (r *Registry) Revoked() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revoked
}

func (r *Registry) revoke(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[url]; !ok {
		slog.Warn("Revoking unknown preview reference", "url", url)
		return
	}
	delete(r.objects, url)
	r.revoked++
}
