package handlers

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Analysis is one answered request, kept for inspection during development
type Analysis struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Images    int       `json:"images"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Reply     string    `json:"reply"`
	CreatedAt time.Time `json:"created_at"`
}

// history is a bounded, newest-last list of analyses
type history struct {
	mu    sync.RWMutex
	items []Analysis
	limit int
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

func (s *history) add(a Analysis) Analysis {
	if a.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		a.ID = id.String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, a)
	if len(s.items) > s.limit {
		s.items = slices.Delete(s.items, 0, len(s.items)-s.limit)
	}
	return a
}

func (s *history) get(id string) (Analysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.items {
		if a.ID == id {
			return a, true
		}
	}
	return Analysis{}, false
}

// all returns the analyses newest first
func (s *history) all() []Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Analysis, len(s.items))
	copy(out, s.items)
	slices.Reverse(out)
	return out
}

func (h *Handler) HandleAnalyses(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.history.all())
}

func (h *Handler) HandleAnalysisDetail(w http.ResponseWriter, r *http.Request) {
	a, ok := h.history.get(mux.Vars(r)["id"])
	if !ok {
		h.writeError(w, "Analysis not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}
