package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/lehigh-university-libraries/outfitai/internal/providers"
)

type Options struct {
	Provider    string
	Model       string
	Temperature float64
	// Interval is the minimum spacing between upstream model calls
	Interval time.Duration
	Burst    int
	// HistoryLimit bounds the number of analyses kept for /api/analyses
	HistoryLimit int
}

type Handler struct {
	provider     providers.Provider
	providerName string
	model        string
	temperature  float64
	limiter      *rate.Limiter
	history      *history
}

func New(provider providers.Provider, opts Options) *Handler {
	if opts.Model == "" {
		opts.Model = providers.DefaultModel(opts.Provider)
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}

	return &Handler{
		provider:     provider,
		providerName: opts.Provider,
		model:        opts.Model,
		temperature:  opts.Temperature,
		limiter:      rate.NewLimiter(rate.Every(opts.Interval), opts.Burst),
		history:      newHistory(opts.HistoryLimit),
	}
}

// Router wires every endpoint of the analysis service
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/analyze", h.HandleAnalyze).Methods("POST")
	r.HandleFunc("/api/analyses", h.HandleAnalyses).Methods("GET")
	r.HandleFunc("/api/analyses/{id}", h.HandleAnalysisDetail).Methods("GET")
	r.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	}).Methods("GET")
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, "Not found", http.StatusNotFound)
	})
	return r
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message, "status", code)
	h.writeJSON(w, code, map[string]string{"error": message})
}
