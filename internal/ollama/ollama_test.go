package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/outfitai/internal/providers"
)

func TestAnalyze(t *testing.T) {
	var request struct {
		Model  string   `json:"model"`
		Prompt string   `json:"prompt"`
		Images []string `json:"images"`
		Stream bool     `json:"stream"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("Invalid request body: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"Try lighter shoes"}`))
	}))
	defer srv.Close()

	o := &Ollama{URL: srv.URL}
	reply, err := o.Analyze(context.Background(), providers.Config{
		Model:  "llava",
		Prompt: "For trek",
		Images: []providers.Image{{Data: []byte("a")}, {Data: []byte("b")}},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if reply != "Try lighter shoes" {
		t.Errorf("Expected reply, got %q", reply)
	}
	if request.Model != "llava" || request.Stream || len(request.Images) != 2 || request.Images[0] != "YQ==" {
		t.Errorf("Unexpected request %+v", request)
	}
}

func TestAnalyzeNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := (&Ollama{URL: srv.URL}).Analyze(context.Background(), providers.Config{}); err == nil {
		t.Error("Expected error for non-200 response")
	}
}
