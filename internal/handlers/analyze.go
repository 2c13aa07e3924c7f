package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/outfitai/internal/providers"
)

const maxRequestBytes = 5*maxImageBytes + 1024*1024

type textPart struct {
	Text string `json:"text"`
}

type candidate struct {
	Content struct {
		Parts []textPart `json:"parts"`
	} `json:"content"`
}

// analyzeResponse mirrors the candidates shape of a Gemini reply under "data"
type analyzeResponse struct {
	Data struct {
		ID         string      `json:"id"`
		Candidates []candidate `json:"candidates"`
	} `json:"data"`
}

func newAnalyzeResponse(id, text string) analyzeResponse {
	var resp analyzeResponse
	var c candidate
	c.Content.Parts = []textPart{{Text: text}}
	resp.Data.ID = id
	resp.Data.Candidates = []candidate{c}
	return resp
}

func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		h.writeError(w, "Too many requests, please try again shortly", http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	images, err := readImages(r.MultipartForm)
	if err != nil {
		h.writeError(w, "Invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}
	if prompt == "" && len(images) == 0 {
		h.writeError(w, "Prompt or image is required", http.StatusBadRequest)
		return
	}

	slog.Info("Analyzing outfit", "provider", h.providerName, "model", h.model, "images", len(images), "has_prompt", prompt != "")
	reply, err := h.provider.Analyze(r.Context(), providers.Config{
		Model:       h.model,
		Temperature: h.temperature,
		Prompt:      BuildPrompt(prompt, len(images)),
		Images:      images,
	})
	if err != nil {
		h.writeError(w, "Failed to analyze images: "+err.Error(), http.StatusBadGateway)
		return
	}

	a := h.history.add(Analysis{
		Prompt:   prompt,
		Images:   len(images),
		Provider: h.providerName,
		Model:    h.model,
		Reply:    reply,
	})
	slog.Info("Analysis complete", "id", a.ID, "length", len(reply))

	h.writeJSON(w, http.StatusOK, newAnalyzeResponse(a.ID, reply))
}

// BuildPrompt wraps the user's request in stylist instructions
func BuildPrompt(userPrompt string, images int) string {
	request := userPrompt
	if request == "" {
		request = "Rate my outfit"
	}

	var b strings.Builder
	b.WriteString(`You are a friendly, honest personal stylist. Give practical feedback on the outfit shown.

Respond in markdown:
- Start with a short "## Verdict" heading and a one line summary
- Use "-" bullet points for what works and what to change
- Use **bold** for key items of clothing
- Keep it under 250 words
`)
	switch images {
	case 0:
		b.WriteString("\nNo photos were provided, answer from the description alone.\n")
	case 1:
		b.WriteString("\nOne photo of the outfit is attached.\n")
	default:
		fmt.Fprintf(&b, "\n%d photos of the same outfit are attached, taken moments apart. Treat them as different angles.\n", images)
	}
	fmt.Fprintf(&b, "\nRequest: %s", request)
	return b.String()
}
