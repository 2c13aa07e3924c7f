package providers

import (
	"context"
	"os"
)

// Image is one photo attached to an analysis request
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Config represents the configuration for a single multimodal request
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	Images      []Image
}

// Provider defines the interface for a vision-capable LLM provider
type Provider interface {
	Analyze(ctx context.Context, config Config) (string, error)
}

// DefaultModel returns the model for provider, honouring the <PROVIDER>_MODEL
// environment variable
func DefaultModel(provider string) string {
	switch provider {
	case "gemini":
		if m := os.Getenv("GEMINI_MODEL"); m != "" {
			return m
		}
		return "gemini-2.0-flash"
	case "openai":
		if m := os.Getenv("OPENAI_MODEL"); m != "" {
			return m
		}
		return "gpt-4o"
	case "ollama":
		if m := os.Getenv("OLLAMA_MODEL"); m != "" {
			return m
		}
		return "llava"
	default:
		return ""
	}
}
