package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/outfitai/internal/gemini"
	"github.com/lehigh-university-libraries/outfitai/internal/handlers"
	"github.com/lehigh-university-libraries/outfitai/internal/ollama"
	"github.com/lehigh-university-libraries/outfitai/internal/openai"
	"github.com/lehigh-university-libraries/outfitai/internal/providers"
)

func newServeCmd() *cobra.Command {
	var (
		port        string
		provider    string
		model       string
		temperature float64
		interval    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the development analysis service",
		Long: `Starts an analysis service implementing POST /api/analyze.

Requests are multipart forms with a prompt field and image, image1, ...
file fields. The photos are sent to a vision-capable LLM (Gemini, OpenAI or
Ollama) and the reply is returned under data.candidates.`,
		Example: `  # Start server on default port 8888 using Gemini
  outfitai serve

  # Use a local Ollama vision model
  outfitai serve --provider ollama --model llava --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				provider = os.Getenv("ANALYSIS_PROVIDER")
			}
			if provider == "" {
				provider = "gemini"
			}
			p, err := newProvider(provider)
			if err != nil {
				return err
			}

			handler := handlers.New(p, handlers.Options{
				Provider:    provider,
				Model:       model,
				Temperature: temperature,
				Interval:    interval,
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Analysis service available", "addr", addr, "url", "http://localhost"+addr+"/api/analyze", "provider", provider)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider: gemini, openai or ollama (default $ANALYSIS_PROVIDER or gemini)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (default from $<PROVIDER>_MODEL)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.4, "Sampling temperature")
	cmd.Flags().DurationVar(&interval, "rate-interval", 2*time.Second, "Minimum spacing between upstream model calls")

	return cmd
}

func newProvider(name string) (providers.Provider, error) {
	switch name {
	case "gemini":
		return gemini.New(), nil
	case "openai":
		return openai.New(), nil
	case "ollama":
		return ollama.New(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}
