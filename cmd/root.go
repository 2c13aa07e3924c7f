package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/outfitai/internal/config"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "outfitai",
		Short: "Outfit feedback from photos and a prompt, powered by vision LLMs",
		Long: `Outfitai assembles a prompt and a set of outfit photos, either uploaded
files or an automatic four shot capture from a camera, and sends them to an
analysis service for styling feedback.

Selected photos persist between runs until they are removed or cleared.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newCaptureCmd(opts))
	cmd.AddCommand(newImagesCmd(opts))
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}
