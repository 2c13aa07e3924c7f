package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/outfitai/internal/markdown"
)

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render [file]",
		Short: "Render markdown as safe HTML",
		Long: `Reads markdown from a file, or stdin when no file is given, and prints
the escaped HTML rendering used for analysis replies.`,
		Example: `  # Render a saved reply
  outfitai render reply.md

  # Render from stdin
  echo "**Great** choice" | outfitai render`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read markdown: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), markdown.Render(string(data)))
			return nil
		},
	}
}
