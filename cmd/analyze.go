package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		prompt      string
		images      []string
		suggestions []string
		fresh       bool
		reset       bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Submit a prompt and outfit photos for feedback",
		Long: `Adds the given images to the persisted selection and submits all selected
images with the prompt to the analysis service. The reply is printed as HTML,
or as indented JSON when it carries no text.`,
		Example: `  # Ask about two photos
  outfitai analyze -p "Is this ok for the office?" -i front.jpg -i back.jpg

  # Use suggestion phrases
  outfitai analyze -s "For wedding" -s "Rate my outfit" -i suit.jpg

  # Start a new selection and clear it after a successful reply
  outfitai analyze --fresh --reset -i look.png`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			ctx := cmd.Context()
			if err := a.mount(ctx); err != nil {
				return err
			}
			if fresh {
				a.session.ClearAll()
			}

			for _, path := range images {
				file, err := readImageFile(path)
				if err != nil {
					return err
				}
				id := a.session.AddUpload(file)
				slog.Debug("Added upload", "path", path, "id", id, "type", file.ContentType)
			}

			a.session.SetPrompt(prompt)
			for _, s := range suggestions {
				if !knownSuggestion(a, s) {
					slog.Warn("Unknown suggestion, appending as text", "suggestion", s)
				}
				a.session.ToggleSuggestion(s)
			}

			result, err := a.session.Submit(ctx)
			if err != nil {
				return fmt.Errorf("submission failed: %w", err)
			}
			printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), a.session, result)

			if reset {
				a.session.NewAnalysis()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt text")
	cmd.Flags().StringSliceVarP(&images, "image", "i", nil, "Image file to upload (repeatable)")
	cmd.Flags().StringSliceVarP(&suggestions, "suggestion", "s", nil, "Suggestion phrase to toggle into the prompt (repeatable)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Clear persisted images before adding new ones")
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear all images after a successful reply")

	return cmd
}

func knownSuggestion(a *app, text string) bool {
	for _, s := range a.session.Suggestions() {
		if strings.EqualFold(s.Text, text) {
			return true
		}
	}
	return false
}
