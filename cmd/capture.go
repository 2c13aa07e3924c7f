package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newCaptureCmd(opts *rootOptions) *cobra.Command {
	var (
		submit bool
		prompt string
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run the automatic photo sequence on the configured camera",
		Long: `Opens the configured capture device and takes the auto-capture sequence,
replacing any camera photos already selected. Uploaded images are kept.
Photos are persisted so a later analyze run submits them.`,
		Example: `  # Capture from the synthetic test pattern
  outfitai capture

  # Replay frames from a folder and submit right away
  OUTFITAI_DEVICE=directory OUTFITAI_FRAMES_DIR=./frames outfitai capture --submit -p "For trek"`,
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

			if err := a.session.StartAutoCapture(ctx); err != nil {
				return err
			}
			select {
			case <-a.session.CaptureDone():
			case <-ctx.Done():
				a.session.CancelCapture()
			}
			// read before closing, Close clears the camera error
			view := a.session.View()
			a.session.CloseCamera()

			fmt.Fprintln(cmd.ErrOrStderr(), view.CaptureStatus())
			if msg := view.CameraError(); msg != "" {
				return errors.New(msg)
			}
			for i, e := range view.Entries {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d\t%s\t%s\n", i+1, e.ID, e.Origin)
			}

			if !submit {
				return nil
			}
			a.session.SetPrompt(prompt)
			result, err := a.session.Submit(ctx)
			if err != nil {
				return fmt.Errorf("submission failed: %w", err)
			}
			printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), a.session, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&submit, "submit", false, "Submit the selection after capturing")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt text used with --submit")

	return cmd
}
