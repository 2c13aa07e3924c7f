package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/outfitai/internal/dataurl"
	"github.com/lehigh-university-libraries/outfitai/internal/entries"
	"github.com/lehigh-university-libraries/outfitai/internal/submission"
)

func newImagesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Inspect and manage the persisted image selection",
	}

	cmd.AddCommand(newImagesListCmd(opts))
	cmd.AddCommand(newImagesRemoveCmd(opts))
	cmd.AddCommand(newImagesClearCmd(opts))

	return cmd
}

func newImagesListCmd(opts *rootOptions) *cobra.Command {
	var persisted bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the selected images in submission order",
		Long: `Lists the selected images in submission order with the form field each one
is sent as. With --persisted the saved records are read directly from the
store instead of restoring a session.`,
		Args: cobra.NoArgs,
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

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if persisted {
				records, err := entries.LoadRecords(cmd.Context(), a.kv, a.cfg.Store.Key)
				if err != nil {
					return fmt.Errorf("failed to read persisted images: %w", err)
				}
				fmt.Fprintln(tw, "#\tID\tSOURCE\tTYPE\tBYTES")
				for i, r := range records {
					contentType, size := describeDataURL(r.DataURL)
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", i+1, r.ID, r.Source, contentType, size)
				}
				return tw.Flush()
			}

			if err := a.mount(cmd.Context()); err != nil {
				return err
			}
			view := a.session.View()
			fmt.Fprintln(tw, "#\tID\tSOURCE\tFIELD\tTYPE\tBYTES")
			for i, e := range view.Entries {
				contentType, size := describe(e)
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n", i+1, e.ID, e.Origin, submission.FieldName(i), contentType, size)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), view.Hint())
			return nil
		},
	}

	cmd.Flags().BoolVar(&persisted, "persisted", false, "Read the saved records without restoring a session")

	return cmd
}

// describe reports the type and size of an entry, decoding restored data URLs
func describe(e entries.Entry) (string, int) {
	if e.File != nil {
		return e.File.ContentType, e.File.Size()
	}
	return describeDataURL(e.Preview.URL())
}

func describeDataURL(url string) (string, int) {
	contentType, data, err := dataurl.Decode(url)
	if err != nil {
		return "invalid", 0
	}
	return contentType, len(data)
}

func newImagesRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove images from the selection",
		Args:  cobra.MinimumNArgs(1),
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
			if err := a.mount(cmd.Context()); err != nil {
				return err
			}

			known := make(map[string]bool)
			for _, e := range a.session.Entries() {
				known[e.ID] = true
			}
			for _, id := range args {
				if !known[id] {
					return fmt.Errorf("no image with id %s", id)
				}
				a.session.RemoveImage(id)
			}
			return nil
		},
	}
}

func newImagesClearCmd(opts *rootOptions) *cobra.Command {
	var cameraOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the selection",
		Args:  cobra.NoArgs,
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
			if err := a.mount(cmd.Context()); err != nil {
				return err
			}

			if cameraOnly {
				a.session.ClearCameraImages()
				return nil
			}
			a.session.ClearAll()
			return nil
		},
	}

	cmd.Flags().BoolVar(&cameraOnly, "camera", false, "Only clear camera photos, keeping uploads")

	return cmd
}
