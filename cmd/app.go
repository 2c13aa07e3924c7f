package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/outfitai/internal/autocapture"
	"github.com/lehigh-university-libraries/outfitai/internal/camera"
	"github.com/lehigh-university-libraries/outfitai/internal/config"
	"github.com/lehigh-university-libraries/outfitai/internal/device"
	"github.com/lehigh-university-libraries/outfitai/internal/entries"
	"github.com/lehigh-university-libraries/outfitai/internal/models"
	"github.com/lehigh-university-libraries/outfitai/internal/preview"
	"github.com/lehigh-university-libraries/outfitai/internal/session"
	"github.com/lehigh-university-libraries/outfitai/internal/storage"
	"github.com/lehigh-university-libraries/outfitai/internal/submission"
)

// app holds the components of one CLI invocation's session
type app struct {
	cfg     *config.Config
	kv      storage.Store
	store   *entries.Store
	session *session.Session
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	kv, err := storage.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	provider, err := device.Open(cfg.Camera.Device, cfg.Camera.FramesDir)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("failed to open camera device: %w", err)
	}

	store := entries.NewStore(kv, preview.NewRegistry(), entries.Options{Key: cfg.Store.Key})
	cam := camera.New(provider, camera.Options{FacingMode: cfg.Camera.FacingMode})
	pipeline := submission.New(submission.Options{Endpoint: cfg.Endpoint, Timeout: cfg.Timeout})

	sess := session.New(store, cam, pipeline, session.Options{
		Suggestions: cfg.Suggestions,
		Capture: autocapture.Options{
			Shots:    cfg.Capture.Shots,
			Interval: cfg.Capture.Interval,
		},
	})

	return &app{cfg: cfg, kv: kv, store: store, session: sess}, nil
}

// mount restores the persisted entries into the session
func (a *app) mount(ctx context.Context) error {
	_, err := a.session.Mount(ctx)
	return err
}

// close tears the session down, waiting for pending persistence, and closes the store
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errTeardown := a.session.Teardown(ctx)
	errClose := a.kv.Close()
	return errors.Join(errTeardown, errClose)
}

// readImageFile loads path as an upload, sniffing its content type
func readImageFile(path string) (*models.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return &models.File{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

// printResult writes the rendered response followed by any attachment warnings
func printResult(out, errOut io.Writer, sess *session.Session, result *submission.Result) {
	for _, w := range result.Warnings {
		fmt.Fprintln(errOut, "warning:", w)
	}
	body, _, ok := sess.Display()
	if !ok {
		return
	}
	fmt.Fprintln(out, body)
}
