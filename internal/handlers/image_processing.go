package handlers

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/outfitai/internal/providers"
)

const maxImageBytes = 10 * 1024 * 1024

var imageField = regexp.MustCompile(`^image(\d*)$`)

// readImages collects the image, image1, image2, ... parts of form in index order
func readImages(form *multipart.Form) ([]providers.Image, error) {
	if form == nil {
		return nil, nil
	}

	type field struct {
		name  string
		index int
	}
	var fields []field
	for name, headers := range form.File {
		m := imageField.FindStringSubmatch(name)
		if m == nil || len(headers) == 0 {
			continue
		}
		index := 0
		if m[1] != "" {
			index, _ = strconv.Atoi(m[1])
		}
		fields = append(fields, field{name: name, index: index})
	}
	slices.SortFunc(fields, func(a, b field) int { return a.index - b.index })

	images := make([]providers.Image, 0, len(fields))
	for _, f := range fields {
		img, err := readImage(form.File[f.name][0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func readImage(header *multipart.FileHeader) (providers.Image, error) {
	file, err := header.Open()
	if err != nil {
		return providers.Image{}, fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return providers.Image{}, fmt.Errorf("failed to read file contents: %w", err)
	}
	if len(data) > maxImageBytes {
		return providers.Image{}, fmt.Errorf("file too large (max 10MB)")
	}
	if len(data) == 0 {
		return providers.Image{}, fmt.Errorf("file is empty")
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return providers.Image{}, fmt.Errorf("unsupported content type %s", mimeType)
	}

	width, height, err := getImageDimensions(data)
	if err != nil {
		slog.Warn("Failed to get image dimensions", "filename", header.Filename, "error", err)
	} else {
		slog.Info("Image received", "filename", header.Filename, "type", mimeType, "width", width, "height", height)
	}

	return providers.Image{Name: header.Filename, MIMEType: mimeType, Data: data}, nil
}

func getImageDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
