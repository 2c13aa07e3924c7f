// Package submission posts the prompt and selected images to the analysis
// service and interprets its reply.
package submission

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/outfitai/internal/dataurl"
	"github.com/lehigh-university-libraries/outfitai/internal/entries"
	"github.com/lehigh-university-libraries/outfitai/internal/models"
	"github.com/lehigh-university-libraries/outfitai/internal/preview"
)

const (
	DefaultEndpoint = "http://localhost:8888/api/analyze"
	DefaultTimeout  = 2 * time.Minute

	msgEmptySubmission = "Please enter a prompt or capture/upload images before submitting."
	defaultImageType   = "image/jpeg"
)

type Options struct {
	Endpoint string
	Timeout  time.Duration
	Client   *http.Client
}

type Pipeline struct {
	endpoint string
	client   *http.Client
}

func New(opts Options) *Pipeline {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Pipeline{endpoint: opts.Endpoint, client: client}
}

func (p *Pipeline) Endpoint() string {
	return p.endpoint
}

// FieldName returns the multipart field for the image at index i
func FieldName(i int) string {
	if i == 0 {
		return "image"
	}
	return fmt.Sprintf("image%d", i)
}

// Submit sends prompt and images as one multipart request. A blank prompt with
// no images fails validation without touching the network. Restored entries
// whose data URL cannot be decoded are skipped and reported in Result.Warnings.
func (p *Pipeline) Submit(ctx context.Context, prompt string, images []entries.Entry) (*Result, error) {
	if strings.TrimSpace(prompt) == "" && len(images) == 0 {
		return nil, &models.ValidationError{Message: msgEmptySubmission}
	}

	slog.Info("Preparing submission", "images", len(images), "has_prompt", strings.TrimSpace(prompt) != "")

	files, warnings := resolveFiles(images)

	body, contentType, err := encodeForm(prompt, files)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	slog.Info("Sending request to analysis service", "endpoint", p.endpoint, "bytes", len(body))
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.NetworkError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	slog.Debug("Analysis response received", "status", resp.StatusCode, "content_type", resp.Header.Get("Content-Type"), "bytes", len(raw))

	result, err := Interpret(resp.StatusCode, raw)
	if err != nil {
		return nil, err
	}
	result.Warnings = warnings
	return result, nil
}

// resolveFiles returns one file per entry, nil where the entry could not be
// turned back into bytes. Restored entries are decoded concurrently.
func resolveFiles(images []entries.Entry) ([]*models.File, []string) {
	files := make([]*models.File, len(images))

	var (
		mu       sync.Mutex
		warnings []string
		g        errgroup.Group
	)
	warn := func(msg string, entry entries.Entry, field string, err error) {
		slog.Warn(msg, "id", entry.ID, "field", field, "err", err)
		mu.Lock()
		warnings = append(warnings, fmt.Sprintf("%s: %s", msg, entry.ID))
		mu.Unlock()
	}
	g.SetLimit(4)

	for i, entry := range images {
		if entry.File != nil {
			files[i] = entry.File
			continue
		}
		durable, ok := entry.Preview.(preview.Durable)
		if !ok || !dataurl.IsDataURL(durable.URL()) {
			warn("Skipping image without file or data URL", entry, FieldName(i), nil)
			continue
		}
		g.Go(func() error {
			ct, data, err := dataurl.Decode(durable.URL())
			if err != nil || len(data) == 0 {
				warn("Failed to attach persisted image", entry, FieldName(i), err)
				return nil
			}
			if ct == "" {
				ct = defaultImageType
			}
			files[i] = &models.File{
				Name:        fmt.Sprintf("persisted_%s.jpg", entry.ID),
				ContentType: ct,
				Data:        data,
			}
			return nil
		})
	}
	_ = g.Wait()

	return files, warnings
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeForm writes the prompt field first, then each non-nil file under the
// field named by its index.
func encodeForm(prompt string, files []*models.File) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("prompt", prompt); err != nil {
		return nil, "", fmt.Errorf("failed to write prompt field: %w", err)
	}

	for i, f := range files {
		if f == nil {
			continue
		}
		ct := f.ContentType
		if ct == "" {
			ct = defaultImageType
		}
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("%s.jpg", FieldName(i))
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldName(i), quoteEscaper.Replace(name)))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form part: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write image data: %w", err)
		}
		slog.Debug("Appending image to form", "field", FieldName(i), "size", f.Size())
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
