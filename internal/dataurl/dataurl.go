// Package dataurl converts image bytes to and from self-contained RFC 2397 data URLs,
// the durable form in which image entries are persisted.
package dataurl

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const (
	prefix             = "data:"
	defaultContentType = "text/plain;charset=US-ASCII"
)

// Encode returns a base64 data URL for data
func Encode(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	var b strings.Builder
	b.Grow(len(prefix) + len(contentType) + len(";base64,") + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(prefix)
	b.WriteString(contentType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// IsDataURL reports whether s looks like a data URL
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, prefix)
}

// Decode parses a data URL and returns its media type and payload
func Decode(s string) (string, []byte, error) {
	if !IsDataURL(s) {
		return "", nil, fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(s[len(prefix):], ",")
	if !ok {
		return "", nil, fmt.Errorf("data URL has no payload separator")
	}

	contentType := header
	isBase64 := false
	if strings.HasSuffix(header, ";base64") {
		contentType = strings.TrimSuffix(header, ";base64")
		isBase64 = true
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("failed to decode base64 payload: %w", err)
		}
		return contentType, data, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to unescape payload: %w", err)
	}
	return contentType, []byte(unescaped), nil
}
