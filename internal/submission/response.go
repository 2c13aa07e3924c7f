package submission

import (
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/lehigh-university-libraries/outfitai/internal/models"
)

const excerptLength = 100

// Result is a successfully parsed analysis reply
type Result struct {
	StatusCode int
	Body       []byte
	// Text is the model reply found in the body, empty when HasText is false
	Text    string
	HasText bool
	// Warnings lists images that could not be attached
	Warnings []string
}

// Pretty returns the body re-indented with two spaces
func (r *Result) Pretty() string {
	return PrettyJSON(r.Body)
}

// Interpret turns a status code and body into a Result or a typed error
func Interpret(status int, body []byte) (*Result, error) {
	if status < 200 || status > 299 {
		return nil, &models.NetworkError{StatusCode: status, Message: errorMessage(body)}
	}
	if !gjson.ValidBytes(body) {
		return nil, &models.ParseError{Excerpt: excerpt(body, excerptLength)}
	}

	text, ok := ExtractText(body)
	return &Result{
		StatusCode: status,
		Body:       body,
		Text:       text,
		HasText:    ok,
	}, nil
}

// ExtractText looks for the reply text under the "data" wrapper when present,
// otherwise under the document root. Candidate text wins over a plain "text"
// field, which wins over a root that is itself a string.
func ExtractText(body []byte) (string, bool) {
	doc := gjson.ParseBytes(body)
	root := doc.Get("data")
	if !root.Exists() {
		root = doc
	}

	for _, path := range []string{"candidates.0.content.parts.0.text", "text"} {
		if v := root.Get(path); v.Type == gjson.String && v.Str != "" {
			return v.Str, true
		}
	}
	if root.Type == gjson.String && root.Str != "" {
		return root.Str, true
	}
	return "", false
}

// errorMessage picks the most specific message a failed response carries,
// falling back to the raw body
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error", "error.message", "data.error.message"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}
	return strings.TrimSpace(string(body))
}

func PrettyJSON(body []byte) string {
	if !gjson.ValidBytes(body) {
		return string(body)
	}
	return strings.TrimSpace(gjson.GetBytes(body, "@pretty").Raw)
}

// excerpt returns at most n characters of body without splitting a rune
func excerpt(body []byte, n int) string {
	s := string(body)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
