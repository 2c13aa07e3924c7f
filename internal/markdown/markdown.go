// Package markdown converts the small markdown subset returned by the
// analysis service into HTML that is safe to embed. All input is escaped
// before any tag is produced, so no caller-supplied markup survives.
package markdown

import (
	"regexp"
	"strings"
)

var (
	escaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)

	h3Pattern     = regexp.MustCompile(`(?m)^###[ \t]*(.+)$`)
	h2Pattern     = regexp.MustCompile(`(?m)^##[ \t]*(.+)$`)
	h1Pattern     = regexp.MustCompile(`(?m)^#[ \t]*(.+)$`)
	boldPattern   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.+?)\*`)
	listLine      = regexp.MustCompile(`^[ \t]*[-*][ \t]+\S`)
	listMarker    = regexp.MustCompile(`^[-*]\s+`)
	paragraphGap  = regexp.MustCompile(`\n\s*\n`)
	blockTag      = regexp.MustCompile(`(?i)^<(h[1-6]|ul|ol|li|pre|blockquote)`)
)

// Escape replaces the five HTML-significant characters with entities
func Escape(s string) string {
	return escaper.Replace(s)
}

// Render returns the HTML form of md. Empty input renders as "".
func Render(md string) string {
	if md == "" {
		return ""
	}

	out := Escape(md)

	out = h3Pattern.ReplaceAllString(out, "<h3>$1</h3>")
	out = h2Pattern.ReplaceAllString(out, "<h2>$1</h2>")
	out = h1Pattern.ReplaceAllString(out, "<h1>$1</h1>")

	out = boldPattern.ReplaceAllString(out, "<strong>$1</strong>")
	out = italicPattern.ReplaceAllString(out, "<em>$1</em>")

	out = groupLists(out)

	var b strings.Builder
	for _, p := range paragraphGap.Split(out, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if blockTag.MatchString(p) {
			b.WriteString(p)
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(p, "\n", "<br/>"))
		b.WriteString("</p>")
	}
	return b.String()
}

// groupLists folds each run of consecutive list lines into one <ul>. The
// line break ending a run is consumed along with it.
func groupLists(s string) string {
	lines := strings.Split(s, "\n")

	var b strings.Builder
	var items []string
	flush := func() {
		b.WriteString("<ul>")
		for _, item := range items {
			b.WriteString("<li>")
			b.WriteString(item)
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
		items = items[:0]
	}

	for i, line := range lines {
		if listLine.MatchString(line) {
			if len(items) == 0 && i > 0 {
				b.WriteByte('\n')
			}
			items = append(items, listMarker.ReplaceAllString(strings.TrimSpace(line), ""))
			continue
		}
		if len(items) > 0 {
			flush()
		} else if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if len(items) > 0 {
		flush()
	}
	return b.String()
}
