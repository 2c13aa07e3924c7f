package session

import (
	"regexp"
	"strings"
)

var extraSpace = regexp.MustCompile(`\s{2,}`)

func phrasePattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
}

// appendPhrase adds phrase to the end of prompt unless it is already there,
// ignoring case and line breaks
func appendPhrase(prompt, phrase string) string {
	if strings.TrimSpace(prompt) == "" {
		return phrase
	}
	flat := strings.Join(strings.Fields(prompt), " ")
	if strings.Contains(strings.ToLower(flat), strings.ToLower(phrase)) {
		return prompt
	}
	return strings.TrimSpace(prompt) + " " + phrase
}

// removePhrase deletes the first word-bounded occurrence of phrase and
// collapses the whitespace left behind
func removePhrase(prompt, phrase string) string {
	loc := phrasePattern(phrase).FindStringIndex(prompt)
	if loc == nil {
		return prompt
	}
	cleaned := prompt[:loc[0]] + prompt[loc[1]:]
	return strings.TrimSpace(extraSpace.ReplaceAllString(cleaned, " "))
}

func containsPhrase(prompt, phrase string) bool {
	return phrasePattern(phrase).MatchString(prompt)
}
