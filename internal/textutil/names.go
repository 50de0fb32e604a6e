// Package textutil provides text helpers for media names and filenames.
package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var separatorPattern = regexp.MustCompile(`[._\s]+`)

// NormalizeTitle converts a raw media label (volume name, file stem) into a
// human-readable display name.
func NormalizeTitle(raw string) string {
	cleaned := separatorPattern.ReplaceAllString(strings.TrimSpace(raw), " ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "Unknown Media"
	}
	return cases.Title(language.Und).String(strings.ToLower(cleaned))
}

// SanitizeFileName strips characters that are unsafe in filenames.
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
