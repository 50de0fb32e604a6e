// Package media defines the typed descriptions of encode sources: where the
// bytes come from (a file or an optical drive) and what the scanner found on
// them (titles with their audio and subtitle tracks).
package media
