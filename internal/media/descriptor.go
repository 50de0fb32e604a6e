package media

import (
	"sort"
	"time"

	"platter/internal/language"
)

// AudioTrack describes one audio stream within a title.
type AudioTrack struct {
	Track    int
	Language string
	Codec    string
	Channels string
	Hertz    int
	Bitrate  int
}

// SubtitleTrack describes one subtitle stream within a title.
type SubtitleTrack struct {
	Track    int
	Language string
}

// Title is a single playable title on the media. Track lists are kept in
// ascending track-number order.
type Title struct {
	Duration       time.Duration
	AudioTracks    []AudioTrack
	SubtitleTracks []SubtitleTrack
}

// AudioLanguages returns the display names of the title's audio track
// languages, in track order.
func (t Title) AudioLanguages() []string {
	names := make([]string, 0, len(t.AudioTracks))
	for _, track := range t.AudioTracks {
		names = append(names, language.DisplayName(track.Language))
	}
	return names
}

// Descriptor is the structured result of scanning a source. Title numbers
// reported by the scanner may start anywhere and need not be contiguous, so
// titles are keyed by number rather than held in a slice.
type Descriptor struct {
	Titles map[int]Title
}

// TitleNumbers returns the known title numbers in ascending order.
func (d *Descriptor) TitleNumbers() []int {
	if d == nil {
		return nil
	}
	numbers := make([]int, 0, len(d.Titles))
	for n := range d.Titles {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// LongestTitle returns the title number with the greatest duration, or 0
// when the descriptor holds no titles.
func (d *Descriptor) LongestTitle() int {
	best := 0
	var bestDuration time.Duration
	for n, title := range d.Titles {
		if best == 0 || title.Duration > bestDuration {
			best = n
			bestDuration = title.Duration
		}
	}
	return best
}
