package handbrake

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"platter/internal/media"
)

var (
	validTitlesPattern = regexp.MustCompile(`scan thread found (\d+) valid title\(s\)`)
	treeNodePattern    = regexp.MustCompile(`^(\s*)\+ (.*)$`)
	titlePattern       = regexp.MustCompile(`^title (\d+):$`)
	durationPattern    = regexp.MustCompile(`^duration: (\d+):(\d+):(\d+)$`)
	audioPattern       = regexp.MustCompile(`^(\d+), (.+?) \((.+?)\) \((.+?)\) \(iso639-2: (.+?)\), (\d+)Hz, (\d+)bps$`)
	subtitlePattern    = regexp.MustCompile(`^(\d+), (.+?) \(iso639-2: (.+?)\) \((.+?)\)\((.+?)\)$`)
)

type trackSection int

const (
	sectionNone trackSection = iota
	sectionAudio
	sectionSubtitle
)

// ParseScan turns HandBrakeCLI title-scan output into a descriptor. The
// scanner prints an indentation tree: depth zero introduces a title, depth
// one holds the title's attributes and track-list headers, depth two holds
// the tracks themselves. Lines outside the tree are ignored.
func ParseScan(output string) (*media.Descriptor, error) {
	descriptor := &media.Descriptor{Titles: make(map[int]media.Title)}

	current := 0
	section := sectionNone
	declared := -1

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, "\r")

		if match := validTitlesPattern.FindStringSubmatch(line); match != nil {
			declared, _ = strconv.Atoi(match[1])
			continue
		}

		node := treeNodePattern.FindStringSubmatch(line)
		if node == nil {
			continue
		}
		depth := len(node[1]) / 2
		content := node[2]

		switch depth {
		case 0:
			match := titlePattern.FindStringSubmatch(content)
			if match == nil {
				current = 0
				continue
			}
			current, _ = strconv.Atoi(match[1])
			descriptor.Titles[current] = media.Title{}
			section = sectionNone
		case 1:
			if current == 0 {
				continue
			}
			switch {
			case content == "audio tracks:":
				section = sectionAudio
			case content == "subtitle tracks:":
				section = sectionSubtitle
			default:
				section = sectionNone
				if match := durationPattern.FindStringSubmatch(content); match != nil {
					title := descriptor.Titles[current]
					title.Duration = parseDuration(match)
					descriptor.Titles[current] = title
				}
			}
		case 2:
			if current == 0 {
				continue
			}
			title := descriptor.Titles[current]
			switch section {
			case sectionAudio:
				if track, ok := parseAudioTrack(content); ok {
					title.AudioTracks = append(title.AudioTracks, track)
				}
			case sectionSubtitle:
				if track, ok := parseSubtitleTrack(content); ok {
					title.SubtitleTracks = append(title.SubtitleTracks, track)
				}
			}
			descriptor.Titles[current] = title
		}
	}

	if len(descriptor.Titles) == 0 {
		return nil, fmt.Errorf("scan output contained no titles")
	}
	if declared >= 0 && declared != len(descriptor.Titles) {
		return nil, fmt.Errorf("scan reported %d titles but output described %d", declared, len(descriptor.Titles))
	}
	return descriptor, nil
}

func parseDuration(match []string) time.Duration {
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.Atoi(match[3])
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
}

func parseAudioTrack(content string) (media.AudioTrack, bool) {
	match := audioPattern.FindStringSubmatch(content)
	if match == nil {
		return media.AudioTrack{}, false
	}
	track, _ := strconv.Atoi(match[1])
	hertz, _ := strconv.Atoi(match[6])
	bitrate, _ := strconv.Atoi(match[7])
	return media.AudioTrack{
		Track:    track,
		Language: match[5],
		Codec:    match[3],
		Channels: match[4],
		Hertz:    hertz,
		Bitrate:  bitrate,
	}, true
}

func parseSubtitleTrack(content string) (media.SubtitleTrack, bool) {
	match := subtitlePattern.FindStringSubmatch(content)
	if match == nil {
		return media.SubtitleTrack{}, false
	}
	track, _ := strconv.Atoi(match[1])
	return media.SubtitleTrack{Track: track, Language: match[3]}, true
}
