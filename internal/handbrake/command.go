package handbrake

import (
	"fmt"
	"strconv"
	"strings"

	"platter/internal/media"
)

// BuildCommand assembles the HandBrakeCLI argument list for one encode. The
// track layout comes from the scan descriptor so every audio track on the
// chosen title is carried across, and subtitle tracks are passed with a
// leading scan entry for forced-subtitle detection.
func BuildCommand(preset Preset, descriptor *media.Descriptor, inputPath, outputPath string, titleIndex int) ([]string, error) {
	if descriptor == nil {
		return nil, fmt.Errorf("descriptor required")
	}
	title, ok := descriptor.Titles[titleIndex]
	if !ok {
		return nil, fmt.Errorf("title %d not present in scan", titleIndex)
	}

	args := []string{
		"-i", inputPath,
		"-o", outputPath,
		"-t", strconv.Itoa(titleIndex),
		"-e", preset.VideoEncoder,
		"-q", strconv.Itoa(preset.Quality),
	}

	if len(title.AudioTracks) > 0 {
		tracks := make([]string, 0, len(title.AudioTracks))
		encoders := make([]string, 0, len(title.AudioTracks))
		mixdowns := make([]string, 0, len(title.AudioTracks))
		bitrates := make([]string, 0, len(title.AudioTracks))
		for _, track := range title.AudioTracks {
			tracks = append(tracks, strconv.Itoa(track.Track))
			encoders = append(encoders, preset.AudioEncoder)
			if preset.Mixdown != "" {
				mixdowns = append(mixdowns, preset.Mixdown)
			}
			if preset.AudioBitrate > 0 {
				bitrates = append(bitrates, strconv.Itoa(preset.AudioBitrate))
			}
		}
		args = append(args, "-a", strings.Join(tracks, ","))
		args = append(args, "-E", strings.Join(encoders, ","))
		if len(mixdowns) > 0 {
			args = append(args, "--mixdown", strings.Join(mixdowns, ","))
		}
		if len(bitrates) > 0 {
			args = append(args, "-B", strings.Join(bitrates, ","))
		}
		if preset.AudioFallback != "" {
			args = append(args, "--audio-fallback", preset.AudioFallback)
		}
	}

	if len(title.SubtitleTracks) > 0 {
		subtitles := make([]string, 0, len(title.SubtitleTracks)+1)
		subtitles = append(subtitles, "scan")
		for _, track := range title.SubtitleTracks {
			subtitles = append(subtitles, strconv.Itoa(track.Track))
		}
		args = append(args, "--subtitle", strings.Join(subtitles, ","))
		args = append(args, "--subtitle-forced", "scan")
	}

	args = append(args, preset.ExtraArgs...)
	return args, nil
}

// BuildScanCommand assembles the argument list for a full title scan.
func BuildScanCommand(sourcePath string) []string {
	return []string{"-i", sourcePath, "-t", "0", "--scan"}
}
