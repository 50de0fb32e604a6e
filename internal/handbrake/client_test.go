package handbrake

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"platter/internal/media"
)

type scriptedExecutor struct {
	output string
	err    error
	binary string
	args   []string
}

func (s *scriptedExecutor) Run(ctx context.Context, binary string, args []string, output io.Writer) error {
	s.binary = binary
	s.args = args
	if _, err := io.WriteString(output, s.output); err != nil {
		return err
	}
	return s.err
}

func testDescriptor() *media.Descriptor {
	return &media.Descriptor{Titles: map[int]media.Title{
		1: {
			Duration: 100 * time.Minute,
			AudioTracks: []media.AudioTrack{
				{Track: 1, Language: "eng", Codec: "AC3", Channels: "5.1 ch", Hertz: 48000, Bitrate: 448000},
				{Track: 2, Language: "fra", Codec: "AC3", Channels: "Dolby Surround", Hertz: 48000, Bitrate: 192000},
			},
			SubtitleTracks: []media.SubtitleTrack{{Track: 1, Language: "eng"}},
		},
	}}
}

func TestBuildCommandCarriesAllTracks(t *testing.T) {
	preset := Preset{
		VideoEncoder:  "x264",
		Quality:       20,
		AudioEncoder:  "av_aac",
		AudioBitrate:  160,
		Mixdown:       "dpl2",
		AudioFallback: "ffac3",
	}
	args, err := BuildCommand(preset, testDescriptor(), "/tmp/in.iso", "/out/movie.mkv", 1)
	if err != nil {
		t.Fatalf("BuildCommand failed: %v", err)
	}

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-i /tmp/in.iso",
		"-o /out/movie.mkv",
		"-t 1",
		"-a 1,2",
		"-E av_aac,av_aac",
		"--mixdown dpl2,dpl2",
		"-B 160,160",
		"--audio-fallback ffac3",
		"--subtitle scan,1",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestBuildCommandRejectsUnknownTitle(t *testing.T) {
	if _, err := BuildCommand(Preset{VideoEncoder: "x264"}, testDescriptor(), "/tmp/in.iso", "/out/movie.mkv", 9); err == nil {
		t.Fatal("expected error for missing title")
	}
}

func TestClientScanParsesExecutorOutput(t *testing.T) {
	exec := &scriptedExecutor{output: sampleScanOutput}
	client, err := New("HandBrakeCLI", "", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	descriptor, err := client.Scan(context.Background(), "/tmp/in.iso")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(descriptor.Titles) != 2 {
		t.Fatalf("expected 2 titles, got %d", len(descriptor.Titles))
	}
	if exec.binary != "HandBrakeCLI" {
		t.Fatalf("unexpected binary: %q", exec.binary)
	}
	if got := strings.Join(exec.args, " "); got != "-i /tmp/in.iso -t 0 --scan" {
		t.Fatalf("unexpected scan args: %q", got)
	}
}

func TestClientEncodeStreamsProgress(t *testing.T) {
	exec := &scriptedExecutor{
		output: "Encoding: task 1 of 1, 10.0 %\rEncoding: task 1 of 1, 55.3 %\rEncoding: task 1 of 1, 100.0 %\r",
	}
	client, err := New("HandBrakeCLI", "", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var events []int
	err = client.Encode(context.Background(), "default", testDescriptor(), "/tmp/in.iso", "/out/movie.mkv", 1, func(percent int) {
		events = append(events, percent)
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !reflect.DeepEqual(events, []int{10, 55, 100}) {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestClientEncodeReportsToolFailureWithTail(t *testing.T) {
	exec := &scriptedExecutor{
		output: "Encoding: task 1 of 1, 10.0 %\rERROR: disc read failure\n",
		err:    errors.New("exit status 3"),
	}
	client, err := New("HandBrakeCLI", "", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = client.Encode(context.Background(), "default", testDescriptor(), "/tmp/in.iso", "/out/movie.mkv", 1, nil)
	if err == nil {
		t.Fatal("expected encode error")
	}
	if !strings.Contains(err.Error(), "disc read failure") {
		t.Fatalf("error does not carry output tail: %v", err)
	}
}

func TestResolvePresetDefaultsAndOverrides(t *testing.T) {
	presets, err := LoadPresets("")
	if err != nil {
		t.Fatalf("LoadPresets failed: %v", err)
	}
	preset, err := ResolvePreset(presets, "")
	if err != nil {
		t.Fatalf("ResolvePreset failed: %v", err)
	}
	if preset.VideoEncoder != "x264" {
		t.Fatalf("unexpected default preset: %#v", preset)
	}
	if _, err := ResolvePreset(presets, "nope"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
