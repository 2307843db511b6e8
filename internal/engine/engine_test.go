package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"25/1", 25, false},
		{"30000/1001", 29.97002997002997, false},
		{"24", 24, false},
		{"", 0, true},
		{"x/1", 0, true},
		{"25/0", 0, true},
	}
	for _, tt := range tests {
		got, err := parseFrameRate(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFrameRate(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseSceneBoundaries(t *testing.T) {
	output := strings.Join([]string{
		"frame:12  pts:123000 pts_time:4.92",
		"lavfi.scene_score=0.52",
		"frame:48  pts:480000 pts_time:19.2",
		"noise line without marker",
		"frame:49  pts:481000 pts_time:19.2", // duplicate frame after rounding
	}, "\n")

	got := parseSceneBoundaries(output, 25)
	want := []int{123, 480}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("boundaries = %v, want %v", got, want)
	}
}

func TestBuildShots(t *testing.T) {
	tests := []struct {
		name       string
		boundaries []int
		total      int
		want       []Shot
	}{
		{"no boundaries", nil, 300, []Shot{{0, 299}}},
		{"two boundaries", []int{120, 200}, 300, []Shot{{0, 119}, {120, 199}, {200, 299}}},
		{"boundary at zero skipped", []int{0, 150}, 300, []Shot{{0, 149}, {150, 299}}},
		{"empty video", nil, 0, nil},
	}
	for _, tt := range tests {
		got := buildShots(tt.boundaries, tt.total)
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("%s: shots = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// scriptedRunner replays canned outputs keyed by the executed binary and a
// distinguishing argument.
type scriptedRunner struct {
	calls   []string
	results map[string]commandResult
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	call := name
	for _, arg := range args {
		if strings.Contains(arg, "scene") || strings.Contains(arg, "nb_read_packets") || strings.Contains(arg, "r_frame_rate") {
			call = name + ":" + arg
			break
		}
	}
	r.calls = append(r.calls, call)
	res, ok := r.results[call]
	if !ok {
		return commandResult{}, fmt.Errorf("unexpected command %s", call)
	}
	return res, nil
}

func TestDetectShotsEndToEnd(t *testing.T) {
	runner := &scriptedRunner{results: map[string]commandResult{
		"ffprobe:stream=r_frame_rate":     {Stdout: "25/1\n"},
		"ffprobe:stream=nb_read_packets":  {Stdout: "300\n"},
		"ffmpeg:select='gt(scene,0.4)',metadata=print:file=-": {
			Stdout: "frame:120 pts:4800 pts_time:4.8\nframe:200 pts:8000 pts_time:8.0\n",
		},
	}}
	eng := &FFmpegEngine{
		ffprobePath:    "ffprobe",
		ffmpegPath:     "ffmpeg",
		runner:         runner,
		sceneThreshold: 0.4,
	}

	shots, err := eng.DetectShots(context.Background(), "/videos/v.mp4")
	if err != nil {
		t.Fatalf("detect shots: %v", err)
	}
	want := []Shot{{0, 119}, {120, 199}, {200, 299}}
	if fmt.Sprint(shots) != fmt.Sprint(want) {
		t.Errorf("shots = %v, want %v", shots, want)
	}
}

func TestDetectShotsNoBoundaries(t *testing.T) {
	runner := &scriptedRunner{results: map[string]commandResult{
		"ffprobe:stream=r_frame_rate":    {Stdout: "25/1\n"},
		"ffprobe:stream=nb_read_packets": {Stdout: "300\n"},
		"ffmpeg:select='gt(scene,0.4)',metadata=print:file=-": {Stdout: ""},
	}}
	eng := &FFmpegEngine{
		ffprobePath:    "ffprobe",
		ffmpegPath:     "ffmpeg",
		runner:         runner,
		sceneThreshold: 0.4,
	}

	shots, err := eng.DetectShots(context.Background(), "/videos/v.mp4")
	if err != nil {
		t.Fatalf("detect shots: %v", err)
	}
	if len(shots) != 1 || shots[0] != (Shot{0, 299}) {
		t.Errorf("shots = %v, want one full-length shot", shots)
	}
}
