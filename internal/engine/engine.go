// Package engine wraps the external video tooling (ffprobe/ffmpeg) behind a
// narrow interface so workers can be tested without decoding video.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Shot is one detected shot as an inclusive [start, end] frame pair.
type Shot [2]int

// Engine performs frame-rate inspection, shot-boundary detection, and
// screenshot extraction from a video asset. Calls may block for minutes;
// cancellation terminates the underlying process via the context.
type Engine interface {
	FrameRate(ctx context.Context, videoPath string) (float64, error)
	DetectShots(ctx context.Context, videoPath string) ([]Shot, error)
	// GenerateScreenshots writes, for every requested frame index, an image
	// and a 48x27 "_mini" thumbnail into directory, named by the zero-padded
	// 8-digit frame number.
	GenerateScreenshots(ctx context.Context, videoPath, directory string, frames []int) error
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpegEngine is the production Engine shelling out to ffprobe and ffmpeg.
type FFmpegEngine struct {
	ffprobePath string
	ffmpegPath  string
	runner      commandRunner

	// sceneThreshold is the scene-change score above which a frame starts a
	// new shot.
	sceneThreshold float64
}

func NewFFmpegEngine() *FFmpegEngine {
	return &FFmpegEngine{
		ffprobePath:    "ffprobe",
		ffmpegPath:     "ffmpeg",
		runner:         &execRunner{},
		sceneThreshold: 0.4,
	}
}

// FrameRate queries the average frame rate of the first video stream.
func (e *FFmpegEngine) FrameRate(ctx context.Context, videoPath string) (float64, error) {
	res, err := e.runner.Run(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe frame rate: %w (%s)", err, strings.TrimSpace(res.Stderr))
	}
	return parseFrameRate(strings.TrimSpace(res.Stdout))
}

// parseFrameRate parses ffprobe's rational notation ("25/1", "30000/1001").
func parseFrameRate(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("empty frame rate")
	}
	num, den, found := strings.Cut(raw, "/")
	if !found {
		return strconv.ParseFloat(raw, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", raw, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", raw, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("parse frame rate %q: zero denominator", raw)
	}
	return n / d, nil
}

// DetectShots splits the video into shots at scene-change boundaries and
// returns the ordered [start, end] frame pairs. Videos without any detected
// boundary come back as one shot spanning the whole file.
func (e *FFmpegEngine) DetectShots(ctx context.Context, videoPath string) ([]Shot, error) {
	fps, err := e.FrameRate(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	total, err := e.frameCount(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	filter := fmt.Sprintf("select='gt(scene,%g)',metadata=print:file=-", e.sceneThreshold)
	res, err := e.runner.Run(ctx, e.ffmpegPath,
		"-i", videoPath,
		"-vf", filter,
		"-an",
		"-f", "null", "-",
	)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg scene detection: %w (%s)", err, strings.TrimSpace(res.Stderr))
	}

	boundaries := parseSceneBoundaries(res.Stdout, fps)
	return buildShots(boundaries, total), nil
}

func (e *FFmpegEngine) frameCount(ctx context.Context, videoPath string) (int, error) {
	res, err := e.runner.Run(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe frame count: %w (%s)", err, strings.TrimSpace(res.Stderr))
	}
	count, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return 0, fmt.Errorf("parse frame count: %w", err)
	}
	return count, nil
}

// parseSceneBoundaries extracts the frame indexes of scene changes from
// metadata=print output ("frame:12 pts:... pts_time:4.92").
func parseSceneBoundaries(output string, fps float64) []int {
	var boundaries []int
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, "pts_time:")
		if idx < 0 {
			continue
		}
		value := strings.TrimSpace(line[idx+len("pts_time:"):])
		if cut := strings.IndexByte(value, ' '); cut >= 0 {
			value = value[:cut]
		}
		seconds, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		frame := int(seconds*fps + 0.5)
		if len(boundaries) == 0 || boundaries[len(boundaries)-1] != frame {
			boundaries = append(boundaries, frame)
		}
	}
	return boundaries
}

func buildShots(boundaries []int, totalFrames int) []Shot {
	if totalFrames <= 0 {
		return nil
	}
	shots := make([]Shot, 0, len(boundaries)+1)
	start := 0
	for _, boundary := range boundaries {
		if boundary <= start {
			continue
		}
		shots = append(shots, Shot{start, boundary - 1})
		start = boundary
	}
	shots = append(shots, Shot{start, totalFrames - 1})
	return shots
}

// GenerateScreenshots extracts the requested frames as JPEGs plus thumbnails.
func (e *FFmpegEngine) GenerateScreenshots(ctx context.Context, videoPath, directory string, frames []int) error {
	for _, frame := range frames {
		image := filepath.Join(directory, fmt.Sprintf("%08d.jpg", frame))
		thumbnail := filepath.Join(directory, fmt.Sprintf("%08d_mini.jpg", frame))

		selectExpr := fmt.Sprintf("select='eq(n,%d)'", frame)
		res, err := e.runner.Run(ctx, e.ffmpegPath,
			"-y",
			"-i", videoPath,
			"-vf", selectExpr,
			"-vframes", "1",
			image,
		)
		if err != nil {
			return fmt.Errorf("extract frame %d: %w (%s)", frame, err, strings.TrimSpace(res.Stderr))
		}

		res, err = e.runner.Run(ctx, e.ffmpegPath,
			"-y",
			"-i", videoPath,
			"-vf", selectExpr+",scale=48:27",
			"-vframes", "1",
			thumbnail,
		)
		if err != nil {
			return fmt.Errorf("extract thumbnail %d: %w (%s)", frame, err, strings.TrimSpace(res.Stderr))
		}
	}
	return nil
}
