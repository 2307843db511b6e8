package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/clipnote/api/internal/model"
)

// VideoTaskPayload describes a video-info or shot-detection task.
type VideoTaskPayload struct {
	JobID int64  `json:"jobId"`
	Video string `json:"video"`
}

// ScreenshotTaskPayload describes a screenshot extraction task. Directory is
// the filesystem target, PublicBase the URL prefix result entries point at.
type ScreenshotTaskPayload struct {
	JobID      int64  `json:"jobId"`
	Video      string `json:"video"`
	Directory  string `json:"directory"`
	PublicBase string `json:"publicBase"`
	Frames     []int  `json:"frames"`
}

// ProcessVideoInfo queries the frame rate of the project video.
func (w *Worker) ProcessVideoInfo(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload[VideoTaskPayload](t)
	if err != nil {
		return err
	}
	w.logger.Info("starting video info", "job", payload.JobID)

	return w.run(ctx, payload.JobID, func(ctx context.Context) (any, error) {
		fps, err := w.engine.FrameRate(ctx, payload.Video)
		if err != nil {
			return nil, err
		}
		return model.VideoInfoResult{FPS: fps}, nil
	})
}

// ProcessShotDetection runs shot-boundary detection over the whole video.
func (w *Worker) ProcessShotDetection(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload[VideoTaskPayload](t)
	if err != nil {
		return err
	}
	w.logger.Info("starting shotboundary detection", "job", payload.JobID)

	return w.run(ctx, payload.JobID, func(ctx context.Context) (any, error) {
		return w.engine.DetectShots(ctx, payload.Video)
	})
}

// ProcessScreenshot extracts a single frame; the result is one record.
func (w *Worker) ProcessScreenshot(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload[ScreenshotTaskPayload](t)
	if err != nil {
		return err
	}
	w.logger.Info("starting screenshot generation", "job", payload.JobID)

	return w.run(ctx, payload.JobID, func(ctx context.Context) (any, error) {
		if len(payload.Frames) != 1 {
			return nil, fmt.Errorf("single screenshot task carries %d frames", len(payload.Frames))
		}
		if err := w.engine.GenerateScreenshots(ctx, payload.Video, payload.Directory, payload.Frames); err != nil {
			return nil, err
		}
		return screenshotRecords(payload)[0], nil
	})
}

// ProcessScreenshots extracts a batch of frames; the result is a list.
func (w *Worker) ProcessScreenshots(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload[ScreenshotTaskPayload](t)
	if err != nil {
		return err
	}
	w.logger.Info("starting screenshots generation", "job", payload.JobID, "frames", len(payload.Frames))

	return w.run(ctx, payload.JobID, func(ctx context.Context) (any, error) {
		if err := w.engine.GenerateScreenshots(ctx, payload.Video, payload.Directory, payload.Frames); err != nil {
			return nil, err
		}
		return screenshotRecords(payload), nil
	})
}

// screenshotRecords builds the deterministic result locations: zero-padded
// 8-digit frame numbers with image and "_mini" thumbnail variants.
func screenshotRecords(payload ScreenshotTaskPayload) []model.Screenshot {
	records := make([]model.Screenshot, 0, len(payload.Frames))
	for _, frame := range payload.Frames {
		records = append(records, model.Screenshot{
			Frame:     frame,
			Thumbnail: fmt.Sprintf("%s/%08d_mini.jpg", payload.PublicBase, frame),
			Image:     fmt.Sprintf("%s/%08d.jpg", payload.PublicBase, frame),
		})
	}
	return records
}
