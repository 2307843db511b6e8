package worker

import (
	"context"

	"github.com/hibiken/asynq"
)

// ExportTaskPayload describes a project or screenshot export task. A nil
// Frames slice on a screenshot export means "all frames".
type ExportTaskPayload struct {
	JobID     int64  `json:"jobId"`
	AccountID int64  `json:"accountId"`
	ProjectID string `json:"projectId"`
	Frames    []int  `json:"frames"`
}

// ImportTaskPayload describes a project import task. VideoPath and ZipPath
// point at the staged uploads; ProjectID is the freshly generated identity
// the project is reconstructed under.
type ImportTaskPayload struct {
	JobID     int64  `json:"jobId"`
	AccountID int64  `json:"accountId"`
	ProjectID string `json:"projectId"`
	VideoPath string `json:"videoPath"`
	ZipPath   string `json:"zipPath"`
}

// ProcessExportScreenshots packages the screenshot timelines of a project.
func (w *Worker) ProcessExportScreenshots(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload[ExportTaskPayload](t)
	if err != nil {
		return err
	}
	w.logger.Info("starting screenshots export", "job", payload.JobID, "project", payload.ProjectID)

	return w.run(ctx, payload.JobID, func(ctx context.Context) (any, error) {
		return w.packer.ExportScreenshots(ctx, payload.AccountID, payload.ProjectID, payload.Frames)
	})
}

// ProcessExportProject packages a project's entire state into one archive.
func (w *Worker) ProcessExportProject(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload[ExportTaskPayload](t)
	if err != nil {
		return err
	}
	w.logger.Info("starting project export", "job", payload.JobID, "project", payload.ProjectID)

	return w.run(ctx, payload.JobID, func(ctx context.Context) (any, error) {
		return w.packer.ExportProject(ctx, payload.AccountID, payload.ProjectID)
	})
}

// ProcessImportProject reconstructs a project from an uploaded archive.
func (w *Worker) ProcessImportProject(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload[ImportTaskPayload](t)
	if err != nil {
		return err
	}
	w.logger.Info("starting project import", "job", payload.JobID, "project", payload.ProjectID)

	return w.run(ctx, payload.JobID, func(ctx context.Context) (any, error) {
		return w.unpacker.Unpack(ctx, payload.AccountID, payload.VideoPath, payload.ZipPath, payload.ProjectID)
	})
}
