package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/clipnote/api/internal/config"
	"github.com/clipnote/api/internal/dispatch"
	"github.com/clipnote/api/internal/model"
	"github.com/clipnote/api/internal/storage"
	"github.com/clipnote/api/internal/worker"
)

// JobService submits background jobs and answers lifecycle queries. Every
// submission follows the same protocol: insert a QUEUED job, hand the
// described work to the dispatcher, record the returned handle.
type JobService struct {
	db         *storage.DB
	dispatcher dispatch.Dispatcher
	cfg        *config.Config
	logger     *slog.Logger
}

func NewJobService(db *storage.DB, dispatcher dispatch.Dispatcher, cfg *config.Config, logger *slog.Logger) *JobService {
	return &JobService{
		db:         db,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
	}
}

// SubmitVideoInfo queues a frame-rate query for a project video.
func (s *JobService) SubmitVideoInfo(ctx context.Context, accountID int64, req *model.VideoInfoRequest) (*model.Job, error) {
	job, err := s.db.CreateJob(ctx, accountID, req.ID, model.JobTypeVideoInfo)
	if err != nil {
		return nil, err
	}
	return s.dispatchJob(ctx, job, worker.VideoTaskPayload{
		JobID: job.ID,
		Video: s.videoPath(req.Video),
	})
}

// SubmitShotDetection queues shot-boundary detection for a project video.
func (s *JobService) SubmitShotDetection(ctx context.Context, accountID int64, req *model.VideoInfoRequest) (*model.Job, error) {
	job, err := s.db.CreateJob(ctx, accountID, req.ID, model.JobTypeShotDetection)
	if err != nil {
		return nil, err
	}
	return s.dispatchJob(ctx, job, worker.VideoTaskPayload{
		JobID: job.ID,
		Video: s.videoPath(req.Video),
	})
}

// SubmitScreenshots queues screenshot extraction. A single requested frame
// runs as a screenshot-generation job, several as screenshots-generation;
// the result shape differs accordingly.
func (s *JobService) SubmitScreenshots(ctx context.Context, accountID int64, req *model.ScreenshotRequest) (*model.Job, error) {
	directory := s.cfg.ProjectScreenshotDir(req.ID)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}

	kind := model.JobTypeScreenshots
	if len(req.Frames) == 1 {
		kind = model.JobTypeScreenshot
	}
	job, err := s.db.CreateJob(ctx, accountID, req.ID, kind)
	if err != nil {
		return nil, err
	}
	return s.dispatchJob(ctx, job, worker.ScreenshotTaskPayload{
		JobID:      job.ID,
		Video:      s.videoPath(req.Video),
		Directory:  directory,
		PublicBase: s.cfg.Server.APIPrefix + path.Join("uploads", "screenshots", req.ID),
		Frames:     req.Frames,
	})
}

// SubmitExportScreenshots queues a frame-subset export. A nil frame list
// exports every screenshot in every screenshot timeline.
func (s *JobService) SubmitExportScreenshots(ctx context.Context, accountID int64, req *model.ScreenshotExportRequest) (*model.Job, error) {
	job, err := s.db.CreateJob(ctx, accountID, req.ID, model.JobTypeExportScreenshots)
	if err != nil {
		return nil, err
	}
	return s.dispatchJob(ctx, job, worker.ExportTaskPayload{
		JobID:     job.ID,
		AccountID: accountID,
		ProjectID: req.ID,
		Frames:    req.Frames,
	})
}

// SubmitExportProject queues a full-project export.
func (s *JobService) SubmitExportProject(ctx context.Context, accountID int64, req *model.ProjectExportRequest) (*model.Job, error) {
	job, err := s.db.CreateJob(ctx, accountID, req.ID, model.JobTypeExportProject)
	if err != nil {
		return nil, err
	}
	return s.dispatchJob(ctx, job, worker.ExportTaskPayload{
		JobID:     job.ID,
		AccountID: accountID,
		ProjectID: req.ID,
	})
}

// SubmitImportProject queues reconstruction of a project from staged video
// and archive uploads. The project identity is generated fresh here; the
// exporter's id is never reused.
func (s *JobService) SubmitImportProject(ctx context.Context, accountID int64, videoPath, zipPath string) (*model.Job, error) {
	projectID := uuid.New().String()
	job, err := s.db.CreateJob(ctx, accountID, projectID, model.JobTypeImportProject)
	if err != nil {
		return nil, err
	}
	return s.dispatchJob(ctx, job, worker.ImportTaskPayload{
		JobID:     job.ID,
		AccountID: accountID,
		ProjectID: projectID,
		VideoPath: videoPath,
		ZipPath:   zipPath,
	})
}

// ListJobs returns the account's jobs, optionally scoped to one project.
func (s *JobService) ListJobs(ctx context.Context, accountID int64, projectID string) ([]*model.Job, error) {
	return s.db.ListJobs(ctx, accountID, projectID)
}

// GetResult returns the recorded result of an owned job.
func (s *JobService) GetResult(ctx context.Context, accountID, jobID int64) (*model.Result, error) {
	return s.db.GetResult(ctx, accountID, jobID)
}

// Terminate cancels an owned job. Cancellation of a running worker is
// best-effort and asynchronous: the job is marked CANCELED here, and the
// worker discards its result when it notices.
func (s *JobService) Terminate(ctx context.Context, accountID, jobID int64) (string, error) {
	job, err := s.db.GetJob(ctx, accountID, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.TerminateOutcomeNotFound, nil
		}
		return "", err
	}
	if job.Status.Terminal() {
		return model.TerminateOutcomeNotRunning, nil
	}

	if job.WorkerHandle != "" {
		handle := dispatch.Handle{TaskID: job.WorkerHandle, Queue: dispatch.QueueDefault}
		if state := s.dispatcher.Poll(handle); state == dispatch.StatePending || state == dispatch.StateRunning {
			if err := s.dispatcher.Cancel(handle); err != nil {
				s.logger.Warn("cancel signal failed", "job", jobID, "error", err)
			}
		}
	}

	if err := s.db.Transition(ctx, jobID, model.JobStatusCanceled); err != nil {
		if errors.Is(err, storage.ErrTerminalStatus) {
			// The worker finished first.
			return model.TerminateOutcomeNotRunning, nil
		}
		return "", err
	}
	return model.TerminateOutcomeTerminated, nil
}

func (s *JobService) dispatchJob(ctx context.Context, job *model.Job, payload any) (*model.Job, error) {
	handle, err := s.dispatcher.Submit(job.Type, payload)
	if err != nil {
		// The job would wait in QUEUED forever; fail it instead.
		if terr := s.db.Transition(ctx, job.ID, model.JobStatusCanceled); terr != nil {
			s.logger.Error("failed to cancel undispatched job", "job", job.ID, "error", terr)
		}
		return nil, fmt.Errorf("dispatch %s: %w", job.Type, err)
	}
	if err := s.db.AttachWorker(ctx, job.ID, handle.TaskID); err != nil {
		s.logger.Error("failed to attach worker handle", "job", job.ID, "error", err)
	}
	job.WorkerHandle = handle.TaskID
	s.logger.Info("job submitted", "job", job.ID, "kind", job.Type, "handle", handle.TaskID)
	return job, nil
}

// videoPath resolves an uploaded video reference (a URL under the API
// prefix) to its on-disk location. Only the basename is trusted.
func (s *JobService) videoPath(reference string) string {
	return filepath.Join(s.cfg.Storage.VideoDir, path.Base(reference))
}
