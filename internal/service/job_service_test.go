package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/clipnote/api/internal/config"
	"github.com/clipnote/api/internal/dispatch"
	"github.com/clipnote/api/internal/model"
	"github.com/clipnote/api/internal/storage"
)

// fakeDispatcher hands out sequential handles and remembers cancellations.
type fakeDispatcher struct {
	state     dispatch.TaskState
	submitErr error
	submitted []string
	canceled  []string
}

func (d *fakeDispatcher) Submit(kind string, args any) (dispatch.Handle, error) {
	if d.submitErr != nil {
		return dispatch.Handle{}, d.submitErr
	}
	d.submitted = append(d.submitted, kind)
	return dispatch.Handle{TaskID: "task-1", Queue: dispatch.QueueDefault}, nil
}

func (d *fakeDispatcher) Poll(handle dispatch.Handle) dispatch.TaskState {
	return d.state
}

func (d *fakeDispatcher) Cancel(handle dispatch.Handle) error {
	d.canceled = append(d.canceled, handle.TaskID)
	return nil
}

func testJobService(t *testing.T, dispatcher dispatch.Dispatcher) (*JobService, *storage.DB, int64) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	account, err := db.CreateAccount(context.Background(), "a@example.com", "hash")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	root := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{APIPrefix: "/api/"},
		Storage: config.StorageConfig{
			DataDir:       root,
			VideoDir:      filepath.Join(root, "uploads", "videos"),
			SubtitleDir:   filepath.Join(root, "uploads", "subtitles"),
			ScreenshotDir: filepath.Join(root, "uploads", "screenshots"),
			ExportDir:     filepath.Join(root, "uploads", "exports"),
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJobService(db, dispatcher, cfg, logger), db, account.ID
}

func TestSubmitVideoInfoDispatchesAndAttachesHandle(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc, db, accountID := testJobService(t, dispatcher)
	ctx := context.Background()

	job, err := svc.SubmitVideoInfo(ctx, accountID, &model.VideoInfoRequest{
		Video: "/api/uploads/videos/v.mp4",
		ID:    "proj-1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != model.JobStatusQueued {
		t.Errorf("status = %s, want QUEUED", job.Status)
	}
	if len(dispatcher.submitted) != 1 || dispatcher.submitted[0] != model.JobTypeVideoInfo {
		t.Errorf("submitted kinds = %v", dispatcher.submitted)
	}

	persisted, _ := db.GetJob(ctx, accountID, job.ID)
	if persisted.WorkerHandle != "task-1" {
		t.Errorf("worker handle = %q", persisted.WorkerHandle)
	}
}

func TestSubmitScreenshotsPicksKindBySize(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc, _, accountID := testJobService(t, dispatcher)
	ctx := context.Background()

	if _, err := svc.SubmitScreenshots(ctx, accountID, &model.ScreenshotRequest{
		Video: "/api/uploads/videos/v.mp4", Frames: []int{150}, ID: "proj-1",
	}); err != nil {
		t.Fatalf("submit single: %v", err)
	}
	if _, err := svc.SubmitScreenshots(ctx, accountID, &model.ScreenshotRequest{
		Video: "/api/uploads/videos/v.mp4", Frames: []int{0, 150}, ID: "proj-1",
	}); err != nil {
		t.Fatalf("submit batch: %v", err)
	}

	want := []string{model.JobTypeScreenshot, model.JobTypeScreenshots}
	for i, kind := range want {
		if dispatcher.submitted[i] != kind {
			t.Errorf("submission %d kind = %s, want %s", i, dispatcher.submitted[i], kind)
		}
	}
}

func TestSubmitFailureCancelsJob(t *testing.T) {
	dispatcher := &fakeDispatcher{submitErr: errors.New("redis down")}
	svc, db, accountID := testJobService(t, dispatcher)
	ctx := context.Background()

	_, err := svc.SubmitVideoInfo(ctx, accountID, &model.VideoInfoRequest{
		Video: "/api/uploads/videos/v.mp4",
		ID:    "proj-1",
	})
	if err == nil {
		t.Fatal("submit succeeded despite dispatch failure")
	}

	jobs, _ := db.ListJobs(ctx, accountID, "proj-1")
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs", len(jobs))
	}
	if jobs[0].Status != model.JobStatusCanceled {
		t.Errorf("undispatched job status = %s, want CANCELED", jobs[0].Status)
	}
}

func TestTerminateOutcomes(t *testing.T) {
	dispatcher := &fakeDispatcher{state: dispatch.StatePending}
	svc, db, accountID := testJobService(t, dispatcher)
	ctx := context.Background()

	outcome, err := svc.Terminate(ctx, accountID, 9999)
	if err != nil {
		t.Fatalf("terminate unknown: %v", err)
	}
	if outcome != model.TerminateOutcomeNotFound {
		t.Errorf("unknown job outcome = %q", outcome)
	}

	job, _ := svc.SubmitVideoInfo(ctx, accountID, &model.VideoInfoRequest{
		Video: "/api/uploads/videos/v.mp4", ID: "proj-1",
	})

	outcome, err = svc.Terminate(ctx, accountID, job.ID)
	if err != nil {
		t.Fatalf("terminate queued: %v", err)
	}
	if outcome != model.TerminateOutcomeTerminated {
		t.Errorf("queued job outcome = %q", outcome)
	}
	if len(dispatcher.canceled) != 1 {
		t.Errorf("dispatcher cancellations = %v", dispatcher.canceled)
	}
	persisted, _ := db.GetJob(ctx, accountID, job.ID)
	if persisted.Status != model.JobStatusCanceled {
		t.Errorf("status = %s, want CANCELED", persisted.Status)
	}

	// A second terminate of the same job is already past.
	outcome, err = svc.Terminate(ctx, accountID, job.ID)
	if err != nil {
		t.Fatalf("re-terminate: %v", err)
	}
	if outcome != model.TerminateOutcomeNotRunning {
		t.Errorf("terminal job outcome = %q", outcome)
	}
}

func TestTerminateDoneJobNotRunning(t *testing.T) {
	dispatcher := &fakeDispatcher{state: dispatch.StateDone}
	svc, db, accountID := testJobService(t, dispatcher)
	ctx := context.Background()

	job, _ := svc.SubmitVideoInfo(ctx, accountID, &model.VideoInfoRequest{
		Video: "/api/uploads/videos/v.mp4", ID: "proj-1",
	})
	db.Transition(ctx, job.ID, model.JobStatusRunning)
	db.Transition(ctx, job.ID, model.JobStatusDone)

	outcome, err := svc.Terminate(ctx, accountID, job.ID)
	if err != nil {
		t.Fatalf("terminate done job: %v", err)
	}
	if outcome != model.TerminateOutcomeNotRunning {
		t.Errorf("outcome = %q, want %q", outcome, model.TerminateOutcomeNotRunning)
	}
	if len(dispatcher.canceled) != 0 {
		t.Errorf("dispatcher canceled a finished job: %v", dispatcher.canceled)
	}
}

func TestTerminateForeignJobNotFound(t *testing.T) {
	dispatcher := &fakeDispatcher{state: dispatch.StatePending}
	svc, db, accountID := testJobService(t, dispatcher)
	ctx := context.Background()

	other, err := db.CreateAccount(ctx, "other@example.com", "hash")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	job, _ := svc.SubmitVideoInfo(ctx, accountID, &model.VideoInfoRequest{
		Video: "/api/uploads/videos/v.mp4", ID: "proj-1",
	})

	outcome, err := svc.Terminate(ctx, other.ID, job.ID)
	if err != nil {
		t.Fatalf("terminate foreign job: %v", err)
	}
	if outcome != model.TerminateOutcomeNotFound {
		t.Errorf("foreign job outcome = %q", outcome)
	}
	persisted, _ := db.GetJob(ctx, accountID, job.ID)
	if persisted.Status != model.JobStatusQueued {
		t.Errorf("foreign terminate changed status to %s", persisted.Status)
	}
}
