package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/clipnote/api/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestAccount(t *testing.T, db *DB, email string) int64 {
	t.Helper()
	account, err := db.CreateAccount(context.Background(), email, "hash")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account.ID
}

func TestCreateJobStartsQueued(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	job, err := db.CreateJob(ctx, accountID, "proj-1", model.JobTypeVideoInfo)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if job.Status != model.JobStatusQueued {
		t.Errorf("status = %s, want QUEUED", job.Status)
	}

	got, err := db.GetJob(ctx, accountID, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != model.JobStatusQueued {
		t.Errorf("persisted status = %s, want QUEUED", got.Status)
	}
	if got.Type != model.JobTypeVideoInfo {
		t.Errorf("type = %s, want %s", got.Type, model.JobTypeVideoInfo)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	job, _ := db.CreateJob(ctx, accountID, "proj-1", model.JobTypeVideoInfo)

	if err := db.Transition(ctx, job.ID, model.JobStatusRunning); err != nil {
		t.Fatalf("QUEUED -> RUNNING: %v", err)
	}
	if err := db.Transition(ctx, job.ID, model.JobStatusDone); err != nil {
		t.Fatalf("RUNNING -> DONE: %v", err)
	}

	got, _ := db.GetJob(ctx, accountID, job.ID)
	if got.Status != model.JobStatusDone {
		t.Errorf("status = %s, want DONE", got.Status)
	}
}

func TestTransitionSkippingRunningRejected(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	job, _ := db.CreateJob(ctx, accountID, "proj-1", model.JobTypeVideoInfo)

	err := db.Transition(ctx, job.ID, model.JobStatusDone)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("QUEUED -> DONE: got %v, want ErrInvalidTransition", err)
	}
}

func TestTerminalStatusIsFinal(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	job, _ := db.CreateJob(ctx, accountID, "proj-1", model.JobTypeVideoInfo)
	db.Transition(ctx, job.ID, model.JobStatusRunning)
	db.Transition(ctx, job.ID, model.JobStatusDone)

	for _, target := range []model.JobStatus{
		model.JobStatusRunning,
		model.JobStatusError,
		model.JobStatusCanceled,
	} {
		err := db.Transition(ctx, job.ID, target)
		if !errors.Is(err, ErrTerminalStatus) {
			t.Errorf("DONE -> %s: got %v, want ErrTerminalStatus", target, err)
		}
	}

	got, _ := db.GetJob(ctx, accountID, job.ID)
	if got.Status != model.JobStatusDone {
		t.Errorf("status changed to %s after terminal", got.Status)
	}
}

func TestSameTerminalStatusIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	job, _ := db.CreateJob(ctx, accountID, "proj-1", model.JobTypeVideoInfo)
	db.Transition(ctx, job.ID, model.JobStatusRunning)
	if err := db.Transition(ctx, job.ID, model.JobStatusCanceled); err != nil {
		t.Fatalf("RUNNING -> CANCELED: %v", err)
	}

	// A second cancel of the same job must be a silent no-op.
	if err := db.Transition(ctx, job.ID, model.JobStatusCanceled); err != nil {
		t.Errorf("CANCELED -> CANCELED: got %v, want nil", err)
	}
}

func TestCancelWhileQueued(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	job, _ := db.CreateJob(ctx, accountID, "proj-1", model.JobTypeVideoInfo)
	if err := db.Transition(ctx, job.ID, model.JobStatusCanceled); err != nil {
		t.Fatalf("QUEUED -> CANCELED: %v", err)
	}

	// The worker picking the job up afterwards must be refused.
	err := db.Transition(ctx, job.ID, model.JobStatusRunning)
	if !errors.Is(err, ErrTerminalStatus) {
		t.Errorf("CANCELED -> RUNNING: got %v, want ErrTerminalStatus", err)
	}
}

func TestTransitionUnknownJob(t *testing.T) {
	db := openTestDB(t)

	err := db.Transition(context.Background(), 9999, model.JobStatusRunning)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestAttachWorkerWriteOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	job, _ := db.CreateJob(ctx, accountID, "proj-1", model.JobTypeVideoInfo)
	if err := db.AttachWorker(ctx, job.ID, "task-1"); err != nil {
		t.Fatalf("attach worker: %v", err)
	}
	if err := db.AttachWorker(ctx, job.ID, "task-2"); err != nil {
		t.Fatalf("second attach: %v", err)
	}

	got, _ := db.GetJob(ctx, accountID, job.ID)
	if got.WorkerHandle != "task-1" {
		t.Errorf("worker handle = %q, want task-1", got.WorkerHandle)
	}
}

func TestRecordResultRequiresDone(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	job, _ := db.CreateJob(ctx, accountID, "proj-1", model.JobTypeVideoInfo)
	db.Transition(ctx, job.ID, model.JobStatusRunning)

	err := db.RecordResult(ctx, job.ID, []byte(`{"fps":25}`))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("result on RUNNING job: got %v, want ErrInvalidTransition", err)
	}

	db.Transition(ctx, job.ID, model.JobStatusDone)
	if err := db.RecordResult(ctx, job.ID, []byte(`{"fps":25}`)); err != nil {
		t.Fatalf("record result: %v", err)
	}

	result, err := db.GetResult(ctx, accountID, job.ID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if string(result.Payload) != `{"fps":25}` {
		t.Errorf("payload = %s", result.Payload)
	}
}

func TestRecordResultOnlyOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	job, _ := db.CreateJob(ctx, accountID, "proj-1", model.JobTypeVideoInfo)
	db.Transition(ctx, job.ID, model.JobStatusRunning)
	db.Transition(ctx, job.ID, model.JobStatusDone)
	db.RecordResult(ctx, job.ID, []byte(`{"fps":25}`))

	err := db.RecordResult(ctx, job.ID, []byte(`{"fps":30}`))
	if !errors.Is(err, ErrResultExists) {
		t.Errorf("second result: got %v, want ErrResultExists", err)
	}
}

func TestJobOwnershipScoping(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	owner := createTestAccount(t, db, "owner@example.com")
	other := createTestAccount(t, db, "other@example.com")

	job, _ := db.CreateJob(ctx, owner, "proj-1", model.JobTypeVideoInfo)
	db.Transition(ctx, job.ID, model.JobStatusRunning)
	db.Transition(ctx, job.ID, model.JobStatusDone)
	db.RecordResult(ctx, job.ID, []byte(`{"fps":25}`))

	if _, err := db.GetJob(ctx, other, job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign GetJob: got %v, want ErrNotFound", err)
	}
	if _, err := db.GetResult(ctx, other, job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign GetResult: got %v, want ErrNotFound", err)
	}

	jobs, err := db.ListJobs(ctx, other, "")
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("foreign ListJobs returned %d jobs", len(jobs))
	}
}

func TestListJobsProjectFilter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	db.CreateJob(ctx, accountID, "proj-1", model.JobTypeVideoInfo)
	db.CreateJob(ctx, accountID, "proj-1", model.JobTypeScreenshots)
	db.CreateJob(ctx, accountID, "proj-2", model.JobTypeVideoInfo)

	jobs, err := db.ListJobs(ctx, accountID, "proj-1")
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	for _, job := range jobs {
		if job.ProjectID != "proj-1" {
			t.Errorf("job %d has project %s", job.ID, job.ProjectID)
		}
	}

	all, _ := db.ListJobs(ctx, accountID, "")
	if len(all) != 3 {
		t.Errorf("unfiltered list: got %d jobs, want 3", len(all))
	}
}
