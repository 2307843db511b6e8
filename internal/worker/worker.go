// Package worker runs the job kinds on the asynq worker pool. Every handler
// funnels through the same bracket: transition the job to RUNNING, do the
// work, check for a cancellation that arrived mid-flight, then commit
// exactly one terminal status. A job is never left RUNNING after its handler
// exits, whatever the failure mode.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/clipnote/api/internal/archive"
	"github.com/clipnote/api/internal/engine"
	"github.com/clipnote/api/internal/model"
	"github.com/clipnote/api/internal/storage"
)

// Broadcaster pushes status transitions to live subscribers. Nil-safe usage
// is the caller's concern; New accepts nil and skips broadcasting.
type Broadcaster interface {
	BroadcastStatus(jobID int64, status model.JobStatus)
	BroadcastResult(jobID int64, result json.RawMessage)
}

// Worker wires the job ledger, the video engine, and the archive packer and
// unpacker into per-kind asynq handlers.
type Worker struct {
	db       *storage.DB
	engine   engine.Engine
	packer   *archive.Packer
	unpacker *archive.Unpacker
	hub      Broadcaster
	logger   *slog.Logger
}

func New(db *storage.DB, eng engine.Engine, packer *archive.Packer, unpacker *archive.Unpacker, hub Broadcaster, logger *slog.Logger) *Worker {
	return &Worker{
		db:       db,
		engine:   eng,
		packer:   packer,
		unpacker: unpacker,
		hub:      hub,
		logger:   logger,
	}
}

// Register installs one handler per job kind on the mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(model.JobTypeVideoInfo, w.ProcessVideoInfo)
	mux.HandleFunc(model.JobTypeShotDetection, w.ProcessShotDetection)
	mux.HandleFunc(model.JobTypeScreenshot, w.ProcessScreenshot)
	mux.HandleFunc(model.JobTypeScreenshots, w.ProcessScreenshots)
	mux.HandleFunc(model.JobTypeExportScreenshots, w.ProcessExportScreenshots)
	mux.HandleFunc(model.JobTypeExportProject, w.ProcessExportProject)
	mux.HandleFunc(model.JobTypeImportProject, w.ProcessImportProject)
}

// run executes one unit of work inside the status bracket. The work function
// receives the task context so an in-flight cancellation reaches the engine
// process; ledger writes use a detached context so terminal statuses still
// commit after the task context is canceled.
func (w *Worker) run(ctx context.Context, jobID int64, work func(context.Context) (any, error)) (err error) {
	db := context.WithoutCancel(ctx)

	if terr := w.db.Transition(db, jobID, model.JobStatusRunning); terr != nil {
		if errors.Is(terr, storage.ErrTerminalStatus) {
			// Canceled before pickup; the cancel endpoint already moved the
			// job to CANCELED. Nothing to do.
			return nil
		}
		return fmt.Errorf("job %d: %w", jobID, terr)
	}
	w.broadcastStatus(jobID, model.JobStatusRunning)

	defer func() {
		if r := recover(); r != nil {
			w.markError(db, jobID)
			err = fmt.Errorf("job %d panicked: %v", jobID, r)
		}
	}()

	payload, workErr := work(ctx)
	if workErr != nil {
		if ctx.Err() != nil {
			// The engine call aborted because the task was canceled.
			w.markCanceled(db, jobID)
			return nil
		}
		w.markError(db, jobID)
		return fmt.Errorf("job %d: %w", jobID, workErr)
	}

	// Canceling the underlying call is not immediate; a cancellation that
	// arrived while it ran must discard the result instead of recording it.
	if ctx.Err() != nil {
		w.markCanceled(db, jobID)
		return nil
	}

	raw, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		w.markError(db, jobID)
		return fmt.Errorf("job %d: marshal result: %w", jobID, marshalErr)
	}

	if terr := w.db.Transition(db, jobID, model.JobStatusDone); terr != nil {
		if errors.Is(terr, storage.ErrTerminalStatus) {
			// The cancel endpoint won the race; the result is discarded.
			return nil
		}
		w.markError(db, jobID)
		return fmt.Errorf("job %d: %w", jobID, terr)
	}
	if rerr := w.db.RecordResult(db, jobID, raw); rerr != nil {
		return fmt.Errorf("job %d: record result: %w", jobID, rerr)
	}

	w.broadcastStatus(jobID, model.JobStatusDone)
	w.broadcastResult(jobID, raw)
	return nil
}

func (w *Worker) markError(ctx context.Context, jobID int64) {
	if err := w.db.Transition(ctx, jobID, model.JobStatusError); err != nil {
		if errors.Is(err, storage.ErrTerminalStatus) {
			return
		}
		w.logger.Error("failed to mark job as ERROR", "job", jobID, "error", err)
		return
	}
	w.broadcastStatus(jobID, model.JobStatusError)
}

func (w *Worker) markCanceled(ctx context.Context, jobID int64) {
	if err := w.db.Transition(ctx, jobID, model.JobStatusCanceled); err != nil {
		// Usually an idempotent no-op: the cancel endpoint already set it.
		if errors.Is(err, storage.ErrTerminalStatus) {
			return
		}
		w.logger.Error("failed to mark job as CANCELED", "job", jobID, "error", err)
		return
	}
	w.broadcastStatus(jobID, model.JobStatusCanceled)
}

func (w *Worker) broadcastStatus(jobID int64, status model.JobStatus) {
	if w.hub != nil {
		w.hub.BroadcastStatus(jobID, status)
	}
}

func (w *Worker) broadcastResult(jobID int64, result json.RawMessage) {
	if w.hub != nil {
		w.hub.BroadcastResult(jobID, result)
	}
}

func decodePayload[T any](t *asynq.Task) (T, error) {
	var payload T
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("unmarshal %s payload: %w", t.Type(), err)
	}
	return payload, nil
}
