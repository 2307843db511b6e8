// Package dispatch submits described units of work to the asynq worker pool
// and exposes a pollable, cancelable handle per submission.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// QueueDefault is the single queue all job kinds run on.
const QueueDefault = "jobs"

// TaskState is the dispatcher-side view of a submitted unit of work.
type TaskState string

const (
	StatePending TaskState = "pending"
	StateRunning TaskState = "running"
	StateDone    TaskState = "done"
	StateRevoked TaskState = "revoked"
	StateUnknown TaskState = "unknown"
)

// Handle is the opaque reference returned by Submit.
type Handle struct {
	TaskID string
	Queue  string
}

// Dispatcher abstracts task submission so services and workers can be tested
// with a fake. The production implementation talks to asynq.
type Dispatcher interface {
	// Submit enqueues work of the given kind and returns immediately.
	Submit(kind string, args any) (Handle, error)
	// Poll reports the current state of a previously submitted task.
	Poll(handle Handle) TaskState
	// Cancel is best-effort: a pending task never starts, a running task
	// receives a termination signal but may still be finishing when Cancel
	// returns.
	Cancel(handle Handle) error
}

// AsynqDispatcher implements Dispatcher on an asynq client plus inspector.
type AsynqDispatcher struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewAsynqDispatcher(redisOpt asynq.RedisClientOpt) *AsynqDispatcher {
	return &AsynqDispatcher{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
	}
}

// Close releases the underlying Redis connections.
func (d *AsynqDispatcher) Close() error {
	ierr := d.inspector.Close()
	cerr := d.client.Close()
	return errors.Join(ierr, cerr)
}

// Submit enqueues one task. Retries are disabled: the job ledger owns
// failure handling, and a retried task would re-run against a job already
// marked ERROR.
func (d *AsynqDispatcher) Submit(kind string, args any) (Handle, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return Handle{}, fmt.Errorf("marshal task payload: %w", err)
	}

	taskID := uuid.New().String()
	task := asynq.NewTask(kind, payload)
	if _, err := d.client.Enqueue(task,
		asynq.Queue(QueueDefault),
		asynq.TaskID(taskID),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	); err != nil {
		return Handle{}, fmt.Errorf("enqueue %s: %w", kind, err)
	}

	return Handle{TaskID: taskID, Queue: QueueDefault}, nil
}

// Poll maps asynq task states onto the dispatcher vocabulary.
func (d *AsynqDispatcher) Poll(handle Handle) TaskState {
	info, err := d.inspector.GetTaskInfo(handle.Queue, handle.TaskID)
	if err != nil {
		return StateUnknown
	}
	return mapTaskState(info.State)
}

// Cancel prevents a pending task from starting, or signals a running one.
func (d *AsynqDispatcher) Cancel(handle Handle) error {
	info, err := d.inspector.GetTaskInfo(handle.Queue, handle.TaskID)
	if err != nil {
		return fmt.Errorf("inspect task: %w", err)
	}
	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry:
		if err := d.inspector.DeleteTask(handle.Queue, handle.TaskID); err != nil {
			return fmt.Errorf("delete pending task: %w", err)
		}
		return nil
	case asynq.TaskStateActive:
		// Asynchronous: cancels the handler context, completion of the
		// in-flight native call is not awaited.
		if err := d.inspector.CancelProcessing(handle.TaskID); err != nil {
			return fmt.Errorf("cancel running task: %w", err)
		}
		return nil
	default:
		return nil
	}
}

func mapTaskState(state asynq.TaskState) TaskState {
	switch state {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry:
		return StatePending
	case asynq.TaskStateActive:
		return StateRunning
	case asynq.TaskStateCompleted:
		return StateDone
	case asynq.TaskStateArchived:
		return StateRevoked
	default:
		return StateUnknown
	}
}
