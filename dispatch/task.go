package dispatch

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSaturated is returned by Submit when the task queue is full.
	ErrSaturated = errors.New("dispatch: queue saturated")
	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("dispatch: dispatcher closed")
	// ErrCallbackFailure matches every *CallbackError via errors.Is.
	ErrCallbackFailure = errors.New("dispatch: callback failure")
)

// Stages a task can fail in.
const (
	StageCallback = "callback"
	StageFollowUp = "follow-up"
)

// Task is one unit of work: a callback and an optional follow-up that runs
// after it on the same worker.
type Task struct {
	// Module names the module the task belongs to. Used for logs and metrics.
	Module string
	// Op names the lifecycle operation, e.g. "start".
	Op string
	// Run is the primary callback. Required.
	Run func(ctx context.Context) error
	// FollowUp runs after Run returns without error. Optional.
	FollowUp func(ctx context.Context) error
	// Tracked tasks count toward Outstanding until they finish.
	Tracked bool
}

// CallbackError reports a failure inside a dispatched task. It never reaches
// the submitter; it is logged and handed to the failure handler.
type CallbackError struct {
	Module string
	Op     string
	// Worker is the run name, see WorkerName.
	Worker string
	// Stage is StageCallback or StageFollowUp.
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s %s of %s on %s: %v", e.Op, e.Stage, e.Module, e.Worker, e.Err)
}

// Unwrap returns the underlying error.
func (e *CallbackError) Unwrap() error {
	return e.Err
}

// Is reports ErrCallbackFailure as a match.
func (e *CallbackError) Is(target error) bool {
	return target == ErrCallbackFailure
}

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

type workerKey struct{}

// WorkerName returns the run name of the task that owns ctx, e.g.
// "module-worker-7" for the seventh task run, or "" outside of a dispatched
// task. A callback and its follow-up share the name.
func WorkerName(ctx context.Context) string {
	name, _ := ctx.Value(workerKey{}).(string)
	return name
}

func withWorker(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, workerKey{}, name)
}
