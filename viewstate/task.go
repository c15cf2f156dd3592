package viewstate

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Task is the handle returned by every controller command. It completes once the
// command's effect (if any) has been applied and published, or once it failed.
type Task struct {
	id   string
	name string
	done chan struct{}
	once sync.Once
	err  error
}

func newTask(name string) *Task {
	return &Task{id: uuid.NewString(), name: name, done: make(chan struct{})}
}

// FailedTask returns an already completed task, for commands rejected before
// they reach a controller.
func FailedTask(name string, err error) *Task {
	t := newTask(name)
	t.finish(err)
	return t
}

// ID returns a unique identifier, handy for correlating log lines.
func (t *Task) ID() string { return t.id }

// Name returns the command name.
func (t *Task) Name() string { return t.name }

// Done is closed when the task completes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task error once done, nil before that.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task completes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
