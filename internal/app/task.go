package app

import (
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/panics"
)

var ErrTaskPanicked = errors.New("task panicked")

// Task is a goroutine with exit notification. A panic becomes an abnormal exit.
type Task struct {
	done chan struct{}
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

func (t *Task) run(fn func() error) {
	go func() {
		defer close(t.done)
		var err error
		if r := panics.Try(func() { err = fn() }); r != nil {
			err = fmt.Errorf("%w: %w", ErrTaskPanicked, r.AsError())
		}
		t.err = err
	}()
}

// Done is closed when the task has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err is valid after Done is closed; nil means a normal exit.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}
