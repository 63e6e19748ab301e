package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sourcegraph/conc/panics"
)

func TestTask(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"normal", func() error { return nil }, nil},
		{"error", func() error { return ErrEngineCrashed }, ErrEngineCrashed},
		{"panic", func() error { panic("boom") }, ErrTaskPanicked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := newTask()
			if task.Err() != nil {
				t.Fatal("Err must be nil before the task has run")
			}
			task.run(tt.fn)
			select {
			case <-task.Done():
			case <-time.After(time.Second):
				t.Fatal("task did not finish")
			}
			if tt.want == nil && task.Err() != nil {
				t.Errorf("unexpected error %v", task.Err())
			}
			if tt.want != nil && !errors.Is(task.Err(), tt.want) {
				t.Errorf("expected %v, got %v", tt.want, task.Err())
			}
		})
	}
}

func TestTaskPanicKeepsValueAndStack(t *testing.T) {
	task := newTask()
	task.run(func() error { panic("boom") })
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}

	var recovered *panics.ErrRecovered
	if !errors.As(task.Err(), &recovered) {
		t.Fatalf("exit reason %v does not carry the recovered panic", task.Err())
	}
	if recovered.Value != "boom" || len(recovered.Stack) == 0 {
		t.Errorf("recovered %v without stack", recovered.Value)
	}
	if !strings.Contains(task.Err().Error(), "boom") {
		t.Errorf("message %q lost the panic value", task.Err())
	}
}
