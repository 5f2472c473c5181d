package async

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunParallel_Success(t *testing.T) {
	var count atomic.Int32

	tasks := make([]Task, 3)
	for i := range tasks {
		tasks[i] = Task{Name: "job", Func: func(_ context.Context) error {
			count.Add(1)
			return nil
		}}
	}

	if err := RunParallel(context.Background(), tasks, false); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if count.Load() != 3 {
		t.Errorf("expected 3 tasks to run, got %d", count.Load())
	}
}

func TestRunParallel_EmptyTasks(t *testing.T) {
	if err := RunParallel(context.Background(), nil, false); err != nil {
		t.Errorf("expected no error for empty tasks, got: %v", err)
	}
}

func TestRunParallel_CollectsAllErrors(t *testing.T) {
	errA := errors.New("not found")
	errB := errors.New("forbidden")

	err := RunParallel(context.Background(), []Task{
		{Name: "job-a", Func: func(context.Context) error { return errA }},
		{Name: "job-b", Func: func(context.Context) error { return errB }},
		{Name: "job-c", Func: func(context.Context) error { return nil }},
	}, false)

	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both errors, got: %v", err)
	}
	if !strings.Contains(err.Error(), "job-a") {
		t.Errorf("expected task name in error, got: %v", err)
	}
}

func TestRunParallel_FailFastCancels(t *testing.T) {
	var cancelled atomic.Bool

	err := RunParallel(context.Background(), []Task{
		{Name: "fails", Func: func(context.Context) error { return errors.New("boom") }},
		{Name: "waits", Func: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				cancelled.Store(true)
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		}},
	}, true)

	if err == nil {
		t.Fatal("expected error")
	}
	if !cancelled.Load() {
		t.Error("expected sibling task to observe cancellation")
	}
}
