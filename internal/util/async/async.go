package async

import (
	"context"
	"errors"
	"fmt"
)

// Task is a named operation, typically one remote call per resource.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel runs the tasks concurrently and waits for all of them.
// With failFast the shared context is cancelled on the first error.
// Every failure is returned, joined, in completion order.
func RunParallel(ctx context.Context, tasks []Task, failFast bool) error {
	if len(tasks) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(tasks))

	for _, task := range tasks {
		go func() {
			results <- result{name: task.Name, err: task.Func(ctx)}
		}()
	}

	var errs []error
	for range len(tasks) {
		res := <-results
		if res.err == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		if failFast {
			cancel()
		}
	}
	return errors.Join(errs...)
}
