// Package shutdownqueue is a process-wide LIFO queue of cleanup tasks.
//
// Components register teardown work with Add as they start (HTTP server
// stop, hook dispatcher drain, DB close), and main drains everything once
// with Shutdown under a deadline context. Tasks run exactly once, in
// reverse registration order, with panic recovery; errors are aggregated
// via errors.Join.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Task is one shutdown step. It should honor ctx and return an error when
// it cannot finish in time.
type Task func(ctx context.Context) error

var global = &queue{}

type queue struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
}

// Add registers a task to run on Shutdown, LIFO. Safe from any goroutine.
// Nil tasks and tasks added after shutdown started are ignored.
func Add(t Task) {
	if t == nil {
		return
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.closed {
		return
	}

	global.tasks = append(global.tasks, t)
}

// Shutdown drains all registered tasks in LIFO order. Idempotent: after the
// first run, later calls are no-ops. If ctx expires mid-drain, the remaining
// tasks are skipped and the context error is included in the result.
func Shutdown(ctx context.Context) error {
	global.mu.Lock()

	if global.closed && len(global.tasks) == 0 {
		global.mu.Unlock()

		return nil
	}

	global.closed = true
	tasks := global.tasks
	global.tasks = nil

	global.mu.Unlock()

	var errs []error

	for i := len(tasks) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("shutdown canceled: %w", ctx.Err()))

			return errors.Join(errs...)
		default:
		}

		err := runTask(ctx, tasks[i])
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("panic in shutdown task: %v", r)
		}
	}()

	return t(ctx)
}
