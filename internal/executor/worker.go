package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/dag"
	"github.com/specialistvlad/buildgrid/internal/events"
	"github.com/specialistvlad/buildgrid/internal/task"
)

// worker is the core processing loop for a single concurrent worker.
func (e *Engine) worker(ctx context.Context, workerID int, work <-chan *dag.Node, done chan<- outcome) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range work {
		taskCtx, taskLogger := ctxlog.With(ctx, "workerID", workerID, "task", n.ID())
		taskLogger.Debug("Worker picked up task for execution.")

		started := time.Now()
		e.listener.TaskStarted(taskCtx, events.TaskEvent{
			RunID:  e.runID,
			Task:   n.ID(),
			Index:  n.Index,
			Worker: workerID,
			State:  task.Executing.String(),
			Time:   started,
		})

		taskLogger.Info("▶️ Starting task")
		err := execute(taskCtx, n.Task)
		took := time.Since(started)
		n.Task.Finish(err, took)
		if err == nil {
			taskLogger.Info("✅ Finished task", "duration", took)
		}

		done <- outcome{node: n, worker: workerID, started: started, took: took, err: err}
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// execute runs the task's actions, turning a panic into a task failure.
func execute(ctx context.Context, t *task.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task '%s' panicked: %v", t.Path(), r)
		}
	}()
	return t.Execute(ctx)
}
