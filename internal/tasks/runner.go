package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/services"
)

const (
	defaultBatchSize = 100
	taskLockTTL      = 10 * time.Minute
)

// Runner drains due tasks from the store. Several runners may share a store;
// a per task lock keeps them from executing the same row twice.
type Runner struct {
	store    TaskStore
	registry *Registry
	locks    services.Cache
	log      *zap.Logger
	now      func() time.Time
}

func NewRunner(store TaskStore, registry *Registry, locks services.Cache, log *zap.Logger) *Runner {
	return &Runner{
		store:    store,
		registry: registry,
		locks:    locks,
		log:      log,
		now:      time.Now,
	}
}

// ProcessDue runs every active task whose due time has passed and returns
// how many were picked up.
func (r *Runner) ProcessDue(ctx context.Context) int {
	pending, err := r.store.DueTasks(ctx, r.now(), defaultBatchSize)
	if err != nil {
		r.log.Error("fetch pending tasks", zap.Error(err))
		return 0
	}
	if len(pending) == 0 {
		r.log.Debug("no pending tasks")
		return 0
	}

	r.log.Info("found pending tasks", zap.Int("count", len(pending)))

	processed := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return processed
		}
		if r.Execute(ctx, task) {
			processed++
		}
	}
	return processed
}

func lockKey(task models.ScheduledTask) string {
	return fmt.Sprintf("task-lock:%d", task.ID)
}

// Execute runs one task with retries. It returns false when another worker
// holds the task lock or already ran this occurrence.
func (r *Runner) Execute(ctx context.Context, task models.ScheduledTask) bool {
	log := r.log.With(zap.String("task", task.TaskName), zap.Uint("task_id", task.ID))

	acquired, err := r.locks.SetNX(ctx, lockKey(task), r.now().Unix(), taskLockTTL)
	if err != nil {
		log.Warn("task lock unavailable, running without it", zap.Error(err))
	} else if !acquired {
		log.Debug("task locked by another worker")
		return false
	}
	defer func() {
		if err := r.locks.Delete(context.Background(), lockKey(task)); err != nil {
			log.Warn("release task lock", zap.Error(err))
		}
	}()

	// The batch may predate a run by another worker that has since released
	// the lock, so only the stored row decides whether the task is still due.
	current, err := r.store.Task(ctx, task.ID)
	if err != nil {
		log.Error("reload task", zap.Error(err))
		return false
	}
	if current.Status != models.ScheduledTaskStatusActive || !current.Due.Equal(task.Due) {
		log.Debug("task already handled by another worker", zap.String("status", string(current.Status)))
		return false
	}
	task = current

	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Error("task handler not found, marking as failure")
		now := r.now()
		r.recordHistory(ctx, log, &models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			AttemptNumber:   1,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "handler not found"},
		})
		r.updateTask(ctx, log, &task, map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		return true
	}

	var runErr error
	var startTime time.Time
	for attempt := 1; attempt <= task.Attempts(); attempt++ {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		startTime = r.now()
		result, err := r.safeRun(ctx, handler, task)
		runtime := r.now().Sub(startTime)

		status := "success"
		resultData := result
		if err != nil {
			status = "failure"
			resultData = map[string]interface{}{"error": err.Error()}
			log.Warn("task attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}

		r.recordHistory(ctx, log, &models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           startTime,
			RuntimeMs:       int(runtime.Milliseconds()),
			Status:          status,
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          resultData,
		})

		runErr = err
		if err == nil {
			break
		}
	}

	updates := map[string]interface{}{"last_run": &startTime}
	switch {
	case task.TaskType == models.ScheduledTaskTypeRecurring:
		// recurring tasks keep their schedule even when a run fails
		nextDue := task.NextDue(r.now())
		if nextDue.After(task.Due) {
			updates["status"] = models.ScheduledTaskStatusActive
			updates["due"] = nextDue
		} else if runErr != nil {
			updates["status"] = models.ScheduledTaskStatusFailure
		} else {
			updates["status"] = models.ScheduledTaskStatusDone
		}
	case runErr != nil:
		updates["status"] = models.ScheduledTaskStatusFailure
	default:
		updates["status"] = models.ScheduledTaskStatusDone
	}

	if runErr != nil {
		log.Error("task failed", zap.Error(runErr))
	} else {
		log.Info("task completed")
	}

	r.updateTask(ctx, log, &task, updates)
	return true
}

func (r *Runner) safeRun(ctx context.Context, handler TaskHandler, task models.ScheduledTask) (result map[string]interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return handler(ctx, task)
}

func (r *Runner) recordHistory(ctx context.Context, log *zap.Logger, h *models.ScheduledTaskHistory) {
	if err := r.store.RecordHistory(ctx, h); err != nil {
		log.Error("record task history", zap.Error(err))
	}
}

func (r *Runner) updateTask(ctx context.Context, log *zap.Logger, task *models.ScheduledTask, updates map[string]interface{}) {
	if err := r.store.UpdateTask(ctx, task, updates); err != nil {
		log.Error("update task", zap.Error(err))
	}
}
