package tasks

import (
	"context"

	"go.uber.org/zap"

	"ease_academy_api/internal/models"
)

const LogInfoTaskName = "log_info"

// LogInfoTaskDef writes its message argument to the worker log. Handy to
// check that a worker is draining the queue.
type LogInfoTaskDef struct {
	Log *zap.Logger
}

func (t *LogInfoTaskDef) TaskID() string {
	return LogInfoTaskName
}

func (t *LogInfoTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	message, ok := task.Arguments["message"].(string)
	if !ok {
		message = "No message provided"
	}
	t.Log.Info("log_info task", zap.String("message", message))

	return map[string]interface{}{
		"status":      "success",
		"message":     message,
		"max_attempt": task.MaxAttempt,
	}, nil
}
