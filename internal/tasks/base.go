package tasks

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"ease_academy_api/internal/models"
)

// BuildScheduledTask turns typed arguments into an active outbox row
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	mapArgs, err := toArgumentMap(args)
	if err != nil {
		return nil, errors.Wrapf(err, "task %s", taskName)
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

func toArgumentMap(args interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrap(err, "encode arguments")
	}

	mapArgs := map[string]interface{}{}
	if err := json.Unmarshal(raw, &mapArgs); err != nil {
		return nil, errors.Wrap(err, "arguments must encode to a JSON object")
	}
	return mapArgs, nil
}

// DecodeArguments converts the stored argument map back into a typed struct
func DecodeArguments(task models.ScheduledTask, dest interface{}) error {
	raw, err := json.Marshal(task.Arguments)
	if err != nil {
		return errors.Wrapf(err, "encode arguments of task %d", task.ID)
	}
	return errors.Wrapf(json.Unmarshal(raw, dest), "decode arguments of %s task %d", task.TaskName, task.ID)
}
