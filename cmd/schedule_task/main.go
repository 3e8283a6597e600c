package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	_ "time/tzdata"

	"ease_academy_api/internal/config"
	"ease_academy_api/internal/fees"
	"ease_academy_api/internal/logger"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/services"
	"ease_academy_api/internal/tasks"
)

func main() {
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (mandatory, format: 2006-01-02 15:04 in TIMEZONE, or RFC3339)")
	taskType := flag.String("tasktype", "onetime", "Task type: onetime or recurring")
	recurring := flag.String("recurring", "", "RRULE for recurring tasks (fee_reminder defaults to daily at 09:00)")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts")
	flag.Parse()

	if *taskName == "" || *dueStr == "" {
		fmt.Println("Usage: schedule_task -task_name <name> -due <YYYY-MM-DD HH:MM> [-arguments <json>] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.Must(cfg.Debug)
	defer func() { _ = log.Sync() }()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	due, err := parseDue(*dueStr, cfg.Location())
	if err != nil {
		log.Fatal("invalid due date", zap.String("due", *dueStr), zap.Error(err))
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.Fatal("invalid JSON arguments", zap.Error(err))
	}

	task, err := buildTask(*taskName, args, due, *taskType, *recurring, *maxAttempt)
	if err != nil {
		log.Fatal("failed to build task", zap.Error(err))
	}

	db, err := services.InitDB(cfg.DatabaseURL, cfg.Debug, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := services.AutoMigrate(db, log); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	if err := tasks.NewGormStore(db).Enqueue(context.Background(), task); err != nil {
		log.Fatal("failed to create task", zap.Error(err))
	}

	log.Info("task scheduled",
		zap.Uint("id", task.ID),
		zap.String("task", task.TaskName),
		zap.Time("due", task.Due),
		zap.String("type", string(task.TaskType)),
	)
}

func parseDue(raw string, loc *time.Location) (time.Time, error) {
	if due, err := time.Parse(time.RFC3339, raw); err == nil {
		return due, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", raw, loc)
}

func buildTask(name string, args map[string]interface{}, due time.Time, taskType, rule string, maxAttempt int) (*models.ScheduledTask, error) {
	if name == fees.ReminderTaskName {
		var reminder fees.ReminderArgs
		if branch, ok := args["branch_id"].(string); ok {
			reminder.BranchID = branch
		}
		return fees.NewReminderTask(reminder, due, rule)
	}

	var interval *string
	if rule != "" {
		interval = &rule
	}
	typ := models.ScheduledTaskType(taskType)
	if typ == models.ScheduledTaskTypeRecurring && interval == nil {
		return nil, fmt.Errorf("recurring task %q needs -recurring", name)
	}
	return tasks.BuildScheduledTask(name, args, due, interval, typ, maxAttempt)
}
