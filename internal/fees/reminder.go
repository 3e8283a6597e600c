package fees

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
	"ease_academy_api/internal/tasks"
)

const (
	ReminderTaskName     = "fee_reminder"
	DefaultReminderRRule = "FREQ=DAILY;BYHOUR=9;BYMINUTE=0;BYSECOND=0"
)

// ReminderArgs optionally limits a reminder run to one branch
type ReminderArgs struct {
	BranchID string `json:"branch_id,omitempty"`
}

// ReminderTaskDef reminds families of vouchers that are past due and not
// fully paid.
type ReminderTaskDef struct {
	Fees *Service
	Log  *zap.Logger
}

func (t *ReminderTaskDef) TaskID() string {
	return ReminderTaskName
}

// CreateTask builds a recurring reminder row. An empty rule runs daily at 09:00.
func (t *ReminderTaskDef) CreateTask(args ReminderArgs, start time.Time, rule string) (*models.ScheduledTask, error) {
	return NewReminderTask(args, start, rule)
}

func NewReminderTask(args ReminderArgs, start time.Time, rule string) (*models.ScheduledTask, error) {
	if rule == "" {
		rule = DefaultReminderRRule
	}
	return tasks.BuildScheduledTask(ReminderTaskName, args, start, &rule, models.ScheduledTaskTypeRecurring, 1)
}

func (t *ReminderTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args ReminderArgs
	if err := tasks.DecodeArguments(task, &args); err != nil {
		return nil, err
	}

	filter := repository.VoucherFilter{
		Statuses: []models.VoucherStatus{models.VoucherStatusPending, models.VoucherStatusPartial},
	}
	now := t.Fees.now()
	filter.DueBefore = &now
	if args.BranchID != "" {
		branchID, err := primitive.ObjectIDFromHex(args.BranchID)
		if err != nil {
			return nil, fmt.Errorf("invalid branch_id %q: %w", args.BranchID, err)
		}
		filter.BranchID = &branchID
	}

	overdue, err := t.Fees.vouchers.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list overdue vouchers: %w", err)
	}

	for i := range overdue {
		v := &overdue[i]
		t.Fees.notifyFamily(ctx, v, models.NotificationTypeFeeReminder,
			"Fee reminder",
			fmt.Sprintf("Fee voucher %s was due on %s. Remaining amount: %d.", v.VoucherNumber, v.DueDate.In(t.Fees.loc).Format("02 Jan 2006"), v.RemainingAmount),
			false,
		)
	}

	t.Log.Info("fee reminders sent", zap.Int("vouchers", len(overdue)))
	return map[string]interface{}{
		"status":   "success",
		"reminded": len(overdue),
	}, nil
}

// RegisterTasks adds the fee tasks to a worker registry
func RegisterTasks(registry *tasks.Registry, svc *Service, log *zap.Logger) {
	reminder := &ReminderTaskDef{Fees: svc, Log: log}
	registry.Register(reminder.TaskID(), reminder.HandleExecution)
}
