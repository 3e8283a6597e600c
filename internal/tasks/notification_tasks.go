package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
	"ease_academy_api/internal/services"
)

const (
	SendNotificationTaskName = "send_notification"
	notificationMaxAttempt   = 3
	notificationRetryDelay   = 5 * time.Minute
)

// SendNotificationArgs defines the arguments for a notification task
type SendNotificationArgs struct {
	UserIDs      []string          `json:"user_ids"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	Subject      string            `json:"subject,omitempty"`
	Emails       []string          `json:"emails,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	AttemptCount int               `json:"attempt_count"`
}

// WhatsappSender is satisfied by services.WahaService
type WhatsappSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// SendNotificationTaskDef delivers notifications over each user's preferred channel
type SendNotificationTaskDef struct {
	Users       repository.UserRepository
	Preferences PreferenceStore
	Email       services.EmailSender
	Push        services.PushSender
	Whatsapp    WhatsappSender
	Store       TaskStore
	Log         *zap.Logger
}

func (t *SendNotificationTaskDef) TaskID() string {
	return SendNotificationTaskName
}

// CreateTask builds a ScheduledTask record for this task
func (t *SendNotificationTaskDef) CreateTask(args SendNotificationArgs, due time.Time) (*models.ScheduledTask, error) {
	return NewSendNotificationTask(args, due)
}

// NewSendNotificationTask builds the outbox row for a notification delivery
func NewSendNotificationTask(args SendNotificationArgs, due time.Time) (*models.ScheduledTask, error) {
	return BuildScheduledTask(SendNotificationTaskName, args, due, nil, models.ScheduledTaskTypeOneTime, notificationMaxAttempt)
}

type deliveryOutcome int

const (
	delivered deliveryOutcome = iota
	skipped
	failed
)

// HandleExecution sends to every recipient and reschedules the ones that failed
func (t *SendNotificationTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args SendNotificationArgs
	if err := DecodeArguments(task, &args); err != nil {
		return nil, err
	}
	if args.Message == "" {
		return nil, fmt.Errorf("message is missing")
	}

	ids := make([]primitive.ObjectID, 0, len(args.UserIDs))
	for _, raw := range args.UserIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			t.Log.Warn("skipping invalid recipient id", zap.String("user_id", raw))
			continue
		}
		ids = append(ids, id)
	}

	users, err := t.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}

	successCount, skippedCount := 0, 0
	var failures []string
	var failedUsers []string

	for i := range users {
		user := &users[i]
		outcome, err := t.deliver(ctx, user, args)
		switch outcome {
		case delivered:
			successCount++
		case skipped:
			skippedCount++
		case failed:
			failures = append(failures, fmt.Sprintf("%s: %v", user.ID.Hex(), err))
			failedUsers = append(failedUsers, user.ID.Hex())
		}
	}

	var failedEmails []string
	if len(args.Emails) > 0 {
		if err := t.Email.SendEmail(ctx, args.Emails, subjectOf(args), args.Message); err != nil {
			t.Log.Warn("failed to send notification email", zap.Strings("to", args.Emails), zap.Error(err))
			failures = append(failures, fmt.Sprintf("emails: %v", err))
			failedEmails = args.Emails
		} else {
			successCount += len(args.Emails)
		}
	}

	result := map[string]interface{}{
		"total":   len(users) + len(args.Emails),
		"success": successCount,
		"skipped": skippedCount,
		"failure": len(failures),
	}
	if len(failures) == 0 {
		return result, nil
	}
	result["errors"] = failures

	// Returning an error here would make the runner repeat the whole batch,
	// including recipients that already got the message.
	if args.AttemptCount+1 >= task.Attempts() {
		t.Log.Error("max attempts reached, giving up on recipients",
			zap.Int("failed", len(failures)),
			zap.Strings("user_ids", failedUsers),
		)
		result["exhausted"] = true
		return result, nil
	}

	retry := args
	retry.UserIDs = failedUsers
	retry.Emails = failedEmails
	retry.AttemptCount = args.AttemptCount + 1

	next, err := BuildScheduledTask(t.TaskID(), retry, time.Now().Add(notificationRetryDelay), nil, models.ScheduledTaskTypeOneTime, task.MaxAttempt)
	if err == nil {
		err = t.Store.Enqueue(ctx, next)
	}
	if err != nil {
		t.Log.Error("failed to create retry task", zap.Error(err))
		return result, fmt.Errorf("failed to reschedule %d recipients: %w", len(failures), err)
	}
	t.Log.Info("partial failure, rescheduled",
		zap.Int("failed", len(failures)),
		zap.Int("attempt", retry.AttemptCount),
	)
	result["rescheduled"] = true
	return result, nil
}

func (t *SendNotificationTaskDef) deliver(ctx context.Context, user *models.User, args SendNotificationArgs) (deliveryOutcome, error) {
	pref, err := t.Preferences.Get(ctx, user.ID.Hex())
	if err != nil {
		t.Log.Warn("failed to load preference", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return failed, fmt.Errorf("preference lookup: %w", err)
	}

	msg := replacePlaceholders(args.Message, user)
	log := t.Log.With(zap.String("user_id", user.ID.Hex()), zap.String("channel", string(pref.Channel)))

	var sendErr error
	switch pref.Channel {
	case models.NotificationChannelNone:
		log.Debug("notifications disabled")
		return skipped, nil
	case models.NotificationChannelEmail:
		if user.Email == "" {
			log.Debug("no email address")
			return skipped, nil
		}
		sendErr = t.Email.SendEmail(ctx, []string{user.Email}, subjectOf(args), msg)
	case models.NotificationChannelWhatsapp:
		chatID := user.Phone
		if pref.WhatsappTargetType == models.WhatsappTargetTypeGroup {
			chatID = pref.WhatsappGroupID
			if chatID != "" && !strings.HasSuffix(chatID, "@g.us") {
				chatID += "@g.us"
			}
		}
		if chatID == "" {
			log.Debug("no whatsapp target")
			return skipped, nil
		}
		sendErr = t.Whatsapp.SendMessage(ctx, chatID, msg)
	case models.NotificationChannelPush, "":
		if len(user.PushTokens) == 0 {
			log.Debug("no registered devices")
			return skipped, nil
		}
		sendErr = t.Push.SendPush(ctx, user.PushTokens, args.Title, msg, args.Data)
	default:
		log.Warn("unsupported notification channel")
		return skipped, nil
	}

	if sendErr != nil {
		log.Warn("failed to send notification", zap.Error(sendErr))
		return failed, sendErr
	}
	return delivered, nil
}

func subjectOf(args SendNotificationArgs) string {
	if args.Subject != "" {
		return args.Subject
	}
	if args.Title != "" {
		return args.Title
	}
	return "Notification"
}

func replacePlaceholders(template string, user *models.User) string {
	res := strings.ReplaceAll(template, "$name", user.FullName)
	res = strings.ReplaceAll(res, "$email", user.Email)
	if user.StudentProfile != nil {
		res = strings.ReplaceAll(res, "$registration_number", user.StudentProfile.RegistrationNumber)
	}
	return res
}
