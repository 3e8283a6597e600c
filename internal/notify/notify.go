// Package notify fans notifications out to users and hands delivery to the
// task outbox. Notify never fails the caller's operation.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
	"ease_academy_api/internal/tasks"
)

// Message is one notification addressed to explicit users, to every active
// user of a role (optionally inside one branch), or both.
type Message struct {
	Type     models.NotificationType
	Title    string
	Body     string
	UserIDs  []primitive.ObjectID
	Role     models.Role
	BranchID *primitive.ObjectID
	Metadata map[string]interface{}
	// Emails are always emailed, whatever the recipients' channel preferences
	Emails  []string
	Subject string
}

// Enqueuer accepts outbox tasks
type Enqueuer interface {
	Enqueue(ctx context.Context, task *models.ScheduledTask) error
}

type Service struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	outbox        Enqueuer
	log           *zap.Logger
	now           func() time.Time
}

func NewService(notifications repository.NotificationRepository, users repository.UserRepository, outbox Enqueuer, log *zap.Logger) *Service {
	return &Service{
		notifications: notifications,
		users:         users,
		outbox:        outbox,
		log:           log,
		now:           time.Now,
	}
}

// Notify stores one notification per recipient and enqueues delivery
func (s *Service) Notify(ctx context.Context, msg Message) {
	log := s.log.With(zap.String("type", string(msg.Type)), zap.String("title", msg.Title))

	recipients, err := s.recipients(ctx, msg)
	if err != nil {
		log.Error("resolve notification recipients", zap.Error(err))
		return
	}
	if len(recipients) == 0 && len(msg.Emails) == 0 {
		log.Debug("notification has no recipients")
		return
	}

	now := s.now()
	docs := make([]models.Notification, 0, len(recipients))
	userIDs := make([]string, 0, len(recipients))
	for _, id := range recipients {
		docs = append(docs, models.Notification{
			Type:       msg.Type,
			Title:      msg.Title,
			Message:    msg.Body,
			TargetUser: id,
			BranchID:   msg.BranchID,
			Metadata:   msg.Metadata,
			CreatedAt:  now,
		})
		userIDs = append(userIDs, id.Hex())
	}

	if err := s.notifications.InsertMany(ctx, docs); err != nil {
		log.Error("insert notifications", zap.Int("recipients", len(docs)), zap.Error(err))
	}

	task, err := tasks.NewSendNotificationTask(tasks.SendNotificationArgs{
		UserIDs: userIDs,
		Title:   msg.Title,
		Message: msg.Body,
		Subject: msg.Subject,
		Emails:  msg.Emails,
		Data:    stringMetadata(msg.Metadata),
	}, now)
	if err == nil {
		err = s.outbox.Enqueue(ctx, task)
	}
	if err != nil {
		log.Error("enqueue notification delivery", zap.Error(err))
	}
}

func (s *Service) recipients(ctx context.Context, msg Message) ([]primitive.ObjectID, error) {
	seen := map[primitive.ObjectID]bool{}
	var out []primitive.ObjectID
	add := func(id primitive.ObjectID) {
		if id.IsZero() || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, id := range msg.UserIDs {
		add(id)
	}
	if msg.Role != "" {
		users, err := s.users.FindByRole(ctx, msg.Role, msg.BranchID)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			add(u.ID)
		}
	}
	return out, nil
}

func stringMetadata(meta map[string]interface{}) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = val
		case primitive.ObjectID:
			out[k] = val.Hex()
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// List returns the user's notifications, newest first, with the unread count
func (s *Service) List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, limit int64) ([]models.Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := s.notifications.ListForUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, apperrors.Internal(err, "failed to load notifications")
	}
	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, apperrors.Internal(err, "failed to count notifications")
	}
	return items, unread, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id primitive.ObjectID) error {
	err := s.notifications.MarkRead(ctx, userID, id, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("notification not found")
	}
	if err != nil {
		return apperrors.Internal(err, "failed to update notification")
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, apperrors.Internal(err, "failed to update notifications")
	}
	return n, nil
}
