package memory

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

type notificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) InsertMany(ctx context.Context, notifications []models.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range notifications {
		if notifications[i].ID.IsZero() {
			notifications[i].ID = primitive.NewObjectID()
		}
		n := notifications[i]
		r.db.notifications[n.ID] = &n
	}
	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, limit int64) ([]models.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.Notification
	for _, n := range r.db.notifications {
		if n.TargetUser != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id primitive.ObjectID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notifications[id]
	if !ok || n.TargetUser != userID {
		return repository.ErrNotFound
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID primitive.ObjectID, at time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, notif := range r.db.notifications {
		if notif.TargetUser == userID && !notif.IsRead {
			notif.IsRead = true
			readAt := at
			notif.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var n int64
	for _, notif := range r.db.notifications {
		if notif.TargetUser == userID && !notif.IsRead {
			n++
		}
	}
	return n, nil
}
