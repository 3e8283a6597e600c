package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

type notificationRepository struct {
	coll *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) repository.NotificationRepository {
	return &notificationRepository{coll: db.Collection(NotificationsCollection)}
}

func (r *notificationRepository) InsertMany(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	docs := make([]interface{}, len(notifications))
	for i := range notifications {
		if notifications[i].ID.IsZero() {
			notifications[i].ID = primitive.NewObjectID()
		}
		docs[i] = notifications[i]
	}
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return translate(err, "insert notifications")
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, limit int64) ([]models.Notification, error) {
	filter := bson.M{"targetUser": userID}
	if unreadOnly {
		filter["isRead"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	defer cur.Close(ctx)

	var out []models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode notifications")
	}
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id primitive.ObjectID, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "targetUser": userID},
		bson.M{"$set": bson.M{"isRead": true, "readAt": at}},
	)
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID primitive.ObjectID, at time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"targetUser": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "readAt": at}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "mark notifications read")
	}
	return res.ModifiedCount, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"targetUser": userID, "isRead": false})
	if err != nil {
		return 0, errors.Wrap(err, "count unread notifications")
	}
	return n, nil
}
