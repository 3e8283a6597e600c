// Package mongo implements the repository ports on MongoDB.
package mongo

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ease_academy_api/internal/repository"
)

const (
	VouchersCollection      = "feevouchers"
	TemplatesCollection     = "feetemplates"
	UsersCollection         = "users"
	CountersCollection      = "counters"
	AttendancesCollection   = "attendances"
	TimetablesCollection    = "timetables"
	NotificationsCollection = "notifications"
)

// EnsureIndexes creates the indexes the repositories rely on for uniqueness
// and atomic upserts.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		VouchersCollection: {
			{Keys: bson.D{{Key: "voucherNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys: bson.D{
					{Key: "studentId", Value: 1},
					{Key: "templateId", Value: 1},
					{Key: "month", Value: 1},
					{Key: "year", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "branchId", Value: 1}, {Key: "status", Value: 1}, {Key: "dueDate", Value: 1}}},
			{Keys: bson.D{{Key: "paymentHistory.status", Value: 1}}},
		},
		AttendancesCollection: {
			{
				Keys: bson.D{
					{Key: "branchId", Value: 1},
					{Key: "classId", Value: 1},
					{Key: "date", Value: 1},
					{Key: "attendanceType", Value: 1},
					{Key: "subjectId", Value: 1},
					{Key: "eventId", Value: 1},
					{Key: "section", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}},
			{Keys: bson.D{{Key: "studentProfile.registrationNumber", Value: 1}}},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "branchId", Value: 1}}},
		},
		NotificationsCollection: {
			{Keys: bson.D{{Key: "targetUser", Value: 1}, {Key: "isRead", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		TimetablesCollection: {
			{Keys: bson.D{{Key: "teacherId", Value: 1}, {Key: "branchId", Value: 1}, {Key: "classId", Value: 1}}},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "create indexes on %s", coll)
		}
	}
	return nil
}

// translate maps driver errors onto repository errors
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrDuplicate
	default:
		return errors.Wrap(err, op)
	}
}
