package mongo

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ease_academy_api/internal/repository"
)

type timetableRepository struct {
	coll *mongo.Collection
}

func NewTimetableRepository(db *mongo.Database) repository.TimetableRepository {
	return &timetableRepository{coll: db.Collection(TimetablesCollection)}
}

func (r *timetableRepository) TeacherAssigned(ctx context.Context, teacherID, branchID, classID primitive.ObjectID, section string) (bool, error) {
	filter := bson.M{
		"teacherId": teacherID,
		"branchId":  branchID,
		"classId":   classID,
	}
	if section != "" {
		// an entry without a section covers the whole class
		filter["$or"] = bson.A{
			bson.M{"section": section},
			bson.M{"section": ""},
			bson.M{"section": bson.M{"$exists": false}},
		}
	}
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(err, "check timetable")
	}
	return n > 0, nil
}
