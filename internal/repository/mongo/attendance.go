package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

const maxRecordRetries = 3

type attendanceRepository struct {
	coll *mongo.Collection
}

func NewAttendanceRepository(db *mongo.Database) repository.AttendanceRepository {
	return &attendanceRepository{coll: db.Collection(AttendancesCollection)}
}

func slotFilter(key models.SlotKey) bson.M {
	return bson.M{
		"branchId":       key.BranchID,
		"classId":        key.ClassID,
		"date":           key.Date,
		"attendanceType": key.AttendanceType,
		"subjectId":      key.SubjectID,
		"eventId":        key.EventID,
		"section":        key.Section,
	}
}

// ensureSlot atomically finds or creates the slot document
func (r *attendanceRepository) ensureSlot(ctx context.Context, key models.SlotKey, now time.Time) (*models.Attendance, error) {
	update := bson.M{
		"$setOnInsert": bson.M{
			"records":   bson.A{},
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc models.Attendance
	err := r.coll.FindOneAndUpdate(ctx, slotFilter(key), update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// lost the insert race; the document exists now
		err = r.coll.FindOne(ctx, slotFilter(key)).Decode(&doc)
	}
	if err != nil {
		return nil, errors.Wrap(err, "ensure attendance slot")
	}
	return &doc, nil
}

func (r *attendanceRepository) UpsertRecord(ctx context.Context, key models.SlotKey, record models.AttendanceRecord) (*models.Attendance, error) {
	now := time.Now()
	doc, err := r.ensureSlot(ctx, key, now)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxRecordRetries; attempt++ {
		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": doc.ID, "records.studentId": record.StudentID},
			bson.M{"$set": bson.M{"records.$": record, "updatedAt": now}},
		)
		if err != nil {
			return nil, errors.Wrap(err, "update attendance record")
		}
		if res.MatchedCount > 0 {
			return r.findByID(ctx, doc)
		}

		res, err = r.coll.UpdateOne(ctx,
			bson.M{"_id": doc.ID, "records.studentId": bson.M{"$ne": record.StudentID}},
			bson.M{"$push": bson.M{"records": record}, "$set": bson.M{"updatedAt": now}},
		)
		if err != nil {
			return nil, errors.Wrap(err, "append attendance record")
		}
		if res.MatchedCount > 0 {
			return r.findByID(ctx, doc)
		}
		// another scan appended the student in between, overwrite it on the next pass
	}
	return nil, errors.Errorf("attendance record for %s kept changing", record.StudentID.Hex())
}

func (r *attendanceRepository) findByID(ctx context.Context, doc *models.Attendance) (*models.Attendance, error) {
	var fresh models.Attendance
	if err := r.coll.FindOne(ctx, bson.M{"_id": doc.ID}).Decode(&fresh); err != nil {
		return nil, translate(err, "reload attendance")
	}
	return &fresh, nil
}

func (r *attendanceRepository) FindBySlot(ctx context.Context, key models.SlotKey) (*models.Attendance, error) {
	var doc models.Attendance
	if err := r.coll.FindOne(ctx, slotFilter(key)).Decode(&doc); err != nil {
		return nil, translate(err, "find attendance")
	}
	return &doc, nil
}

func (r *attendanceRepository) List(ctx context.Context, f repository.AttendanceFilter) ([]models.Attendance, error) {
	filter := bson.M{"branchId": f.BranchID}
	if f.ClassID != nil {
		filter["classId"] = *f.ClassID
	}
	dateRange := bson.M{}
	if !f.From.IsZero() {
		dateRange["$gte"] = f.From
	}
	if !f.To.IsZero() {
		dateRange["$lte"] = f.To
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list attendance")
	}
	defer cur.Close(ctx)

	var out []models.Attendance
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode attendance")
	}
	return out, nil
}
