package memory

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

type attendanceRepository struct {
	db *DB
}

func NewAttendanceRepository(db *DB) repository.AttendanceRepository {
	return &attendanceRepository{db: db}
}

func slotMatches(a *models.Attendance, key models.SlotKey) bool {
	return a.BranchID == key.BranchID &&
		a.ClassID == key.ClassID &&
		a.Date.Equal(key.Date) &&
		a.AttendanceType == key.AttendanceType &&
		sameOptionalID(a.SubjectID, key.SubjectID) &&
		sameOptionalID(a.EventID, key.EventID) &&
		a.Section == key.Section
}

func (r *attendanceRepository) findSlot(key models.SlotKey) *models.Attendance {
	for _, a := range r.db.attendances {
		if slotMatches(a, key) {
			return a
		}
	}
	return nil
}

func (r *attendanceRepository) UpsertRecord(ctx context.Context, key models.SlotKey, record models.AttendanceRecord) (*models.Attendance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := time.Now()
	doc := r.findSlot(key)
	if doc == nil {
		doc = &models.Attendance{
			ID:             primitive.NewObjectID(),
			BranchID:       key.BranchID,
			ClassID:        key.ClassID,
			Date:           key.Date,
			AttendanceType: key.AttendanceType,
			SubjectID:      key.SubjectID,
			EventID:        key.EventID,
			Section:        key.Section,
			Records:        []models.AttendanceRecord{},
			CreatedAt:      now,
		}
		r.db.attendances[doc.ID] = doc
	}

	replaced := false
	for i := range doc.Records {
		if doc.Records[i].StudentID == record.StudentID {
			doc.Records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Records = append(doc.Records, record)
	}
	doc.UpdatedAt = now
	return copyAttendance(doc), nil
}

func (r *attendanceRepository) FindBySlot(ctx context.Context, key models.SlotKey) (*models.Attendance, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	doc := r.findSlot(key)
	if doc == nil {
		return nil, repository.ErrNotFound
	}
	return copyAttendance(doc), nil
}

func (r *attendanceRepository) List(ctx context.Context, f repository.AttendanceFilter) ([]models.Attendance, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.Attendance
	for _, a := range r.db.attendances {
		if a.BranchID != f.BranchID {
			continue
		}
		if f.ClassID != nil && a.ClassID != *f.ClassID {
			continue
		}
		if !f.From.IsZero() && a.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && a.Date.After(f.To) {
			continue
		}
		out = append(out, *copyAttendance(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
