package memory

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/repository"
)

type timetableRepository struct {
	db *DB
}

func NewTimetableRepository(db *DB) repository.TimetableRepository {
	return &timetableRepository{db: db}
}

func (r *timetableRepository) TeacherAssigned(ctx context.Context, teacherID, branchID, classID primitive.ObjectID, section string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, e := range r.db.timetable {
		if e.TeacherID != teacherID || e.BranchID != branchID || e.ClassID != classID {
			continue
		}
		// an entry without a section covers the whole class
		if e.Section == "" || section == "" || e.Section == section {
			return true, nil
		}
	}
	return false, nil
}
