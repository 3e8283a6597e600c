// Package memory holds map backed repositories for tests and local runs.
package memory

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/models"
)

// DB is the shared in-memory store. Every repository built from the same DB
// sees the same data.
type DB struct {
	mu            sync.RWMutex
	vouchers      map[primitive.ObjectID]*models.FeeVoucher
	templates     map[primitive.ObjectID]*models.FeeTemplate
	users         map[primitive.ObjectID]*models.User
	counters      map[string]int64
	attendances   map[primitive.ObjectID]*models.Attendance
	timetable     []models.TimetableEntry
	notifications map[primitive.ObjectID]*models.Notification
}

func NewDB() *DB {
	return &DB{
		vouchers:      map[primitive.ObjectID]*models.FeeVoucher{},
		templates:     map[primitive.ObjectID]*models.FeeTemplate{},
		users:         map[primitive.ObjectID]*models.User{},
		counters:      map[string]int64{},
		attendances:   map[primitive.ObjectID]*models.Attendance{},
		notifications: map[primitive.ObjectID]*models.Notification{},
	}
}

// AddUser seeds a user, assigning an id when missing
func (db *DB) AddUser(u models.User) models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	stored := u
	db.users[u.ID] = &stored
	return u
}

// AddTimetableEntry seeds a timetable row
func (db *DB) AddTimetableEntry(e models.TimetableEntry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	db.timetable = append(db.timetable, e)
}

func copyVoucher(v *models.FeeVoucher) *models.FeeVoucher {
	c := *v
	c.Payments = append([]models.Payment(nil), v.Payments...)
	c.PaymentHistory = append([]models.PaymentHistoryEntry(nil), v.PaymentHistory...)
	return &c
}

func copyAttendance(a *models.Attendance) *models.Attendance {
	c := *a
	c.Records = append([]models.AttendanceRecord(nil), a.Records...)
	return &c
}

func sameOptionalID(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
