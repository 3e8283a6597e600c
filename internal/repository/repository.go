// Package repository declares the persistence ports used by the services.
// The mongo subpackage is the production implementation and the memory
// subpackage backs the tests.
package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/models"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicate       = errors.New("duplicate document")
	ErrVersionConflict = errors.New("document version conflict")
)

type VoucherFilter struct {
	BranchID   *primitive.ObjectID
	StudentID  *primitive.ObjectID
	StudentIDs []primitive.ObjectID
	ClassID    *primitive.ObjectID
	Status     models.VoucherStatus
	Statuses   []models.VoucherStatus
	Month      int
	Year       int
	DueBefore  *time.Time
	// only vouchers that have at least one pending history entry
	PendingPayments bool
	Limit           int64
}

type VoucherRepository interface {
	Create(ctx context.Context, v *models.FeeVoucher) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.FeeVoucher, error)
	Exists(ctx context.Context, studentID, templateID primitive.ObjectID, month, year int) (bool, error)
	List(ctx context.Context, filter VoucherFilter) ([]models.FeeVoucher, error)
	// UpdateVersioned replaces v if its stored version still equals v.Version,
	// and increments the version. Returns ErrVersionConflict otherwise.
	UpdateVersioned(ctx context.Context, v *models.FeeVoucher) error
}

type TemplateRepository interface {
	Create(ctx context.Context, t *models.FeeTemplate) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.FeeTemplate, error)
	ListForBranch(ctx context.Context, branchID primitive.ObjectID) ([]models.FeeTemplate, error)
}

// StudentLookup finds a student by registration number or id. A nil
// BranchID searches every branch.
type StudentLookup struct {
	ID                 *primitive.ObjectID
	RegistrationNumber string
	BranchID           *primitive.ObjectID
}

type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindStudent(ctx context.Context, lookup StudentLookup) (*models.User, error)
	FindByRole(ctx context.Context, role models.Role, branchID *primitive.ObjectID) ([]models.User, error)
}

type CounterRepository interface {
	// Next atomically increments the named counter and returns the new value
	Next(ctx context.Context, key string) (int64, error)
}

type AttendanceFilter struct {
	BranchID primitive.ObjectID
	ClassID  *primitive.ObjectID
	From     time.Time
	To       time.Time
}

type AttendanceRepository interface {
	// UpsertRecord finds or creates the slot document and sets the record of
	// record.StudentID, appending it when the student has none yet.
	UpsertRecord(ctx context.Context, key models.SlotKey, record models.AttendanceRecord) (*models.Attendance, error)
	FindBySlot(ctx context.Context, key models.SlotKey) (*models.Attendance, error)
	List(ctx context.Context, filter AttendanceFilter) ([]models.Attendance, error)
}

type TimetableRepository interface {
	TeacherAssigned(ctx context.Context, teacherID, branchID, classID primitive.ObjectID, section string) (bool, error)
}

type NotificationRepository interface {
	InsertMany(ctx context.Context, notifications []models.Notification) error
	ListForUser(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, limit int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id primitive.ObjectID, at time.Time) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
}
