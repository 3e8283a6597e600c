// Package attendance records student attendance from QR scans and manual
// marking. Each (branch, class, day, type, subject or event, section) slot is
// one document holding at most one record per student.
package attendance

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/fees"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

// FeeStatusProvider is satisfied by fees.Service
type FeeStatusProvider interface {
	FeeStatus(ctx context.Context, studentID primitive.ObjectID, at time.Time) (*fees.FeeStatus, error)
}

type Service struct {
	attendance repository.AttendanceRepository
	users      repository.UserRepository
	timetable  repository.TimetableRepository
	fees       FeeStatusProvider
	log        *zap.Logger
	loc        *time.Location
	now        func() time.Time
}

func NewService(attendance repository.AttendanceRepository, users repository.UserRepository, timetable repository.TimetableRepository, fees FeeStatusProvider, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		attendance: attendance,
		users:      users,
		timetable:  timetable,
		fees:       fees,
		log:        log,
		loc:        loc,
		now:        time.Now,
	}
}

type ScanInput struct {
	QR             json.RawMessage `json:"qr"`
	Date           string          `json:"date"`
	AttendanceType string          `json:"attendanceType"`
	SubjectID      string          `json:"subjectId"`
	EventID        string          `json:"eventId"`
}

type StudentSummary struct {
	ID                 primitive.ObjectID `json:"_id"`
	FullName           string             `json:"fullName"`
	RegistrationNumber string             `json:"registrationNumber"`
	ClassID            primitive.ObjectID `json:"classId"`
	Section            string             `json:"section,omitempty"`
	RollNumber         string             `json:"rollNumber,omitempty"`
}

type ScanResult struct {
	Attendance *models.Attendance `json:"attendance"`
	Student    StudentSummary     `json:"student"`
	// nil when the fee lookup failed
	FeeStatus *fees.FeeStatus `json:"feeStatus"`
}

// slotSpec is the validated type part of a slot key
type slotSpec struct {
	typ       models.AttendanceType
	subjectID *primitive.ObjectID
	eventID   *primitive.ObjectID
}

func parseSlotSpec(rawType, rawSubject, rawEvent string) (slotSpec, error) {
	typ := models.AttendanceType(strings.ToLower(strings.TrimSpace(rawType)))
	if typ == "" {
		typ = models.AttendanceTypeDaily
	}
	if !typ.Valid() {
		return slotSpec{}, apperrors.InvalidInput("invalid attendance type %q", rawType)
	}

	spec := slotSpec{typ: typ}
	switch typ {
	case models.AttendanceTypeSubject:
		id, err := optionalID(rawSubject, "subjectId")
		if err != nil {
			return slotSpec{}, err
		}
		if id == nil {
			return slotSpec{}, apperrors.InvalidInput("subjectId is required for subject attendance")
		}
		spec.subjectID = id
	case models.AttendanceTypeEvent:
		id, err := optionalID(rawEvent, "eventId")
		if err != nil {
			return slotSpec{}, err
		}
		if id == nil {
			return slotSpec{}, apperrors.InvalidInput("eventId is required for event attendance")
		}
		spec.eventID = id
	}
	return spec, nil
}

func optionalID(raw, field string) (*primitive.ObjectID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid %s", field)
	}
	return &id, nil
}

// day resolves the requested date to local midnight. An empty date is today.
func (s *Service) day(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.DayStart(s.now(), s.loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, s.loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return models.DayStart(t, s.loc), nil
	}
	return time.Time{}, apperrors.InvalidInput("invalid date %q, expected YYYY-MM-DD", raw)
}

// Scan records the scanned student as present. Branch admins and teachers
// scan within their branch, teachers only for classes they are timetabled
// on. Super admins scan any branch.
func (s *Service) Scan(ctx context.Context, actor models.Actor, in ScanInput) (*ScanResult, error) {
	var scope *primitive.ObjectID
	switch actor.Role {
	case models.RoleBranchAdmin, models.RoleTeacher:
		if !actor.HasBranch() {
			return nil, apperrors.Forbidden("no branch assigned")
		}
		branchID := actor.BranchID
		scope = &branchID
	case models.RoleSuperAdmin:
	default:
		return nil, apperrors.Forbidden("not allowed to record attendance")
	}

	payload, err := ParseQRPayload(in.QR)
	if err != nil {
		return nil, err
	}
	student, err := s.findStudent(ctx, payload, scope)
	if err != nil {
		return nil, err
	}
	if student.BranchID == nil {
		return nil, apperrors.NotFound("student not found")
	}
	profile := student.StudentProfile

	if actor.Role == models.RoleTeacher {
		assigned, err := s.timetable.TeacherAssigned(ctx, actor.UserID, *student.BranchID, profile.ClassID, profile.Section)
		if err != nil {
			return nil, apperrors.Internal(err, "failed to check timetable")
		}
		if !assigned {
			return nil, apperrors.Forbidden("you are not assigned to this student's class")
		}
	}

	spec, err := parseSlotSpec(in.AttendanceType, in.SubjectID, in.EventID)
	if err != nil {
		return nil, err
	}
	date, err := s.day(in.Date)
	if err != nil {
		return nil, err
	}

	key := models.SlotKey{
		BranchID:       *student.BranchID,
		ClassID:        profile.ClassID,
		Date:           date,
		AttendanceType: spec.typ,
		SubjectID:      spec.subjectID,
		EventID:        spec.eventID,
		Section:        profile.Section,
	}
	now := s.now()
	markedBy := actor.UserID
	doc, err := s.attendance.UpsertRecord(ctx, key, models.AttendanceRecord{
		StudentID:   student.ID,
		Status:      models.AttendanceStatusPresent,
		CheckInTime: &now,
		MarkedAt:    now,
		MarkedBy:    &markedBy,
	})
	if err != nil {
		return nil, apperrors.Internal(err, "failed to record attendance")
	}

	s.log.Info("attendance scanned",
		zap.String("student_id", student.ID.Hex()),
		zap.String("attendance_id", doc.ID.Hex()),
		zap.String("type", string(spec.typ)),
		zap.String("role", string(actor.Role)),
	)

	return &ScanResult{
		Attendance: doc,
		Student:    summarise(student),
		FeeStatus:  s.feeStatus(ctx, student.ID, date),
	}, nil
}

func (s *Service) findStudent(ctx context.Context, payload QRPayload, scope *primitive.ObjectID) (*models.User, error) {
	lookup := repository.StudentLookup{BranchID: scope}
	switch payload.Kind {
	case QRByStudentID:
		id := payload.StudentID
		lookup.ID = &id
	default:
		lookup.RegistrationNumber = payload.RegistrationNumber
	}

	student, err := s.users.FindStudent(ctx, lookup)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("student not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load student")
	}
	return student, nil
}

// feeStatus is informational; a failed lookup never blocks the scan
func (s *Service) feeStatus(ctx context.Context, studentID primitive.ObjectID, at time.Time) *fees.FeeStatus {
	if s.fees == nil {
		return nil
	}
	st, err := s.fees.FeeStatus(ctx, studentID, at)
	if err != nil {
		s.log.Warn("fee status for scan", zap.String("student_id", studentID.Hex()), zap.Error(err))
		return nil
	}
	return st
}

func summarise(u *models.User) StudentSummary {
	return StudentSummary{
		ID:                 u.ID,
		FullName:           u.FullName,
		RegistrationNumber: u.StudentProfile.RegistrationNumber,
		ClassID:            u.StudentProfile.ClassID,
		Section:            u.StudentProfile.Section,
		RollNumber:         u.StudentProfile.RollNumber,
	}
}
