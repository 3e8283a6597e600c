package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

type MarkRecord struct {
	StudentID   string     `json:"studentId" validate:"required"`
	Status      string     `json:"status" validate:"required"`
	Remarks     string     `json:"remarks"`
	CheckInTime *time.Time `json:"checkInTime"`
}

type MarkInput struct {
	ClassID        string       `json:"classId" validate:"required"`
	Date           string       `json:"date"`
	AttendanceType string       `json:"attendanceType"`
	SubjectID      string       `json:"subjectId"`
	EventID        string       `json:"eventId"`
	Section        string       `json:"section"`
	Records        []MarkRecord `json:"records" validate:"required,min=1,dive"`
}

// SlotQuery addresses one slot document
type SlotQuery struct {
	ClassID        string `query:"classId"`
	Date           string `query:"date"`
	AttendanceType string `query:"attendanceType"`
	SubjectID      string `query:"subjectId"`
	EventID        string `query:"eventId"`
	Section        string `query:"section"`
}

func requireBranchAdmin(actor models.Actor) error {
	if actor.Role != models.RoleBranchAdmin || !actor.HasBranch() {
		return apperrors.Forbidden("only branch admins can manage attendance")
	}
	return nil
}

func (s *Service) slotKey(actor models.Actor, q SlotQuery) (models.SlotKey, error) {
	classID, err := optionalID(q.ClassID, "classId")
	if err != nil {
		return models.SlotKey{}, err
	}
	if classID == nil {
		return models.SlotKey{}, apperrors.InvalidInput("classId is required")
	}
	spec, err := parseSlotSpec(q.AttendanceType, q.SubjectID, q.EventID)
	if err != nil {
		return models.SlotKey{}, err
	}
	date, err := s.day(q.Date)
	if err != nil {
		return models.SlotKey{}, err
	}
	return models.SlotKey{
		BranchID:       actor.BranchID,
		ClassID:        *classID,
		Date:           date,
		AttendanceType: spec.typ,
		SubjectID:      spec.subjectID,
		EventID:        spec.eventID,
		Section:        q.Section,
	}, nil
}

// Mark records a status for several students of one slot. Every record is
// checked before anything is written.
func (s *Service) Mark(ctx context.Context, actor models.Actor, in MarkInput) (*models.Attendance, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	key, err := s.slotKey(actor, SlotQuery{
		ClassID:        in.ClassID,
		Date:           in.Date,
		AttendanceType: in.AttendanceType,
		SubjectID:      in.SubjectID,
		EventID:        in.EventID,
		Section:        in.Section,
	})
	if err != nil {
		return nil, err
	}
	if len(in.Records) == 0 {
		return nil, apperrors.InvalidInput("records are required")
	}

	now := s.now()
	markedBy := actor.UserID
	branchID := actor.BranchID
	records := make([]models.AttendanceRecord, 0, len(in.Records))
	for _, r := range in.Records {
		status := models.AttendanceStatus(r.Status)
		if !status.Valid() {
			return nil, apperrors.InvalidInput("invalid attendance status %q", r.Status)
		}
		studentID, err := optionalID(r.StudentID, "studentId")
		if err != nil || studentID == nil {
			return nil, apperrors.InvalidInput("invalid studentId %q", r.StudentID)
		}
		_, err = s.users.FindStudent(ctx, repository.StudentLookup{ID: studentID, BranchID: &branchID})
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("student %s not found", r.StudentID)
		}
		if err != nil {
			return nil, apperrors.Internal(err, "failed to load student")
		}

		record := models.AttendanceRecord{
			StudentID:   *studentID,
			Status:      status,
			CheckInTime: r.CheckInTime,
			Remarks:     r.Remarks,
			MarkedAt:    now,
			MarkedBy:    &markedBy,
		}
		if record.CheckInTime == nil && (status == models.AttendanceStatusPresent || status == models.AttendanceStatusLate) {
			record.CheckInTime = &now
		}
		records = append(records, record)
	}

	var doc *models.Attendance
	for _, record := range records {
		doc, err = s.attendance.UpsertRecord(ctx, key, record)
		if err != nil {
			return nil, apperrors.Internal(err, "failed to record attendance")
		}
	}

	s.log.Info("attendance marked",
		zap.String("attendance_id", doc.ID.Hex()),
		zap.Int("records", len(records)),
	)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, actor models.Actor, q SlotQuery) (*models.Attendance, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	key, err := s.slotKey(actor, q)
	if err != nil {
		return nil, err
	}
	doc, err := s.attendance.FindBySlot(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("attendance not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load attendance")
	}
	return doc, nil
}

type ListInput struct {
	ClassID string `query:"classId"`
	From    string `query:"from"`
	To      string `query:"to"`
}

// List returns the branch slots between From and To inclusive. Both default
// to today.
func (s *Service) List(ctx context.Context, actor models.Actor, in ListInput) ([]models.Attendance, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	classID, err := optionalID(in.ClassID, "classId")
	if err != nil {
		return nil, err
	}
	from, err := s.day(in.From)
	if err != nil {
		return nil, err
	}
	to := from
	if in.To != "" {
		if to, err = s.day(in.To); err != nil {
			return nil, err
		}
	}
	if to.Before(from) {
		return nil, apperrors.InvalidInput("from must not be after to")
	}

	docs, err := s.attendance.List(ctx, repository.AttendanceFilter{
		BranchID: actor.BranchID,
		ClassID:  classID,
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list attendance")
	}
	if docs == nil {
		docs = []models.Attendance{}
	}
	return docs, nil
}
