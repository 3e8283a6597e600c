package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/notify"
	"ease_academy_api/internal/repository"
)

type GenerateInput struct {
	TemplateID string    `json:"templateId" validate:"required"`
	StudentIDs []string  `json:"studentIds" validate:"required,min=1"`
	DueDate    time.Time `json:"dueDate" validate:"required"`
	Month      int       `json:"month" validate:"required,min=1,max=12"`
	Year       int       `json:"year" validate:"required,min=2000,max=2100"`
	Remarks    string    `json:"remarks"`
}

type GenerationError struct {
	StudentID string `json:"studentId"`
	Message   string `json:"message"`
}

type GenerateResult struct {
	Vouchers []models.FeeVoucher `json:"vouchers"`
	Errors   []GenerationError   `json:"errors,omitempty"`
}

// VoucherNumber formats the number of the seq-th voucher of a period
func VoucherNumber(year, month int, seq int64) string {
	return fmt.Sprintf("FV-%d-%02d-%04d", year, month, seq)
}

func counterKey(year, month int) string {
	return fmt.Sprintf("voucher-%d-%02d", year, month)
}

// GenerateVouchers creates one voucher per student. Students that cannot get
// a voucher are reported in the result and do not stop the batch.
func (s *Service) GenerateVouchers(ctx context.Context, actor models.Actor, in GenerateInput) (*GenerateResult, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	if in.Month < 1 || in.Month > 12 {
		return nil, apperrors.InvalidInput("month must be between 1 and 12")
	}
	if in.Year < 2000 {
		return nil, apperrors.InvalidInput("invalid year")
	}
	if in.DueDate.IsZero() {
		return nil, apperrors.InvalidInput("due date is required")
	}
	if len(in.StudentIDs) == 0 {
		return nil, apperrors.InvalidInput("select at least one student")
	}

	templateID, err := parseID(in.TemplateID, "templateId")
	if err != nil {
		return nil, err
	}
	tmpl, err := s.templates.FindByID(ctx, templateID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && (!tmpl.AvailableTo(actor.BranchID) || !tmpl.IsActive)) {
		return nil, apperrors.NotFound("fee template not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load fee template")
	}

	result := &GenerateResult{Vouchers: []models.FeeVoucher{}}
	seen := map[string]bool{}
	for _, raw := range in.StudentIDs {
		if seen[raw] {
			continue
		}
		seen[raw] = true

		v, err := s.generateOne(ctx, actor, tmpl, raw, in)
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindInternal {
				s.log.Error("generate fee voucher", zap.String("student_id", raw), zap.Error(err))
			}
			result.Errors = append(result.Errors, GenerationError{StudentID: raw, Message: apperrors.Message(err)})
			continue
		}
		result.Vouchers = append(result.Vouchers, *v)
	}

	s.log.Info("fee vouchers generated",
		zap.String("branch_id", actor.BranchID.Hex()),
		zap.String("template_id", tmpl.ID.Hex()),
		zap.Int("created", len(result.Vouchers)),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}

func (s *Service) generateOne(ctx context.Context, actor models.Actor, tmpl *models.FeeTemplate, rawStudentID string, in GenerateInput) (*models.FeeVoucher, error) {
	studentID, err := parseID(rawStudentID, "student id")
	if err != nil {
		return nil, err
	}
	branchID := actor.BranchID
	student, err := s.users.FindStudent(ctx, repository.StudentLookup{ID: &studentID, BranchID: &branchID})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("student not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load student")
	}

	exists, err := s.vouchers.Exists(ctx, studentID, tmpl.ID, in.Month, in.Year)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to check existing vouchers")
	}
	if exists {
		return nil, apperrors.InvalidState("fee voucher already exists for this period")
	}

	seq, err := s.counters.Next(ctx, counterKey(in.Year, in.Month))
	if err != nil {
		return nil, apperrors.Internal(err, "failed to allocate voucher number")
	}

	discount := tmpl.DiscountFor(student.StudentProfile.FeeDiscount)
	total := tmpl.Amount - discount
	now := s.now()

	v := &models.FeeVoucher{
		VoucherNumber:   VoucherNumber(in.Year, in.Month, seq),
		StudentID:       student.ID,
		TemplateID:      tmpl.ID,
		BranchID:        actor.BranchID,
		ClassID:         student.StudentProfile.ClassID,
		Month:           in.Month,
		Year:            in.Year,
		DueDate:         in.DueDate,
		Amount:          tmpl.Amount,
		DiscountAmount:  discount,
		TotalAmount:     total,
		Payments:        []models.Payment{},
		PaymentHistory:  []models.PaymentHistoryEntry{},
		Remarks:         in.Remarks,
		CreatedBy:       actor.UserID,
		Status:          models.VoucherStatusPending,
		RemainingAmount: total,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	v.SetPaidAmount(0)

	if err := s.vouchers.Create(ctx, v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.InvalidState("fee voucher already exists for this period")
		}
		return nil, apperrors.Internal(err, "failed to create fee voucher")
	}
	s.invalidateFeeStatus(ctx, v)

	s.notifier.Notify(ctx, notify.Message{
		Type:     models.NotificationTypeFeeVoucher,
		Title:    "New fee voucher",
		Body:     fmt.Sprintf("Fee voucher %s for %s of %d is %d, due %s.", v.VoucherNumber, time.Month(v.Month), v.Year, v.TotalAmount, v.DueDate.In(s.loc).Format("02 Jan 2006")),
		UserIDs:  familyOf(student),
		BranchID: &v.BranchID,
		Metadata: map[string]interface{}{"voucherId": v.ID, "voucherNumber": v.VoucherNumber},
	})
	return v, nil
}

// familyOf lists the student and, when linked, the parent account
func familyOf(student *models.User) []primitive.ObjectID {
	ids := []primitive.ObjectID{student.ID}
	if student.StudentProfile != nil && student.StudentProfile.ParentID != nil {
		ids = append(ids, *student.StudentProfile.ParentID)
	}
	return ids
}
