package fees

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
	"ease_academy_api/internal/services"
)

const feeStatusTTL = 10 * time.Minute

func (s *Service) GetVoucher(ctx context.Context, actor models.Actor, voucherID string) (*models.FeeVoucher, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	id, err := parseID(voucherID, "voucher id")
	if err != nil {
		return nil, err
	}
	return s.loadScoped(ctx, actor, id)
}

type ListFilter struct {
	Status    string `query:"status"`
	Month     int    `query:"month"`
	Year      int    `query:"year"`
	ClassID   string `query:"classId"`
	StudentID string `query:"studentId"`
}

func (s *Service) ListVouchers(ctx context.Context, actor models.Actor, f ListFilter) ([]models.FeeVoucher, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	branchID := actor.BranchID
	filter := repository.VoucherFilter{
		BranchID: &branchID,
		Status:   models.VoucherStatus(strings.ToLower(strings.TrimSpace(f.Status))),
		Month:    f.Month,
		Year:     f.Year,
	}
	if f.ClassID != "" {
		id, err := parseID(f.ClassID, "classId")
		if err != nil {
			return nil, err
		}
		filter.ClassID = &id
	}
	if f.StudentID != "" {
		id, err := parseID(f.StudentID, "studentId")
		if err != nil {
			return nil, err
		}
		filter.StudentID = &id
	}
	return s.list(ctx, filter)
}

// ListPending returns the branch vouchers that have submissions awaiting review
func (s *Service) ListPending(ctx context.Context, actor models.Actor) ([]models.FeeVoucher, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	branchID := actor.BranchID
	return s.list(ctx, repository.VoucherFilter{BranchID: &branchID, PendingPayments: true})
}

func (s *Service) list(ctx context.Context, filter repository.VoucherFilter) ([]models.FeeVoucher, error) {
	vouchers, err := s.vouchers.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list fee vouchers")
	}
	if vouchers == nil {
		vouchers = []models.FeeVoucher{}
	}
	return vouchers, nil
}

// loadStudentForParent resolves a student linked to the calling parent
func (s *Service) loadStudentForParent(ctx context.Context, actor models.Actor, studentID primitive.ObjectID) (*models.User, error) {
	student, err := s.users.FindStudent(ctx, repository.StudentLookup{ID: &studentID})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("student not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load student")
	}
	parentID := student.StudentProfile.ParentID
	if parentID == nil || *parentID != actor.UserID {
		return nil, apperrors.NotFound("student not found")
	}
	return student, nil
}

func (s *Service) loadForParent(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.FeeVoucher, error) {
	v, err := s.vouchers.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("fee voucher not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load fee voucher")
	}
	if _, err := s.loadStudentForParent(ctx, actor, v.StudentID); err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, apperrors.NotFound("fee voucher not found")
		}
		return nil, err
	}
	return v, nil
}

// ListChildVouchers lists the vouchers of one of the parent's children
func (s *Service) ListChildVouchers(ctx context.Context, actor models.Actor, studentID string) ([]models.FeeVoucher, error) {
	if actor.Role != models.RoleParent {
		return nil, apperrors.Forbidden("only parents can view their children's vouchers")
	}
	id, err := parseID(studentID, "student id")
	if err != nil {
		return nil, err
	}
	if _, err := s.loadStudentForParent(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.VoucherFilter{StudentID: &id})
}

type TemplateInput struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category"`
	Amount   int64  `json:"amount" validate:"gt=0"`
	Discount int64  `json:"discount" validate:"gte=0"`
}

// CreateTemplate adds a template scoped to the admin's branch
func (s *Service) CreateTemplate(ctx context.Context, actor models.Actor, in TemplateInput) (*models.FeeTemplate, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if in.Amount <= 0 {
		return nil, apperrors.InvalidInput("amount must be greater than zero")
	}
	if in.Discount < 0 || in.Discount > in.Amount {
		return nil, apperrors.InvalidInput("discount must be between 0 and the amount")
	}

	now := s.now()
	branchID := actor.BranchID
	t := &models.FeeTemplate{
		Name:      name,
		Category:  in.Category,
		BranchID:  &branchID,
		Amount:    in.Amount,
		Discount:  in.Discount,
		IsActive:  true,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, apperrors.Internal(err, "failed to create fee template")
	}
	return t, nil
}

func (s *Service) ListTemplates(ctx context.Context, actor models.Actor) ([]models.FeeTemplate, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	templates, err := s.templates.ListForBranch(ctx, actor.BranchID)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list fee templates")
	}
	if templates == nil {
		templates = []models.FeeTemplate{}
	}
	return templates, nil
}

type FeeStatusValue string

const (
	FeeStatusPaid    FeeStatusValue = "paid"
	FeeStatusPartial FeeStatusValue = "partial"
	FeeStatusUnpaid  FeeStatusValue = "unpaid"
)

// FeeStatus summarises a student's vouchers for one month
type FeeStatus struct {
	Status          FeeStatusValue `json:"status"`
	Month           int            `json:"month"`
	Year            int            `json:"year"`
	TotalAmount     int64          `json:"totalAmount"`
	PaidAmount      int64          `json:"paidAmount"`
	RemainingAmount int64          `json:"remainingAmount"`
	VoucherCount    int            `json:"voucherCount"`
}

func FeeStatusKey(studentID primitive.ObjectID, year, month int) string {
	return fmt.Sprintf("fee-status:%s:%d-%02d", studentID.Hex(), year, month)
}

// FeeStatus reports the student's fee standing for the month containing at,
// in the configured timezone. Cancelled vouchers are ignored.
func (s *Service) FeeStatus(ctx context.Context, studentID primitive.ObjectID, at time.Time) (*FeeStatus, error) {
	local := at.In(s.loc)
	year, month := local.Year(), int(local.Month())

	status, err := services.GetOrSet(s.cache, ctx, FeeStatusKey(studentID, year, month), feeStatusTTL, func() (FeeStatus, error) {
		vouchers, err := s.vouchers.List(ctx, repository.VoucherFilter{StudentID: &studentID, Month: month, Year: year})
		if err != nil {
			return FeeStatus{}, err
		}
		return summarise(vouchers, year, month), nil
	})
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load fee status")
	}
	return &status, nil
}

func summarise(vouchers []models.FeeVoucher, year, month int) FeeStatus {
	st := FeeStatus{Status: FeeStatusUnpaid, Month: month, Year: year}
	for _, v := range vouchers {
		if v.IsCancelled() {
			continue
		}
		st.VoucherCount++
		st.TotalAmount += v.TotalAmount
		st.PaidAmount += v.PaidAmount
		st.RemainingAmount += v.RemainingAmount
	}
	if st.VoucherCount == 0 {
		return st
	}
	switch models.StatusFor(st.PaidAmount, st.TotalAmount) {
	case models.VoucherStatusPaid:
		st.Status = FeeStatusPaid
	case models.VoucherStatusPartial:
		st.Status = FeeStatusPartial
	}
	return st
}

func (s *Service) invalidateFeeStatus(ctx context.Context, v *models.FeeVoucher) {
	if err := s.cache.Delete(ctx, FeeStatusKey(v.StudentID, v.Year, v.Month)); err != nil {
		s.log.Warn("invalidate fee status", zap.String("student_id", v.StudentID.Hex()), zap.Error(err))
	}
}
