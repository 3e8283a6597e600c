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
	"ease_academy_api/internal/notify"
	"ease_academy_api/internal/repository"
)

type ManualPaymentInput struct {
	Amount        int64      `json:"amount"`
	PaymentMethod string     `json:"paymentMethod"`
	PaymentDate   *time.Time `json:"paymentDate"`
	Remarks       string     `json:"remarks"`
}

type ManualPaymentResult struct {
	Voucher       *models.FeeVoucher   `json:"voucher"`
	Payment       models.Payment       `json:"payment"`
	UpdatedStatus models.VoucherStatus `json:"updatedStatus"`
}

// RecordManualPayment books a payment received at the branch. It is approved
// immediately and counts towards the paid amount.
func (s *Service) RecordManualPayment(ctx context.Context, actor models.Actor, voucherID string, in ManualPaymentInput) (*ManualPaymentResult, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	id, err := parseID(voucherID, "voucher id")
	if err != nil {
		return nil, err
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = "cash"
	}

	var payment models.Payment
	v, err := s.mutate(ctx, func() (*models.FeeVoucher, error) {
		return s.loadScoped(ctx, actor, id)
	}, func(v *models.FeeVoucher) error {
		if v.IsCancelled() {
			return apperrors.InvalidState("fee voucher is cancelled")
		}
		if v.IsPaid() {
			return apperrors.InvalidState("fee voucher is already paid")
		}
		if in.Amount <= 0 {
			return apperrors.InvalidInput("amount must be greater than zero")
		}
		if in.Amount > v.RemainingAmount {
			return apperrors.InvalidInput("amount exceeds the remaining amount of %d", v.RemainingAmount)
		}

		now := s.now()
		payment = models.Payment{
			Amount:        in.Amount,
			PaymentMethod: method,
			PaymentDate:   s.paymentDate(in.PaymentDate),
			Remarks:       in.Remarks,
			RecordedBy:    actor.UserID,
			TransactionID: s.manualTransactionID(),
		}
		approver := actor.UserID
		v.Payments = append(v.Payments, payment)
		v.PaymentHistory = append(v.PaymentHistory, models.PaymentHistoryEntry{
			Amount:        payment.Amount,
			PaymentMethod: payment.PaymentMethod,
			PaymentDate:   payment.PaymentDate,
			TransactionID: payment.TransactionID,
			Remarks:       payment.Remarks,
			SubmittedBy:   actor.UserID,
			Status:        models.PaymentEntryApproved,
			ApprovedBy:    &approver,
			ApprovedAt:    &now,
		})
		v.SetPaidAmount(v.ApprovedTotal(-1))
		v.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("manual payment recorded",
		zap.String("voucher_id", v.ID.Hex()),
		zap.Int64("amount", payment.Amount),
		zap.String("status", string(v.Status)),
	)

	s.notifyFamily(ctx, v, models.NotificationTypePayment,
		"Payment received",
		fmt.Sprintf("A payment of %d was received for fee voucher %s. Remaining amount: %d.", payment.Amount, v.VoucherNumber, v.RemainingAmount),
		true,
	)

	return &ManualPaymentResult{Voucher: v, Payment: payment, UpdatedStatus: v.Status}, nil
}

type SubmitPaymentInput struct {
	Amount        int64      `json:"amount"`
	PaymentMethod string     `json:"paymentMethod" validate:"required"`
	PaymentDate   *time.Time `json:"paymentDate"`
	TransactionID string     `json:"transactionId"`
	Screenshot    string     `json:"screenshot"`
	Remarks       string     `json:"remarks"`
}

// SubmitPayment records a payment a parent made outside the school. It stays
// pending until a branch admin reviews it.
func (s *Service) SubmitPayment(ctx context.Context, actor models.Actor, voucherID string, in SubmitPaymentInput) (*models.FeeVoucher, error) {
	if actor.Role != models.RoleParent {
		return nil, apperrors.Forbidden("only parents can submit payments")
	}
	id, err := parseID(voucherID, "voucher id")
	if err != nil {
		return nil, err
	}

	v, err := s.mutate(ctx, func() (*models.FeeVoucher, error) {
		return s.loadForParent(ctx, actor, id)
	}, func(v *models.FeeVoucher) error {
		if v.IsCancelled() {
			return apperrors.InvalidState("fee voucher is cancelled")
		}
		if v.IsPaid() {
			return apperrors.InvalidState("fee voucher is already paid")
		}
		if in.Amount <= 0 {
			return apperrors.InvalidInput("amount must be greater than zero")
		}
		if in.Amount > v.RemainingAmount {
			return apperrors.InvalidInput("amount exceeds the remaining amount of %d", v.RemainingAmount)
		}

		ref := strings.TrimSpace(in.TransactionID)
		if ref == "" {
			ref = s.newSubmissionRef()
		}
		v.PaymentHistory = append(v.PaymentHistory, models.PaymentHistoryEntry{
			Amount:        in.Amount,
			PaymentMethod: in.PaymentMethod,
			PaymentDate:   s.paymentDate(in.PaymentDate),
			TransactionID: ref,
			Screenshot:    in.Screenshot,
			Remarks:       in.Remarks,
			SubmittedBy:   actor.UserID,
			Status:        models.PaymentEntryPending,
		})
		v.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	branchID := v.BranchID
	s.notifier.Notify(ctx, notify.Message{
		Type:     models.NotificationTypePayment,
		Title:    "Payment awaiting approval",
		Body:     fmt.Sprintf("A payment of %d was submitted for fee voucher %s.", in.Amount, v.VoucherNumber),
		Role:     models.RoleBranchAdmin,
		BranchID: &branchID,
		Metadata: map[string]interface{}{"voucherId": v.ID, "paymentIndex": len(v.PaymentHistory) - 1},
	})
	return v, nil
}

type ReviewInput struct {
	VoucherID    string `json:"voucherId" validate:"required"`
	PaymentIndex *int   `json:"paymentIndex" validate:"required,min=0"`
	Reason       string `json:"reason"`
}

// loadForReview resolves the voucher and history entry under review. Unlike
// the other branch scoped operations, a voucher of another branch is reported
// as forbidden.
func (s *Service) loadForReview(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.FeeVoucher, error) {
	v, err := s.vouchers.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("fee voucher not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load fee voucher")
	}
	if v.BranchID != actor.BranchID {
		return nil, apperrors.Forbidden("fee voucher belongs to another branch")
	}
	return v, nil
}

func reviewTarget(v *models.FeeVoucher, index int) (*models.PaymentHistoryEntry, error) {
	if index < 0 || index >= len(v.PaymentHistory) {
		return nil, apperrors.NotFound("payment not found")
	}
	entry := &v.PaymentHistory[index]
	if entry.Status != models.PaymentEntryPending {
		return nil, apperrors.InvalidState("payment is already %s", entry.Status)
	}
	return entry, nil
}

func (s *Service) parseReview(actor models.Actor, in ReviewInput) (primitive.ObjectID, int, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return primitive.NilObjectID, 0, err
	}
	id, err := parseID(in.VoucherID, "voucherId")
	if err != nil {
		return primitive.NilObjectID, 0, err
	}
	if in.PaymentIndex == nil {
		return primitive.NilObjectID, 0, apperrors.InvalidInput("paymentIndex is required")
	}
	return id, *in.PaymentIndex, nil
}

// ApprovePayment accepts a pending submitted payment and recomputes the
// voucher amounts.
func (s *Service) ApprovePayment(ctx context.Context, actor models.Actor, in ReviewInput) (*models.FeeVoucher, error) {
	id, index, err := s.parseReview(actor, in)
	if err != nil {
		return nil, err
	}

	var approved models.PaymentHistoryEntry
	v, err := s.mutate(ctx, func() (*models.FeeVoucher, error) {
		return s.loadForReview(ctx, actor, id)
	}, func(v *models.FeeVoucher) error {
		entry, err := reviewTarget(v, index)
		if err != nil {
			return err
		}
		if v.IsCancelled() {
			return apperrors.InvalidState("fee voucher is cancelled")
		}
		paid := v.ApprovedTotal(index)
		if paid > v.TotalAmount {
			return apperrors.InvalidInput("payment exceeds the remaining amount of %d", v.RemainingAmount)
		}

		now := s.now()
		approver := actor.UserID
		entry.Status = models.PaymentEntryApproved
		entry.ApprovedBy = &approver
		entry.ApprovedAt = &now
		v.Payments = append(v.Payments, models.Payment{
			Amount:        entry.Amount,
			PaymentMethod: entry.PaymentMethod,
			PaymentDate:   entry.PaymentDate,
			Remarks:       entry.Remarks,
			RecordedBy:    actor.UserID,
			TransactionID: entry.TransactionID,
		})
		v.SetPaidAmount(paid)
		v.UpdatedAt = now
		approved = *entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment approved",
		zap.String("voucher_id", v.ID.Hex()),
		zap.Int("payment_index", index),
		zap.String("status", string(v.Status)),
	)
	s.notifyFamily(ctx, v, models.NotificationTypePaymentApproved,
		"Payment approved",
		fmt.Sprintf("Your payment of %d for fee voucher %s was approved. Remaining amount: %d.", approved.Amount, v.VoucherNumber, v.RemainingAmount),
		false,
	)
	return v, nil
}

// RejectPayment declines a pending submitted payment. Amounts are untouched.
func (s *Service) RejectPayment(ctx context.Context, actor models.Actor, in ReviewInput) (*models.FeeVoucher, error) {
	id, index, err := s.parseReview(actor, in)
	if err != nil {
		return nil, err
	}

	var rejected models.PaymentHistoryEntry
	v, err := s.mutate(ctx, func() (*models.FeeVoucher, error) {
		return s.loadForReview(ctx, actor, id)
	}, func(v *models.FeeVoucher) error {
		entry, err := reviewTarget(v, index)
		if err != nil {
			return err
		}
		now := s.now()
		reviewer := actor.UserID
		entry.Status = models.PaymentEntryRejected
		entry.ApprovedBy = &reviewer
		entry.ApprovedAt = &now
		entry.RejectionReason = strings.TrimSpace(in.Reason)
		v.UpdatedAt = now
		rejected = *entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Your payment of %d for fee voucher %s was rejected.", rejected.Amount, v.VoucherNumber)
	if rejected.RejectionReason != "" {
		body += " Reason: " + rejected.RejectionReason
	}
	s.notifyFamily(ctx, v, models.NotificationTypePaymentRejected, "Payment rejected", body, false)
	return v, nil
}

type CancelInput struct {
	Reason string `json:"reason"`
}

// CancelVoucher withdraws an unpaid voucher. Pending submissions on it are
// rejected along with it.
func (s *Service) CancelVoucher(ctx context.Context, actor models.Actor, voucherID string, in CancelInput) (*models.FeeVoucher, error) {
	if err := requireBranchAdmin(actor); err != nil {
		return nil, err
	}
	id, err := parseID(voucherID, "voucher id")
	if err != nil {
		return nil, err
	}

	v, err := s.mutate(ctx, func() (*models.FeeVoucher, error) {
		return s.loadScoped(ctx, actor, id)
	}, func(v *models.FeeVoucher) error {
		if v.IsCancelled() {
			return apperrors.InvalidState("fee voucher is already cancelled")
		}
		if v.PaidAmount > 0 {
			return apperrors.InvalidState("fee voucher has payments and cannot be cancelled")
		}
		now := s.now()
		by := actor.UserID
		for i := range v.PaymentHistory {
			if v.PaymentHistory[i].Status == models.PaymentEntryPending {
				v.PaymentHistory[i].Status = models.PaymentEntryRejected
				v.PaymentHistory[i].RejectionReason = "voucher cancelled"
				v.PaymentHistory[i].ApprovedBy = &by
				v.PaymentHistory[i].ApprovedAt = &now
			}
		}
		v.Status = models.VoucherStatusCancelled
		v.CancelledBy = &by
		v.CancelledAt = &now
		v.CancellationReason = strings.TrimSpace(in.Reason)
		v.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("fee voucher cancelled", zap.String("voucher_id", v.ID.Hex()))
	return v, nil
}

// notifyFamily notifies the student and linked parent. withEmail also mails
// the student, guardian and parent addresses.
func (s *Service) notifyFamily(ctx context.Context, v *models.FeeVoucher, typ models.NotificationType, title, body string, withEmail bool) {
	student, err := s.users.FindByID(ctx, v.StudentID)
	if err != nil {
		s.log.Warn("load student for notification", zap.String("student_id", v.StudentID.Hex()), zap.Error(err))
		return
	}

	msg := notify.Message{
		Type:     typ,
		Title:    title,
		Body:     body,
		UserIDs:  familyOf(student),
		BranchID: &v.BranchID,
		Metadata: map[string]interface{}{"voucherId": v.ID, "voucherNumber": v.VoucherNumber},
	}
	if withEmail {
		msg.Subject = title + " - " + v.VoucherNumber
		msg.Emails = student.ContactEmails()
		if student.StudentProfile != nil && student.StudentProfile.ParentID != nil {
			if parent, err := s.users.FindByID(ctx, *student.StudentProfile.ParentID); err == nil && parent.Email != "" {
				msg.Emails = appendUnique(msg.Emails, parent.Email)
			}
		}
	}
	s.notifier.Notify(ctx, msg)
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if strings.EqualFold(existing, value) {
			return list
		}
	}
	return append(list, value)
}
