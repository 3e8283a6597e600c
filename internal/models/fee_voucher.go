package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VoucherStatus is the aggregate state of a fee voucher
type VoucherStatus string

const (
	VoucherStatusPending   VoucherStatus = "pending"
	VoucherStatusPartial   VoucherStatus = "partial"
	VoucherStatusPaid      VoucherStatus = "paid"
	VoucherStatusCancelled VoucherStatus = "cancelled"
)

// PaymentEntryStatus is the lifecycle of one payment history entry
type PaymentEntryStatus string

const (
	PaymentEntryPending  PaymentEntryStatus = "pending"
	PaymentEntryApproved PaymentEntryStatus = "approved"
	PaymentEntryRejected PaymentEntryStatus = "rejected"
)

// Payment is a recorded (already settled) payment
type Payment struct {
	Amount        int64              `bson:"amount" json:"amount"`
	PaymentMethod string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentDate   time.Time          `bson:"paymentDate" json:"paymentDate"`
	Remarks       string             `bson:"remarks,omitempty" json:"remarks,omitempty"`
	RecordedBy    primitive.ObjectID `bson:"recordedBy" json:"recordedBy"`
	TransactionID string             `bson:"transactionId" json:"transactionId"`
}

// PaymentHistoryEntry is a payment attempt that goes through approval
type PaymentHistoryEntry struct {
	Amount          int64               `bson:"amount" json:"amount"`
	PaymentMethod   string              `bson:"paymentMethod" json:"paymentMethod"`
	PaymentDate     time.Time           `bson:"paymentDate" json:"paymentDate"`
	TransactionID   string              `bson:"transactionId" json:"transactionId"`
	Screenshot      string              `bson:"screenshot,omitempty" json:"screenshot,omitempty"`
	Remarks         string              `bson:"remarks,omitempty" json:"remarks,omitempty"`
	SubmittedBy     primitive.ObjectID  `bson:"submittedBy" json:"submittedBy"`
	Status          PaymentEntryStatus  `bson:"status" json:"status"`
	ApprovedBy      *primitive.ObjectID `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time          `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	RejectionReason string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
}

// FeeVoucher is one billing obligation for one student for one period.
// Version is bumped on every write and used as the optimistic lock.
type FeeVoucher struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	VoucherNumber string             `bson:"voucherNumber" json:"voucherNumber"`
	StudentID     primitive.ObjectID `bson:"studentId" json:"studentId"`
	TemplateID    primitive.ObjectID `bson:"templateId" json:"templateId"`
	BranchID      primitive.ObjectID `bson:"branchId" json:"branchId"`
	ClassID       primitive.ObjectID `bson:"classId" json:"classId"`
	Month         int                `bson:"month" json:"month"`
	Year          int                `bson:"year" json:"year"`
	DueDate       time.Time          `bson:"dueDate" json:"dueDate"`

	Amount          int64         `bson:"amount" json:"amount"`
	DiscountAmount  int64         `bson:"discountAmount" json:"discountAmount"`
	TotalAmount     int64         `bson:"totalAmount" json:"totalAmount"`
	PaidAmount      int64         `bson:"paidAmount" json:"paidAmount"`
	RemainingAmount int64         `bson:"remainingAmount" json:"remainingAmount"`
	Status          VoucherStatus `bson:"status" json:"status"`

	Payments       []Payment             `bson:"payments" json:"payments"`
	PaymentHistory []PaymentHistoryEntry `bson:"paymentHistory" json:"paymentHistory"`

	Remarks            string              `bson:"remarks,omitempty" json:"remarks,omitempty"`
	CreatedBy          primitive.ObjectID  `bson:"createdBy" json:"createdBy"`
	CancelledBy        *primitive.ObjectID `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	CancelledAt        *time.Time          `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CancellationReason string              `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`

	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// StatusFor derives the voucher status from the amounts
func StatusFor(paid, total int64) VoucherStatus {
	switch {
	case paid >= total:
		return VoucherStatusPaid
	case paid > 0:
		return VoucherStatusPartial
	default:
		return VoucherStatusPending
	}
}

// SetPaidAmount applies a new paid total, keeping remaining and status in step.
// A cancelled voucher keeps its status.
func (v *FeeVoucher) SetPaidAmount(paid int64) {
	v.PaidAmount = paid
	v.RemainingAmount = v.TotalAmount - paid
	if v.RemainingAmount < 0 {
		v.RemainingAmount = 0
	}
	if v.Status != VoucherStatusCancelled {
		v.Status = StatusFor(paid, v.TotalAmount)
	}
}

// ApprovedTotal sums approved history entries, counting the entry at
// include as approved too. Pass -1 to count only entries already approved.
func (v *FeeVoucher) ApprovedTotal(include int) int64 {
	var total int64
	for i, entry := range v.PaymentHistory {
		if entry.Status == PaymentEntryApproved || i == include {
			total += entry.Amount
		}
	}
	return total
}

// HasPendingPayments reports whether any history entry is awaiting approval
func (v *FeeVoucher) HasPendingPayments() bool {
	for _, entry := range v.PaymentHistory {
		if entry.Status == PaymentEntryPending {
			return true
		}
	}
	return false
}

func (v *FeeVoucher) IsCancelled() bool { return v.Status == VoucherStatusCancelled }

func (v *FeeVoucher) IsPaid() bool { return v.Status == VoucherStatusPaid }
