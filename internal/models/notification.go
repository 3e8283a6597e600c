package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationTypeFeeVoucher      NotificationType = "fee_voucher"
	NotificationTypePayment         NotificationType = "payment"
	NotificationTypePaymentApproved NotificationType = "payment_approved"
	NotificationTypePaymentRejected NotificationType = "payment_rejected"
	NotificationTypeFeeReminder     NotificationType = "fee_reminder"
	NotificationTypeAttendance      NotificationType = "attendance"
	NotificationTypeGeneral         NotificationType = "general"
)

// Notification is one in-app message for one recipient
type Notification struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"_id"`
	Type       NotificationType       `bson:"type" json:"type"`
	Title      string                 `bson:"title" json:"title"`
	Message    string                 `bson:"message" json:"message"`
	TargetUser primitive.ObjectID     `bson:"targetUser" json:"targetUser"`
	BranchID   *primitive.ObjectID    `bson:"branchId,omitempty" json:"branchId,omitempty"`
	Metadata   map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	IsRead     bool                   `bson:"isRead" json:"isRead"`
	ReadAt     *time.Time             `bson:"readAt,omitempty" json:"readAt,omitempty"`
	CreatedAt  time.Time              `bson:"createdAt" json:"createdAt"`
}
