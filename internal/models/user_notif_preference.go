package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationChannel string

const (
	NotificationChannelPush     NotificationChannel = "push"
	NotificationChannelEmail    NotificationChannel = "email"
	NotificationChannelWhatsapp NotificationChannel = "whatsapp"
	NotificationChannelNone     NotificationChannel = "none"
)

const (
	WhatsappTargetTypePersonal = "personal"
	WhatsappTargetTypeGroup    = "group"
)

// UserNotifPreference picks the delivery channel for a user. UserID is the
// hex ObjectID of the user document.
type UserNotifPreference struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID string `gorm:"type:varchar(24);uniqueIndex" json:"user_id"`

	Channel NotificationChannel `gorm:"type:varchar(20);default:'push'" json:"channel"`

	WhatsappTargetType string `gorm:"type:varchar(20);default:'personal'" json:"whatsapp_target_type"` // 'personal' or 'group'
	WhatsappGroupID    string `gorm:"type:varchar(100)" json:"whatsapp_group_id"`
}

// DefaultNotifPreference applies to users that never chose a channel
func DefaultNotifPreference(userID string) UserNotifPreference {
	return UserNotifPreference{
		UserID:             userID,
		Channel:            NotificationChannelPush,
		WhatsappTargetType: WhatsappTargetTypePersonal,
	}
}
