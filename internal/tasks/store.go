package tasks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"ease_academy_api/internal/models"
)

// TaskStore persists scheduled tasks and their history
type TaskStore interface {
	Enqueue(ctx context.Context, task *models.ScheduledTask) error
	DueTasks(ctx context.Context, now time.Time, limit int) ([]models.ScheduledTask, error)
	Task(ctx context.Context, id uint) (models.ScheduledTask, error)
	UpdateTask(ctx context.Context, task *models.ScheduledTask, updates map[string]interface{}) error
	RecordHistory(ctx context.Context, history *models.ScheduledTaskHistory) error
}

// GormStore keeps the outbox in Postgres
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Enqueue(ctx context.Context, task *models.ScheduledTask) error {
	return s.db.WithContext(ctx).Create(task).Error
}

func (s *GormStore) DueTasks(ctx context.Context, now time.Time, limit int) ([]models.ScheduledTask, error) {
	var due []models.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due ASC").
		Limit(limit).
		Find(&due).Error
	return due, err
}

// Task reads the current row, bypassing whatever batch the caller holds
func (s *GormStore) Task(ctx context.Context, id uint) (models.ScheduledTask, error) {
	var task models.ScheduledTask
	err := s.db.WithContext(ctx).First(&task, id).Error
	return task, err
}

func (s *GormStore) UpdateTask(ctx context.Context, task *models.ScheduledTask, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(task).Updates(updates).Error
}

func (s *GormStore) RecordHistory(ctx context.Context, history *models.ScheduledTaskHistory) error {
	return s.db.WithContext(ctx).Create(history).Error
}

// PreferenceStore reads and writes notification channel preferences
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (models.UserNotifPreference, error)
	Save(ctx context.Context, pref models.UserNotifPreference) (models.UserNotifPreference, error)
}

type GormPreferenceStore struct {
	db *gorm.DB
}

func NewGormPreferenceStore(db *gorm.DB) *GormPreferenceStore {
	return &GormPreferenceStore{db: db}
}

// Get returns the stored preference or the default one
func (s *GormPreferenceStore) Get(ctx context.Context, userID string) (models.UserNotifPreference, error) {
	var pref models.UserNotifPreference
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultNotifPreference(userID), nil
	}
	return pref, err
}

func (s *GormPreferenceStore) Save(ctx context.Context, pref models.UserNotifPreference) (models.UserNotifPreference, error) {
	var existing models.UserNotifPreference
	err := s.db.WithContext(ctx).Where("user_id = ?", pref.UserID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = s.db.WithContext(ctx).Create(&pref).Error
		return pref, err
	case err != nil:
		return pref, err
	}

	existing.Channel = pref.Channel
	existing.WhatsappTargetType = pref.WhatsappTargetType
	existing.WhatsappGroupID = pref.WhatsappGroupID
	err = s.db.WithContext(ctx).Save(&existing).Error
	return existing, err
}
