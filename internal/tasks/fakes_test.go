package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"ease_academy_api/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	nextID  uint
	tasks   map[uint]*models.ScheduledTask
	history []models.ScheduledTaskHistory
	updates map[uint]map[string]interface{}
}

func newMemStore() *memStore {
	return &memStore{tasks: map[uint]*models.ScheduledTask{}, updates: map[uint]map[string]interface{}{}}
}

func (s *memStore) Enqueue(_ context.Context, task *models.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	task.ID = s.nextID
	stored := *task
	s.tasks[task.ID] = &stored
	return nil
}

func (s *memStore) DueTasks(_ context.Context, now time.Time, limit int) ([]models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledTask
	for _, t := range s.tasks {
		if t.Status == models.ScheduledTaskStatusActive && !t.Due.After(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memStore) Task(_ context.Context, id uint) (models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tasks[id]
	if !ok {
		return models.ScheduledTask{}, errors.New("task not found")
	}
	return *stored, nil
}

func (s *memStore) UpdateTask(_ context.Context, task *models.ScheduledTask, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[task.ID] = updates
	stored, ok := s.tasks[task.ID]
	if !ok {
		return nil
	}
	if status, ok := updates["status"].(models.ScheduledTaskStatus); ok {
		stored.Status = status
	}
	if due, ok := updates["due"].(time.Time); ok {
		stored.Due = due
	}
	return nil
}

func (s *memStore) RecordHistory(_ context.Context, h *models.ScheduledTaskHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *h)
	return nil
}

func (s *memStore) task(id uint) models.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

type lockCache struct {
	mu    sync.Mutex
	held  map[string]bool
	calls int
}

func newLockCache() *lockCache { return &lockCache{held: map[string]bool{}} }

func (c *lockCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (c *lockCache) Get(context.Context, string, interface{}) error {
	return errors.New("miss")
}

func (c *lockCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.held, k)
	}
	return nil
}

func (c *lockCache) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.held[key] {
		return false, nil
	}
	c.held[key] = true
	return true, nil
}

type memPrefs struct {
	prefs map[string]models.UserNotifPreference
}

func (p *memPrefs) Get(_ context.Context, userID string) (models.UserNotifPreference, error) {
	if pref, ok := p.prefs[userID]; ok {
		return pref, nil
	}
	return models.DefaultNotifPreference(userID), nil
}

func (p *memPrefs) Save(_ context.Context, pref models.UserNotifPreference) (models.UserNotifPreference, error) {
	p.prefs[pref.UserID] = pref
	return pref, nil
}

type sentEmail struct {
	to      []string
	subject string
	body    string
}

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmail) SendEmail(_ context.Context, to []string, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

type fakePush struct {
	tokens [][]string
	bodies []string
	err    error
}

func (f *fakePush) SendPush(_ context.Context, tokens []string, _ string, body string, _ map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.tokens = append(f.tokens, tokens)
	f.bodies = append(f.bodies, body)
	return nil
}

type fakeWhatsapp struct {
	chats []string
	err   error
}

func (f *fakeWhatsapp) SendMessage(_ context.Context, chatID, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.chats = append(f.chats, chatID)
	return nil
}
