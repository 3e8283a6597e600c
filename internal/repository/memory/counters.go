package memory

import (
	"context"

	"ease_academy_api/internal/repository"
)

type counterRepository struct {
	db *DB
}

func NewCounterRepository(db *DB) repository.CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) Next(ctx context.Context, key string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.counters[key]++
	return r.db.counters[key], nil
}
