package memory

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

type templateRepository struct {
	db *DB
}

func NewTemplateRepository(db *DB) repository.TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, t *models.FeeTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	stored := *t
	r.db.templates[t.ID] = &stored
	return nil
}

func (r *templateRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.FeeTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.templates[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *t
	return &found, nil
}

func (r *templateRepository) ListForBranch(ctx context.Context, branchID primitive.ObjectID) ([]models.FeeTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.FeeTemplate
	for _, t := range r.db.templates {
		if t.AvailableTo(branchID) {
			out = append(out, *t)
		}
	}
	return out, nil
}
