package memory

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *u
	return &found, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			found := *u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) FindStudent(ctx context.Context, lookup repository.StudentLookup) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if u.Role != models.RoleStudent || u.StudentProfile == nil {
			continue
		}
		if lookup.BranchID != nil && !u.InBranch(*lookup.BranchID) {
			continue
		}
		if lookup.ID != nil && u.ID != *lookup.ID {
			continue
		}
		if lookup.RegistrationNumber != "" && u.StudentProfile.RegistrationNumber != lookup.RegistrationNumber {
			continue
		}
		found := *u
		return &found, nil
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) FindByRole(ctx context.Context, role models.Role, branchID *primitive.ObjectID) ([]models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.User
	for _, u := range r.db.users {
		if u.Role != role || !u.IsActive {
			continue
		}
		if branchID != nil && !u.InBranch(*branchID) {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}
