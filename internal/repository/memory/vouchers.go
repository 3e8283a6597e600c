package memory

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

type voucherRepository struct {
	db *DB
}

func NewVoucherRepository(db *DB) repository.VoucherRepository {
	return &voucherRepository{db: db}
}

func (r *voucherRepository) Create(ctx context.Context, v *models.FeeVoucher) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.vouchers {
		if existing.StudentID == v.StudentID && existing.TemplateID == v.TemplateID &&
			existing.Month == v.Month && existing.Year == v.Year {
			return repository.ErrDuplicate
		}
		if existing.VoucherNumber == v.VoucherNumber {
			return repository.ErrDuplicate
		}
	}
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	r.db.vouchers[v.ID] = copyVoucher(v)
	return nil
}

func (r *voucherRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.FeeVoucher, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	v, ok := r.db.vouchers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyVoucher(v), nil
}

func (r *voucherRepository) Exists(ctx context.Context, studentID, templateID primitive.ObjectID, month, year int) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, v := range r.db.vouchers {
		if v.StudentID == studentID && v.TemplateID == templateID && v.Month == month && v.Year == year {
			return true, nil
		}
	}
	return false, nil
}

func (r *voucherRepository) List(ctx context.Context, f repository.VoucherFilter) ([]models.FeeVoucher, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []models.FeeVoucher
	for _, v := range r.db.vouchers {
		if matchesVoucher(v, f) {
			out = append(out, *copyVoucher(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchesVoucher(v *models.FeeVoucher, f repository.VoucherFilter) bool {
	if f.BranchID != nil && v.BranchID != *f.BranchID {
		return false
	}
	if f.StudentID != nil && v.StudentID != *f.StudentID {
		return false
	}
	if len(f.StudentIDs) > 0 && !containsID(f.StudentIDs, v.StudentID) {
		return false
	}
	if f.ClassID != nil && v.ClassID != *f.ClassID {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, v.Status) {
		return false
	}
	if f.Month != 0 && v.Month != f.Month {
		return false
	}
	if f.Year != 0 && v.Year != f.Year {
		return false
	}
	if f.DueBefore != nil && !v.DueDate.Before(*f.DueBefore) {
		return false
	}
	if f.PendingPayments && !v.HasPendingPayments() {
		return false
	}
	return true
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsStatus(statuses []models.VoucherStatus, s models.VoucherStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (r *voucherRepository) UpdateVersioned(ctx context.Context, v *models.FeeVoucher) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.vouchers[v.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != v.Version {
		return repository.ErrVersionConflict
	}
	v.Version++
	r.db.vouchers[v.ID] = copyVoucher(v)
	return nil
}
