// Package fees implements the fee voucher lifecycle: batch generation,
// manual and parent submitted payments, approval and cancellation.
package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/notify"
	"ease_academy_api/internal/repository"
	"ease_academy_api/internal/services"
)

// maxConflictRetries bounds the re-read loop when a concurrent writer bumped
// the voucher version first.
const maxConflictRetries = 3

// Notifier is satisfied by notify.Service
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message)
}

type Deps struct {
	Vouchers  repository.VoucherRepository
	Templates repository.TemplateRepository
	Users     repository.UserRepository
	Counters  repository.CounterRepository
	Notifier  Notifier
	Cache     services.Cache
	Log       *zap.Logger
	Location  *time.Location
}

type Service struct {
	vouchers  repository.VoucherRepository
	templates repository.TemplateRepository
	users     repository.UserRepository
	counters  repository.CounterRepository
	notifier  Notifier
	cache     services.Cache
	log       *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewService(d Deps) *Service {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	cache := d.Cache
	if cache == nil {
		cache = services.NoopCache{}
	}
	return &Service{
		vouchers:  d.Vouchers,
		templates: d.Templates,
		users:     d.Users,
		counters:  d.Counters,
		notifier:  d.Notifier,
		cache:     cache,
		log:       d.Log,
		loc:       loc,
		now:       time.Now,
	}
}

func parseID(raw, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperrors.InvalidInput("invalid %s", field)
	}
	return id, nil
}

func requireBranchAdmin(actor models.Actor) error {
	if actor.Role != models.RoleBranchAdmin || !actor.HasBranch() {
		return apperrors.Forbidden("only branch admins can manage fee vouchers")
	}
	return nil
}

// loadScoped returns the voucher when it belongs to the actor's branch.
// Out of scope vouchers are reported exactly like missing ones.
func (s *Service) loadScoped(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.FeeVoucher, error) {
	v, err := s.vouchers.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("fee voucher not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load fee voucher")
	}
	if v.BranchID != actor.BranchID {
		return nil, apperrors.NotFound("fee voucher not found")
	}
	return v, nil
}

// mutate applies fn to a fresh copy of the voucher and writes it back under
// the version check, re-reading on conflicts.
func (s *Service) mutate(ctx context.Context, load func() (*models.FeeVoucher, error), fn func(v *models.FeeVoucher) error) (*models.FeeVoucher, error) {
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		v, err := load()
		if err != nil {
			return nil, err
		}
		if err := fn(v); err != nil {
			return nil, err
		}

		err = s.vouchers.UpdateVersioned(ctx, v)
		if err == nil {
			s.invalidateFeeStatus(ctx, v)
			return v, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.Internal(err, "failed to save fee voucher")
		}
		s.log.Info("fee voucher version conflict, retrying",
			zap.String("voucher_id", v.ID.Hex()),
			zap.Int("attempt", attempt),
		)
	}
	return nil, apperrors.Conflict("fee voucher was modified concurrently, please retry")
}

func (s *Service) newSubmissionRef() string {
	return "SUB-" + ulid.Make().String()
}

func (s *Service) manualTransactionID() string {
	return fmt.Sprintf("MANUAL-%d", s.now().UnixMilli())
}

// paymentDate defaults a missing date to now
func (s *Service) paymentDate(d *time.Time) time.Time {
	if d == nil || d.IsZero() {
		return s.now()
	}
	return *d
}
