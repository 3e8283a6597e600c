package mongo

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

type voucherRepository struct {
	coll *mongo.Collection
}

func NewVoucherRepository(db *mongo.Database) repository.VoucherRepository {
	return &voucherRepository{coll: db.Collection(VouchersCollection)}
}

func (r *voucherRepository) Create(ctx context.Context, v *models.FeeVoucher) error {
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, v)
	return translate(err, "insert voucher")
}

func (r *voucherRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.FeeVoucher, error) {
	var v models.FeeVoucher
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&v); err != nil {
		return nil, translate(err, "find voucher")
	}
	return &v, nil
}

func (r *voucherRepository) Exists(ctx context.Context, studentID, templateID primitive.ObjectID, month, year int) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"studentId":  studentID,
		"templateId": templateID,
		"month":      month,
		"year":       year,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(err, "count vouchers")
	}
	return n > 0, nil
}

func voucherQuery(f repository.VoucherFilter) bson.M {
	q := bson.M{}
	if f.BranchID != nil {
		q["branchId"] = *f.BranchID
	}
	if f.StudentID != nil {
		q["studentId"] = *f.StudentID
	} else if len(f.StudentIDs) > 0 {
		q["studentId"] = bson.M{"$in": f.StudentIDs}
	}
	if f.ClassID != nil {
		q["classId"] = *f.ClassID
	}
	if f.Status != "" {
		q["status"] = f.Status
	} else if len(f.Statuses) > 0 {
		q["status"] = bson.M{"$in": f.Statuses}
	}
	if f.Month != 0 {
		q["month"] = f.Month
	}
	if f.Year != 0 {
		q["year"] = f.Year
	}
	if f.DueBefore != nil {
		q["dueDate"] = bson.M{"$lt": *f.DueBefore}
	}
	if f.PendingPayments {
		q["paymentHistory.status"] = models.PaymentEntryPending
	}
	return q
}

func (r *voucherRepository) List(ctx context.Context, f repository.VoucherFilter) ([]models.FeeVoucher, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cur, err := r.coll.Find(ctx, voucherQuery(f), opts)
	if err != nil {
		return nil, errors.Wrap(err, "list vouchers")
	}
	defer cur.Close(ctx)

	var out []models.FeeVoucher
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode vouchers")
	}
	return out, nil
}

func (r *voucherRepository) UpdateVersioned(ctx context.Context, v *models.FeeVoucher) error {
	expected := v.Version
	v.Version = expected + 1

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": v.ID, "version": expected}, v)
	if err != nil {
		v.Version = expected
		return translate(err, "replace voucher")
	}
	if res.MatchedCount == 0 {
		v.Version = expected
		return repository.ErrVersionConflict
	}
	return nil
}
