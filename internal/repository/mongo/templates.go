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

type templateRepository struct {
	coll *mongo.Collection
}

func NewTemplateRepository(db *mongo.Database) repository.TemplateRepository {
	return &templateRepository{coll: db.Collection(TemplatesCollection)}
}

func (r *templateRepository) Create(ctx context.Context, t *models.FeeTemplate) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, t)
	return translate(err, "insert fee template")
}

func (r *templateRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.FeeTemplate, error) {
	var t models.FeeTemplate
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, translate(err, "find fee template")
	}
	return &t, nil
}

func (r *templateRepository) ListForBranch(ctx context.Context, branchID primitive.ObjectID) ([]models.FeeTemplate, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"branchId": branchID},
		bson.M{"branchId": nil},
	}}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list fee templates")
	}
	defer cur.Close(ctx)

	var out []models.FeeTemplate
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode fee templates")
	}
	return out, nil
}
