package mongo

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

type userRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) repository.UserRepository {
	return &userRepository{coll: db.Collection(UsersCollection)}
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, translate(err, "find user")
	}
	return &u, nil
}

func (r *userRepository) find(ctx context.Context, filter bson.M) ([]models.User, error) {
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "find users")
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	return out, nil
}

func (r *userRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	pattern := "^" + regexp.QuoteMeta(email) + "$"
	return r.findOne(ctx, bson.M{"email": primitive.Regex{Pattern: pattern, Options: "i"}})
}

// studentFilter only matches students that carry a profile; callers read
// class, section and discount from it.
func studentFilter(lookup repository.StudentLookup) bson.M {
	filter := bson.M{
		"role":           models.RoleStudent,
		"studentProfile": bson.M{"$ne": nil},
	}
	if lookup.ID != nil {
		filter["_id"] = *lookup.ID
	}
	if lookup.RegistrationNumber != "" {
		filter["studentProfile.registrationNumber"] = lookup.RegistrationNumber
	}
	if lookup.BranchID != nil {
		filter["branchId"] = *lookup.BranchID
	}
	return filter
}

func (r *userRepository) FindStudent(ctx context.Context, lookup repository.StudentLookup) (*models.User, error) {
	return r.findOne(ctx, studentFilter(lookup))
}

func (r *userRepository) FindByRole(ctx context.Context, role models.Role, branchID *primitive.ObjectID) ([]models.User, error) {
	filter := bson.M{"role": role, "isActive": true}
	if branchID != nil {
		filter["branchId"] = *branchID
	}
	return r.find(ctx, filter)
}
