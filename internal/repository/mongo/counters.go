package mongo

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ease_academy_api/internal/repository"
)

type counterRepository struct {
	coll *mongo.Collection
}

func NewCounterRepository(db *mongo.Database) repository.CounterRepository {
	return &counterRepository{coll: db.Collection(CountersCollection)}
}

type counterDoc struct {
	Key string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

func (r *counterRepository) Next(ctx context.Context, key string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": key}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// two first increments raced on the upsert, the loser retries as a plain update
		err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": key}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&doc)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "increment counter %s", key)
	}
	return doc.Seq, nil
}
