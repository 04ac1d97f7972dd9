package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/planpal-backend/internal/profile"
)

// MongoProfileRepository stores profile records in the users collection,
// one document per identity with _id set to the identity id.
type MongoProfileRepository struct {
	col *mongo.Collection
}

func NewMongoProfileRepository(col *mongo.Collection) *MongoProfileRepository {
	return &MongoProfileRepository{col: col}
}

func (r *MongoProfileRepository) Find(ctx context.Context, id string) (*profile.Record, error) {
	var rec profile.Record
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *MongoProfileRepository) Merge(ctx context.Context, id string, patch profile.Patch) error {
	update := mergeUpdate(patch)
	if len(update) == 0 {
		return nil
	}
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("merge profile: %w", err)
	}
	return nil
}

// mergeUpdate sets only the fields present in patch. created_at is written
// once, on the upsert that creates the document.
func mergeUpdate(patch profile.Patch) bson.M {
	fields := patch.Fields()
	createdAt, hasCreated := fields["created_at"]
	delete(fields, "created_at")

	update := bson.M{}
	if len(fields) > 0 {
		set := bson.M{}
		for k, v := range fields {
			set[k] = v
		}
		update["$set"] = set
	}
	if hasCreated {
		update["$setOnInsert"] = bson.M{"created_at": createdAt}
	}
	return update
}
