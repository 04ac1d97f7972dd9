package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/AnshRaj112/planpal-backend/internal/profile"
)

func TestMergeUpdateSetsOnlyPresentFields(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	verified := false
	update := mergeUpdate(profile.Patch{
		Name:      profile.String("Pat"),
		Phone:     profile.String("555"),
		Verified:  &verified,
		CreatedAt: &created,
	})

	assert.Equal(t, bson.M{
		"$set":         bson.M{"name": "Pat", "phone": "555", "verified": false},
		"$setOnInsert": bson.M{"created_at": created},
	}, update)
}

func TestMergeUpdateEmptyPatch(t *testing.T) {
	assert.Empty(t, mergeUpdate(profile.Patch{}))
}

func TestMongoProfileRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find existing", func(mt *mtest.T) {
		repo := NewMongoProfileRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "planpal.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "name", Value: "Pat"},
			{Key: "avatar_url", Value: "https://cdn/p.png"},
		}))

		rec, err := repo.Find(context.Background(), "u1")
		require.NoError(mt, err)
		assert.Equal(mt, "Pat", rec.Name)
		assert.Equal(mt, "https://cdn/p.png", rec.AvatarURL)
	})

	mt.Run("find missing", func(mt *mtest.T) {
		repo := NewMongoProfileRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "planpal.users", mtest.FirstBatch))

		_, err := repo.Find(context.Background(), "nobody")
		assert.ErrorIs(mt, err, profile.ErrNotFound)
	})

	mt.Run("merge upserts", func(mt *mtest.T) {
		repo := NewMongoProfileRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "u1"}}}},
		))

		err := repo.Merge(context.Background(), "u1", profile.Patch{Bio: profile.String("hi")})
		assert.NoError(mt, err)
	})

	mt.Run("merge failure", func(mt *mtest.T) {
		repo := NewMongoProfileRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "duplicate key"}))

		err := repo.Merge(context.Background(), "u1", profile.Patch{Bio: profile.String("hi")})
		assert.ErrorContains(mt, err, "merge profile")
	})
}

func TestMongoPhotoRepositoryList(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("newest first", func(mt *mtest.T) {
		repo := NewMongoPhotoRepository(mt.Coll)
		newer := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
		older := newer.Add(-time.Hour)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "planpal.trip_photos", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "p2"}, {Key: "trip_id", Value: "t1"}, {Key: "url", Value: "https://cdn/2.png"}, {Key: "created_at", Value: newer}},
				bson.D{{Key: "_id", Value: "p1"}, {Key: "trip_id", Value: "t1"}, {Key: "url", Value: "https://cdn/1.png"}, {Key: "created_at", Value: older}},
			),
			mtest.CreateCursorResponse(0, "planpal.trip_photos", mtest.NextBatch),
		)

		photos, err := repo.List(context.Background(), "t1")
		require.NoError(mt, err)
		require.Len(mt, photos, 2)
		assert.Equal(mt, "p2", photos[0].ID)
		assert.Equal(mt, "p1", photos[1].ID)
	})

	mt.Run("insert", func(mt *mtest.T) {
		repo := NewMongoPhotoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Add(context.Background(), TripPhoto{ID: "p1", TripID: "t1", URL: "https://cdn/1.png"})
		assert.NoError(mt, err)
	})
}
