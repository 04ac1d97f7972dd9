package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection      = "users"
	TripPhotosCollection = "trip_photos"

	defaultDatabase = "planpal"
)

// ConnectMongo dials MongoDB and selects the database named by name, or by
// the URI path when name is empty.
func ConnectMongo(ctx context.Context, mongoURI, name string, logger *slog.Logger) (*mongo.Client, *mongo.Database, error) {
	// Atlas connections can take a while on cold start.
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	logger.Info("Attempting to connect to MongoDB...")
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	if name == "" {
		name = DatabaseName(mongoURI)
	}
	db := client.Database(name)

	ensureMongoIndexes(ctx, db, logger)

	logger.Info("Connected to MongoDB", "database", name)
	return client, db, nil
}

// DatabaseName extracts the database from a mongodb:// URI path.
func DatabaseName(mongoURI string) string {
	parts := strings.Split(mongoURI, "/")
	if len(parts) > 3 {
		if db := strings.Split(parts[len(parts)-1], "?")[0]; db != "" {
			return db
		}
	}
	return defaultDatabase
}

// Best-effort; a missing index only costs query speed.
func ensureMongoIndexes(ctx context.Context, db *mongo.Database, logger *slog.Logger) {
	_, err := db.Collection(TripPhotosCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "trip_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		logger.Warn("could not create trip photo index", "error", err)
	}
}

func DisconnectMongo(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}
