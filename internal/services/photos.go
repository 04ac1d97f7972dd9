package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/planpal-backend/internal/relay"
)

var (
	ErrNoPhotos          = errors.New("no photos provided")
	ErrPhotoUploadFailed = errors.New("failed to upload one or more photos")
	ErrNoUploader        = errors.New("image relay not configured")
)

// TripPhoto is the metadata kept for an image uploaded to a trip gallery.
type TripPhoto struct {
	ID           string    `bson:"_id" json:"id"`
	TripID       string    `bson:"trip_id" json:"trip_id"`
	URL          string    `bson:"url" json:"url"`
	Caption      string    `bson:"caption" json:"caption"`
	LocationName string    `bson:"location_name" json:"location_name"`
	UploadedBy   string    `bson:"uploaded_by" json:"uploaded_by"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// PhotoRepository is the append-only trip photo collection.
type PhotoRepository interface {
	Add(ctx context.Context, photo TripPhoto) error
	// List returns a trip's photos newest first.
	List(ctx context.Context, tripID string) ([]TripPhoto, error)
}

// TripFolder is the image-host folder for a trip's gallery.
func TripFolder(tripID string) string {
	return relay.DefaultFolder + "/trips/" + tripID
}

// PhotoUploader relays image bytes to the image host.
type PhotoUploader interface {
	Upload(ctx context.Context, data []byte, folder string) (relay.Result, error)
}

// TripPhotoService uploads gallery images and records their metadata.
type TripPhotoService struct {
	repo     PhotoRepository
	uploader PhotoUploader
	now      func() time.Time
}

func NewTripPhotoService(repo PhotoRepository, uploader PhotoUploader) *TripPhotoService {
	return &TripPhotoService{repo: repo, uploader: uploader, now: time.Now}
}

// PhotoUploadError reports which files of a batch failed. Photos uploaded
// before the failure are kept.
type PhotoUploadError struct {
	Saved  []TripPhoto
	Failed int
	Err    error
}

func (e *PhotoUploadError) Error() string {
	return fmt.Sprintf("%v: %d failed: %v", ErrPhotoUploadFailed, e.Failed, e.Err)
}

func (e *PhotoUploadError) Unwrap() []error { return []error{ErrPhotoUploadFailed, e.Err} }

// Add uploads each image to the trip's folder and appends a photo record for
// every one that succeeds.
func (s *TripPhotoService) Add(ctx context.Context, tripID, uploadedBy string, images [][]byte) ([]TripPhoto, error) {
	tripID = strings.TrimSpace(tripID)
	if tripID == "" {
		return nil, errors.New("trip id is required")
	}
	if len(images) == 0 {
		return nil, ErrNoPhotos
	}
	if s.uploader == nil {
		return nil, ErrNoUploader
	}

	var (
		saved   []TripPhoto
		failed  int
		lastErr error
	)
	for _, img := range images {
		res, err := s.uploader.Upload(ctx, img, TripFolder(tripID))
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		photo := TripPhoto{
			ID:         uuid.NewString(),
			TripID:     tripID,
			URL:        res.URL,
			UploadedBy: uploadedBy,
			CreatedAt:  s.now().UTC(),
		}
		if err := s.repo.Add(ctx, photo); err != nil {
			failed++
			lastErr = err
			continue
		}
		saved = append(saved, photo)
	}
	if failed > 0 {
		return saved, &PhotoUploadError{Saved: saved, Failed: failed, Err: lastErr}
	}
	return saved, nil
}

func (s *TripPhotoService) List(ctx context.Context, tripID string) ([]TripPhoto, error) {
	return s.repo.List(ctx, tripID)
}

// MongoPhotoRepository keeps photos in the trip_photos collection.
type MongoPhotoRepository struct {
	col *mongo.Collection
}

func NewMongoPhotoRepository(col *mongo.Collection) *MongoPhotoRepository {
	return &MongoPhotoRepository{col: col}
}

func (r *MongoPhotoRepository) Add(ctx context.Context, photo TripPhoto) error {
	if _, err := r.col.InsertOne(ctx, photo); err != nil {
		return fmt.Errorf("insert trip photo: %w", err)
	}
	return nil
}

func (r *MongoPhotoRepository) List(ctx context.Context, tripID string) ([]TripPhoto, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"trip_id": tripID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list trip photos: %w", err)
	}
	defer cur.Close(ctx)

	photos := []TripPhoto{}
	if err := cur.All(ctx, &photos); err != nil {
		return nil, fmt.Errorf("decode trip photos: %w", err)
	}
	return photos, nil
}

// MemoryPhotoRepository backs DOCUMENT_STORE=memory.
type MemoryPhotoRepository struct {
	mu     sync.RWMutex
	photos map[string][]TripPhoto
}

func NewMemoryPhotoRepository() *MemoryPhotoRepository {
	return &MemoryPhotoRepository{photos: make(map[string][]TripPhoto)}
}

func (r *MemoryPhotoRepository) Add(_ context.Context, photo TripPhoto) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.photos[photo.TripID] = append(r.photos[photo.TripID], photo)
	return nil
}

func (r *MemoryPhotoRepository) List(_ context.Context, tripID string) ([]TripPhoto, error) {
	r.mu.RLock()
	stored := r.photos[tripID]
	out := make([]TripPhoto, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
