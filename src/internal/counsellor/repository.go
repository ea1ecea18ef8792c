package counsellor

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"careconnect-visits-svc/src/clients"
	"careconnect-visits-svc/src/internal/models"
)

type repository struct {
	collection *mongo.Collection
}

// Repository is read-only over counsellor records; the profile backoffice
// owns the documents.
type Repository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Counsellor, error)
	FindNearestExcluding(ctx context.Context, point models.GeoPoint, exclude []primitive.ObjectID, maxRadiusKm float64) (*models.Counsellor, error)
	List(ctx context.Context, page, limit int) ([]*models.Counsellor, int64, error)
	Stats(ctx context.Context) (*models.CounsellorStats, error)
	EnsureIndexes(ctx context.Context) error
}

func NewRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &repository{collection: collection}
}

// EnsureIndexes creates the 2dsphere index the nearest-neighbor query needs.
func (r *repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to create counsellor location index")
		return models.ErrDatabaseUpdate
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Counsellor, error) {
	var counsellor models.Counsellor
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&counsellor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrCounsellorNotFound
		}
		logrus.WithError(err).WithField("counsellor_id", id.Hex()).Error("Failed to get counsellor")
		return nil, models.ErrDatabaseQuery
	}

	return &counsellor, nil
}

// FindNearestExcluding returns the approved counsellor closest to the point,
// skipping the excluded ids, within maxRadiusKm. A nil result with nil error
// means the search is exhausted; counsellors without a stored location never
// match. $near sorts by distance, so FindOne yields the nearest candidate.
func (r *repository) FindNearestExcluding(ctx context.Context, point models.GeoPoint, exclude []primitive.ObjectID, maxRadiusKm float64) (*models.Counsellor, error) {
	filter := bson.M{
		"approved": true,
		"location": bson.M{
			"$near": bson.M{
				"$geometry":    point,
				"$maxDistance": maxRadiusKm * 1000,
			},
		},
	}
	if len(exclude) > 0 {
		filter["_id"] = bson.M{"$nin": exclude}
	}

	var counsellor models.Counsellor
	err := r.collection.FindOne(ctx, filter).Decode(&counsellor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		logrus.WithError(err).Error("Failed to run nearest-counsellor query")
		return nil, models.ErrDatabaseQuery
	}

	return &counsellor, nil
}

func (r *repository) List(ctx context.Context, page, limit int) ([]*models.Counsellor, int64, error) {
	filter := bson.M{}

	totalCount, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to count counsellors")
		return nil, 0, models.ErrDatabaseQuery
	}

	skip := (page - 1) * limit

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(skip)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to find counsellors")
		return nil, 0, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	var counsellors []*models.Counsellor
	for cursor.Next(ctx) {
		var counsellor models.Counsellor
		if err := cursor.Decode(&counsellor); err != nil {
			logrus.WithError(err).Error("Failed to decode counsellor")
			continue
		}
		counsellors = append(counsellors, &counsellor)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, 0, models.ErrDatabaseQuery
	}

	return counsellors, totalCount, nil
}

func (r *repository) Stats(ctx context.Context) (*models.CounsellorStats, error) {
	total, err := r.count(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	approved, err := r.count(ctx, bson.M{"approved": true})
	if err != nil {
		return nil, err
	}

	geolocated, err := r.count(ctx, bson.M{"location": bson.M{"$exists": true}})
	if err != nil {
		return nil, err
	}

	return &models.CounsellorStats{
		Total:      total,
		Approved:   approved,
		Geolocated: geolocated,
	}, nil
}

func (r *repository) count(ctx context.Context, filter bson.M) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to count counsellors")
		return 0, models.ErrDatabaseQuery
	}
	return count, nil
}
