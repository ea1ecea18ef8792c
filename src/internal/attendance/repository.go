package attendance

import (
	"context"
	"time"

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

// Repository is append-only: records are inserted once per upload and never
// mutated by this service.
type Repository interface {
	Insert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	List(ctx context.Context, counsellorID *primitive.ObjectID, limit int) ([]*models.Attendance, error)
	Stats(ctx context.Context) (*models.AttendanceStats, error)
}

func NewRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &repository{collection: collection}
}

func (r *repository) Insert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	record.CreatedAt = time.Now().UTC()

	res, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		logrus.WithError(err).WithField("counsellor_id", record.CounsellorID.Hex()).Error("Failed to insert attendance record")
		return nil, models.ErrDatabaseInsert
	}

	record.ID = res.InsertedID.(primitive.ObjectID)
	return record, nil
}

func (r *repository) List(ctx context.Context, counsellorID *primitive.ObjectID, limit int) ([]*models.Attendance, error) {
	filter := bson.M{}
	if counsellorID != nil {
		filter["counsellor_id"] = *counsellorID
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.M{"captured_at": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to find attendance records")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	var records []*models.Attendance
	for cursor.Next(ctx) {
		var record models.Attendance
		if err := cursor.Decode(&record); err != nil {
			logrus.WithError(err).Error("Failed to decode attendance record")
			continue
		}
		records = append(records, &record)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, models.ErrDatabaseQuery
	}

	return records, nil
}

func (r *repository) Stats(ctx context.Context) (*models.AttendanceStats, error) {
	total, err := r.count(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	verified, err := r.count(ctx, bson.M{"location_verified": true})
	if err != nil {
		return nil, err
	}

	return &models.AttendanceStats{
		Total:      total,
		Verified:   verified,
		Unverified: total - verified,
	}, nil
}

func (r *repository) count(ctx context.Context, filter bson.M) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to count attendance records")
		return 0, models.ErrDatabaseQuery
	}
	return count, nil
}
