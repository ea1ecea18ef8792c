package session

import (
	"context"
	"errors"
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

// Repository is the narrow session-store surface the coordinator needs. The
// conditional TryAssign is the only write that requires atomicity; the store
// applies it as a single filtered document update.
type Repository interface {
	Create(ctx context.Context, session *models.VisitSession) (*models.VisitSession, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.VisitSession, error)
	List(ctx context.Context, status string, page, limit int) ([]*models.VisitSession, int64, error)
	TryAssign(ctx context.Context, id, counsellorID primitive.ObjectID) (bool, error)
	AddRejection(ctx context.Context, id, counsellorID primitive.ObjectID) error
	FindActiveForCounsellor(ctx context.Context, counsellorID primitive.ObjectID, at time.Time) (*models.VisitSession, error)
	Stats(ctx context.Context) (*models.SessionStats, error)
}

func NewRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &repository{collection: collection}
}

func (r *repository) Create(ctx context.Context, session *models.VisitSession) (*models.VisitSession, error) {
	now := time.Now().UTC()
	session.Status = models.SessionPending
	session.RejectedBy = []primitive.ObjectID{}
	session.CreatedAt = now
	session.UpdatedAt = now

	res, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert visit session")
		return nil, models.ErrDatabaseInsert
	}

	session.ID = res.InsertedID.(primitive.ObjectID)
	return session, nil
}

func (r *repository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.VisitSession, error) {
	var session models.VisitSession
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrSessionNotFound
		}
		logrus.WithError(err).WithField("session_id", id.Hex()).Error("Failed to get visit session")
		return nil, models.ErrDatabaseQuery
	}

	return &session, nil
}

func (r *repository) List(ctx context.Context, status string, page, limit int) ([]*models.VisitSession, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	totalCount, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to count visit sessions")
		return nil, 0, models.ErrDatabaseQuery
	}

	skip := (page - 1) * limit

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(skip)).
		SetSort(bson.M{"scheduled_start": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to find visit sessions")
		return nil, 0, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	var sessions []*models.VisitSession
	for cursor.Next(ctx) {
		var session models.VisitSession
		if err := cursor.Decode(&session); err != nil {
			logrus.WithError(err).Error("Failed to decode visit session")
			continue
		}
		sessions = append(sessions, &session)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, 0, models.ErrDatabaseQuery
	}

	return sessions, totalCount, nil
}

// TryAssign atomically moves a pending session to assigned for the given
// counsellor. The filter also excludes counsellors already in rejected_by,
// so a rejection landing between the caller's read and this write can never
// be overturned by the write. It reports false when no document matched,
// which is how a lost accept race surfaces.
func (r *repository) TryAssign(ctx context.Context, id, counsellorID primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"_id":         id,
		"status":      models.SessionPending,
		"rejected_by": bson.M{"$ne": counsellorID},
	}

	update := bson.M{"$set": bson.M{
		"status":              models.SessionAssigned,
		"assigned_counsellor": counsellorID,
		"updated_at":          time.Now().UTC(),
	}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id":    id.Hex(),
			"counsellor_id": counsellorID.Hex(),
		}).Error("Failed to assign session")
		return false, models.ErrDatabaseUpdate
	}

	return res.ModifiedCount == 1, nil
}

// AddRejection appends a counsellor to the rejection set. $addToSet makes
// the operation idempotent and safe under concurrent rejects; the status
// filter keeps the set frozen once the session is resolved, so a reject
// racing an accept surfaces as ErrSessionResolved instead of mutating an
// assigned session.
func (r *repository) AddRejection(ctx context.Context, id, counsellorID primitive.ObjectID) error {
	filter := bson.M{"_id": id, "status": models.SessionPending}
	update := bson.M{
		"$addToSet": bson.M{"rejected_by": counsellorID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id":    id.Hex(),
			"counsellor_id": counsellorID.Hex(),
		}).Error("Failed to record rejection")
		return models.ErrDatabaseUpdate
	}
	if res.MatchedCount == 0 {
		return models.ErrSessionResolved
	}

	return nil
}

// FindActiveForCounsellor returns the session assigned to the counsellor
// whose scheduled window contains the given instant, or nil when there is
// none. The window end is computed from scheduled_start plus
// duration_minutes at query time.
func (r *repository) FindActiveForCounsellor(ctx context.Context, counsellorID primitive.ObjectID, at time.Time) (*models.VisitSession, error) {
	filter := bson.M{
		"status":              models.SessionAssigned,
		"assigned_counsellor": counsellorID,
		"scheduled_start":     bson.M{"$lte": at},
		"$expr": bson.M{
			"$gte": bson.A{
				bson.M{"$add": bson.A{
					"$scheduled_start",
					bson.M{"$multiply": bson.A{"$duration_minutes", 60000}},
				}},
				at,
			},
		},
	}

	var session models.VisitSession
	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		logrus.WithError(err).WithField("counsellor_id", counsellorID.Hex()).Error("Failed to find active session")
		return nil, models.ErrDatabaseQuery
	}

	return &session, nil
}

func (r *repository) Stats(ctx context.Context) (*models.SessionStats, error) {
	total, err := r.countByStatus(ctx, "")
	if err != nil {
		return nil, err
	}

	pending, err := r.countByStatus(ctx, models.SessionPending)
	if err != nil {
		return nil, err
	}

	assigned, err := r.countByStatus(ctx, models.SessionAssigned)
	if err != nil {
		return nil, err
	}

	completed, err := r.countByStatus(ctx, models.SessionCompleted)
	if err != nil {
		return nil, err
	}

	rejected, err := r.countByStatus(ctx, models.SessionRejected)
	if err != nil {
		return nil, err
	}

	return &models.SessionStats{
		Total:     total,
		Pending:   pending,
		Assigned:  assigned,
		Completed: completed,
		Rejected:  rejected,
	}, nil
}

func (r *repository) countByStatus(ctx context.Context, status string) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to count visit sessions")
		return 0, models.ErrDatabaseQuery
	}
	return count, nil
}
