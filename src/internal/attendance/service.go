package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"careconnect-visits-svc/src/internal/config"
	"careconnect-visits-svc/src/internal/counsellor"
	"careconnect-visits-svc/src/internal/geo"
	"careconnect-visits-svc/src/internal/models"
	"careconnect-visits-svc/src/internal/session"
)

// Extractor pulls a GPS position out of uploaded photo bytes. Implemented
// by the EXIF extractor in the photo package.
type Extractor interface {
	Coordinates(data []byte) (geo.Coordinates, error)
}

type Service interface {
	Record(ctx context.Context, counsellorID primitive.ObjectID, image []byte, capturedAt time.Time) (*models.Attendance, error)
	List(ctx context.Context, counsellorID *primitive.ObjectID, limit int) ([]*models.Attendance, error)
}

type attendanceService struct {
	records     Repository
	sessions    session.Repository
	counsellors counsellor.Repository
	extractor   Extractor
	cfg         *config.Configuration
}

func NewService(records Repository, sessions session.Repository, counsellors counsellor.Repository, extractor Extractor, cfg *config.Configuration) Service {
	return &attendanceService{
		records:     records,
		sessions:    sessions,
		counsellors: counsellors,
		extractor:   extractor,
		cfg:         cfg,
	}
}

// Record verifies and persists one claimed check-in. A photo without GPS
// metadata rejects the upload outright; everything else is recorded, with
// locationVerified deciding whether the claim held up. Recording despite a
// failed or impossible check is deliberate (fail-open) unless
// verification.require-verified is set.
func (s *attendanceService) Record(ctx context.Context, counsellorID primitive.ObjectID, image []byte, capturedAt time.Time) (*models.Attendance, error) {
	coords, err := s.extractor.Coordinates(image)
	if err != nil {
		logrus.WithField("counsellor_id", counsellorID.Hex()).Info("Attendance upload rejected: no GPS metadata")
		return nil, err
	}

	if _, err := s.counsellors.GetByID(ctx, counsellorID); err != nil {
		return nil, err
	}

	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	record := &models.Attendance{
		CounsellorID: counsellorID,
		Latitude:     coords.Latitude,
		Longitude:    coords.Longitude,
		CapturedAt:   capturedAt.UTC(),
		ImageRef:     "attendance/" + uuid.NewString() + ".jpg",
	}

	sess, err := s.sessions.FindActiveForCounsellor(ctx, counsellorID, record.CapturedAt)
	if err != nil {
		return nil, err
	}

	if sess != nil {
		distance := geo.DistanceKm(coords, sess.Location.Position())
		record.MatchedSessionID = &sess.ID
		record.DistanceKm = &distance
		record.LocationVerified = distance <= s.cfg.Verification.RadiusKm
	}

	if s.cfg.Verification.RequireVerified && !record.LocationVerified {
		logrus.WithFields(logrus.Fields{
			"counsellor_id": counsellorID.Hex(),
			"matched":       sess != nil,
		}).Info("Attendance upload rejected: strict verification enabled")
		return nil, models.ErrAttendanceUnverified
	}

	record, err = s.records.Insert(ctx, record)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"attendance_id": record.ID.Hex(),
		"counsellor_id": counsellorID.Hex(),
		"verified":      record.LocationVerified,
	}
	if record.MatchedSessionID != nil {
		fields["session_id"] = record.MatchedSessionID.Hex()
	}
	logrus.WithFields(fields).Info("Attendance recorded")

	return record, nil
}

func (s *attendanceService) List(ctx context.Context, counsellorID *primitive.ObjectID, limit int) ([]*models.Attendance, error) {
	if limit <= 0 || limit > s.cfg.Verification.ListLimit {
		limit = s.cfg.Verification.ListLimit
	}
	return s.records.List(ctx, counsellorID, limit)
}
