package assignment

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"careconnect-visits-svc/src/internal/config"
	"careconnect-visits-svc/src/internal/counsellor"
	"careconnect-visits-svc/src/internal/geo"
	"careconnect-visits-svc/src/internal/models"
	"careconnect-visits-svc/src/internal/session"
)

const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// Notifier dispatches a visit offer to a counsellor. Implemented by the
// RabbitMQ notifier; delivery is best effort.
type Notifier interface {
	PublishOffer(offer models.OfferMessage) error
}

type CreateSessionRequest struct {
	Address         string    `json:"address"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	ScheduledStart  time.Time `json:"scheduledStart"`
	DurationMinutes int       `json:"durationMinutes"`
}

type CreateSessionResult struct {
	Session *models.VisitSession `json:"session"`
	// Matched reports whether any eligible counsellor was found and
	// notified. False means the search was exhausted at creation time; the
	// session stays pending for administrative follow-up.
	Matched   bool               `json:"matched"`
	Candidate *models.Counsellor `json:"candidate,omitempty"`
}

type RespondResult struct {
	Session *models.VisitSession `json:"session"`
	// NextNotified is set after a rejection when the cascade found another
	// candidate to offer the visit to.
	NextNotified *models.Counsellor `json:"nextNotified,omitempty"`
}

type ListSessionsRequest struct {
	Status string
	Page   int
	Limit  int
}

type ListSessionsResult struct {
	Sessions   []*models.VisitSession `json:"sessions"`
	TotalCount int64                  `json:"totalCount"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
}

type Service interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResult, error)
	GetSession(ctx context.Context, id primitive.ObjectID) (*models.VisitSession, error)
	ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResult, error)
	Respond(ctx context.Context, sessionID, counsellorID primitive.ObjectID, decision string) (*RespondResult, error)
	MatchAndNotify(ctx context.Context, sess *models.VisitSession, kind string) (*models.Counsellor, error)
}

type assignmentService struct {
	sessions    session.Repository
	counsellors counsellor.Repository
	notifier    Notifier
	cfg         *config.Configuration
}

func NewService(sessions session.Repository, counsellors counsellor.Repository, notifier Notifier, cfg *config.Configuration) Service {
	return &assignmentService{
		sessions:    sessions,
		counsellors: counsellors,
		notifier:    notifier,
		cfg:         cfg,
	}
}

func (s *assignmentService) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResult, error) {
	location := geo.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude}
	if !location.Valid() {
		return nil, models.ErrInvalidCoordinates
	}
	if req.DurationMinutes <= 0 || req.ScheduledStart.IsZero() {
		return nil, models.ErrInvalidVisitRequest
	}

	sess := &models.VisitSession{
		Address:         strings.TrimSpace(req.Address),
		Location:        models.NewGeoPoint(req.Latitude, req.Longitude),
		ScheduledStart:  req.ScheduledStart.UTC(),
		DurationMinutes: req.DurationMinutes,
	}

	sess, err := s.sessions.Create(ctx, sess)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"session_id":      sess.ID.Hex(),
		"scheduled_start": sess.ScheduledStart,
	}).Info("Visit session created")

	candidate, err := s.MatchAndNotify(ctx, sess, models.OfferKindInitial)
	if err != nil {
		return nil, err
	}

	return &CreateSessionResult{
		Session:   sess,
		Matched:   candidate != nil,
		Candidate: candidate,
	}, nil
}

func (s *assignmentService) GetSession(ctx context.Context, id primitive.ObjectID) (*models.VisitSession, error) {
	return s.sessions.GetByID(ctx, id)
}

func (s *assignmentService) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResult, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	sessions, totalCount, err := s.sessions.List(ctx, req.Status, req.Page, req.Limit)
	if err != nil {
		return nil, err
	}

	return &ListSessionsResult{
		Sessions:   sessions,
		TotalCount: totalCount,
		Page:       req.Page,
		Limit:      req.Limit,
	}, nil
}

// MatchAndNotify finds the nearest eligible counsellor outside the session's
// rejection set and offers them the visit. It mutates nothing: the session
// stays pending until an explicit accept. A nil candidate means the search
// is exhausted, which is a valid terminal outcome, not an error.
func (s *assignmentService) MatchAndNotify(ctx context.Context, sess *models.VisitSession, kind string) (*models.Counsellor, error) {
	candidate, err := s.counsellors.FindNearestExcluding(ctx, sess.Location, sess.RejectedBy, s.cfg.Assignment.MaxSearchRadiusKm)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		logrus.WithFields(logrus.Fields{
			"session_id": sess.ID.Hex(),
			"excluded":   len(sess.RejectedBy),
			"radius_km":  s.cfg.Assignment.MaxSearchRadiusKm,
		}).Info("Counsellor search exhausted, session stays pending")
		return nil, nil
	}

	distanceKm := 0.0
	if candidate.Location != nil {
		distanceKm = geo.DistanceKm(candidate.Location.Position(), sess.Location.Position())
	}

	offer := models.OfferMessage{
		Kind:            kind,
		SessionID:       sess.ID.Hex(),
		CounsellorID:    candidate.ID.Hex(),
		CounsellorName:  candidate.FullName(),
		Address:         sess.Address,
		Latitude:        sess.Location.Position().Latitude,
		Longitude:       sess.Location.Position().Longitude,
		ScheduledStart:  sess.ScheduledStart,
		DurationMinutes: sess.DurationMinutes,
		DistanceKm:      distanceKm,
	}

	if err := s.notifier.PublishOffer(offer); err != nil {
		// Soft failure: the match already happened and the session is still
		// pending, so a later re-match can repeat the offer. Never rolled back.
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id":    sess.ID.Hex(),
			"counsellor_id": candidate.ID.Hex(),
		}).Error(models.ErrNotifyFailed.Error())
	}

	logrus.WithFields(logrus.Fields{
		"session_id":    sess.ID.Hex(),
		"counsellor_id": candidate.ID.Hex(),
		"distance_km":   distanceKm,
		"kind":          kind,
	}).Info("Counsellor offered visit")

	return candidate, nil
}

// Respond processes a counsellor's answer to an offer. Accepts race through
// a conditional pending->assigned transition so that at most one counsellor
// wins; rejects grow the exclusion set and cascade to the next candidate.
func (s *assignmentService) Respond(ctx context.Context, sessionID, counsellorID primitive.ObjectID, decision string) (*RespondResult, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.counsellors.GetByID(ctx, counsellorID); err != nil {
		return nil, err
	}

	if sess.Status != models.SessionPending {
		return nil, models.ErrSessionResolved
	}

	switch decision {
	case DecisionAccept:
		return s.accept(ctx, sess, counsellorID)
	case DecisionReject:
		return s.reject(ctx, sess, counsellorID)
	default:
		return nil, models.ErrInvalidDecision
	}
}

func (s *assignmentService) accept(ctx context.Context, sess *models.VisitSession, counsellorID primitive.ObjectID) (*RespondResult, error) {
	// A counsellor that already rejected can never become the assignee. The
	// store enforces this in the assignment filter itself; the early check
	// only short-circuits the obvious case.
	if sess.HasRejected(counsellorID) {
		return nil, models.ErrCounsellorRejected
	}

	ok, err := s.sessions.TryAssign(ctx, sess.ID, counsellorID)
	if err != nil {
		return nil, err
	}

	if !ok {
		// Either another counsellor won the race between our read and the
		// write, or our own rejection landed in the meantime.
		updated, err := s.sessions.GetByID(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"session_id":    sess.ID.Hex(),
			"counsellor_id": counsellorID.Hex(),
			"status":        updated.Status,
		}).Info("Accept lost the assignment race")
		if updated.HasRejected(counsellorID) {
			return nil, models.ErrCounsellorRejected
		}
		return nil, models.ErrSessionResolved
	}

	updated, err := s.sessions.GetByID(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"session_id":    sess.ID.Hex(),
		"counsellor_id": counsellorID.Hex(),
	}).Info("Visit session assigned")

	return &RespondResult{Session: updated}, nil
}

func (s *assignmentService) reject(ctx context.Context, sess *models.VisitSession, counsellorID primitive.ObjectID) (*RespondResult, error) {
	if err := s.sessions.AddRejection(ctx, sess.ID, counsellorID); err != nil {
		return nil, err
	}

	updated, err := s.sessions.GetByID(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"session_id":    sess.ID.Hex(),
		"counsellor_id": counsellorID.Hex(),
		"rejected":      len(updated.RejectedBy),
	}).Info("Visit offer rejected, cascading to next candidate")

	var next *models.Counsellor
	if updated.Status == models.SessionPending {
		next, err = s.MatchAndNotify(ctx, updated, models.OfferKindCascade)
		if err != nil {
			return nil, err
		}
	}

	return &RespondResult{Session: updated, NextNotified: next}, nil
}
