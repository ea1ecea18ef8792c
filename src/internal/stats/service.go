package stats

import (
	"context"

	"github.com/sirupsen/logrus"

	"careconnect-visits-svc/src/internal/attendance"
	"careconnect-visits-svc/src/internal/counsellor"
	"careconnect-visits-svc/src/internal/models"
	"careconnect-visits-svc/src/internal/session"
)

type Service interface {
	Collect(ctx context.Context) (*models.Stats, error)
}

type statsService struct {
	sessions    session.Repository
	counsellors counsellor.Repository
	attendances attendance.Repository
}

func NewService(sessions session.Repository, counsellors counsellor.Repository, attendances attendance.Repository) Service {
	return &statsService{
		sessions:    sessions,
		counsellors: counsellors,
		attendances: attendances,
	}
}

func (s *statsService) Collect(ctx context.Context) (*models.Stats, error) {
	logrus.Debug("Collecting coordination statistics")

	sessionStats, err := s.sessions.Stats(ctx)
	if err != nil {
		return nil, err
	}

	attendanceStats, err := s.attendances.Stats(ctx)
	if err != nil {
		return nil, err
	}

	counsellorStats, err := s.counsellors.Stats(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.Stats{
		Sessions:    *sessionStats,
		Attendances: *attendanceStats,
		Counsellors: *counsellorStats,
	}

	logrus.WithFields(logrus.Fields{
		"pending":  stats.Sessions.Pending,
		"assigned": stats.Sessions.Assigned,
		"verified": stats.Attendances.Verified,
	}).Info("Coordination statistics collected")

	return stats, nil
}
