package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"careconnect-visits-svc/src/internal/config"
	"careconnect-visits-svc/src/internal/models"
)

type Service interface {
	SaveStats(ctx context.Context, stats *models.Stats) error
	GetStats(ctx context.Context) (*models.Stats, error)
	SaveAttendanceList(ctx context.Context, counsellorID string, records []*models.Attendance) error
	GetAttendanceList(ctx context.Context, counsellorID string) ([]*models.Attendance, error)
	InvalidateAttendanceList(ctx context.Context, counsellorID string) error
}

type cacheService struct {
	client *redis.Client
	cfg    *config.CacheConfig
}

func NewCacheService(client *redis.Client, cfg *config.Configuration) Service {
	return &cacheService{
		client: client,
		cfg:    &cfg.Cache}
}

func (c *cacheService) SaveStats(ctx context.Context, stats *models.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal stats for cache")
		return models.ErrRedisSet
	}

	expiration := time.Duration(c.cfg.StatsExpirationMinutes) * time.Minute
	err = c.client.Set(ctx, c.cfg.StatsKey, data, expiration).Err()
	if err != nil {
		logrus.WithError(err).Error("Failed to cache stats")
		return models.ErrRedisSet
	}
	return nil
}

func (c *cacheService) GetStats(ctx context.Context) (*models.Stats, error) {
	data, err := c.client.Get(ctx, c.cfg.StatsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.Debug("Stats not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).Error("Failed to get stats from cache")
		return nil, models.ErrRedisGet
	}

	var stats models.Stats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal stats from cache")
		return nil, models.ErrRedisGet
	}

	logrus.Debug("Stats retrieved from cache successfully")
	return &stats, nil
}

func (c *cacheService) SaveAttendanceList(ctx context.Context, counsellorID string, records []*models.Attendance) error {
	key := attendanceListKey(counsellorID)

	data, err := json.Marshal(records)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to marshal attendance list for cache")
		return models.ErrRedisSet
	}

	expiration := time.Duration(c.cfg.ListExpirationMinutes) * time.Minute
	err = c.client.Set(ctx, key, data, expiration).Err()
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to cache attendance list")
		return models.ErrRedisSet
	}

	logrus.WithField("key", key).Debug("Attendance list cached successfully")
	return nil
}

func (c *cacheService) GetAttendanceList(ctx context.Context, counsellorID string) ([]*models.Attendance, error) {
	key := attendanceListKey(counsellorID)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.WithField("key", key).Debug("Attendance list not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).WithField("key", key).Error("Failed to get attendance list from cache")
		return nil, models.ErrRedisGet
	}

	var records []*models.Attendance
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to unmarshal attendance list from cache")
		return nil, models.ErrRedisGet
	}

	return records, nil
}

func (c *cacheService) InvalidateAttendanceList(ctx context.Context, counsellorID string) error {
	key := attendanceListKey(counsellorID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to invalidate attendance list")
		return models.ErrRedisDelete
	}
	return nil
}

func attendanceListKey(counsellorID string) string {
	if counsellorID == "" {
		counsellorID = "all"
	}
	return fmt.Sprintf("attendance:list:%s", counsellorID)
}
