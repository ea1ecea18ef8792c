package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attendance records one claimed visit check-in. Records are append-only:
// one per photo upload, never mutated afterwards. TimeOut is filled in later
// by the payroll export job, not by this service.
type Attendance struct {
	ID               primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	CounsellorID     primitive.ObjectID  `json:"counsellorId" bson:"counsellor_id"`
	Latitude         float64             `json:"latitude" bson:"latitude"`
	Longitude        float64             `json:"longitude" bson:"longitude"`
	CapturedAt       time.Time           `json:"capturedAt" bson:"captured_at"`
	LocationVerified bool                `json:"locationVerified" bson:"location_verified"`
	MatchedSessionID *primitive.ObjectID `json:"matchedSessionId,omitempty" bson:"matched_session_id,omitempty"`
	DistanceKm       *float64            `json:"distanceKm,omitempty" bson:"distance_km,omitempty"`
	ImageRef         string              `json:"imageRef" bson:"image_ref"`
	TimeOut          *time.Time          `json:"timeOut,omitempty" bson:"time_out,omitempty"`
	CreatedAt        time.Time           `json:"createdAt" bson:"created_at"`
}
