package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"careconnect-visits-svc/src/internal/geo"
)

const (
	SessionPending   = "pending"
	SessionAssigned  = "assigned"
	SessionCompleted = "completed"
	SessionRejected  = "rejected"
)

// GeoPoint is a GeoJSON point as persisted in MongoDB. Coordinates follow
// the GeoJSON axis order: [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type" bson:"type"`
	Coordinates [2]float64 `json:"coordinates" bson:"coordinates"`
}

func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{
		Type:        "Point",
		Coordinates: [2]float64{lon, lat},
	}
}

// Position returns the point in latitude/longitude order.
func (p GeoPoint) Position() geo.Coordinates {
	return geo.Coordinates{
		Latitude:  p.Coordinates[1],
		Longitude: p.Coordinates[0],
	}
}

// VisitSession is a scheduled household visit. Only the assignment
// coordinator mutates it; "completed" is set by the scheduling backoffice
// outside this service.
type VisitSession struct {
	ID                 primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Address            string               `json:"address" bson:"address"`
	Location           GeoPoint             `json:"location" bson:"location"`
	ScheduledStart     time.Time            `json:"scheduledStart" bson:"scheduled_start"`
	DurationMinutes    int                  `json:"durationMinutes" bson:"duration_minutes"`
	Status             string               `json:"status" bson:"status"`
	AssignedCounsellor *primitive.ObjectID  `json:"assignedCounsellor,omitempty" bson:"assigned_counsellor,omitempty"`
	RejectedBy         []primitive.ObjectID `json:"rejectedBy" bson:"rejected_by"`
	CreatedAt          time.Time            `json:"createdAt" bson:"created_at"`
	UpdatedAt          time.Time            `json:"updatedAt" bson:"updated_at"`
}

// Window returns the time range during which the visit is considered active.
func (s *VisitSession) Window() (time.Time, time.Time) {
	return s.ScheduledStart, s.ScheduledStart.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// HasRejected reports whether the counsellor already turned this visit down.
func (s *VisitSession) HasRejected(counsellorID primitive.ObjectID) bool {
	for _, id := range s.RejectedBy {
		if id == counsellorID {
			return true
		}
	}
	return false
}
