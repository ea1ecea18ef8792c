package models

import "time"

// OfferMessage is the payload published to the notification exchange when a
// counsellor is offered a visit. Delivery is best effort; the visit stays
// pending until the counsellor explicitly accepts.
type OfferMessage struct {
	Kind            string    `json:"kind"`
	SessionID       string    `json:"session_id"`
	CounsellorID    string    `json:"counsellor_id"`
	CounsellorName  string    `json:"counsellor_name"`
	Address         string    `json:"address"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	ScheduledStart  time.Time `json:"scheduled_start"`
	DurationMinutes int       `json:"duration_minutes"`
	DistanceKm      float64   `json:"distance_km"`
	Timestamp       time.Time `json:"timestamp"`
}

// Offer message kinds
const (
	OfferKindInitial = "initial"
	OfferKindCascade = "cascade"
)

// Service name constants
const (
	ServiceAssignment = "visits.assignment"
	ServiceAttendance = "visits.attendance"
)
