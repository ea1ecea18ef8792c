package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Counsellor is read-only from this service's perspective; the profile
// backoffice owns the records. Approved acts as the eligibility filter for
// assignment. A nil Location means the counsellor has not been geolocated
// and can never be matched to a visit.
type Counsellor struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FirstName string             `json:"firstName" bson:"first_name"`
	LastName  string             `json:"lastName" bson:"last_name"`
	Email     string             `json:"email" bson:"email"`
	Phone     string             `json:"phone" bson:"phone"`
	Location  *GeoPoint          `json:"location,omitempty" bson:"location,omitempty"`
	Approved  bool               `json:"approved" bson:"approved"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updated_at"`
}

func (c *Counsellor) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
