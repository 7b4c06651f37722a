package models

import "time"

// PendingGuest holds the structure for the pendingGuests collection in mongo. The user
// fields are copied when the request is made and are not kept in sync with the profile.
type PendingGuest struct {
	PendingGuestID string    `json:"pendingGuestId" bson:"pendingGuestId"`
	EventID        string    `json:"eventId" bson:"eventId"`
	UserID         string    `json:"userId" bson:"userId"`
	UserName       string    `json:"userName" bson:"userName"`
	UserEmail      string    `json:"userEmail" bson:"userEmail"`
	UserPhotoURL   string    `json:"userPhotoUrl" bson:"userPhotoUrl"`
	RequestedAt    time.Time `json:"requestedAt" bson:"requestedAt"`
}
