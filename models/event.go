package models

import "time"

// Event holds the structure for the events collection in mongo. Field names are
// shared with existing mobile clients and must not change.
type Event struct {
	EventID               string    `json:"eventId" bson:"eventId"`
	HostID                string    `json:"hostId" bson:"hostId"`
	Name                  string    `json:"name" bson:"name"`
	Description           string    `json:"description" bson:"description"`
	Date                  time.Time `json:"date" bson:"date"`
	Location              string    `json:"location" bson:"location"`
	Latitude              float64   `json:"latitude" bson:"latitude"`
	Longitude             float64   `json:"longitude" bson:"longitude"`
	DurationMinutes       int       `json:"durationMinutes" bson:"durationMinutes"`
	BackgroundImageURL    string    `json:"backgroundImageUrl" bson:"backgroundImageUrl"`
	InviteCode            string    `json:"inviteCode,omitempty" bson:"inviteCode"`
	GuestIDs              []string  `json:"guestIds" bson:"guestIds"`
	PendingGuestIDs       []string  `json:"pendingGuestIds" bson:"pendingGuestIds"`
	PhotoCount            int       `json:"photoCount" bson:"photoCount"`
	PlaylistURLs          []string  `json:"playlistUrls" bson:"playlistUrls"`
	MusicPlaylistURL      string    `json:"musicPlaylistUrl" bson:"musicPlaylistUrl"`
	SharedAlbumURL        string    `json:"sharedAlbumUrl" bson:"sharedAlbumUrl"`
	MaxGuests             *int      `json:"maxGuests" bson:"maxGuests"`
	IsPublic              bool      `json:"isPublic" bson:"isPublic"`
	IsCancelled           bool      `json:"isCancelled" bson:"isCancelled"`
	ShowPhotosToGuests    bool      `json:"showPhotosToGuests" bson:"showPhotosToGuests"`
	ShowPlaylistsToGuests bool      `json:"showPlaylistsToGuests" bson:"showPlaylistsToGuests"`
	CreatedAt             time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt" bson:"updatedAt"`
}

// IsHost reports whether userID owns the event
func (e Event) IsHost(userID string) bool {
	return e.HostID == userID
}

// IsGuest reports whether userID is an approved guest
func (e Event) IsGuest(userID string) bool {
	return contains(e.GuestIDs, userID)
}

// IsPending reports whether userID is awaiting host approval
func (e Event) IsPending(userID string) bool {
	return contains(e.PendingGuestIDs, userID)
}

// IsFull reports whether the guest cap has been reached. Events without a cap are never full.
func (e Event) IsFull() bool {
	return e.MaxGuests != nil && *e.MaxGuests > 0 && len(e.GuestIDs) >= *e.MaxGuests
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// EventDetails holds the host-editable fields of an event. Nil fields are left untouched.
type EventDetails struct {
	Name                  *string    `json:"name"`
	Description           *string    `json:"description"`
	Date                  *time.Time `json:"date"`
	Location              *string    `json:"location"`
	Latitude              *float64   `json:"latitude"`
	Longitude             *float64   `json:"longitude"`
	DurationMinutes       *int       `json:"durationMinutes"`
	BackgroundImageURL    *string    `json:"backgroundImageUrl"`
	MusicPlaylistURL      *string    `json:"musicPlaylistUrl"`
	SharedAlbumURL        *string    `json:"sharedAlbumUrl"`
	MaxGuests             *int       `json:"maxGuests"`
	IsPublic              *bool      `json:"isPublic"`
	ShowPhotosToGuests    *bool      `json:"showPhotosToGuests"`
	ShowPlaylistsToGuests *bool      `json:"showPlaylistsToGuests"`
}

// EventPreview is the invitation card shown before a user accepts. It carries no
// member-only fields.
type EventPreview struct {
	EventID            string    `json:"eventId"`
	HostID             string    `json:"hostId"`
	HostName           string    `json:"hostName"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Date               time.Time `json:"date"`
	Location           string    `json:"location"`
	DurationMinutes    int       `json:"durationMinutes"`
	BackgroundImageURL string    `json:"backgroundImageUrl"`
	GuestCount         int       `json:"guestCount"`
	MaxGuests          *int      `json:"maxGuests"`
	IsCancelled        bool      `json:"isCancelled"`
}
