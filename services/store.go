package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/event-checkin-api/databases"
	"github.com/linesmerrill/event-checkin-api/models"
)

// Store bundles the collections the services work on. All of them must share DB so
// that they can take part in the same transaction.
type Store struct {
	DB            databases.DatabaseHelper
	Events        databases.EventDatabase
	Invitations   databases.InvitationDatabase
	PendingGuests databases.PendingGuestDatabase
	Photos        databases.PhotoDatabase
	Users         databases.UserDatabase
}

// NewStore builds every collection database on top of db
func NewStore(db databases.DatabaseHelper) *Store {
	return &Store{
		DB:            db,
		Events:        databases.NewEventDatabase(db),
		Invitations:   databases.NewInvitationDatabase(db),
		PendingGuests: databases.NewPendingGuestDatabase(db),
		Photos:        databases.NewPhotoDatabase(db),
		Users:         databases.NewUserDatabase(db),
	}
}

// Blob is a stored object as seen by clients
type Blob struct {
	URL          string
	ThumbnailURL string
}

// BlobStore keeps uploaded photo bytes
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (*Blob, error)
	Delete(ctx context.Context, key string) error
}

// Mailer delivers invite codes by email
type Mailer interface {
	SendInviteCode(ctx context.Context, to string, invite InviteMail) error
}

// InviteMail is the content of an invite code email
type InviteMail struct {
	HostName   string
	EventName  string
	EventDate  time.Time
	Location   string
	InviteCode string
}

// PhotoKey is the blob key of a photo
func PhotoKey(eventID, photoID string) string {
	return fmt.Sprintf("events/%s/%s.jpg", eventID, photoID)
}

var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s *Store) event(ctx context.Context, eventID string) (*models.Event, error) {
	if eventID == "" {
		return nil, invalid("event id is required")
	}
	e, err := s.Events.FindOne(ctx, bson.M{"eventId": eventID})
	if err != nil {
		return nil, notFound(err, ErrEventNotFound, "find event")
	}
	return e, nil
}

// hostedEvent loads the event and requires userID to be its host
func (s *Store) hostedEvent(ctx context.Context, eventID, userID string) (*models.Event, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}
	e, err := s.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.IsHost(userID) {
		return nil, ErrNotHost
	}
	return e, nil
}

// memberEvent loads the event and requires userID to be its host or a guest
func (s *Store) memberEvent(ctx context.Context, eventID, userID string) (*models.Event, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}
	e, err := s.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.IsHost(userID) && !e.IsGuest(userID) {
		return nil, ErrNotMember
	}
	return e, nil
}

func (s *Store) user(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.Users.FindOne(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, notFound(err, ErrUserNotFound, "find user")
	}
	return u, nil
}

// orEmpty keeps nil slices from being stored or queried as null
func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
