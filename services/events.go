package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/databases"
	"github.com/linesmerrill/event-checkin-api/models"
)

const inviteCodeAttempts = 5

// Events manages the event records themselves
type Events struct {
	store  *Store
	blobs  BlobStore
	mailer Mailer
}

// NewEvents returns an Events working on store. blobs receives photo deletions when
// an event is deleted and mailer sends shared invite codes; either may be nil.
func NewEvents(store *Store, blobs BlobStore, mailer Mailer) *Events {
	return &Events{store: store, blobs: blobs, mailer: mailer}
}

// inviteCode returns a code no live event is using, giving up on uniqueness after a
// few attempts
func (ev *Events) inviteCode(ctx context.Context) (string, error) {
	var code string
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		var err error
		code, err = GenerateInviteCode()
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		n, err := ev.store.Events.CountDocuments(ctx, bson.M{"inviteCode": code, "isCancelled": false})
		if err != nil {
			return "", fmt.Errorf("count invite code: %w", err)
		}
		if n == 0 {
			return code, nil
		}
	}
	zap.S().Warnw("invite code collision not resolved", "code", code)
	return code, nil
}

// CreateEvent creates an event hosted by hostID with an empty guest list and a
// fresh invite code
func (ev *Events) CreateEvent(ctx context.Context, hostID string, details models.EventDetails) (*models.Event, error) {
	if err := authenticated(hostID); err != nil {
		return nil, err
	}
	if details.Name == nil || strings.TrimSpace(*details.Name) == "" {
		return nil, invalid("event name is required")
	}
	if details.Date == nil || details.Date.IsZero() {
		return nil, invalid("event date is required")
	}
	if err := validateDetails(details); err != nil {
		return nil, err
	}

	code, err := ev.inviteCode(ctx)
	if err != nil {
		return nil, err
	}
	created := now()
	e := models.Event{
		EventID:         uuid.NewString(),
		HostID:          hostID,
		InviteCode:      code,
		GuestIDs:        []string{},
		PendingGuestIDs: []string{},
		PlaylistURLs:    []string{},
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	applyDetails(&e, details)
	if err := ev.store.Events.InsertOne(ctx, e); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	zap.S().Infow("event created", "eventId", e.EventID, "hostId", hostID)
	return &e, nil
}

func validateDetails(d models.EventDetails) error {
	if d.Name != nil && strings.TrimSpace(*d.Name) == "" {
		return invalid("event name cannot be empty")
	}
	if d.Date != nil && d.Date.IsZero() {
		return invalid("event date cannot be empty")
	}
	if d.DurationMinutes != nil && *d.DurationMinutes < 0 {
		return invalid("durationMinutes cannot be negative")
	}
	if d.MaxGuests != nil && *d.MaxGuests < 0 {
		return invalid("maxGuests cannot be negative")
	}
	if d.Latitude != nil && (*d.Latitude < -90 || *d.Latitude > 90) {
		return invalid("latitude must be between -90 and 90")
	}
	if d.Longitude != nil && (*d.Longitude < -180 || *d.Longitude > 180) {
		return invalid("longitude must be between -180 and 180")
	}
	for field, v := range map[string]*string{
		"backgroundImageUrl": d.BackgroundImageURL,
		"musicPlaylistUrl":   d.MusicPlaylistURL,
		"sharedAlbumUrl":     d.SharedAlbumURL,
	} {
		if v != nil && *v != "" && !isWebURL(*v) {
			return invalid("%s must be an http(s) url", field)
		}
	}
	return nil
}

// maxGuests turns the zero cap into no cap
func maxGuests(v *int) *int {
	if v == nil || *v == 0 {
		return nil
	}
	m := *v
	return &m
}

func applyDetails(e *models.Event, d models.EventDetails) {
	if d.Name != nil {
		e.Name = strings.TrimSpace(*d.Name)
	}
	if d.Description != nil {
		e.Description = *d.Description
	}
	if d.Date != nil {
		e.Date = d.Date.UTC()
	}
	if d.Location != nil {
		e.Location = *d.Location
	}
	if d.Latitude != nil {
		e.Latitude = *d.Latitude
	}
	if d.Longitude != nil {
		e.Longitude = *d.Longitude
	}
	if d.DurationMinutes != nil {
		e.DurationMinutes = *d.DurationMinutes
	}
	if d.BackgroundImageURL != nil {
		e.BackgroundImageURL = *d.BackgroundImageURL
	}
	if d.MusicPlaylistURL != nil {
		e.MusicPlaylistURL = *d.MusicPlaylistURL
	}
	if d.SharedAlbumURL != nil {
		e.SharedAlbumURL = *d.SharedAlbumURL
	}
	if d.MaxGuests != nil {
		e.MaxGuests = maxGuests(d.MaxGuests)
	}
	if d.IsPublic != nil {
		e.IsPublic = *d.IsPublic
	}
	if d.ShowPhotosToGuests != nil {
		e.ShowPhotosToGuests = *d.ShowPhotosToGuests
	}
	if d.ShowPlaylistsToGuests != nil {
		e.ShowPlaylistsToGuests = *d.ShowPlaylistsToGuests
	}
}

// detailsUpdate is the $set document for the non-nil fields of d
func detailsUpdate(d models.EventDetails) bson.M {
	set := bson.M{"updatedAt": now()}
	if d.Name != nil {
		set["name"] = strings.TrimSpace(*d.Name)
	}
	if d.Description != nil {
		set["description"] = *d.Description
	}
	if d.Date != nil {
		set["date"] = d.Date.UTC()
	}
	if d.Location != nil {
		set["location"] = *d.Location
	}
	if d.Latitude != nil {
		set["latitude"] = *d.Latitude
	}
	if d.Longitude != nil {
		set["longitude"] = *d.Longitude
	}
	if d.DurationMinutes != nil {
		set["durationMinutes"] = *d.DurationMinutes
	}
	if d.BackgroundImageURL != nil {
		set["backgroundImageUrl"] = *d.BackgroundImageURL
	}
	if d.MusicPlaylistURL != nil {
		set["musicPlaylistUrl"] = *d.MusicPlaylistURL
	}
	if d.SharedAlbumURL != nil {
		set["sharedAlbumUrl"] = *d.SharedAlbumURL
	}
	if d.MaxGuests != nil {
		set["maxGuests"] = maxGuests(d.MaxGuests)
	}
	if d.IsPublic != nil {
		set["isPublic"] = *d.IsPublic
	}
	if d.ShowPhotosToGuests != nil {
		set["showPhotosToGuests"] = *d.ShowPhotosToGuests
	}
	if d.ShowPlaylistsToGuests != nil {
		set["showPlaylistsToGuests"] = *d.ShowPlaylistsToGuests
	}
	return set
}

// Redact returns the view of e that viewerID is allowed to see. Only the host sees
// join requests; only members see the invite code; guests see playlists only when
// the host shares them.
func Redact(e models.Event, viewerID string) models.Event {
	if e.IsHost(viewerID) {
		return e
	}
	e.PendingGuestIDs = []string{}
	if !e.IsGuest(viewerID) {
		e.InviteCode = ""
	}
	if !e.IsGuest(viewerID) || !e.ShowPlaylistsToGuests {
		e.PlaylistURLs = []string{}
		e.MusicPlaylistURL = ""
	}
	return e
}

// GetEvent returns the event as seen by viewerID
func (ev *Events) GetEvent(ctx context.Context, eventID, viewerID string) (*models.Event, error) {
	e, err := ev.store.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	r := Redact(*e, viewerID)
	return &r, nil
}

// UpdateEvent applies the non-nil fields of details
func (ev *Events) UpdateEvent(ctx context.Context, eventID, hostID string, details models.EventDetails) (*models.Event, error) {
	if _, err := ev.store.hostedEvent(ctx, eventID, hostID); err != nil {
		return nil, err
	}
	if err := validateDetails(details); err != nil {
		return nil, err
	}
	e, err := ev.store.Events.FindOneAndUpdate(ctx,
		bson.M{"eventId": eventID, "hostId": hostID},
		bson.M{"$set": detailsUpdate(details)})
	if err != nil {
		return nil, notFound(err, ErrEventNotFound, "update event")
	}
	zap.S().Infow("event updated", "eventId", eventID)
	return e, nil
}

// CancelEvent marks the event cancelled. Cancelled events accept no new guests but
// their invitations still work at the door.
func (ev *Events) CancelEvent(ctx context.Context, eventID, hostID string) (*models.Event, error) {
	if _, err := ev.store.hostedEvent(ctx, eventID, hostID); err != nil {
		return nil, err
	}
	e, err := ev.store.Events.FindOneAndUpdate(ctx,
		bson.M{"eventId": eventID, "hostId": hostID},
		bson.M{"$set": bson.M{"isCancelled": true, "updatedAt": now()}})
	if err != nil {
		return nil, notFound(err, ErrEventNotFound, "cancel event")
	}
	zap.S().Infow("event cancelled", "eventId", eventID)
	return e, nil
}

// DeleteEvent removes the event with its invitations, join requests and photo
// records in one transaction. Photo blobs are deleted afterwards; failures there are
// left for the reconciler.
func (ev *Events) DeleteEvent(ctx context.Context, eventID, hostID string) error {
	if _, err := ev.store.hostedEvent(ctx, eventID, hostID); err != nil {
		return err
	}

	var photos []models.Photo
	err := ev.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		photos, err = ev.store.Photos.Find(ctx, bson.M{"eventId": eventID})
		if err != nil {
			return fmt.Errorf("find photos: %w", err)
		}
		n, err := ev.store.Events.DeleteOne(ctx, bson.M{"eventId": eventID, "hostId": hostID})
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		if n == 0 {
			return ErrEventNotFound
		}
		return deleteEventRecords(ctx, ev.store, eventID)
	})
	if err != nil {
		return err
	}

	deleteBlobs(ctx, ev.blobs, photos)
	zap.S().Infow("event deleted", "eventId", eventID, "photos", len(photos))
	return nil
}

// deleteEventRecords removes everything that references eventID
func deleteEventRecords(ctx context.Context, store *Store, eventID string) error {
	filter := bson.M{"eventId": eventID}
	if _, err := store.Invitations.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("delete invitations: %w", err)
	}
	if _, err := store.PendingGuests.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("delete pending guests: %w", err)
	}
	if _, err := store.Photos.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("delete photos: %w", err)
	}
	return nil
}

func deleteBlobs(ctx context.Context, blobs BlobStore, photos []models.Photo) {
	if blobs == nil {
		return
	}
	for _, p := range photos {
		key := PhotoKey(p.EventID, p.PhotoID)
		if err := blobs.Delete(ctx, key); err != nil {
			zap.S().Warnw("failed to delete photo blob", "key", key, "error", err)
		}
	}
}

// RegenerateInviteCode replaces the invite code; the old one stops working
func (ev *Events) RegenerateInviteCode(ctx context.Context, eventID, hostID string) (*models.Event, error) {
	if _, err := ev.store.hostedEvent(ctx, eventID, hostID); err != nil {
		return nil, err
	}
	code, err := ev.inviteCode(ctx)
	if err != nil {
		return nil, err
	}
	e, err := ev.store.Events.FindOneAndUpdate(ctx,
		bson.M{"eventId": eventID, "hostId": hostID},
		bson.M{"$set": bson.M{"inviteCode": code, "updatedAt": now()}})
	if err != nil {
		return nil, notFound(err, ErrEventNotFound, "regenerate invite code")
	}
	zap.S().Infow("invite code regenerated", "eventId", eventID)
	return e, nil
}

// ListHostedEvents returns the events hosted by userID, soonest first
func (ev *Events) ListHostedEvents(ctx context.Context, userID string) ([]models.Event, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	events, err := ev.store.Events.Find(ctx, bson.M{"hostId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find hosted events: %w", err)
	}
	return events, nil
}

// ListJoinedEvents returns the events userID is a guest of, soonest first
func (ev *Events) ListJoinedEvents(ctx context.Context, userID string) ([]models.Event, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	events, err := ev.store.Events.Find(ctx, bson.M{"guestIds": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find joined events: %w", err)
	}
	for i := range events {
		events[i] = Redact(events[i], userID)
	}
	return events, nil
}

// DiscoverPublicEvents pages through public events that are not cancelled. Joining
// one of them goes through host approval.
func (ev *Events) DiscoverPublicEvents(ctx context.Context, viewerID string, page *databases.Paginate) ([]models.Event, error) {
	opts := page.FindOptions().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "eventId", Value: 1}})
	events, err := ev.store.Events.Find(ctx, bson.M{"isPublic": true, "isCancelled": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("find public events: %w", err)
	}
	for i := range events {
		events[i] = Redact(events[i], viewerID)
	}
	return events, nil
}

// PreviewEvent returns the invitation card of an event
func (ev *Events) PreviewEvent(ctx context.Context, eventID string) (*models.EventPreview, error) {
	e, err := ev.store.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	p := &models.EventPreview{
		EventID:            e.EventID,
		HostID:             e.HostID,
		Name:               e.Name,
		Description:        e.Description,
		Date:               e.Date,
		Location:           e.Location,
		DurationMinutes:    e.DurationMinutes,
		BackgroundImageURL: e.BackgroundImageURL,
		GuestCount:         len(e.GuestIDs),
		MaxGuests:          e.MaxGuests,
		IsCancelled:        e.IsCancelled,
	}
	host, err := ev.store.user(ctx, e.HostID)
	switch {
	case err == nil:
		p.HostName = host.DisplayName
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}
	return p, nil
}

// ListGuests returns the profiles of the guests of an event
func (ev *Events) ListGuests(ctx context.Context, eventID, viewerID string) ([]models.User, error) {
	e, err := ev.store.memberEvent(ctx, eventID, viewerID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "displayName", Value: 1}})
	users, err := ev.store.Users.Find(ctx, bson.M{"userId": bson.M{"$in": orEmpty(e.GuestIDs)}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find guests: %w", err)
	}
	return users, nil
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// AddPlaylistURL adds a playlist link to the event. Links form a set.
func (ev *Events) AddPlaylistURL(ctx context.Context, eventID, userID, link string) (*models.Event, error) {
	return ev.updatePlaylists(ctx, eventID, userID, link, "$addToSet")
}

// RemovePlaylistURL removes a playlist link from the event
func (ev *Events) RemovePlaylistURL(ctx context.Context, eventID, userID, link string) (*models.Event, error) {
	return ev.updatePlaylists(ctx, eventID, userID, link, "$pull")
}

func (ev *Events) updatePlaylists(ctx context.Context, eventID, userID, link, op string) (*models.Event, error) {
	link = strings.TrimSpace(link)
	if !isWebURL(link) {
		return nil, invalid("playlist url must be an http(s) url")
	}
	if _, err := ev.store.memberEvent(ctx, eventID, userID); err != nil {
		return nil, err
	}
	e, err := ev.store.Events.FindOneAndUpdate(ctx,
		bson.M{"eventId": eventID},
		bson.M{
			op:     bson.M{"playlistUrls": link},
			"$set": bson.M{"updatedAt": now()},
		})
	if err != nil {
		return nil, notFound(err, ErrEventNotFound, "update playlists")
	}
	r := Redact(*e, userID)
	return &r, nil
}

// ShareInviteCode emails the invite code of the event to address
func (ev *Events) ShareInviteCode(ctx context.Context, eventID, hostID, address string) error {
	e, err := ev.store.hostedEvent(ctx, eventID, hostID)
	if err != nil {
		return err
	}
	to, err := mail.ParseAddress(address)
	if err != nil {
		return invalid("invalid email address %q", address)
	}
	if ev.mailer == nil {
		return errors.New("share invite code: no mailer configured")
	}
	if e.IsCancelled {
		return ErrEventCancelled
	}

	invite := InviteMail{
		EventName:  e.Name,
		EventDate:  e.Date,
		Location:   e.Location,
		InviteCode: e.InviteCode,
	}
	if host, err := ev.store.user(ctx, hostID); err == nil {
		invite.HostName = host.DisplayName
	}
	if err := ev.mailer.SendInviteCode(ctx, to.Address, invite); err != nil {
		return fmt.Errorf("send invite code: %w", err)
	}
	zap.S().Infow("invite code shared", "eventId", eventID)
	return nil
}
