package services

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/models"
)

// Photos manages the shared photo album of an event
type Photos struct {
	store *Store
	blobs BlobStore
}

// NewPhotos returns a Photos storing bytes in blobs
func NewPhotos(store *Store, blobs BlobStore) *Photos {
	return &Photos{store: store, blobs: blobs}
}

// UploadPhoto stores r under events/{eventId}/{photoId}.jpg and records it. The
// record and the photoCount increment are written together; the blob is removed
// again when that write fails.
func (p *Photos) UploadPhoto(ctx context.Context, eventID, userID string, r io.Reader) (*models.Photo, error) {
	if _, err := p.store.memberEvent(ctx, eventID, userID); err != nil {
		return nil, err
	}
	uploader, err := p.store.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	photoID := uuid.NewString()
	key := PhotoKey(eventID, photoID)
	blob, err := p.blobs.Put(ctx, key, r)
	if err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}

	photo := models.Photo{
		PhotoID:      photoID,
		EventID:      eventID,
		UploaderID:   userID,
		UploaderName: uploader.DisplayName,
		ImageURL:     blob.URL,
		ThumbnailURL: blob.ThumbnailURL,
		UploadedAt:   now(),
	}
	err = p.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		if err := p.store.Photos.InsertOne(ctx, photo); err != nil {
			return fmt.Errorf("insert photo: %w", err)
		}
		res, err := p.store.Events.UpdateOne(ctx,
			bson.M{"eventId": eventID},
			bson.M{"$inc": bson.M{"photoCount": 1}})
		if err != nil {
			return fmt.Errorf("increment photo count: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrEventNotFound
		}
		return nil
	})
	if err != nil {
		if derr := p.blobs.Delete(ctx, key); derr != nil {
			zap.S().Warnw("failed to delete orphaned photo blob", "key", key, "error", derr)
		}
		return nil, err
	}

	zap.S().Infow("photo uploaded", "eventId", eventID, "photoId", photoID, "userId", userID)
	return &photo, nil
}

// canSeePhotos reports whether userID may browse the album of e
func canSeePhotos(e *models.Event, userID string) bool {
	return e.IsHost(userID) || (e.IsGuest(userID) && e.ShowPhotosToGuests)
}

// ListPhotos returns the photos of an event, newest first. Guests only see them when
// the host shares the album.
func (p *Photos) ListPhotos(ctx context.Context, eventID, userID string) ([]models.Photo, error) {
	e, err := p.store.memberEvent(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if !canSeePhotos(e, userID) {
		return nil, kind("the host has not shared the photos of this event", ErrForbidden)
	}
	opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}})
	photos, err := p.store.Photos.Find(ctx, bson.M{"eventId": eventID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find photos: %w", err)
	}
	return photos, nil
}

// DeletePhoto removes a photo record and its blob. Only the uploader and the host
// may delete a photo.
func (p *Photos) DeletePhoto(ctx context.Context, eventID, photoID, userID string) error {
	if err := authenticated(userID); err != nil {
		return err
	}
	e, err := p.store.event(ctx, eventID)
	if err != nil {
		return err
	}
	photo, err := p.store.Photos.FindOne(ctx, bson.M{"eventId": eventID, "photoId": photoID})
	if err != nil {
		return notFound(err, ErrPhotoNotFound, "find photo")
	}
	if photo.UploaderID != userID && !e.IsHost(userID) {
		return kind("only the uploader or the host can delete a photo", ErrForbidden)
	}

	err = p.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := p.store.Photos.DeleteOne(ctx, bson.M{"photoId": photoID})
		if err != nil {
			return fmt.Errorf("delete photo: %w", err)
		}
		if n == 0 {
			return ErrPhotoNotFound
		}
		_, err = p.store.Events.UpdateOne(ctx,
			bson.M{"eventId": eventID, "photoCount": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"photoCount": -1}})
		if err != nil {
			return fmt.Errorf("decrement photo count: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	deleteBlobs(ctx, p.blobs, []models.Photo{*photo})
	zap.S().Infow("photo deleted", "eventId", eventID, "photoId", photoID, "userId", userID)
	return nil
}
