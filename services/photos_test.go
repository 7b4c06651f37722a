package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/event-checkin-api/models"
)

// tick makes now advance by a second on every call
func tick(t *testing.T) {
	t.Helper()
	orig := now
	at := time.Date(2030, 7, 4, 20, 0, 0, 0, time.UTC)
	now = func() time.Time {
		at = at.Add(time.Second)
		return at
	}
	t.Cleanup(func() { now = orig })
}

func TestUploadPhoto(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "host")
	f.user(t, "alice")
	e := f.event(t, "host")
	_, err := f.admission.JoinByInviteCode(ctx, e.InviteCode, "alice")
	require.NoError(t, err)

	p, err := f.photos.UploadPhoto(ctx, e.EventID, "alice", jpeg())
	require.NoError(t, err)
	assert.Equal(t, e.EventID, p.EventID)
	assert.Equal(t, "alice", p.UploaderID)
	assert.Equal(t, "User alice", p.UploaderName)
	assert.Equal(t, "https://cdn.example.com/events/"+e.EventID+"/"+p.PhotoID+".jpg", p.ImageURL)
	assert.NotEmpty(t, p.ThumbnailURL)
	assert.True(t, f.blobs.has(PhotoKey(e.EventID, p.PhotoID)))
	assert.Equal(t, 1, f.reload(t, e.EventID).PhotoCount)

	_, err = f.photos.UploadPhoto(ctx, e.EventID, "host", jpeg())
	require.NoError(t, err)
	assert.Equal(t, 2, f.reload(t, e.EventID).PhotoCount)
}

func TestUploadPhotoErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "host")
	f.user(t, "stranger")
	e := f.event(t, "host")

	_, err := f.photos.UploadPhoto(ctx, e.EventID, "stranger", jpeg())
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.photos.UploadPhoto(ctx, "missing", "host", jpeg())
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = f.photos.UploadPhoto(ctx, e.EventID, "", jpeg())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	f.blobs.failPut = errBoom
	_, err = f.photos.UploadPhoto(ctx, e.EventID, "host", jpeg())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, f.db.Count("photos"))
}

func TestUploadPhotoRemovesBlobWhenRecordFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "host")
	e := f.event(t, "host")

	f.db.FailNext("events", "UpdateOne", errBoom)
	_, err := f.photos.UploadPhoto(ctx, e.EventID, "host", jpeg())
	assert.ErrorIs(t, err, errBoom)

	assert.Equal(t, 0, f.db.Count("photos"), "the record insert is rolled back")
	assert.Equal(t, 0, f.reload(t, e.EventID).PhotoCount)
	assert.Equal(t, 0, f.blobs.size())
}

func TestListPhotos(t *testing.T) {
	ctx := context.Background()
	tick(t)
	f := newFixture(t)
	f.user(t, "host")
	f.user(t, "alice")
	e := f.event(t, "host")
	_, err := f.admission.JoinByInviteCode(ctx, e.InviteCode, "alice")
	require.NoError(t, err)

	first, err := f.photos.UploadPhoto(ctx, e.EventID, "alice", jpeg())
	require.NoError(t, err)
	second, err := f.photos.UploadPhoto(ctx, e.EventID, "host", jpeg())
	require.NoError(t, err)

	photos, err := f.photos.ListPhotos(ctx, e.EventID, "host")
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, second.PhotoID, photos[0].PhotoID, "newest first")
	assert.Equal(t, first.PhotoID, photos[1].PhotoID)

	_, err = f.photos.ListPhotos(ctx, e.EventID, "alice")
	assert.ErrorIs(t, err, ErrForbidden, "the album is not shared yet")

	shared := true
	_, err = f.events.UpdateEvent(ctx, e.EventID, "host", models.EventDetails{ShowPhotosToGuests: &shared})
	require.NoError(t, err)
	photos, err = f.photos.ListPhotos(ctx, e.EventID, "alice")
	require.NoError(t, err)
	assert.Len(t, photos, 2)

	_, err = f.photos.ListPhotos(ctx, e.EventID, "stranger")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeletePhoto(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, id := range []string{"host", "alice", "bob"} {
		f.user(t, id)
	}
	e := f.event(t, "host", withSharedPhotos())
	for _, id := range []string{"alice", "bob"} {
		_, err := f.admission.JoinByInviteCode(ctx, e.InviteCode, id)
		require.NoError(t, err)
	}
	mine, err := f.photos.UploadPhoto(ctx, e.EventID, "alice", jpeg())
	require.NoError(t, err)
	other, err := f.photos.UploadPhoto(ctx, e.EventID, "alice", jpeg())
	require.NoError(t, err)

	err = f.photos.DeletePhoto(ctx, e.EventID, mine.PhotoID, "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.photos.DeletePhoto(ctx, e.EventID, mine.PhotoID, "alice"))
	assert.False(t, f.blobs.has(PhotoKey(e.EventID, mine.PhotoID)))
	assert.Equal(t, 1, f.reload(t, e.EventID).PhotoCount)

	require.NoError(t, f.photos.DeletePhoto(ctx, e.EventID, other.PhotoID, "host"), "the host moderates the album")
	assert.Equal(t, 0, f.reload(t, e.EventID).PhotoCount)
	assert.Equal(t, 0, f.db.Count("photos"))

	err = f.photos.DeletePhoto(ctx, e.EventID, other.PhotoID, "host")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}

func TestDeletePhotoScopedToEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "host")
	f.user(t, "other")
	e := f.event(t, "host")
	theirs := f.event(t, "other")
	p, err := f.photos.UploadPhoto(ctx, e.EventID, "host", jpeg())
	require.NoError(t, err)

	err = f.photos.DeletePhoto(ctx, theirs.EventID, p.PhotoID, "other")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
	assert.Equal(t, 1, f.db.Count("photos"))
}
