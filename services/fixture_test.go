package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/event-checkin-api/databases/fakedb"
	"github.com/linesmerrill/event-checkin-api/models"
)

type fixture struct {
	db          *fakedb.Database
	store       *Store
	admission   *Admission
	invitations *Invitations
	events      *Events
	photos      *Photos
	users       *Users
	live        *Live
	blobs       *memBlobs
	mailer      *mockMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := fakedb.New()
	store := NewStore(db)
	blobs := newMemBlobs()
	mailer := &mockMailer{}
	return &fixture{
		db:          db,
		store:       store,
		admission:   NewAdmission(store),
		invitations: NewInvitations(store),
		events:      NewEvents(store, blobs, mailer),
		photos:      NewPhotos(store, blobs),
		users:       NewUsers(store),
		live:        NewLive(store),
		blobs:       blobs,
		mailer:      mailer,
	}
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.users.SyncProfile(context.Background(), models.Identity{
		UserID:   id,
		Name:     "User " + id,
		Email:    id + "@example.com",
		PhotoURL: "https://img.example.com/" + id + ".png",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) event(t *testing.T, hostID string, opts ...func(*models.EventDetails)) *models.Event {
	t.Helper()
	name := "Rooftop party"
	date := time.Date(2030, 7, 4, 20, 0, 0, 0, time.UTC)
	details := models.EventDetails{Name: &name, Date: &date}
	for _, o := range opts {
		o(&details)
	}
	e, err := f.events.CreateEvent(context.Background(), hostID, details)
	require.NoError(t, err)
	return e
}

func withMaxGuests(n int) func(*models.EventDetails) {
	return func(d *models.EventDetails) { d.MaxGuests = &n }
}

func withPublic() func(*models.EventDetails) {
	return func(d *models.EventDetails) { v := true; d.IsPublic = &v }
}

func withSharedPhotos() func(*models.EventDetails) {
	return func(d *models.EventDetails) { v := true; d.ShowPhotosToGuests = &v }
}

// reload reads the stored event, bypassing every service
func (f *fixture) reload(t *testing.T, eventID string) *models.Event {
	t.Helper()
	e, err := f.store.Events.FindOne(context.Background(), bson.M{"eventId": eventID})
	require.NoError(t, err)
	return e
}

func (f *fixture) pendingDocs(t *testing.T, eventID, userID string) []models.PendingGuest {
	t.Helper()
	docs, err := f.store.PendingGuests.Find(context.Background(), bson.M{"eventId": eventID, "userId": userID})
	require.NoError(t, err)
	return docs
}

func (f *fixture) invitation(t *testing.T, eventID, userID string) *models.Invitation {
	t.Helper()
	inv, err := f.store.Invitations.FindOne(context.Background(), bson.M{"eventId": eventID, "userId": userID})
	require.NoError(t, err)
	return inv
}

// guest admits userID with the invite code and accepts the invitation
func (f *fixture) guest(t *testing.T, e *models.Event, userID string) *models.Invitation {
	t.Helper()
	ctx := context.Background()
	_, err := f.admission.JoinByInviteCode(ctx, e.InviteCode, userID)
	require.NoError(t, err)
	inv, err := f.invitations.AcceptInvitationPreview(ctx, e.EventID, userID)
	require.NoError(t, err)
	return inv
}

func count(ids []string, id string) int {
	n := 0
	for _, v := range ids {
		if v == id {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
	failDel error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (m *memBlobs) Put(ctx context.Context, key string, r io.Reader) (*Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return nil, m.failPut
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.objects[key] = b
	return &Blob{
		URL:          "https://cdn.example.com/" + key,
		ThumbnailURL: "https://cdn.example.com/thumb/" + key,
	}, nil
}

func (m *memBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDel != nil {
		return m.failDel
	}
	delete(m.objects, key)
	return nil
}

func (m *memBlobs) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memBlobs) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func jpeg() io.Reader {
	return bytes.NewReader([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10})
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendInviteCode(ctx context.Context, to string, invite InviteMail) error {
	args := m.Called(ctx, to, invite)
	return args.Error(0)
}
