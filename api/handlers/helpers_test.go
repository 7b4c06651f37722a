package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/event-checkin-api/api"
	"github.com/linesmerrill/event-checkin-api/api/handlers"
	"github.com/linesmerrill/event-checkin-api/config"
	"github.com/linesmerrill/event-checkin-api/databases/fakedb"
	"github.com/linesmerrill/event-checkin-api/models"
	"github.com/linesmerrill/event-checkin-api/services"
)

// headerAuth trusts the X-User-ID header
type headerAuth struct {
	users *services.Users
}

func (h headerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
			return
		}
		id := models.Identity{UserID: userID, Name: "User " + userID, Email: userID + "@example.com"}
		if _, err := h.users.SyncProfile(r.Context(), id); err != nil {
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(api.WithIdentity(r.Context(), id)))
	})
}

func (h headerAuth) SignOut(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memBlobs) Put(ctx context.Context, key string, r io.Reader) (*services.Blob, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = b
	url := "https://cdn.example.com/" + key
	return &services.Blob{URL: url, ThumbnailURL: url + "?w=400"}, nil
}

func (m *memBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendInviteCode(ctx context.Context, to string, invite services.InviteMail) error {
	return m.Called(ctx, to, invite).Error(0)
}

type testApp struct {
	*handlers.App
	db     *fakedb.Database
	blobs  *memBlobs
	mailer *mockMailer
}

func newTestApp(t *testing.T, opts ...func(*config.Config)) *testApp {
	t.Helper()
	conf := config.Config{
		RequestTimeout:    5 * time.Second,
		CheckInRatePerMin: 1000,
		JoinRatePerMin:    1000,
	}
	for _, o := range opts {
		o(&conf)
	}
	db := fakedb.New()
	blobs := &memBlobs{blobs: map[string][]byte{}}
	mailer := &mockMailer{}
	a := &handlers.App{
		Config: conf,
		DB:     db,
		Blobs:  blobs,
		Mailer: mailer,
		Auth:   headerAuth{users: services.NewUsers(services.NewStore(db))},
	}
	a.Router = a.New()
	return &testApp{App: a, db: db, blobs: blobs, mailer: mailer}
}

// do sends a json request as userID and returns the recorded response
func (ta *testApp) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rr := httptest.NewRecorder()
	ta.Router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// createEvent creates an event hosted by hostID through the api
func (ta *testApp) createEvent(t *testing.T, hostID string, extra map[string]interface{}) models.Event {
	t.Helper()
	body := map[string]interface{}{
		"name": "Rooftop party",
		"date": "2030-07-04T20:00:00Z",
	}
	for k, v := range extra {
		body[k] = v
	}
	rr := ta.do(t, http.MethodPost, "/api/v1/events", hostID, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[models.Event](t, rr)
}
