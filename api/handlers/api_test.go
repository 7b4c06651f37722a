package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/event-checkin-api/config"
	"github.com/linesmerrill/event-checkin-api/models"
	"github.com/linesmerrill/event-checkin-api/services"
)

func TestHealthCheckHandler(t *testing.T) {
	ta := newTestApp(t)
	rr := ta.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"alive": true}`, rr.Body.String())
}

func TestUnauthenticated(t *testing.T) {
	ta := newTestApp(t)
	rr := ta.do(t, http.MethodGet, "/api/v1/events/hosted", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decodeBody[models.ErrorMessageResponse](t, rr)
	assert.Equal(t, "unauthorized", body.Response.Message)
}

func TestInviteCodeCheckInFlow(t *testing.T) {
	ta := newTestApp(t)
	e := ta.createEvent(t, "host", nil)
	require.Len(t, e.InviteCode, 6)

	rr := ta.do(t, http.MethodPost, "/api/v1/join", "alice", map[string]string{"inviteCode": " " + strings.ToLower(e.InviteCode)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	joined := decodeBody[models.Event](t, rr)
	assert.Equal(t, []string{"alice"}, joined.GuestIDs)

	rr = ta.do(t, http.MethodPost, "/api/v1/events/"+e.EventID+"/invitation/accept", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	inv := decodeBody[models.Invitation](t, rr)
	assert.Equal(t, models.InvitationAccepted, inv.Status)
	require.NotEmpty(t, inv.QRToken)

	rr = ta.do(t, http.MethodGet, "/api/v1/events/"+e.EventID+"/invitation/qr?size=128", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))

	checkIn := map[string]string{"qrToken": inv.QRToken}
	rr = ta.do(t, http.MethodPost, "/api/v1/events/"+e.EventID+"/check-in", "alice", checkIn)
	assert.Equal(t, http.StatusForbidden, rr.Code, "only the host scans codes")

	rr = ta.do(t, http.MethodPost, "/api/v1/events/"+e.EventID+"/check-in", "host", checkIn)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	checked := decodeBody[models.Invitation](t, rr)
	assert.True(t, checked.CheckedIn)
	assert.NotNil(t, checked.CheckedInAt)

	rr = ta.do(t, http.MethodPost, "/api/v1/events/"+e.EventID+"/check-in", "host", checkIn)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "already_checked_in", decodeBody[models.ErrorMessageResponse](t, rr).Response.Code)

	rr = ta.do(t, http.MethodPost, "/api/v1/events/"+e.EventID+"/check-in", "host", map[string]string{"qrToken": "unknown"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ta.do(t, http.MethodGet, "/api/v1/events/"+e.EventID+"/check-in/stats", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decodeBody[models.CheckInStats](t, rr)
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, int64(1), stats.CheckedIn)
	assert.Equal(t, 1, stats.Guests)
}

func TestJoinRequestFlow(t *testing.T) {
	ta := newTestApp(t)
	e := ta.createEvent(t, "host", nil)
	path := "/api/v1/events/" + e.EventID + "/join-requests"

	rr := ta.do(t, http.MethodPost, path, "bob", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	pg := decodeBody[models.PendingGuest](t, rr)
	assert.Equal(t, "bob", pg.UserID)
	assert.Equal(t, "User bob", pg.UserName)

	rr = ta.do(t, http.MethodPost, path, "bob", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ta.do(t, http.MethodGet, path, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ta.do(t, http.MethodGet, path, "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.PendingGuest](t, rr), 1)

	rr = ta.do(t, http.MethodPost, path+"/bob/approve", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	approved := decodeBody[models.Event](t, rr)
	assert.Equal(t, []string{"bob"}, approved.GuestIDs)
	assert.Empty(t, approved.PendingGuestIDs)

	rr = ta.do(t, http.MethodGet, path, "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[[]models.PendingGuest](t, rr))

	rr = ta.do(t, http.MethodPost, path, "carol", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = ta.do(t, http.MethodPost, path+"/carol/reject", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[models.Event](t, rr).PendingGuestIDs)

	rr = ta.do(t, http.MethodPost, path+"/carol/approve", "host", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEventHandlers(t *testing.T) {
	ta := newTestApp(t)
	e := ta.createEvent(t, "host", map[string]interface{}{"isPublic": true})
	path := "/api/v1/events/" + e.EventID

	rr := ta.do(t, http.MethodGet, path, "stranger", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[models.Event](t, rr).InviteCode, "strangers never see the invite code")

	rr = ta.do(t, http.MethodGet, path+"/preview", "stranger", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	preview := decodeBody[models.EventPreview](t, rr)
	assert.Equal(t, "User host", preview.HostName)

	rr = ta.do(t, http.MethodPatch, path, "host", map[string]interface{}{"description": "Doors at 8"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Doors at 8", decodeBody[models.Event](t, rr).Description)

	rr = ta.do(t, http.MethodPatch, path, "stranger", map[string]interface{}{"description": "mine now"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ta.do(t, http.MethodPatch, path, "host", map[string]interface{}{"colour": "red"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ta.do(t, http.MethodGet, "/api/v1/events/discover?limit=5&page=1", "stranger", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Event](t, rr), 1)

	rr = ta.do(t, http.MethodGet, "/api/v1/events/hosted", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Event](t, rr), 1)

	rr = ta.do(t, http.MethodPost, path+"/invite-code", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEqual(t, e.InviteCode, decodeBody[models.Event](t, rr).InviteCode)

	rr = ta.do(t, http.MethodPost, path+"/cancel", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[models.Event](t, rr).IsCancelled)

	rr = ta.do(t, http.MethodPost, path+"/join-requests", "bob", nil)
	assert.Equal(t, http.StatusConflict, rr.Code, "cancelled events take no requests")

	rr = ta.do(t, http.MethodDelete, path, "host", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ta.do(t, http.MethodGet, path, "host", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateEventValidation(t *testing.T) {
	ta := newTestApp(t)
	rr := ta.do(t, http.MethodPost, "/api/v1/events", "host", map[string]string{"name": "No date"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, ta.db.Count("events"))
}

func TestGuestsAndLeave(t *testing.T) {
	ta := newTestApp(t)
	e := ta.createEvent(t, "host", nil)
	path := "/api/v1/events/" + e.EventID
	for _, id := range []string{"alice", "bob"} {
		rr := ta.do(t, http.MethodPost, "/api/v1/join", id, map[string]string{"inviteCode": e.InviteCode})
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := ta.do(t, http.MethodGet, path+"/guests", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.User](t, rr), 2)

	rr = ta.do(t, http.MethodGet, "/api/v1/events/joined", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Event](t, rr), 1)

	rr = ta.do(t, http.MethodDelete, path+"/guests/bob", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ta.do(t, http.MethodDelete, path+"/guests/bob", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"alice"}, decodeBody[models.Event](t, rr).GuestIDs)

	rr = ta.do(t, http.MethodPost, path+"/leave", "alice", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ta.do(t, http.MethodGet, path+"/guests", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[[]models.User](t, rr))
}

func TestPlaylists(t *testing.T) {
	ta := newTestApp(t)
	e := ta.createEvent(t, "host", nil)
	path := "/api/v1/events/" + e.EventID + "/playlists"
	link := "https://music.example.com/p/1"

	rr := ta.do(t, http.MethodPost, path, "host", map[string]string{"url": link})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{link}, decodeBody[models.Event](t, rr).PlaylistURLs)

	rr = ta.do(t, http.MethodPost, path, "host", map[string]string{"url": "ftp://music"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ta.do(t, http.MethodDelete, path+"?url="+link, "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[models.Event](t, rr).PlaylistURLs)
}

func TestShareInviteCode(t *testing.T) {
	ta := newTestApp(t)
	e := ta.createEvent(t, "host", nil)
	path := "/api/v1/events/" + e.EventID + "/invite-code/share"

	ta.mailer.On("SendInviteCode", mock.Anything, "friend@example.com", mock.MatchedBy(func(m services.InviteMail) bool {
		return m.InviteCode == e.InviteCode
	})).Return(nil).Once()

	rr := ta.do(t, http.MethodPost, path, "host", map[string]string{"email": "friend@example.com"})
	assert.Equal(t, http.StatusAccepted, rr.Code)
	ta.mailer.AssertExpectations(t)

	rr = ta.do(t, http.MethodPost, path, "host", map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProfile(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, http.MethodGet, "/api/v1/me", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "User alice", decodeBody[models.User](t, rr).DisplayName)

	rr = ta.do(t, http.MethodPatch, "/api/v1/me", "alice", map[string]string{"displayName": "Alice", "instagram": "@alice"})
	require.Equal(t, http.StatusOK, rr.Code)
	u := decodeBody[models.User](t, rr)
	assert.Equal(t, "Alice", u.DisplayName)
	assert.Equal(t, "alice", u.Instagram)

	rr = ta.do(t, http.MethodGet, "/api/v1/users/alice", "bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Alice", decodeBody[models.User](t, rr).DisplayName)

	rr = ta.do(t, http.MethodGet, "/api/v1/users/nobody", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ta.do(t, http.MethodPost, "/api/v1/auth/signout", "alice", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestMyInvitations(t *testing.T) {
	ta := newTestApp(t)
	e := ta.createEvent(t, "host", nil)

	rr := ta.do(t, http.MethodPost, "/api/v1/events/"+e.EventID+"/invitation/accept", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code, "accepting needs the code or an approval")
	assert.Equal(t, "not_member", decodeBody[models.ErrorMessageResponse](t, rr).Response.Code)

	rr = ta.do(t, http.MethodPost, "/api/v1/join", "alice", map[string]string{"inviteCode": e.InviteCode})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ta.do(t, http.MethodPost, "/api/v1/events/"+e.EventID+"/invitation/accept", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ta.do(t, http.MethodGet, "/api/v1/me/invitations", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Invitation](t, rr), 1)

	rr = ta.do(t, http.MethodGet, "/api/v1/events/"+e.EventID+"/invitations", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Invitation](t, rr), 1)

	rr = ta.do(t, http.MethodPost, "/api/v1/events/"+e.EventID+"/invitation/decline", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.InvitationDeclined, decodeBody[models.Invitation](t, rr).Status)

	rr = ta.do(t, http.MethodGet, "/api/v1/events/"+e.EventID+"/invitation/qr", "alice", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "invitation_not_accepted", decodeBody[models.ErrorMessageResponse](t, rr).Response.Code)

	rr = ta.do(t, http.MethodPost, "/api/v1/events/"+e.EventID+"/invitation/accept", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code, "declining gives up the seat")
}

func TestCheckInRateLimit(t *testing.T) {
	ta := newTestApp(t, func(c *config.Config) { c.CheckInRatePerMin = 1 })
	e := ta.createEvent(t, "host", nil)
	path := "/api/v1/events/" + e.EventID + "/check-in"

	rr := ta.do(t, http.MethodPost, path, "host", map[string]string{"qrToken": "a"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ta.do(t, http.MethodPost, path, "host", map[string]string{"qrToken": "b"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = ta.do(t, http.MethodPost, path, "other", map[string]string{"qrToken": "c"})
	assert.Equal(t, http.StatusForbidden, rr.Code, "other callers have their own budget")
}

func photoRequest(t *testing.T, path, userID string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("photo", "party.jpg")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", userID)
	return req
}

func TestPhotoHandlers(t *testing.T) {
	ta := newTestApp(t)
	e := ta.createEvent(t, "host", nil)
	path := "/api/v1/events/" + e.EventID + "/photos"
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x01}, 64)...)

	rr := httptest.NewRecorder()
	ta.Router.ServeHTTP(rr, photoRequest(t, path, "host", jpeg))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	photo := decodeBody[models.Photo](t, rr)
	assert.Equal(t, "https://cdn.example.com/"+services.PhotoKey(e.EventID, photo.PhotoID), photo.ImageURL)

	rr = httptest.NewRecorder()
	ta.Router.ServeHTTP(rr, photoRequest(t, path, "host", []byte("just some text")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	rr = httptest.NewRecorder()
	ta.Router.ServeHTTP(rr, photoRequest(t, path, "stranger", jpeg))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ta.do(t, http.MethodGet, path, "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Photo](t, rr), 1)

	rr = ta.do(t, http.MethodDelete, path+"/"+photo.PhotoID, "host", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, ta.blobs.blobs)
}

func TestMetricsSummaryHandler(t *testing.T) {
	ta := newTestApp(t)
	ta.do(t, http.MethodGet, "/api/v1/events/missing", "alice", nil)
	ta.do(t, http.MethodGet, "/api/v1/me", "alice", nil)

	rr := ta.do(t, http.MethodGet, "/api/v1/metrics", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody[struct {
		Summary struct {
			TotalRequests int64 `json:"totalRequests"`
			TotalErrors   int64 `json:"totalErrors"`
		} `json:"summary"`
		Routes []struct {
			Path  string `json:"path"`
			Count int64  `json:"count"`
		} `json:"routes"`
	}](t, rr)
	assert.Equal(t, int64(2), body.Summary.TotalRequests)
	assert.Equal(t, int64(1), body.Summary.TotalErrors)
	assert.Len(t, body.Routes, 2)
}
