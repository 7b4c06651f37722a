package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/api"
	"github.com/linesmerrill/event-checkin-api/models"
	"github.com/linesmerrill/event-checkin-api/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Close codes sent when a live query ends on its own
const (
	CloseNotFound  = 4404
	CloseForbidden = 4403
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Live streams live query snapshots over websockets. Every text message is the full
// JSON result of the query.
type Live struct {
	Svc *services.Live
}

// EventHandler streams the event as the caller may see it
func (l Live) EventHandler(w http.ResponseWriter, r *http.Request) {
	stream(w, r, func(ctx context.Context) (*services.Subscription[models.Event], error) {
		return l.Svc.Event(ctx, mux.Vars(r)["eventId"], api.UserID(r))
	})
}

// InvitationsHandler streams the invitations of a hosted event
func (l Live) InvitationsHandler(w http.ResponseWriter, r *http.Request) {
	stream(w, r, func(ctx context.Context) (*services.Subscription[[]models.Invitation], error) {
		return l.Svc.Invitations(ctx, mux.Vars(r)["eventId"], api.UserID(r))
	})
}

// PendingGuestsHandler streams the open join requests of a hosted event
func (l Live) PendingGuestsHandler(w http.ResponseWriter, r *http.Request) {
	stream(w, r, func(ctx context.Context) (*services.Subscription[[]models.PendingGuest], error) {
		return l.Svc.PendingGuests(ctx, mux.Vars(r)["eventId"], api.UserID(r))
	})
}

// PhotosHandler streams the album of an event
func (l Live) PhotosHandler(w http.ResponseWriter, r *http.Request) {
	stream(w, r, func(ctx context.Context) (*services.Subscription[[]models.Photo], error) {
		return l.Svc.Photos(ctx, mux.Vars(r)["eventId"], api.UserID(r))
	})
}

// stream opens the subscription before upgrading so a refused query is answered with a
// plain http error, then relays snapshots until either side goes away
func stream[T any](w http.ResponseWriter, r *http.Request, open func(ctx context.Context) (*services.Subscription[T], error)) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := open(ctx)
	if err != nil {
		respondError(w, "failed to open live query", err)
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Debugw("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return
	}
	defer conn.Close()

	// the reader only watches for the client going away
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case v, ok := <-sub.C:
			if !ok {
				code, reason := closeReason(sub.Err())
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func closeReason(err error) (int, string) {
	switch {
	case err == nil:
		return websocket.CloseNormalClosure, ""
	case errors.Is(err, services.ErrNotFound):
		return CloseNotFound, err.Error()
	case errors.Is(err, services.ErrForbidden):
		return CloseForbidden, err.Error()
	default:
		return websocket.CloseInternalServerErr, "live query failed"
	}
}
