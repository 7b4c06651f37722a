package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/event-checkin-api/api"
	"github.com/linesmerrill/event-checkin-api/databases"
	"github.com/linesmerrill/event-checkin-api/models"
	"github.com/linesmerrill/event-checkin-api/services"
)

// Event exported for testing purposes
type Event struct {
	Svc *services.Events
}

type playlistRequest struct {
	URL string `json:"url"`
}

type shareRequest struct {
	Email string `json:"email"`
}

// CreateEventHandler creates an event hosted by the caller
func (e Event) CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	var details models.EventDetails
	if !decode(w, r, &details) {
		return
	}
	ev, err := e.Svc.CreateEvent(r.Context(), api.UserID(r), details)
	if err != nil {
		respondError(w, "failed to create event", err)
		return
	}
	respond(w, http.StatusCreated, ev)
}

// EventHandler returns an event as the caller may see it
func (e Event) EventHandler(w http.ResponseWriter, r *http.Request) {
	ev, err := e.Svc.GetEvent(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to get event", err)
		return
	}
	respond(w, http.StatusOK, ev)
}

// PreviewEventHandler returns the invitation card of an event
func (e Event) PreviewEventHandler(w http.ResponseWriter, r *http.Request) {
	preview, err := e.Svc.PreviewEvent(r.Context(), mux.Vars(r)["eventId"])
	if err != nil {
		respondError(w, "failed to preview event", err)
		return
	}
	respond(w, http.StatusOK, preview)
}

// UpdateEventHandler applies a partial update from the host
func (e Event) UpdateEventHandler(w http.ResponseWriter, r *http.Request) {
	var details models.EventDetails
	if !decode(w, r, &details) {
		return
	}
	ev, err := e.Svc.UpdateEvent(r.Context(), mux.Vars(r)["eventId"], api.UserID(r), details)
	if err != nil {
		respondError(w, "failed to update event", err)
		return
	}
	respond(w, http.StatusOK, ev)
}

// CancelEventHandler marks an event as cancelled
func (e Event) CancelEventHandler(w http.ResponseWriter, r *http.Request) {
	ev, err := e.Svc.CancelEvent(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to cancel event", err)
		return
	}
	respond(w, http.StatusOK, ev)
}

// DeleteEventHandler deletes an event with its invitations, join requests and photos
func (e Event) DeleteEventHandler(w http.ResponseWriter, r *http.Request) {
	if err := e.Svc.DeleteEvent(r.Context(), mux.Vars(r)["eventId"], api.UserID(r)); err != nil {
		respondError(w, "failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegenerateInviteCodeHandler replaces the invite code of an event
func (e Event) RegenerateInviteCodeHandler(w http.ResponseWriter, r *http.Request) {
	ev, err := e.Svc.RegenerateInviteCode(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to regenerate invite code", err)
		return
	}
	respond(w, http.StatusOK, ev)
}

// ShareInviteCodeHandler emails the invite code to an address
func (e Event) ShareInviteCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !decode(w, r, &req) {
		return
	}
	if err := e.Svc.ShareInviteCode(r.Context(), mux.Vars(r)["eventId"], api.UserID(r), req.Email); err != nil {
		respondError(w, "failed to share invite code", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HostedEventsHandler lists the events the caller hosts
func (e Event) HostedEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := e.Svc.ListHostedEvents(r.Context(), api.UserID(r))
	if err != nil {
		respondError(w, "failed to list hosted events", err)
		return
	}
	respond(w, http.StatusOK, events)
}

// JoinedEventsHandler lists the events the caller is a guest of
func (e Event) JoinedEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := e.Svc.ListJoinedEvents(r.Context(), api.UserID(r))
	if err != nil {
		respondError(w, "failed to list joined events", err)
		return
	}
	respond(w, http.StatusOK, events)
}

// DiscoverEventsHandler lists upcoming public events, paginated with limit and page
func (e Event) DiscoverEventsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	events, err := e.Svc.DiscoverPublicEvents(r.Context(), api.UserID(r), databases.NewPaginate(limit, page))
	if err != nil {
		respondError(w, "failed to discover events", err)
		return
	}
	respond(w, http.StatusOK, events)
}

// GuestsHandler lists the profiles of the guests of an event
func (e Event) GuestsHandler(w http.ResponseWriter, r *http.Request) {
	guests, err := e.Svc.ListGuests(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to list guests", err)
		return
	}
	respond(w, http.StatusOK, guests)
}

// AddPlaylistHandler adds a playlist link to an event
func (e Event) AddPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if !decode(w, r, &req) {
		return
	}
	ev, err := e.Svc.AddPlaylistURL(r.Context(), mux.Vars(r)["eventId"], api.UserID(r), req.URL)
	if err != nil {
		respondError(w, "failed to add playlist", err)
		return
	}
	respond(w, http.StatusOK, ev)
}

// RemovePlaylistHandler removes the playlist link given in the url query parameter
func (e Event) RemovePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	ev, err := e.Svc.RemovePlaylistURL(r.Context(), mux.Vars(r)["eventId"], api.UserID(r), r.URL.Query().Get("url"))
	if err != nil {
		respondError(w, "failed to remove playlist", err)
		return
	}
	respond(w, http.StatusOK, ev)
}
