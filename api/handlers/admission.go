package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/event-checkin-api/api"
	"github.com/linesmerrill/event-checkin-api/services"
)

// Admission exported for testing purposes
type Admission struct {
	Svc *services.Admission
}

type joinRequest struct {
	InviteCode string `json:"inviteCode"`
}

// RequestJoinHandler asks the host of an event to let the caller in
func (a Admission) RequestJoinHandler(w http.ResponseWriter, r *http.Request) {
	pg, err := a.Svc.RequestJoin(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to request to join", err)
		return
	}
	respond(w, http.StatusCreated, pg)
}

// CancelJoinRequestHandler withdraws the caller's join request
func (a Admission) CancelJoinRequestHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.CancelJoinRequest(r.Context(), mux.Vars(r)["eventId"], api.UserID(r)); err != nil {
		respondError(w, "failed to cancel join request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PendingGuestsHandler lists the open join requests of a hosted event
func (a Admission) PendingGuestsHandler(w http.ResponseWriter, r *http.Request) {
	pending, err := a.Svc.ListPendingGuests(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to list join requests", err)
		return
	}
	respond(w, http.StatusOK, pending)
}

// ApproveGuestHandler moves a user from the join requests to the guest list
func (a Admission) ApproveGuestHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ev, err := a.Svc.ApproveGuest(r.Context(), vars["eventId"], api.UserID(r), vars["userId"])
	if err != nil {
		respondError(w, "failed to approve guest", err)
		return
	}
	respond(w, http.StatusOK, ev)
}

// RejectGuestHandler drops a join request
func (a Admission) RejectGuestHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ev, err := a.Svc.RejectGuest(r.Context(), vars["eventId"], api.UserID(r), vars["userId"])
	if err != nil {
		respondError(w, "failed to reject guest", err)
		return
	}
	respond(w, http.StatusOK, ev)
}

// JoinByInviteCodeHandler adds the caller to the event the invite code belongs to
func (a Admission) JoinByInviteCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	userID := api.UserID(r)
	ev, err := a.Svc.JoinByInviteCode(r.Context(), req.InviteCode, userID)
	if err != nil {
		respondError(w, "failed to join event", err)
		return
	}
	respond(w, http.StatusOK, services.Redact(*ev, userID))
}

// RemoveGuestHandler takes a guest off the guest list
func (a Admission) RemoveGuestHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ev, err := a.Svc.RemoveGuest(r.Context(), vars["eventId"], api.UserID(r), vars["userId"])
	if err != nil {
		respondError(w, "failed to remove guest", err)
		return
	}
	respond(w, http.StatusOK, ev)
}

// LeaveEventHandler takes the caller off the guest list
func (a Admission) LeaveEventHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.LeaveEvent(r.Context(), mux.Vars(r)["eventId"], api.UserID(r)); err != nil {
		respondError(w, "failed to leave event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
