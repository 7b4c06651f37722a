package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/event-checkin-api/api"
	"github.com/linesmerrill/event-checkin-api/services"
)

const maxQRSize = 1024

// Invitation exported for testing purposes
type Invitation struct {
	Svc *services.Invitations
}

type checkInRequest struct {
	QRToken string `json:"qrToken"`
}

// AcceptInvitationHandler accepts the caller's invitation and returns it with its qrToken
func (i Invitation) AcceptInvitationHandler(w http.ResponseWriter, r *http.Request) {
	inv, err := i.Svc.AcceptInvitationPreview(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to accept invitation", err)
		return
	}
	respond(w, http.StatusOK, inv)
}

// DeclineInvitationHandler declines the caller's invitation
func (i Invitation) DeclineInvitationHandler(w http.ResponseWriter, r *http.Request) {
	inv, err := i.Svc.DeclineInvitation(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to decline invitation", err)
		return
	}
	respond(w, http.StatusOK, inv)
}

// InvitationQRHandler returns the caller's qrToken as a PNG. The size query parameter
// sets the edge length in pixels.
func (i Invitation) InvitationQRHandler(w http.ResponseWriter, r *http.Request) {
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size > maxQRSize {
		size = maxQRSize
	}
	png, err := i.Svc.InvitationQR(r.Context(), mux.Vars(r)["eventId"], api.UserID(r), size)
	if err != nil {
		respondError(w, "failed to render qr code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// EventInvitationsHandler lists the invitations of a hosted event
func (i Invitation) EventInvitationsHandler(w http.ResponseWriter, r *http.Request) {
	invs, err := i.Svc.ListEventInvitations(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to list invitations", err)
		return
	}
	respond(w, http.StatusOK, invs)
}

// MyInvitationsHandler lists the caller's invitations
func (i Invitation) MyInvitationsHandler(w http.ResponseWriter, r *http.Request) {
	invs, err := i.Svc.ListMyInvitations(r.Context(), api.UserID(r))
	if err != nil {
		respondError(w, "failed to list invitations", err)
		return
	}
	respond(w, http.StatusOK, invs)
}

// CheckInHandler marks the invitation holding the scanned qrToken as checked in
func (i Invitation) CheckInHandler(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := i.Svc.CheckIn(r.Context(), mux.Vars(r)["eventId"], api.UserID(r), req.QRToken)
	if err != nil {
		respondError(w, "failed to check in", err)
		return
	}
	respond(w, http.StatusOK, inv)
}

// CheckInStatsHandler returns the door counters of a hosted event
func (i Invitation) CheckInStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := i.Svc.CheckInStats(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to get check-in stats", err)
		return
	}
	respond(w, http.StatusOK, stats)
}
