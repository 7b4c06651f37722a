package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/api"
	"github.com/linesmerrill/event-checkin-api/models"
	"github.com/linesmerrill/event-checkin-api/services"
)

// User exported for testing purposes
type User struct {
	Svc *services.Users
}

// CurrentUserHandler returns the profile of the caller
func (u User) CurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := u.Svc.GetUser(r.Context(), api.UserID(r))
	if err != nil {
		respondError(w, "failed to get user", err)
		return
	}
	respond(w, http.StatusOK, user)
}

// UserHandler returns a user given a userId
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	zap.S().Debugf("userId: %v", userID)

	user, err := u.Svc.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, "failed to get user by ID", err)
		return
	}
	respond(w, http.StatusOK, user)
}

// UpdateProfileHandler updates the caller's editable profile fields
func (u User) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var profile models.UserProfile
	if !decode(w, r, &profile) {
		return
	}
	user, err := u.Svc.UpdateProfile(r.Context(), api.UserID(r), profile)
	if err != nil {
		respondError(w, "failed to update profile", err)
		return
	}
	respond(w, http.StatusOK, user)
}
