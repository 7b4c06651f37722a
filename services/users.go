package services

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/models"
)

// Users manages user profiles. Identities come from the identity provider; the
// profile is created from its claims on first sign in and owned by the user after.
type Users struct {
	store *Store
}

// NewUsers returns a Users working on store
func NewUsers(store *Store) *Users {
	return &Users{store: store}
}

// SyncProfile makes sure id has a profile. Existing profiles only get their email
// refreshed.
func (u *Users) SyncProfile(ctx context.Context, id models.Identity) (*models.User, error) {
	if err := authenticated(id.UserID); err != nil {
		return nil, err
	}
	ts := now()
	_, err := u.store.Users.UpdateOne(ctx,
		bson.M{"userId": id.UserID},
		bson.M{
			"$setOnInsert": bson.M{
				"userId":      id.UserID,
				"displayName": id.Name,
				"photoUrl":    id.PhotoURL,
				"bio":         "",
				"instagram":   "",
				"twitter":     "",
				"tiktok":      "",
				"createdAt":   ts,
			},
			"$set": bson.M{"email": id.Email, "updatedAt": ts},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("sync profile: %w", err)
	}
	return u.store.user(ctx, id.UserID)
}

// GetUser returns the profile of userID
func (u *Users) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, invalid("user id is required")
	}
	return u.store.user(ctx, userID)
}

// UpdateProfile applies the non-nil fields of profile to userID's own profile
func (u *Users) UpdateProfile(ctx context.Context, userID string, profile models.UserProfile) (*models.User, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": now()}
	if profile.DisplayName != nil {
		name := strings.TrimSpace(*profile.DisplayName)
		if name == "" {
			return nil, invalid("displayName cannot be empty")
		}
		set["displayName"] = name
	}
	if profile.PhotoURL != nil {
		if *profile.PhotoURL != "" && !isWebURL(*profile.PhotoURL) {
			return nil, invalid("photoUrl must be an http(s) url")
		}
		set["photoUrl"] = *profile.PhotoURL
	}
	if profile.Bio != nil {
		set["bio"] = *profile.Bio
	}
	if profile.Instagram != nil {
		set["instagram"] = handle(*profile.Instagram)
	}
	if profile.Twitter != nil {
		set["twitter"] = handle(*profile.Twitter)
	}
	if profile.TikTok != nil {
		set["tiktok"] = handle(*profile.TikTok)
	}

	updated, err := u.store.Users.FindOneAndUpdate(ctx, bson.M{"userId": userID}, bson.M{"$set": set})
	if err != nil {
		return nil, notFound(err, ErrUserNotFound, "update profile")
	}
	zap.S().Infow("profile updated", "userId", userID)
	return updated, nil
}

// handle strips whitespace and a leading @ from a social handle
func handle(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}
