package api

import (
	"context"
	"net/http"

	"github.com/linesmerrill/event-checkin-api/models"
)

type identityContextKey struct{}

// WithIdentity stores the authenticated caller in ctx
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFrom returns the authenticated caller stored in ctx
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(models.Identity)
	return id, ok
}

// UserID returns the id of the authenticated caller of r, or "" for anonymous requests
func UserID(r *http.Request) string {
	id, _ := IdentityFrom(r.Context())
	return id.UserID
}
