package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/config"
	"github.com/linesmerrill/event-checkin-api/models"
)

// tokenCacheTTL bounds how long a verified token is trusted without checking it again.
// A cached token is still refused once its exp claim has passed.
const tokenCacheTTL = 5 * time.Minute

const expiresAtKey = "exp"

var (
	errRevoked = errors.New("token has been revoked")
	errExpired = errors.New("token has expired")
)

// ProfileSyncer records the caller's profile the first time a token is seen
type ProfileSyncer interface {
	SyncProfile(ctx context.Context, id models.Identity) (*models.User, error)
}

// Authenticator resolves bearer identity tokens into the caller's identity
type Authenticator struct {
	verifier      *TokenVerifier
	profiles      ProfileSyncer
	authenticator auth.Authenticator
	strategy      auth.Strategy

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewAuthenticator sets up go-guardian with a cached bearer strategy backed by verifier
func NewAuthenticator(ctx context.Context, verifier *TokenVerifier, profiles ProfileSyncer) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		profiles: profiles,
		revoked:  make(map[string]time.Time),
	}
	cache := store.NewFIFO(ctx, tokenCacheTTL)
	a.strategy = bearer.New(a.validateToken, cache)
	a.authenticator = auth.New()
	a.authenticator.EnableStrategy(bearer.CachedStrategyKey, a.strategy)
	return a
}

// validateToken runs once per token until the cache entry expires
func (a *Authenticator) validateToken(ctx context.Context, r *http.Request, token string) (auth.Info, error) {
	if a.isRevoked(token) {
		return nil, errRevoked
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	id := models.Identity{
		UserID:   claims.Subject,
		Name:     claims.Name,
		Email:    claims.Email,
		PhotoURL: claims.Picture,
	}
	if _, err := a.profiles.SyncProfile(ctx, id); err != nil {
		zap.S().Errorw("failed to sync profile", "userId", id.UserID, "error", err)
		return nil, fmt.Errorf("sync profile: %w", err)
	}
	return auth.NewDefaultUser(claims.Name, claims.Subject, nil, map[string][]string{
		"email":      {claims.Email},
		"picture":    {claims.Picture},
		expiresAtKey: {strconv.FormatInt(claims.ExpiresAt.Unix(), 10)},
	}), nil
}

// Middleware rejects requests without a valid token and stores the caller's identity in
// the request context. Browsers cannot set headers on websocket upgrades, so the token is
// also accepted in the access_token query parameter.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("access_token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		info, err := a.authenticator.Authenticate(r)
		if err == nil && expired(info) {
			if token, ok := bearerToken(r); ok {
				auth.Revoke(a.strategy, token, r)
			}
			err = errExpired
		}
		if err != nil {
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		zap.S().Debugw("user authenticated", "userId", info.ID())
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identityOf(info))))
	})
}

// expired reports whether the exp claim recorded when the token was verified has passed
func expired(info auth.Info) bool {
	v := info.Extensions()[expiresAtKey]
	if len(v) == 0 {
		return true
	}
	exp, err := strconv.ParseInt(v[0], 10, 64)
	if err != nil {
		return true
	}
	return !timeNow().Before(time.Unix(exp, 0))
}

func identityOf(info auth.Info) models.Identity {
	first := func(v []string) string {
		if len(v) == 0 {
			return ""
		}
		return v[0]
	}
	ext := info.Extensions()
	return models.Identity{
		UserID:   info.ID(),
		Name:     info.UserName(),
		Email:    first(ext["email"]),
		PhotoURL: first(ext["picture"]),
	}
}

// SignOut revokes the bearer token of the request
func (a *Authenticator) SignOut(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		config.ErrorStatus("missing bearer token", http.StatusUnauthorized, w, nil)
		return
	}
	expiresAt := timeNow().Add(tokenCacheTTL)
	if claims, err := a.verifier.Verify(token); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	a.revoke(token, expiresAt)
	auth.Revoke(a.strategy, token, r)
	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token == r.Header.Get("Authorization") {
		return "", false
	}
	return token, true
}

func (a *Authenticator) revoke(token string, expiresAt time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	for t, exp := range a.revoked {
		if exp.Before(now) {
			delete(a.revoked, t)
		}
	}
	a.revoked[token] = expiresAt
}

func (a *Authenticator) isRevoked(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.revoked[token]
	return ok
}
