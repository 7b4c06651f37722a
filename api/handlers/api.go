package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/api"
	"github.com/linesmerrill/event-checkin-api/config"
	"github.com/linesmerrill/event-checkin-api/databases"
	"github.com/linesmerrill/event-checkin-api/email"
	"github.com/linesmerrill/event-checkin-api/models"
	"github.com/linesmerrill/event-checkin-api/services"
	"github.com/linesmerrill/event-checkin-api/storage"
)

// Authenticator guards the api routes
type Authenticator interface {
	Middleware(next http.Handler) http.Handler
	SignOut(w http.ResponseWriter, r *http.Request)
}

// App stores the router and db connection, so it can be reused
type App struct {
	Router  *mux.Router
	Config  config.Config
	Client  databases.ClientHelper
	DB      databases.DatabaseHelper
	Blobs   services.BlobStore
	Mailer  services.Mailer
	Auth    Authenticator
	Metrics *api.MetricsCollector
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.Metrics == nil {
		a.Metrics = api.NewMetricsCollector()
	}
	store := services.NewStore(a.DB)
	u := User{Svc: services.NewUsers(store)}
	e := Event{Svc: services.NewEvents(store, a.Blobs, a.Mailer)}
	adm := Admission{Svc: services.NewAdmission(store)}
	inv := Invitation{Svc: services.NewInvitations(store)}
	p := Photo{Svc: services.NewPhotos(store, a.Blobs)}
	live := Live{Svc: services.NewLive(store)}
	m := MetricsHandler{Collector: a.Metrics}

	checkInLimit := api.NewRateLimiter(a.Config.CheckInRatePerMin, a.Config.CheckInRatePerMin, rateLimiterTTL)
	joinLimit := api.NewRateLimiter(a.Config.JoinRatePerMin, a.Config.JoinRatePerMin, rateLimiterTTL)

	// rest bounds the request with the configured timeout, stream leaves long lived
	// websocket queries alone. mw runs after authentication.
	rest := func(h http.HandlerFunc, mw ...func(http.Handler) http.Handler) http.Handler {
		var inner http.Handler = h
		if a.Config.RequestTimeout > 0 {
			inner = api.TimeoutMiddleware(a.Config.RequestTimeout)(inner)
		}
		for _, m := range mw {
			inner = m(inner)
		}
		return a.Auth.Middleware(inner)
	}
	stream := func(h http.HandlerFunc) http.Handler {
		return a.Auth.Middleware(h)
	}

	r := mux.NewRouter()
	r.Use(a.Metrics.Middleware)

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/signout", a.Auth.Middleware(http.HandlerFunc(a.Auth.SignOut))).Methods("POST")
	apiCreate.Handle("/metrics", rest(m.MetricsSummaryHandler)).Methods("GET")

	apiCreate.Handle("/me", rest(u.CurrentUserHandler)).Methods("GET")
	apiCreate.Handle("/me", rest(u.UpdateProfileHandler)).Methods("PATCH")
	apiCreate.Handle("/me/invitations", rest(inv.MyInvitationsHandler)).Methods("GET")
	apiCreate.Handle("/users/{userId}", rest(u.UserHandler)).Methods("GET")

	apiCreate.Handle("/join", rest(adm.JoinByInviteCodeHandler, joinLimit.Limit)).Methods("POST")

	apiCreate.Handle("/events", rest(e.CreateEventHandler)).Methods("POST")
	apiCreate.Handle("/events/hosted", rest(e.HostedEventsHandler)).Methods("GET")
	apiCreate.Handle("/events/joined", rest(e.JoinedEventsHandler)).Methods("GET")
	apiCreate.Handle("/events/discover", rest(e.DiscoverEventsHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}", rest(e.EventHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}", rest(e.UpdateEventHandler)).Methods("PATCH")
	apiCreate.Handle("/events/{eventId}", rest(e.DeleteEventHandler)).Methods("DELETE")
	apiCreate.Handle("/events/{eventId}/preview", rest(e.PreviewEventHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}/cancel", rest(e.CancelEventHandler)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/invite-code", rest(e.RegenerateInviteCodeHandler)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/invite-code/share", rest(e.ShareInviteCodeHandler)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/guests", rest(e.GuestsHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}/guests/{userId}", rest(adm.RemoveGuestHandler)).Methods("DELETE")
	apiCreate.Handle("/events/{eventId}/leave", rest(adm.LeaveEventHandler)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/playlists", rest(e.AddPlaylistHandler)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/playlists", rest(e.RemovePlaylistHandler)).Methods("DELETE")

	apiCreate.Handle("/events/{eventId}/join-requests", rest(adm.RequestJoinHandler, joinLimit.Limit)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/join-requests", rest(adm.PendingGuestsHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}/join-requests", rest(adm.CancelJoinRequestHandler)).Methods("DELETE")
	apiCreate.Handle("/events/{eventId}/join-requests/{userId}/approve", rest(adm.ApproveGuestHandler)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/join-requests/{userId}/reject", rest(adm.RejectGuestHandler)).Methods("POST")

	apiCreate.Handle("/events/{eventId}/invitation/accept", rest(inv.AcceptInvitationHandler)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/invitation/decline", rest(inv.DeclineInvitationHandler)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/invitation/qr", rest(inv.InvitationQRHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}/invitations", rest(inv.EventInvitationsHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}/check-in", rest(inv.CheckInHandler, checkInLimit.Limit)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/check-in/stats", rest(inv.CheckInStatsHandler)).Methods("GET")

	apiCreate.Handle("/events/{eventId}/photos", rest(p.UploadPhotoHandler)).Methods("POST")
	apiCreate.Handle("/events/{eventId}/photos", rest(p.PhotosHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}/photos/{photoId}", rest(p.DeletePhotoHandler)).Methods("DELETE")

	apiCreate.Handle("/events/{eventId}/live", stream(live.EventHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}/live/invitations", stream(live.InvitationsHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}/live/join-requests", stream(live.PendingGuestsHandler)).Methods("GET")
	apiCreate.Handle("/events/{eventId}/live/photos", stream(live.PhotosHandler)).Methods("GET")

	return r
}

// Initialize connects to the database and the external services and sets up the router
func (a *App) Initialize(ctx context.Context) error {
	client, err := databases.NewClient(ctx, &a.Config)
	if err != nil {
		zap.S().With(err).Error("failed to create new client")
		return err
	}
	if err := client.Ping(ctx); err != nil {
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.Client = client
	a.DB = databases.NewDatabase(&a.Config, client)
	zap.S().Info("event-checkin-api has connected to the database")

	if err := databases.EnsureIndexes(ctx, a.DB); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	if a.Config.CloudinaryURL == "" {
		return errors.New("cloudinary url is not set")
	}
	blobs, err := storage.NewCloudinary(a.Config.CloudinaryURL)
	if err != nil {
		return err
	}
	a.Blobs = blobs

	if a.Config.SendGridAPIKey != "" {
		mailer, err := email.NewSendGrid(a.Config.SendGridAPIKey, a.Config.MailFrom)
		if err != nil {
			return err
		}
		a.Mailer = mailer
	} else {
		zap.S().Warn("sendgrid api key is not set, invite codes cannot be shared by email")
	}

	verifier, err := api.NewTokenVerifier(a.Config.JWTSecret, a.Config.JWTIssuer)
	if err != nil {
		return err
	}
	a.Auth = api.NewAuthenticator(ctx, verifier, services.NewUsers(services.NewStore(a.DB)))

	a.initializeRoutes()
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
