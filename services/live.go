package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/databases"
	"github.com/linesmerrill/event-checkin-api/models"
)

// Subscription delivers full snapshots of a live query. Every value received from C
// replaces the previous one. A slow reader only ever gets the latest snapshot. C is
// closed when the subscription ends, after which Err reports why.
type Subscription[T any] struct {
	C <-chan T

	ch     chan T
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Close stops the subscription. Once Close returns nothing more is delivered on C.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
	// drop a snapshot that was buffered before the release
	for range s.ch {
	}
}

// Err returns the error that ended the subscription, nil if it was closed
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription[T]) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// publish hands v to the reader, replacing a snapshot the reader has not taken yet
func (s *Subscription[T]) publish(ctx context.Context, v T) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case s.ch <- v:
			return true
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

type watchFunc func(ctx context.Context) (databases.ChangeStreamHelper, error)

// subscribe opens every change stream first so no write between the initial load and
// the first change is missed, then emits a fresh snapshot after each change
func subscribe[T any](ctx context.Context, load func(ctx context.Context) (T, error), watches ...watchFunc) (*Subscription[T], error) {
	ctx, cancel := context.WithCancel(ctx)

	streams := make([]databases.ChangeStreamHelper, 0, len(watches))
	closeAll := func() {
		for _, cs := range streams {
			_ = cs.Close(context.Background())
		}
	}
	for _, watch := range watches {
		cs, err := watch(ctx)
		if err != nil {
			closeAll()
			cancel()
			return nil, fmt.Errorf("watch: %w", err)
		}
		streams = append(streams, cs)
	}
	first, err := load(ctx)
	if err != nil {
		closeAll()
		cancel()
		return nil, err
	}

	ch := make(chan T, 1)
	ch <- first
	s := &Subscription[T]{C: ch, ch: ch, cancel: cancel, done: make(chan struct{})}

	changed := make(chan struct{}, 1)
	var wg sync.WaitGroup
	for _, cs := range streams {
		wg.Add(1)
		go func(cs databases.ChangeStreamHelper) {
			defer wg.Done()
			for cs.Next(ctx) {
				select {
				case changed <- struct{}{}:
				default:
				}
			}
			if err := cs.Err(); err != nil && ctx.Err() == nil {
				s.fail(fmt.Errorf("change stream: %w", err))
				cancel()
			}
		}(cs)
	}

	go func() {
		defer close(s.done)
		defer close(ch)
		defer func() {
			wg.Wait()
			closeAll()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.fail(err)
					cancel()
				}
				return
			}
			if !s.publish(ctx, v) {
				return
			}
		}
	}()
	return s, nil
}

// Live opens live queries over the store. Each query emits its current result
// immediately and again after every write that may change it.
type Live struct {
	store *Store
}

// NewLive returns a Live working on store
func NewLive(store *Store) *Live {
	return &Live{store: store}
}

// matchEvent limits a change stream to documents of eventID. Deletes carry no full
// document and are always let through.
func matchEvent(eventID string) mongo.Pipeline {
	return mongo.Pipeline{{{Key: "$match", Value: bson.M{"$or": bson.A{
		bson.M{"fullDocument.eventId": eventID},
		bson.M{"operationType": "delete"},
	}}}}}
}

func watchOpts() *options.ChangeStreamOptions {
	return options.ChangeStream().SetFullDocument(options.UpdateLookup)
}

// Event streams the event as seen by viewerID. The subscription ends with
// ErrEventNotFound when the event is deleted and with ErrForbidden once the viewer
// is neither host nor guest.
func (l *Live) Event(ctx context.Context, eventID, viewerID string) (*Subscription[models.Event], error) {
	load := func(ctx context.Context) (models.Event, error) {
		e, err := l.store.memberEvent(ctx, eventID, viewerID)
		if err != nil {
			return models.Event{}, err
		}
		return Redact(*e, viewerID), nil
	}
	watch := func(ctx context.Context) (databases.ChangeStreamHelper, error) {
		return l.store.Events.Watch(ctx, matchEvent(eventID), watchOpts())
	}
	return open(ctx, "event", eventID, load, watch)
}

// Invitations streams the invitations of a hosted event
func (l *Live) Invitations(ctx context.Context, eventID, hostID string) (*Subscription[[]models.Invitation], error) {
	load := func(ctx context.Context) ([]models.Invitation, error) {
		if _, err := l.store.hostedEvent(ctx, eventID, hostID); err != nil {
			return nil, err
		}
		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		return l.store.Invitations.Find(ctx, bson.M{"eventId": eventID}, opts)
	}
	return open(ctx, "invitations", eventID, load,
		func(ctx context.Context) (databases.ChangeStreamHelper, error) {
			return l.store.Invitations.Watch(ctx, matchEvent(eventID), watchOpts())
		},
		func(ctx context.Context) (databases.ChangeStreamHelper, error) {
			return l.store.Events.Watch(ctx, matchEvent(eventID), watchOpts())
		})
}

// PendingGuests streams the open join requests of a hosted event
func (l *Live) PendingGuests(ctx context.Context, eventID, hostID string) (*Subscription[[]models.PendingGuest], error) {
	load := func(ctx context.Context) ([]models.PendingGuest, error) {
		e, err := l.store.hostedEvent(ctx, eventID, hostID)
		if err != nil {
			return nil, err
		}
		opts := options.Find().SetSort(bson.D{{Key: "requestedAt", Value: 1}})
		return l.store.PendingGuests.Find(ctx,
			bson.M{"eventId": eventID, "userId": bson.M{"$in": orEmpty(e.PendingGuestIDs)}}, opts)
	}
	return open(ctx, "pendingGuests", eventID, load,
		func(ctx context.Context) (databases.ChangeStreamHelper, error) {
			return l.store.PendingGuests.Watch(ctx, matchEvent(eventID), watchOpts())
		},
		func(ctx context.Context) (databases.ChangeStreamHelper, error) {
			return l.store.Events.Watch(ctx, matchEvent(eventID), watchOpts())
		})
}

// Photos streams the album of an event, newest first
func (l *Live) Photos(ctx context.Context, eventID, userID string) (*Subscription[[]models.Photo], error) {
	load := func(ctx context.Context) ([]models.Photo, error) {
		e, err := l.store.memberEvent(ctx, eventID, userID)
		if err != nil {
			return nil, err
		}
		if !canSeePhotos(e, userID) {
			return nil, kind("the host has not shared the photos of this event", ErrForbidden)
		}
		opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}})
		return l.store.Photos.Find(ctx, bson.M{"eventId": eventID}, opts)
	}
	return open(ctx, "photos", eventID, load,
		func(ctx context.Context) (databases.ChangeStreamHelper, error) {
			return l.store.Photos.Watch(ctx, matchEvent(eventID), watchOpts())
		},
		func(ctx context.Context) (databases.ChangeStreamHelper, error) {
			return l.store.Events.Watch(ctx, matchEvent(eventID), watchOpts())
		})
}

// open subscribes and logs the lifetime of the live query
func open[T any](ctx context.Context, query, eventID string, load func(ctx context.Context) (T, error), watches ...watchFunc) (*Subscription[T], error) {
	sub, err := subscribe(ctx, load, watches...)
	if err != nil {
		return nil, err
	}
	zap.S().Debugw("live query opened", "query", query, "eventId", eventID)
	go func() {
		<-sub.done
		if err := sub.Err(); err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrForbidden) {
			zap.S().Warnw("live query ended", "query", query, "eventId", eventID, "error", err)
			return
		}
		zap.S().Debugw("live query closed", "query", query, "eventId", eventID)
	}()
	return sub, nil
}
