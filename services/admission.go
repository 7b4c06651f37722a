package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/models"
)

// Admission moves users in and out of an event's guest list. Every change to
// guestIds and pendingGuestIds is a single conditional update using set operators,
// so concurrent hosts and guests can never duplicate or lose an entry.
type Admission struct {
	store *Store
}

// NewAdmission returns an Admission working on store
func NewAdmission(store *Store) *Admission {
	return &Admission{store: store}
}

// capacityClause returns the filter that only matches while the event has room for
// userID. Users already on the guest list always match.
func capacityClause(e *models.Event, userID string) bson.M {
	if e.MaxGuests == nil || *e.MaxGuests <= 0 {
		return nil
	}
	return bson.M{"$or": bson.A{
		bson.M{"guestIds": userID},
		bson.M{fmt.Sprintf("guestIds.%d", *e.MaxGuests-1): bson.M{"$exists": false}},
	}}
}

func withCapacity(filter bson.M, e *models.Event, userID string) bson.M {
	if c := capacityClause(e, userID); c != nil {
		for k, v := range c {
			filter[k] = v
		}
	}
	return filter
}

// admitUpdate adds userID to the guest list and removes it from the pending list
func admitUpdate(userID string) bson.M {
	return bson.M{
		"$addToSet": bson.M{"guestIds": userID},
		"$pull":     bson.M{"pendingGuestIds": userID},
		"$set":      bson.M{"updatedAt": now()},
	}
}

func (a *Admission) deletePendingGuests(ctx context.Context, eventID, userID string) error {
	if _, err := a.store.PendingGuests.DeleteMany(ctx, bson.M{"eventId": eventID, "userId": userID}); err != nil {
		return fmt.Errorf("delete pending guests: %w", err)
	}
	return nil
}

// RequestJoin files a join request for userID that the host must approve. The
// requester's profile is copied onto the request and not kept in sync afterwards.
func (a *Admission) RequestJoin(ctx context.Context, eventID, userID string) (*models.PendingGuest, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}
	user, err := a.store.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	e, err := a.store.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := joinable(e, userID); err != nil {
		return nil, err
	}

	pg := models.PendingGuest{
		PendingGuestID: uuid.NewString(),
		EventID:        eventID,
		UserID:         userID,
		UserName:       user.DisplayName,
		UserEmail:      user.Email,
		UserPhotoURL:   user.PhotoURL,
		RequestedAt:    now(),
	}
	err = a.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		res, err := a.store.Events.UpdateOne(ctx,
			bson.M{
				"eventId":         eventID,
				"isCancelled":     false,
				"hostId":          bson.M{"$ne": userID},
				"guestIds":        bson.M{"$ne": userID},
				"pendingGuestIds": bson.M{"$ne": userID},
			},
			bson.M{
				"$addToSet": bson.M{"pendingGuestIds": userID},
				"$set":      bson.M{"updatedAt": now()},
			})
		if err != nil {
			return fmt.Errorf("add pending guest: %w", err)
		}
		if res.MatchedCount == 0 {
			return a.classify(ctx, eventID, userID)
		}
		if err := a.store.PendingGuests.InsertOne(ctx, pg); err != nil {
			return fmt.Errorf("insert pending guest: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("join requested", "eventId", eventID, "userId", userID)
	return &pg, nil
}

// joinable checks the preconditions shared by every way of asking to join
func joinable(e *models.Event, userID string) error {
	switch {
	case e.IsCancelled:
		return ErrEventCancelled
	case e.IsHost(userID):
		return ErrIsHost
	case e.IsGuest(userID):
		return ErrAlreadyGuest
	case e.IsPending(userID):
		return ErrAlreadyPending
	}
	return nil
}

// classify re-reads the event after a conditional update matched nothing and
// reports which precondition no longer holds
func (a *Admission) classify(ctx context.Context, eventID, userID string) error {
	e, err := a.store.event(ctx, eventID)
	if err != nil {
		return err
	}
	if err := joinable(e, userID); err != nil {
		return err
	}
	if e.IsFull() {
		return ErrEventFull
	}
	return fmt.Errorf("event %s changed concurrently: %w", eventID, ErrConflict)
}

// ApproveGuest moves userID from the pending list to the guest list and removes the
// join request. Approving a user who is already a guest succeeds without changes.
func (a *Admission) ApproveGuest(ctx context.Context, eventID, hostID, userID string) (*models.Event, error) {
	e, err := a.store.hostedEvent(ctx, eventID, hostID)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, invalid("user id is required")
	}

	var updated *models.Event
	err = a.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		filter := withCapacity(bson.M{"eventId": eventID, "pendingGuestIds": userID}, e, userID)
		var err error
		updated, err = a.store.Events.FindOneAndUpdate(ctx, filter, admitUpdate(userID))
		if errors.Is(err, mongo.ErrNoDocuments) {
			current, err := a.store.event(ctx, eventID)
			if err != nil {
				return err
			}
			switch {
			case current.IsGuest(userID):
				updated = current
			case !current.IsPending(userID):
				return ErrPendingRequestNotFound
			case current.IsFull():
				return ErrEventFull
			default:
				return fmt.Errorf("event %s changed concurrently: %w", eventID, ErrConflict)
			}
		} else if err != nil {
			return fmt.Errorf("approve guest: %w", err)
		}
		return a.deletePendingGuests(ctx, eventID, userID)
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("guest approved", "eventId", eventID, "userId", userID)
	return updated, nil
}

// RejectGuest removes userID from the pending list and deletes the join request.
// The guest list is never touched.
func (a *Admission) RejectGuest(ctx context.Context, eventID, hostID, userID string) (*models.Event, error) {
	if _, err := a.store.hostedEvent(ctx, eventID, hostID); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, invalid("user id is required")
	}

	var updated *models.Event
	err := a.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		updated, err = a.store.Events.FindOneAndUpdate(ctx,
			bson.M{"eventId": eventID, "pendingGuestIds": userID},
			bson.M{
				"$pull": bson.M{"pendingGuestIds": userID},
				"$set":  bson.M{"updatedAt": now()},
			})
		if err != nil {
			return notFound(err, ErrPendingRequestNotFound, "reject guest")
		}
		return a.deletePendingGuests(ctx, eventID, userID)
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("guest rejected", "eventId", eventID, "userId", userID)
	return updated, nil
}

// CancelJoinRequest withdraws userID's own pending request
func (a *Admission) CancelJoinRequest(ctx context.Context, eventID, userID string) error {
	if err := authenticated(userID); err != nil {
		return err
	}
	err := a.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		res, err := a.store.Events.UpdateOne(ctx,
			bson.M{"eventId": eventID, "pendingGuestIds": userID},
			bson.M{
				"$pull": bson.M{"pendingGuestIds": userID},
				"$set":  bson.M{"updatedAt": now()},
			})
		if err != nil {
			return fmt.Errorf("cancel join request: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrPendingRequestNotFound
		}
		return a.deletePendingGuests(ctx, eventID, userID)
	})
	if err != nil {
		return err
	}
	zap.S().Infow("join request cancelled", "eventId", eventID, "userId", userID)
	return nil
}

// ListPendingGuests returns the open join requests of an event, oldest first
func (a *Admission) ListPendingGuests(ctx context.Context, eventID, hostID string) ([]models.PendingGuest, error) {
	e, err := a.store.hostedEvent(ctx, eventID, hostID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "requestedAt", Value: 1}})
	pending, err := a.store.PendingGuests.Find(ctx,
		bson.M{"eventId": eventID, "userId": bson.M{"$in": orEmpty(e.PendingGuestIDs)}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find pending guests: %w", err)
	}
	return pending, nil
}

// JoinByInviteCode adds userID straight to the guest list of the event holding code.
// There is no approval step. Joining an event the user is already a guest of
// returns the event unchanged.
func (a *Admission) JoinByInviteCode(ctx context.Context, code, userID string) (*models.Event, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}
	code = NormalizeInviteCode(code)
	if code == "" {
		return nil, invalid("invite code is required")
	}
	if !validInviteCode(code) {
		return nil, ErrEventNotFound
	}

	// codes may collide, live events win over cancelled ones and newer over older
	opts := options.FindOne().SetSort(bson.D{{Key: "isCancelled", Value: 1}, {Key: "createdAt", Value: -1}})
	e, err := a.store.Events.FindOne(ctx, bson.M{"inviteCode": code}, opts)
	if err != nil {
		return nil, notFound(err, ErrEventNotFound, "find event by invite code")
	}
	switch {
	case e.IsHost(userID):
		return nil, ErrIsHost
	case e.IsGuest(userID):
		return e, nil
	case e.IsCancelled:
		return nil, ErrEventCancelled
	}

	var updated *models.Event
	err = a.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		filter := withCapacity(bson.M{
			"eventId":     e.EventID,
			"isCancelled": false,
			"hostId":      bson.M{"$ne": userID},
		}, e, userID)
		var err error
		updated, err = a.store.Events.FindOneAndUpdate(ctx, filter, admitUpdate(userID))
		if errors.Is(err, mongo.ErrNoDocuments) {
			current, err := a.store.event(ctx, e.EventID)
			if err != nil {
				return err
			}
			switch {
			case current.IsCancelled:
				return ErrEventCancelled
			case current.IsFull():
				return ErrEventFull
			}
			return fmt.Errorf("event %s changed concurrently: %w", e.EventID, ErrConflict)
		} else if err != nil {
			return fmt.Errorf("join by invite code: %w", err)
		}
		return a.deletePendingGuests(ctx, e.EventID, userID)
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("joined by invite code", "eventId", e.EventID, "userId", userID)
	return updated, nil
}

// RemoveGuest takes userID off the guest list and declines their invitation so the
// qrToken stops working at the door
func (a *Admission) RemoveGuest(ctx context.Context, eventID, hostID, userID string) (*models.Event, error) {
	e, err := a.store.hostedEvent(ctx, eventID, hostID)
	if err != nil {
		return nil, err
	}
	if !e.IsGuest(userID) {
		return nil, kind("user is not a guest of this event", ErrNotFound)
	}
	updated, err := a.dropGuest(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	zap.S().Infow("guest removed", "eventId", eventID, "userId", userID)
	return updated, nil
}

// LeaveEvent takes the caller off the guest list. Leaving an event the caller is not
// a guest of is a no-op.
func (a *Admission) LeaveEvent(ctx context.Context, eventID, userID string) error {
	if err := authenticated(userID); err != nil {
		return err
	}
	e, err := a.store.event(ctx, eventID)
	if err != nil {
		return err
	}
	if e.IsHost(userID) {
		return ErrIsHost
	}
	if !e.IsGuest(userID) {
		return nil
	}
	if _, err := a.dropGuest(ctx, eventID, userID); err != nil {
		return err
	}
	zap.S().Infow("guest left", "eventId", eventID, "userId", userID)
	return nil
}

func (a *Admission) dropGuest(ctx context.Context, eventID, userID string) (*models.Event, error) {
	var updated *models.Event
	err := a.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		updated, err = a.store.Events.FindOneAndUpdate(ctx,
			bson.M{"eventId": eventID},
			bson.M{
				"$pull": bson.M{"guestIds": userID},
				"$set":  bson.M{"updatedAt": now()},
			})
		if err != nil {
			return notFound(err, ErrEventNotFound, "remove guest")
		}
		_, err = a.store.Invitations.UpdateOne(ctx,
			bson.M{"eventId": eventID, "userId": userID},
			bson.M{"$set": bson.M{"status": models.InvitationDeclined}})
		if err != nil {
			return fmt.Errorf("decline invitation: %w", err)
		}
		return nil
	})
	return updated, err
}
