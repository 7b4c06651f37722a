package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/models"
	"github.com/linesmerrill/event-checkin-api/qr"
)

// Invitations manages the per guest invitation and its door check-in
type Invitations struct {
	store *Store
}

// NewInvitations returns an Invitations working on store
func NewInvitations(store *Store) *Invitations {
	return &Invitations{store: store}
}

// AcceptInvitationPreview accepts the invitation of userID to eventID. Only a guest
// can accept: admission goes through the invite code or host approval, never through
// this call. The invitation is created with a fresh qrToken if it does not exist yet.
// Accepting again returns the existing invitation.
func (i *Invitations) AcceptInvitationPreview(ctx context.Context, eventID, userID string) (*models.Invitation, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}
	e, err := i.store.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	switch {
	case e.IsHost(userID):
		return nil, ErrIsHost
	case e.IsCancelled:
		return nil, ErrEventCancelled
	case !e.IsGuest(userID):
		return nil, ErrNotMember
	}

	var inv *models.Invitation
	err = i.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		// the guest must still be on the list when the invitation is written
		filter := bson.M{"eventId": eventID, "isCancelled": false, "guestIds": userID}
		_, err := i.store.Events.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"updatedAt": now()}})
		if errors.Is(err, mongo.ErrNoDocuments) {
			current, err := i.store.event(ctx, eventID)
			if err != nil {
				return err
			}
			switch {
			case current.IsCancelled:
				return ErrEventCancelled
			case !current.IsGuest(userID):
				return ErrNotMember
			}
			return fmt.Errorf("event %s changed concurrently: %w", eventID, ErrConflict)
		} else if err != nil {
			return fmt.Errorf("lock guest: %w", err)
		}

		inv, err = i.accept(ctx, eventID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("invitation accepted", "eventId", eventID, "userId", userID, "invitationId", inv.InvitationID)
	return inv, nil
}

// accept moves the (eventID, userID) invitation to ACCEPTED, creating it when missing
func (i *Invitations) accept(ctx context.Context, eventID, userID string) (*models.Invitation, error) {
	existing, err := i.store.Invitations.FindOne(ctx, bson.M{"eventId": eventID, "userId": userID})
	if errors.Is(err, mongo.ErrNoDocuments) {
		inv := models.Invitation{
			InvitationID: uuid.NewString(),
			EventID:      eventID,
			UserID:       userID,
			Status:       models.InvitationAccepted,
			QRToken:      uuid.NewString(),
			CreatedAt:    now(),
		}
		if err := i.store.Invitations.InsertOne(ctx, inv); err != nil {
			return nil, fmt.Errorf("insert invitation: %w", err)
		}
		return &inv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	if existing.Status == models.InvitationAccepted && existing.QRToken != "" {
		return existing, nil
	}

	set := bson.M{"status": models.InvitationAccepted}
	if existing.QRToken == "" {
		set["qrToken"] = uuid.NewString()
	}
	updated, err := i.store.Invitations.FindOneAndUpdate(ctx,
		bson.M{"invitationId": existing.InvitationID},
		bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	return updated, nil
}

// DeclineInvitation declines userID's invitation and takes them off the guest list.
// An invitation that has already been used at the door cannot be declined.
func (i *Invitations) DeclineInvitation(ctx context.Context, eventID, userID string) (*models.Invitation, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}

	var inv *models.Invitation
	err := i.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = i.store.Invitations.FindOneAndUpdate(ctx,
			bson.M{"eventId": eventID, "userId": userID, "checkedIn": false},
			bson.M{"$set": bson.M{"status": models.InvitationDeclined}})
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, err := i.store.Invitations.FindOne(ctx, bson.M{"eventId": eventID, "userId": userID}); err != nil {
				return notFound(err, ErrInvitationNotFound, "find invitation")
			}
			return ErrAlreadyCheckedIn
		} else if err != nil {
			return fmt.Errorf("decline invitation: %w", err)
		}

		_, err = i.store.Events.UpdateOne(ctx,
			bson.M{"eventId": eventID},
			bson.M{
				"$pull": bson.M{"guestIds": userID},
				"$set":  bson.M{"updatedAt": now()},
			})
		if err != nil {
			return fmt.Errorf("remove guest: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("invitation declined", "eventId", eventID, "userId", userID)
	return inv, nil
}

// CheckIn marks the invitation holding qrToken for eventID as checked in. Tokens are
// only looked up together with their event. A token that has already been used
// fails with ErrAlreadyCheckedIn and leaves checkedInAt untouched.
func (i *Invitations) CheckIn(ctx context.Context, eventID, hostID, qrToken string) (*models.Invitation, error) {
	qrToken = strings.TrimSpace(qrToken)
	if qrToken == "" {
		return nil, invalid("qr token is required")
	}
	if _, err := i.store.hostedEvent(ctx, eventID, hostID); err != nil {
		return nil, err
	}

	checkedInAt := now()
	inv, err := i.store.Invitations.FindOneAndUpdate(ctx,
		bson.M{
			"eventId":   eventID,
			"qrToken":   qrToken,
			"status":    models.InvitationAccepted,
			"checkedIn": false,
		},
		bson.M{"$set": bson.M{"checkedIn": true, "checkedInAt": checkedInAt}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		existing, err := i.store.Invitations.FindOne(ctx, bson.M{"eventId": eventID, "qrToken": qrToken})
		if err != nil {
			return nil, notFound(err, ErrInvitationNotFound, "find invitation")
		}
		if existing.CheckedIn {
			zap.S().Infow("rescanned checked in guest", "eventId", eventID, "invitationId", existing.InvitationID)
			return nil, ErrAlreadyCheckedIn
		}
		return nil, ErrInvitationNotAccepted
	}
	if err != nil {
		return nil, fmt.Errorf("check in: %w", err)
	}

	zap.S().Infow("guest checked in", "eventId", eventID, "invitationId", inv.InvitationID, "userId", inv.UserID)
	return inv, nil
}

// ListEventInvitations returns every invitation of an event, newest first
func (i *Invitations) ListEventInvitations(ctx context.Context, eventID, hostID string) ([]models.Invitation, error) {
	if _, err := i.store.hostedEvent(ctx, eventID, hostID); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	invs, err := i.store.Invitations.Find(ctx, bson.M{"eventId": eventID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find invitations: %w", err)
	}
	return invs, nil
}

// ListMyInvitations returns the invitations of userID across all events
func (i *Invitations) ListMyInvitations(ctx context.Context, userID string) ([]models.Invitation, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	invs, err := i.store.Invitations.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find invitations: %w", err)
	}
	return invs, nil
}

// InvitationQR renders the qrToken of userID's accepted invitation as a PNG
func (i *Invitations) InvitationQR(ctx context.Context, eventID, userID string, size int) ([]byte, error) {
	if err := authenticated(userID); err != nil {
		return nil, err
	}
	inv, err := i.store.Invitations.FindOne(ctx, bson.M{"eventId": eventID, "userId": userID})
	if err != nil {
		return nil, notFound(err, ErrInvitationNotFound, "find invitation")
	}
	if inv.Status != models.InvitationAccepted {
		return nil, ErrInvitationNotAccepted
	}
	png, err := qr.PNG(inv.QRToken, size)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return png, nil
}

// CheckInStats counts accepted and checked in invitations of an event
func (i *Invitations) CheckInStats(ctx context.Context, eventID, hostID string) (*models.CheckInStats, error) {
	e, err := i.store.hostedEvent(ctx, eventID, hostID)
	if err != nil {
		return nil, err
	}
	accepted, err := i.store.Invitations.CountDocuments(ctx, bson.M{"eventId": eventID, "status": models.InvitationAccepted})
	if err != nil {
		return nil, fmt.Errorf("count accepted invitations: %w", err)
	}
	checkedIn, err := i.store.Invitations.CountDocuments(ctx, bson.M{"eventId": eventID, "checkedIn": true})
	if err != nil {
		return nil, fmt.Errorf("count checked in invitations: %w", err)
	}
	return &models.CheckInStats{
		EventID:   eventID,
		Guests:    len(e.GuestIDs),
		Accepted:  accepted,
		CheckedIn: checkedIn,
	}, nil
}
