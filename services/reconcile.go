package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/models"
)

// pendingGrace is how old an unlisted join request must be before it counts as stale.
// A younger one may belong to a request whose event update has not landed yet.
const pendingGrace = 10 * time.Minute

// ReconcileReport counts the repairs made by one reconciliation pass
type ReconcileReport struct {
	GuestsRestored       int   `json:"guestsRestored"`
	StalePendingDeleted  int64 `json:"stalePendingDeleted"`
	OrphanedEvents       int   `json:"orphanedEvents"`
	OrphanedPhotoRecords int   `json:"orphanedPhotoRecords"`
}

// Reconciler repairs data left inconsistent by clients that wrote the event
// lifecycle without transactions, and cleans up after deleted events
type Reconciler struct {
	store *Store
	blobs BlobStore
}

// NewReconciler returns a Reconciler working on store
func NewReconciler(store *Store, blobs BlobStore) *Reconciler {
	return &Reconciler{store: store, blobs: blobs}
}

// Run makes one pass over every event referenced by an invitation, join request or
// photo. Users with an accepted invitation are put back on the guest list, join
// requests that no longer match the pending list are deleted, and records of events
// that no longer exist are removed together with their photo blobs.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	ids, err := r.referencedEvents(ctx)
	if err != nil {
		return nil, err
	}
	report := &ReconcileReport{}
	if len(ids) == 0 {
		return report, nil
	}

	events, err := r.store.Events.Find(ctx, bson.M{"eventId": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	live := make(map[string]bool, len(events))
	for i := range events {
		live[events[i].EventID] = true
		if err := r.repairEvent(ctx, &events[i], report); err != nil {
			return report, err
		}
	}
	for _, id := range ids {
		if live[id] {
			continue
		}
		if err := r.removeOrphans(ctx, id, report); err != nil {
			return report, err
		}
	}

	zap.S().Infow("reconciliation finished",
		"events", len(ids),
		"guestsRestored", report.GuestsRestored,
		"stalePendingDeleted", report.StalePendingDeleted,
		"orphanedEvents", report.OrphanedEvents,
		"orphanedPhotoRecords", report.OrphanedPhotoRecords)
	return report, nil
}

func (r *Reconciler) referencedEvents(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	ids := []string{}
	add := func(values []interface{}) {
		for _, v := range values {
			if id, ok := v.(string); ok && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	inv, err := r.store.Invitations.Distinct(ctx, "eventId", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct invitation events: %w", err)
	}
	add(inv)
	pending, err := r.store.PendingGuests.Distinct(ctx, "eventId", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct pending guest events: %w", err)
	}
	add(pending)
	photos, err := r.store.Photos.Distinct(ctx, "eventId", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct photo events: %w", err)
	}
	add(photos)
	return ids, nil
}

func (r *Reconciler) repairEvent(ctx context.Context, e *models.Event, report *ReconcileReport) error {
	accepted, err := r.store.Invitations.Distinct(ctx, "userId",
		bson.M{"eventId": e.EventID, "status": models.InvitationAccepted})
	if err != nil {
		return fmt.Errorf("distinct accepted invitations: %w", err)
	}
	missing := []string{}
	for _, v := range accepted {
		id, ok := v.(string)
		if ok && id != "" && !e.IsHost(id) && !e.IsGuest(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		_, err := r.store.Events.UpdateOne(ctx,
			bson.M{"eventId": e.EventID},
			bson.M{
				"$addToSet": bson.M{"guestIds": bson.M{"$each": missing}},
				"$pull":     bson.M{"pendingGuestIds": bson.M{"$in": missing}},
				"$set":      bson.M{"updatedAt": now()},
			})
		if err != nil {
			return fmt.Errorf("restore guests: %w", err)
		}
		report.GuestsRestored += len(missing)
		zap.S().Infow("restored accepted guests", "eventId", e.EventID, "userIds", missing)
	}

	// join requests of users that are no longer pending, including the ones just
	// restored. The pending list is read again in the same transaction as the delete.
	var n int64
	err = r.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := r.store.event(ctx, e.EventID)
		if err != nil {
			return err
		}
		pending := append([]string{}, current.PendingGuestIDs...)
		n, err = r.store.PendingGuests.DeleteMany(ctx,
			bson.M{
				"eventId":     e.EventID,
				"userId":      bson.M{"$nin": pending},
				"requestedAt": bson.M{"$lt": now().Add(-pendingGrace)},
			})
		if err != nil {
			return fmt.Errorf("delete stale pending guests: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrEventNotFound) {
		// deleted meanwhile, the next pass removes its records
		return nil
	}
	if err != nil {
		return err
	}
	report.StalePendingDeleted += n
	return nil
}

func (r *Reconciler) removeOrphans(ctx context.Context, eventID string, report *ReconcileReport) error {
	photos, err := r.store.Photos.Find(ctx, bson.M{"eventId": eventID})
	if err != nil {
		return fmt.Errorf("find orphaned photos: %w", err)
	}
	err = r.store.DB.WithTransaction(ctx, func(ctx context.Context) error {
		return deleteEventRecords(ctx, r.store, eventID)
	})
	if err != nil {
		return err
	}
	deleteBlobs(ctx, r.blobs, photos)

	report.OrphanedEvents++
	report.OrphanedPhotoRecords += len(photos)
	zap.S().Infow("removed records of deleted event", "eventId", eventID, "photos", len(photos))
	return nil
}
