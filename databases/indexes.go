package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var indexes = map[string][]mongo.IndexModel{
	eventName: {
		{Keys: bson.D{{Key: "eventId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "inviteCode", Value: 1}}},
		{Keys: bson.D{{Key: "hostId", Value: 1}}},
		{Keys: bson.D{{Key: "guestIds", Value: 1}}},
		{Keys: bson.D{{Key: "isPublic", Value: 1}, {Key: "isCancelled", Value: 1}, {Key: "date", Value: 1}}},
	},
	invitationName: {
		{Keys: bson.D{{Key: "invitationId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "eventId", Value: 1}, {Key: "qrToken", Value: 1}}},
		{Keys: bson.D{{Key: "eventId", Value: 1}, {Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	},
	pendingGuestName: {
		{Keys: bson.D{{Key: "eventId", Value: 1}, {Key: "userId", Value: 1}}},
	},
	photoName: {
		{Keys: bson.D{{Key: "photoId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "eventId", Value: 1}, {Key: "uploadedAt", Value: -1}}},
	},
	userName: {
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	schedulerLockName: {
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
}

// EnsureIndexes creates the lookup indexes every collection relies on. It is a no-op
// for databases that are not backed by mongo.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	md, ok := db.(*mongoDatabase)
	if !ok {
		return nil
	}
	for coll, models := range indexes {
		names, err := md.db.Collection(coll).Indexes().CreateMany(ctx, models)
		if err != nil {
			return err
		}
		zap.S().Debugw("ensured indexes", "collection", coll, "indexes", names)
	}
	return nil
}
