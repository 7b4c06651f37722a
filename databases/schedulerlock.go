package databases

// go generate: mockery --name SchedulerLockDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const schedulerLockName = "schedulerLocks"

// SchedulerLockDatabase hands out named leases so that a scheduled job runs on one
// instance at a time
type SchedulerLockDatabase interface {
	TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

type schedulerLockDatabase struct {
	db DatabaseHelper
}

// NewSchedulerLockDatabase initializes a new instance of scheduler lock database with the provided db connection
func NewSchedulerLockDatabase(db DatabaseHelper) SchedulerLockDatabase {
	return &schedulerLockDatabase{
		db: db,
	}
}

// TryAcquireLock takes the lease when it is free, expired or already held by owner.
// A lease held by another instance makes the upsert collide with the unique name index.
func (s *schedulerLockDatabase) TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"name": name,
		"$or": bson.A{
			bson.M{"owner": owner},
			bson.M{"expiresAt": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{"owner": owner, "expiresAt": now.Add(ttl)}}
	_, err := s.db.Collection(schedulerLockName).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *schedulerLockDatabase) ReleaseLock(ctx context.Context, name, owner string) error {
	_, err := s.db.Collection(schedulerLockName).DeleteOne(ctx, bson.M{"name": name, "owner": owner})
	return err
}
