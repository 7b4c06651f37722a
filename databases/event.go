package databases

// go generate: mockery --name EventDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/event-checkin-api/models"
)

const eventName = "events"

// EventDatabase contains the methods to use with the event database
type EventDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Event, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Event, error)
	InsertOne(ctx context.Context, event models.Event) error
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}) (*models.Event, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (ChangeStreamHelper, error)
}

type eventDatabase struct {
	db DatabaseHelper
}

// NewEventDatabase initializes a new instance of event database with the provided db connection
func NewEventDatabase(db DatabaseHelper) EventDatabase {
	return &eventDatabase{
		db: db,
	}
}

func (e *eventDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Event, error) {
	return findOne[models.Event](ctx, e.db.Collection(eventName), filter, opts...)
}

func (e *eventDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Event, error) {
	return findAll[models.Event](ctx, e.db.Collection(eventName), filter, opts...)
}

func (e *eventDatabase) InsertOne(ctx context.Context, event models.Event) error {
	_, err := e.db.Collection(eventName).InsertOne(ctx, event)
	return err
}

func (e *eventDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return e.db.Collection(eventName).UpdateOne(ctx, filter, update, opts...)
}

func (e *eventDatabase) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}) (*models.Event, error) {
	return findOneAndUpdate[models.Event](ctx, e.db.Collection(eventName), filter, update)
}

func (e *eventDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	res, err := e.db.Collection(eventName).DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (e *eventDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return e.db.Collection(eventName).CountDocuments(ctx, filter, opts...)
}

func (e *eventDatabase) Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (ChangeStreamHelper, error) {
	return e.db.Collection(eventName).Watch(ctx, pipeline, opts...)
}
