package databases

// go generate: mockery --name PendingGuestDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/event-checkin-api/models"
)

const pendingGuestName = "pendingGuests"

// PendingGuestDatabase contains the methods to use with the pendingGuest database
type PendingGuestDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.PendingGuest, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.PendingGuest, error)
	InsertOne(ctx context.Context, pendingGuest models.PendingGuest) error
	DeleteMany(ctx context.Context, filter interface{}) (int64, error)
	Distinct(ctx context.Context, fieldName string, filter interface{}) ([]interface{}, error)
	Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (ChangeStreamHelper, error)
}

type pendingGuestDatabase struct {
	db DatabaseHelper
}

// NewPendingGuestDatabase initializes a new instance of pendingGuest database with the provided db connection
func NewPendingGuestDatabase(db DatabaseHelper) PendingGuestDatabase {
	return &pendingGuestDatabase{
		db: db,
	}
}

func (p *pendingGuestDatabase) FindOne(ctx context.Context, filter interface{}) (*models.PendingGuest, error) {
	return findOne[models.PendingGuest](ctx, p.db.Collection(pendingGuestName), filter)
}

func (p *pendingGuestDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.PendingGuest, error) {
	return findAll[models.PendingGuest](ctx, p.db.Collection(pendingGuestName), filter, opts...)
}

func (p *pendingGuestDatabase) InsertOne(ctx context.Context, pendingGuest models.PendingGuest) error {
	_, err := p.db.Collection(pendingGuestName).InsertOne(ctx, pendingGuest)
	return err
}

func (p *pendingGuestDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	res, err := p.db.Collection(pendingGuestName).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (p *pendingGuestDatabase) Distinct(ctx context.Context, fieldName string, filter interface{}) ([]interface{}, error) {
	return p.db.Collection(pendingGuestName).Distinct(ctx, fieldName, filter)
}

func (p *pendingGuestDatabase) Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (ChangeStreamHelper, error) {
	return p.db.Collection(pendingGuestName).Watch(ctx, pipeline, opts...)
}
