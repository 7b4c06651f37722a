package databases

// go generate: mockery --name InvitationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/event-checkin-api/models"
)

const invitationName = "invitations"

// InvitationDatabase contains the methods to use with the invitation database
type InvitationDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Invitation, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Invitation, error)
	InsertOne(ctx context.Context, invitation models.Invitation) error
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}) (*models.Invitation, error)
	DeleteMany(ctx context.Context, filter interface{}) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Distinct(ctx context.Context, fieldName string, filter interface{}) ([]interface{}, error)
	Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (ChangeStreamHelper, error)
}

type invitationDatabase struct {
	db DatabaseHelper
}

// NewInvitationDatabase initializes a new instance of invitation database with the provided db connection
func NewInvitationDatabase(db DatabaseHelper) InvitationDatabase {
	return &invitationDatabase{
		db: db,
	}
}

func (i *invitationDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Invitation, error) {
	return findOne[models.Invitation](ctx, i.db.Collection(invitationName), filter, opts...)
}

func (i *invitationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Invitation, error) {
	return findAll[models.Invitation](ctx, i.db.Collection(invitationName), filter, opts...)
}

func (i *invitationDatabase) InsertOne(ctx context.Context, invitation models.Invitation) error {
	_, err := i.db.Collection(invitationName).InsertOne(ctx, invitation)
	return err
}

func (i *invitationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return i.db.Collection(invitationName).UpdateOne(ctx, filter, update, opts...)
}

func (i *invitationDatabase) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}) (*models.Invitation, error) {
	return findOneAndUpdate[models.Invitation](ctx, i.db.Collection(invitationName), filter, update)
}

func (i *invitationDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	res, err := i.db.Collection(invitationName).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (i *invitationDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return i.db.Collection(invitationName).CountDocuments(ctx, filter, opts...)
}

func (i *invitationDatabase) Distinct(ctx context.Context, fieldName string, filter interface{}) ([]interface{}, error) {
	return i.db.Collection(invitationName).Distinct(ctx, fieldName, filter)
}

func (i *invitationDatabase) Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (ChangeStreamHelper, error) {
	return i.db.Collection(invitationName).Watch(ctx, pipeline, opts...)
}
