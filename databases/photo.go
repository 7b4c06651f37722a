package databases

// go generate: mockery --name PhotoDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/event-checkin-api/models"
)

const photoName = "photos"

// PhotoDatabase contains the methods to use with the photo database
type PhotoDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Photo, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Photo, error)
	InsertOne(ctx context.Context, photo models.Photo) error
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}) (int64, error)
	Distinct(ctx context.Context, fieldName string, filter interface{}) ([]interface{}, error)
	Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (ChangeStreamHelper, error)
}

type photoDatabase struct {
	db DatabaseHelper
}

// NewPhotoDatabase initializes a new instance of photo database with the provided db connection
func NewPhotoDatabase(db DatabaseHelper) PhotoDatabase {
	return &photoDatabase{
		db: db,
	}
}

func (p *photoDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Photo, error) {
	return findOne[models.Photo](ctx, p.db.Collection(photoName), filter)
}

func (p *photoDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Photo, error) {
	return findAll[models.Photo](ctx, p.db.Collection(photoName), filter, opts...)
}

func (p *photoDatabase) InsertOne(ctx context.Context, photo models.Photo) error {
	_, err := p.db.Collection(photoName).InsertOne(ctx, photo)
	return err
}

func (p *photoDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	res, err := p.db.Collection(photoName).DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (p *photoDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	res, err := p.db.Collection(photoName).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (p *photoDatabase) Distinct(ctx context.Context, fieldName string, filter interface{}) ([]interface{}, error) {
	return p.db.Collection(photoName).Distinct(ctx, fieldName, filter)
}

func (p *photoDatabase) Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (ChangeStreamHelper, error) {
	return p.db.Collection(photoName).Watch(ctx, pipeline, opts...)
}
