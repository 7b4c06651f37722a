package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"
)

// findOne decodes the first document matching filter into a fresh T
func findOne[T any](ctx context.Context, coll CollectionHelper, filter interface{}, opts ...*options.FindOneOptions) (*T, error) {
	v := new(T)
	if err := coll.FindOne(ctx, filter, opts...).Decode(v); err != nil {
		return nil, err
	}
	return v, nil
}

// findAll decodes every document matching filter. It never returns a nil slice so
// empty results encode as [] rather than null.
func findAll[T any](ctx context.Context, coll CollectionHelper, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	results := []T{}
	if err := cur.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// findOneAndUpdate applies update to the first match and returns the updated document
func findOneAndUpdate[T any](ctx context.Context, coll CollectionHelper, filter interface{}, update interface{}) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	v := new(T)
	if err := coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(v); err != nil {
		return nil, err
	}
	return v, nil
}
