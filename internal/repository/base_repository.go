package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FindOptions narrows a Find. Zero values are not applied.
type FindOptions struct {
	Limit int64
	Skip  int64
	Sort  bson.D
}

// Repository is a uniform CRUD contract over one document type.
// Lookups return (nil, nil) when nothing matches; only store failures are errors.
type Repository[T any] interface {
	Create(ctx context.Context, doc *T) (*T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, filter any) (*T, error)
	Find(ctx context.Context, filter any, opts *FindOptions) ([]T, error)
	UpdateByID(ctx context.Context, id string, update any) (*T, error)
	UpdateOne(ctx context.Context, filter, update any) (*T, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteOne(ctx context.Context, filter any) (bool, error)
	Count(ctx context.Context, filter any) (int64, error)
	Exists(ctx context.Context, filter any) (bool, error)
}

// BaseRepository implements Repository on a Mongo collection.
type BaseRepository[T any] struct {
	coll *mongo.Collection
}

var _ Repository[struct{}] = (*BaseRepository[struct{}])(nil)

// NewBaseRepository binds a repository to a collection.
func NewBaseRepository[T any](coll *mongo.Collection) *BaseRepository[T] {
	return &BaseRepository[T]{coll: coll}
}

// Create inserts doc and returns the stored document.
func (r *BaseRepository[T]) Create(ctx context.Context, doc *T) (*T, error) {
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return r.FindOne(ctx, bson.M{"_id": res.InsertedID})
}

// FindByID looks a document up by its hex ObjectID. A malformed id matches nothing.
func (r *BaseRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	return r.FindOne(ctx, bson.M{"_id": oid})
}

// FindOne returns the first document matching filter.
func (r *BaseRepository[T]) FindOne(ctx context.Context, filter any) (*T, error) {
	var doc T
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// Find returns every document matching filter.
func (r *BaseRepository[T]) Find(ctx context.Context, filter any, opts *FindOptions) ([]T, error) {
	if filter == nil {
		filter = bson.D{}
	}
	findOpts := options.Find()
	if opts != nil {
		if opts.Limit > 0 {
			findOpts.SetLimit(opts.Limit)
		}
		if opts.Skip > 0 {
			findOpts.SetSkip(opts.Skip)
		}
		if len(opts.Sort) > 0 {
			findOpts.SetSort(opts.Sort)
		}
	}

	cur, err := r.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	docs := make([]T, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateByID applies update to the document with id and returns the updated document.
func (r *BaseRepository[T]) UpdateByID(ctx context.Context, id string, update any) (*T, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	return r.UpdateOne(ctx, bson.M{"_id": oid}, update)
}

// UpdateOne applies update to the first match and returns the updated document.
func (r *BaseRepository[T]) UpdateOne(ctx context.Context, filter, update any) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc T
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// DeleteByID removes the document with id. It reports whether one was removed.
func (r *BaseRepository[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}
	return r.DeleteOne(ctx, bson.M{"_id": oid})
}

// DeleteOne removes the first match. It reports whether one was removed.
func (r *BaseRepository[T]) DeleteOne(ctx context.Context, filter any) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Count returns the number of matching documents; a nil filter counts everything.
func (r *BaseRepository[T]) Count(ctx context.Context, filter any) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}
	return r.coll.CountDocuments(ctx, filter)
}

// Exists reports whether at least one document matches filter.
func (r *BaseRepository[T]) Exists(ctx context.Context, filter any) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}
