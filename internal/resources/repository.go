package resources

import (
	"context"

	"cms-backend/internal/listing"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, item Resource) error
	Get(ctx context.Context, id string) (Resource, error)
	GetBySlug(ctx context.Context, slug string, publishedOnly bool) (Resource, error)
	SlugExists(ctx context.Context, slug, exceptID string) (bool, error)
	Update(ctx context.Context, id string, set bson.M) (Resource, error)
	// UpdateInCategory applies set only while the resource still belongs to
	// categoryID, and returns mongo.ErrNoDocuments otherwise.
	UpdateInCategory(ctx context.Context, id, categoryID string, set bson.M) (Resource, error)
	Delete(ctx context.Context, id string) (Resource, error)
	List(ctx context.Context, q listing.Query) (listing.Page[Resource], error)
	Stats(ctx context.Context, match bson.M) (Stats, error)
	// Increment adds one to field on a published resource and returns the new value.
	Increment(ctx context.Context, id, field string) (int64, error)
	Tags(ctx context.Context) (map[string]int64, error)
	Find(ctx context.Context, match bson.M, order bson.D, limit int64) ([]Resource, error)
	CountByCategory(ctx context.Context) (map[string]int64, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, item Resource) error {
	_, err := r.col.InsertOne(ctx, item)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (Resource, error) {
	var item Resource
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	return item, err
}

func (r *MongoRepository) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (Resource, error) {
	filter := bson.M{"slug": slug}
	if publishedOnly {
		filter["status"] = StatusPublished
	}
	var item Resource
	err := r.col.FindOne(ctx, filter).Decode(&item)
	return item, err
}

func (r *MongoRepository) SlugExists(ctx context.Context, slug, exceptID string) (bool, error) {
	filter := bson.M{"slug": slug}
	if exceptID != "" {
		filter["_id"] = bson.M{"$ne": exceptID}
	}
	n, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (Resource, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Resource
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Resource{}, err
	}
	return updated, nil
}

func (r *MongoRepository) UpdateInCategory(ctx context.Context, id, categoryID string, set bson.M) (Resource, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Resource
	filter := bson.M{"_id": id, "category_id": categoryID}
	if err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Resource{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (Resource, error) {
	var removed Resource
	err := r.col.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&removed)
	return removed, err
}

func (r *MongoRepository) List(ctx context.Context, q listing.Query) (listing.Page[Resource], error) {
	return listing.Find[Resource](ctx, r.col, q)
}

func (r *MongoRepository) Stats(ctx context.Context, match bson.M) (Stats, error) {
	byCategory, err := listing.CountBy(ctx, r.col, match, "category_id")
	if err != nil {
		return Stats{}, err
	}
	featured, err := listing.Count(ctx, r.col, bson.M{"$and": bson.A{match, bson.M{"is_featured": true}}})
	if err != nil {
		return Stats{}, err
	}
	return Stats{ByCategory: byCategory, Featured: featured}, nil
}

func (r *MongoRepository) Increment(ctx context.Context, id, field string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{field: 1})

	var out bson.M
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": StatusPublished},
		bson.M{"$inc": bson.M{field: 1}},
		opts,
	).Decode(&out)
	if err != nil {
		return 0, err
	}
	return toInt64(out[field]), nil
}

func (r *MongoRepository) Tags(ctx context.Context) (map[string]int64, error) {
	return listing.CountByArray(ctx, r.col, bson.M{"status": StatusPublished}, "tags")
}

func (r *MongoRepository) Find(ctx context.Context, match bson.M, order bson.D, limit int64) ([]Resource, error) {
	return listing.FindAll[Resource](ctx, r.col, match, order, limit)
}

func (r *MongoRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	return listing.CountBy(ctx, r.col, bson.M{}, "category_id")
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
