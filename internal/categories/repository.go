package categories

import (
	"context"

	"cms-backend/internal/bulk"
	"cms-backend/internal/listing"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, item Category) error
	Get(ctx context.Context, id string) (Category, error)
	GetBySlug(ctx context.Context, slug string) (Category, error)
	SlugExists(ctx context.Context, slug, exceptID string) (bool, error)
	Update(ctx context.Context, id string, set bson.M) (Category, error)
	// DeleteIfEmpty removes the category only while its resource_count is 0.
	DeleteIfEmpty(ctx context.Context, id string) (bool, error)
	All(ctx context.Context) ([]Category, error)
	CountChildren(ctx context.Context, id string) (int64, error)
	AdjustResourceCount(ctx context.Context, id string, delta int) (bool, error)
	SetResourceCount(ctx context.Context, id string, count int64) error
	List(ctx context.Context, q listing.Query) (listing.Page[Category], error)
	Reorder(ctx context.Context, items []bulk.ReorderItem) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, item Category) error {
	_, err := r.col.InsertOne(ctx, item)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (Category, error) {
	var c Category
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	return c, err
}

func (r *MongoRepository) GetBySlug(ctx context.Context, slug string) (Category, error) {
	var c Category
	err := r.col.FindOne(ctx, bson.M{"slug": slug}).Decode(&c)
	return c, err
}

func (r *MongoRepository) SlugExists(ctx context.Context, slug, exceptID string) (bool, error) {
	filter := bson.M{"slug": slug}
	if exceptID != "" {
		filter["_id"] = bson.M{"$ne": exceptID}
	}
	n, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (Category, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Category
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Category{}, err
	}
	return updated, nil
}

func (r *MongoRepository) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "resource_count": bson.M{"$lte": 0}})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoRepository) All(ctx context.Context) ([]Category, error) {
	return listing.FindAll[Category](ctx, r.col, bson.M{}, bson.D{{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}}, 0)
}

func (r *MongoRepository) CountChildren(ctx context.Context, id string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"parent_id": id})
}

// AdjustResourceCount applies delta atomically. A decrement never takes the
// counter below zero. The result reports whether the category was matched.
func (r *MongoRepository) AdjustResourceCount(ctx context.Context, id string, delta int) (bool, error) {
	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["resource_count"] = bson.M{"$gte": -delta}
	}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"resource_count": delta}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoRepository) SetResourceCount(ctx context.Context, id string, count int64) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"resource_count": count}})
	return err
}

func (r *MongoRepository) List(ctx context.Context, q listing.Query) (listing.Page[Category], error) {
	return listing.Find[Category](ctx, r.col, q)
}

func (r *MongoRepository) Reorder(ctx context.Context, items []bulk.ReorderItem) error {
	return bulk.WriteSortOrder(ctx, r.col, items)
}
