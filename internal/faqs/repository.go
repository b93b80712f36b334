package faqs

import (
	"context"

	"cms-backend/internal/bulk"
	"cms-backend/internal/listing"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CategoryRepository interface {
	Create(ctx context.Context, item Category) error
	Get(ctx context.Context, id string) (Category, error)
	GetBySlug(ctx context.Context, slug string) (Category, error)
	NameExists(ctx context.Context, name, exceptID string) (bool, error)
	SlugExists(ctx context.Context, slug, exceptID string) (bool, error)
	Update(ctx context.Context, id string, set bson.M) (Category, error)
	Delete(ctx context.Context, id string) (bool, error)
	Active(ctx context.Context) ([]Category, error)
	List(ctx context.Context, q listing.Query) (listing.Page[Category], error)
	Reorder(ctx context.Context, items []bulk.ReorderItem) error
}

type Repository interface {
	Create(ctx context.Context, item Faq) error
	Get(ctx context.Context, id string) (Faq, error)
	GetBySlug(ctx context.Context, slug string, activeOnly bool) (Faq, error)
	SlugExists(ctx context.Context, slug, exceptID string) (bool, error)
	Update(ctx context.Context, id string, set bson.M) (Faq, error)
	Delete(ctx context.Context, id string) (Faq, error)
	List(ctx context.Context, q listing.Query) (listing.Page[Faq], error)
	Stats(ctx context.Context, match bson.M) (Stats, error)
	Find(ctx context.Context, match bson.M, order bson.D, limit int64) ([]Faq, error)
	// Vote adds one to helpful_count or not_helpful_count of an active FAQ
	// and returns the FAQ after the update.
	Vote(ctx context.Context, id string, helpful bool) (Faq, error)
	IncrementView(ctx context.Context, id string) error
	CountActiveByCategory(ctx context.Context) (map[string]int64, error)
	CountInCategory(ctx context.Context, categoryID string) (int64, error)
}

type MongoCategoryRepository struct {
	col *mongo.Collection
}

func NewCategoryRepository(col *mongo.Collection) *MongoCategoryRepository {
	return &MongoCategoryRepository{col: col}
}

func (r *MongoCategoryRepository) Create(ctx context.Context, item Category) error {
	_, err := r.col.InsertOne(ctx, item)
	return err
}

func (r *MongoCategoryRepository) Get(ctx context.Context, id string) (Category, error) {
	var c Category
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	return c, err
}

func (r *MongoCategoryRepository) GetBySlug(ctx context.Context, slug string) (Category, error) {
	var c Category
	err := r.col.FindOne(ctx, bson.M{"slug": slug}).Decode(&c)
	return c, err
}

func (r *MongoCategoryRepository) NameExists(ctx context.Context, name, exceptID string) (bool, error) {
	return exists(ctx, r.col, bson.M{"name": name}, exceptID)
}

func (r *MongoCategoryRepository) SlugExists(ctx context.Context, slug, exceptID string) (bool, error) {
	return exists(ctx, r.col, bson.M{"slug": slug}, exceptID)
}

func (r *MongoCategoryRepository) Update(ctx context.Context, id string, set bson.M) (Category, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Category
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Category{}, err
	}
	return updated, nil
}

func (r *MongoCategoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoCategoryRepository) Active(ctx context.Context) ([]Category, error) {
	return listing.FindAll[Category](ctx, r.col,
		bson.M{"status": StatusActive},
		bson.D{{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}, {Key: "_id", Value: 1}},
		0,
	)
}

func (r *MongoCategoryRepository) List(ctx context.Context, q listing.Query) (listing.Page[Category], error) {
	return listing.Find[Category](ctx, r.col, q)
}

func (r *MongoCategoryRepository) Reorder(ctx context.Context, items []bulk.ReorderItem) error {
	return bulk.WriteSortOrder(ctx, r.col, items)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, item Faq) error {
	_, err := r.col.InsertOne(ctx, item)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (Faq, error) {
	var f Faq
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	return f, err
}

func (r *MongoRepository) GetBySlug(ctx context.Context, slug string, activeOnly bool) (Faq, error) {
	filter := bson.M{"slug": slug}
	if activeOnly {
		filter["status"] = StatusActive
	}
	var f Faq
	err := r.col.FindOne(ctx, filter).Decode(&f)
	return f, err
}

func (r *MongoRepository) SlugExists(ctx context.Context, slug, exceptID string) (bool, error) {
	return exists(ctx, r.col, bson.M{"slug": slug}, exceptID)
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (Faq, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Faq
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Faq{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (Faq, error) {
	var removed Faq
	err := r.col.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&removed)
	return removed, err
}

func (r *MongoRepository) List(ctx context.Context, q listing.Query) (listing.Page[Faq], error) {
	return listing.Find[Faq](ctx, r.col, q)
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

func (r *MongoRepository) Find(ctx context.Context, match bson.M, order bson.D, limit int64) ([]Faq, error) {
	return listing.FindAll[Faq](ctx, r.col, match, order, limit)
}

func (r *MongoRepository) Vote(ctx context.Context, id string, helpful bool) (Faq, error) {
	field := "not_helpful_count"
	if helpful {
		field = "helpful_count"
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Faq
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": StatusActive},
		bson.M{"$inc": bson.M{field: 1}},
		opts,
	).Decode(&updated)
	return updated, err
}

func (r *MongoRepository) IncrementView(ctx context.Context, id string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusActive},
		bson.M{"$inc": bson.M{"view_count": 1}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) CountActiveByCategory(ctx context.Context) (map[string]int64, error) {
	return listing.CountBy(ctx, r.col, bson.M{"status": StatusActive}, "category_id")
}

func (r *MongoRepository) CountInCategory(ctx context.Context, categoryID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"category_id": categoryID})
}

func exists(ctx context.Context, col *mongo.Collection, filter bson.M, exceptID string) (bool, error) {
	if exceptID != "" {
		filter["_id"] = bson.M{"$ne": exceptID}
	}
	n, err := col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}
