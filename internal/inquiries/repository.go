package inquiries

import (
	"context"
	"time"

	"cms-backend/internal/listing"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, item Inquiry) error
	Get(ctx context.Context, id string) (Inquiry, error)
	// ExistsSince reports whether an inquiry with this normalized email and
	// message was created at or after since.
	ExistsSince(ctx context.Context, email, message string, since time.Time) (bool, error)
	Update(ctx context.Context, id string, set bson.M) (Inquiry, error)
	// MarkResponded sets responded_at only if it is still unset.
	MarkResponded(ctx context.Context, id string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, q listing.Query) (listing.Page[Inquiry], error)
	Stats(ctx context.Context, match bson.M) (Stats, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, item Inquiry) error {
	_, err := r.col.InsertOne(ctx, item)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (Inquiry, error) {
	var item Inquiry
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return Inquiry{}, err
	}
	return item, nil
}

func (r *MongoRepository) ExistsSince(ctx context.Context, email, message string, since time.Time) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{
		"email":      email,
		"message":    message,
		"created_at": bson.M{"$gte": since},
	}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (Inquiry, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Inquiry
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Inquiry{}, err
	}
	return updated, nil
}

func (r *MongoRepository) MarkResponded(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "responded_at": nil},
		bson.M{"$set": bson.M{"responded_at": at}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoRepository) List(ctx context.Context, q listing.Query) (listing.Page[Inquiry], error) {
	return listing.Find[Inquiry](ctx, r.col, q)
}

func (r *MongoRepository) Stats(ctx context.Context, match bson.M) (Stats, error) {
	byStatus, err := listing.CountBy(ctx, r.col, match, "status")
	if err != nil {
		return Stats{}, err
	}
	byPriority, err := listing.CountBy(ctx, r.col, match, "priority")
	if err != nil {
		return Stats{}, err
	}
	return Stats{ByStatus: byStatus, ByPriority: byPriority}, nil
}
