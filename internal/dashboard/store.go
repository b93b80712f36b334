package dashboard

import (
	"context"
	"fmt"

	"cms-backend/internal/db"
	"cms-backend/internal/inquiries"
	"cms-backend/internal/listing"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	Inquiries          = "inquiries"
	Faqs               = "faqs"
	FaqCategories      = "faq_categories"
	Resources          = "resources"
	ResourceCategories = "resource_categories"
)

// Store answers whole-collection questions; nothing here takes a filter.
type Store interface {
	CountBy(ctx context.Context, collection, field string) (map[string]int64, error)
	Sum(ctx context.Context, collection string, fields ...string) (map[string]int64, error)
	RecentInquiries(ctx context.Context, limit int64) ([]inquiries.Inquiry, error)
}

type MongoStore struct {
	cols map[string]*mongo.Collection
}

func NewMongoStore(cols *db.Collections) *MongoStore {
	return &MongoStore{cols: map[string]*mongo.Collection{
		Inquiries:          cols.Inquiries,
		Faqs:               cols.Faqs,
		FaqCategories:      cols.FaqCategories,
		Resources:          cols.Resources,
		ResourceCategories: cols.ResourceCategories,
	}}
}

func (s *MongoStore) col(name string) (*mongo.Collection, error) {
	col, ok := s.cols[name]
	if !ok || col == nil {
		return nil, fmt.Errorf("dashboard: unknown collection %q", name)
	}
	return col, nil
}

func (s *MongoStore) CountBy(ctx context.Context, collection, field string) (map[string]int64, error) {
	col, err := s.col(collection)
	if err != nil {
		return nil, err
	}
	return listing.CountBy(ctx, col, bson.M{}, field)
}

func (s *MongoStore) Sum(ctx context.Context, collection string, fields ...string) (map[string]int64, error) {
	col, err := s.col(collection)
	if err != nil {
		return nil, err
	}
	group := bson.M{"_id": nil}
	for _, f := range fields {
		group[f] = bson.M{"$sum": "$" + f}
	}
	cursor, err := col.Aggregate(ctx, mongo.Pipeline{{{Key: "$group", Value: group}}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make(map[string]int64, len(fields))
	for _, f := range fields {
		out[f] = 0
	}
	if cursor.Next(ctx) {
		var row bson.M
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		for _, f := range fields {
			out[f] = toInt64(row[f])
		}
	}
	return out, cursor.Err()
}

func (s *MongoStore) RecentInquiries(ctx context.Context, limit int64) ([]inquiries.Inquiry, error) {
	col, err := s.col(Inquiries)
	if err != nil {
		return nil, err
	}
	return listing.FindAll[inquiries.Inquiry](ctx, col,
		bson.M{"status": inquiries.StatusNew},
		bson.D{{Key: "created_at", Value: -1}},
		limit,
	)
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
