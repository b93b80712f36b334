package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collections struct {
	Inquiries          *mongo.Collection
	FaqCategories      *mongo.Collection
	Faqs               *mongo.Collection
	ResourceCategories *mongo.Collection
	Resources          *mongo.Collection
	StaffUsers         *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Collections, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	return client, NewCollections(client.Database(dbName)), nil
}

func NewCollections(db *mongo.Database) *Collections {
	return &Collections{
		Inquiries:          db.Collection("contact_inquiries"),
		FaqCategories:      db.Collection("faq_categories"),
		Faqs:               db.Collection("faqs"),
		ResourceCategories: db.Collection("resource_categories"),
		Resources:          db.Collection("resources"),
		StaffUsers:         db.Collection("staff_users"),
	}
}

func EnsureIndexes(ctx context.Context, cols *Collections) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	plan := []struct {
		col    *mongo.Collection
		models []mongo.IndexModel
	}{
		{cols.Inquiries, []mongo.IndexModel{
			plain(bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}}),
			plain(bson.D{{Key: "status", Value: 1}}),
		}},
		{cols.FaqCategories, []mongo.IndexModel{
			unique(bson.D{{Key: "name", Value: 1}}),
			unique(bson.D{{Key: "slug", Value: 1}}),
		}},
		{cols.Faqs, []mongo.IndexModel{
			unique(bson.D{{Key: "slug", Value: 1}}),
			plain(bson.D{{Key: "category_id", Value: 1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}),
		}},
		{cols.ResourceCategories, []mongo.IndexModel{
			unique(bson.D{{Key: "slug", Value: 1}}),
			plain(bson.D{{Key: "parent_id", Value: 1}}),
		}},
		{cols.Resources, []mongo.IndexModel{
			unique(bson.D{{Key: "slug", Value: 1}}),
			plain(bson.D{{Key: "category_id", Value: 1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "published_at", Value: -1}}),
			plain(bson.D{{Key: "tags", Value: 1}}),
		}},
		{cols.StaffUsers, []mongo.IndexModel{
			unique(bson.D{{Key: "username", Value: 1}}),
		}},
	}

	for _, step := range plan {
		if _, err := step.col.Indexes().CreateMany(indexTimeout, step.models); err != nil {
			return err
		}
	}
	return nil
}
