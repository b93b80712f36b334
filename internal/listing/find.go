package listing

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	From        int64 `json:"from"`
	To          int64 `json:"to"`
}

// NewPagination describes page (1-based) of perPage items holding count items
// out of total. From and To are zero when the page is empty.
func NewPagination(page, perPage int, total int64, count int) Pagination {
	last := 1
	if perPage > 0 && total > 0 {
		last = int((total + int64(perPage) - 1) / int64(perPage))
	}
	p := Pagination{
		CurrentPage: page,
		LastPage:    last,
		PerPage:     perPage,
		Total:       total,
	}
	if count > 0 {
		p.From = int64(page-1)*int64(perPage) + 1
		p.To = p.From + int64(count) - 1
	}
	return p
}

type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Find runs q against col. The total counts every document matching q.Match,
// independent of the page requested.
func Find[T any](ctx context.Context, col *mongo.Collection, q Query) (Page[T], error) {
	total, err := col.CountDocuments(ctx, q.Match)
	if err != nil {
		return Page[T]{}, err
	}

	opts := options.Find().
		SetSort(q.Sort).
		SetSkip(q.Skip()).
		SetLimit(int64(q.PerPage))

	items := make([]T, 0, q.PerPage)
	if q.Skip() < total {
		cursor, err := col.Find(ctx, q.Match, opts)
		if err != nil {
			return Page[T]{}, err
		}
		if err := cursor.All(ctx, &items); err != nil {
			return Page[T]{}, err
		}
	}

	return Page[T]{
		Items:      items,
		Pagination: NewPagination(q.Page, q.PerPage, total, len(items)),
	}, nil
}

// FindAll returns every document matching match in the given order.
func FindAll[T any](ctx context.Context, col *mongo.Collection, match bson.M, order bson.D, limit int64) ([]T, error) {
	opts := options.Find().SetSort(withTieBreaker(order))
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := col.Find(ctx, match, opts)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CountBy groups the documents matching match by field and counts each group.
func CountBy(ctx context.Context, col *mongo.Collection, match bson.M, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	}
	return runCount(ctx, col, pipeline)
}

// CountByArray counts each element of an array field across the matching documents.
func CountByArray(ctx context.Context, col *mongo.Collection, match bson.M, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$unwind", Value: "$" + field}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	}
	return runCount(ctx, col, pipeline)
}

func runCount(ctx context.Context, col *mongo.Collection, pipeline mongo.Pipeline) (map[string]int64, error) {
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			ID    interface{} `bson:"_id"`
			Count int64       `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		key := ""
		if row.ID != nil {
			key = fmt.Sprint(row.ID)
		}
		counts[key] += row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// Count returns the number of documents matching match.
func Count(ctx context.Context, col *mongo.Collection, match bson.M) (int64, error) {
	return col.CountDocuments(ctx, match)
}
