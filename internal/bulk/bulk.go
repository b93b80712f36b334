// Package bulk runs admin actions over explicit id lists and applies reorders.
package bulk

import (
	"context"
	"time"

	"cms-backend/internal/apperr"
	"cms-backend/internal/httpx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Request struct {
	Action string   `json:"action" validate:"required"`
	IDs    []string `json:"ids" validate:"required,min=1,max=200,dive,required"`
}

type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type Result struct {
	Action    string    `json:"action"`
	Processed int       `json:"processed"`
	Failed    []Failure `json:"failed"`
}

// Run applies fn to each distinct id in order. A failing id is recorded and
// does not stop the others; only a cancelled context does.
func Run(ctx context.Context, action string, ids []string, fn func(ctx context.Context, id string) error) (Result, error) {
	res := Result{Action: action, Failed: []Failure{}}
	for _, id := range httpx.CleanIDs(ids) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := fn(ctx, id); err != nil {
			if apperr.KindOf(err) == apperr.KindStorage {
				res.Failed = append(res.Failed, Failure{ID: id, Error: "storage error"})
				continue
			}
			res.Failed = append(res.Failed, Failure{ID: id, Error: err.Error()})
			continue
		}
		res.Processed++
	}
	return res, nil
}

// ErrUnknownAction is returned for an action the entity does not support.
var ErrUnknownAction = apperr.Field("action", "unsupported action")

type ReorderRequest struct {
	Items []ReorderItem `json:"items" validate:"required,min=1,max=500,dive"`
}

type ReorderItem struct {
	ID        string `json:"id" validate:"required"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

// WriteSortOrder sets sort_order for every item in one unordered bulk write.
func WriteSortOrder(ctx context.Context, col *mongo.Collection, items []ReorderItem) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now()
	models := make([]mongo.WriteModel, 0, len(items))
	for _, item := range items {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": item.ID}).
			SetUpdate(bson.M{"$set": bson.M{"sort_order": item.SortOrder, "updated_at": now}}))
	}
	_, err := col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}
