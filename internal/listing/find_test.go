package listing

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type article struct {
	ID         string    `bson:"_id"`
	Title      string    `bson:"title"`
	Status     string    `bson:"status"`
	IsFeatured bool      `bson:"is_featured"`
	Tags       []string  `bson:"tags"`
	CreatedAt  time.Time `bson:"created_at"`
}

func mongoCollection(t *testing.T) *mongo.Collection {
	t.Helper()
	uri := os.Getenv("CMS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CMS_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	col := client.Database("cms_listing_test").Collection(fmt.Sprintf("articles_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = col.Drop(context.Background()) })
	return col
}

func TestFindAgainstMongo(t *testing.T) {
	col := mongoCollection(t)
	ctx := context.Background()

	// Identical created_at values force the _id tie-breaker to decide order.
	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	docs := make([]interface{}, 0, 30)
	for i := 0; i < 30; i++ {
		status := "published"
		if i%3 == 0 {
			status = "draft"
		}
		docs = append(docs, article{
			ID:         primitive.NewObjectID().Hex(),
			Title:      fmt.Sprintf("Article %02d", i),
			Status:     status,
			IsFeatured: i%2 == 0,
			Tags:       []string{"go", fmt.Sprintf("t%d", i%4)},
			CreatedAt:  created,
		})
	}
	_, err := col.InsertMany(ctx, docs)
	require.NoError(t, err)

	spec := testSpec()
	params := url.Values{"status": {"published"}, "per_page": {"10"}}

	all, err := Find[article](ctx, col, Build(spec, url.Values{"status": {"published"}, "per_page": {"50"}}, nil))
	require.NoError(t, err)
	assert.EqualValues(t, 20, all.Pagination.Total)

	params.Set("page", "1")
	first, err := Find[article](ctx, col, Build(spec, params, nil))
	require.NoError(t, err)
	params.Set("page", "2")
	second, err := Find[article](ctx, col, Build(spec, params, nil))
	require.NoError(t, err)

	assert.EqualValues(t, 20, first.Pagination.Total)
	assert.EqualValues(t, 20, second.Pagination.Total)
	assert.Equal(t, 2, first.Pagination.LastPage)

	var paged []string
	for _, a := range append(first.Items, second.Items...) {
		paged = append(paged, a.ID)
	}
	var whole []string
	for _, a := range all.Items {
		whole = append(whole, a.ID)
	}
	assert.Equal(t, whole, paged)

	byStatus, err := CountBy(ctx, col, bson.M{}, "status")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"published": 20, "draft": 10}, byStatus)

	byTag, err := CountByArray(ctx, col, bson.M{"status": "published"}, "tags")
	require.NoError(t, err)
	assert.EqualValues(t, 20, byTag["go"])
}
