package listing

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func testSpec() Spec {
	return Spec{
		Entity: "resources",
		Filters: map[string]Filter{
			"status":    OneOf("status", "draft", "published"),
			"featured":  Bool("is_featured"),
			"tag":       Equals("tags"),
			"date_from": DateFrom("created_at", time.UTC),
			"date_to":   DateTo("created_at", time.UTC),
		},
		SearchFields: []string{"title", "excerpt"},
		Sorts: map[string]bson.D{
			"latest": {{Key: "created_at", Value: -1}},
			"title":  {{Key: "title", Value: 1}},
		},
		DefaultSort:    "latest",
		DefaultPerPage: 10,
		MaxPerPage:     50,
	}
}

func TestBuildComposesFiltersWithAnd(t *testing.T) {
	params := url.Values{}
	params.Set("status", "published")
	params.Set("featured", "true")
	params.Set("search", "go (1.22)")
	params.Set("unknown", "ignored")

	q := Build(testSpec(), params, bson.M{"author_id": "a1"})

	and, ok := q.Match["$and"].([]bson.M)
	require.True(t, ok)
	require.Len(t, and, 4)
	assert.Equal(t, bson.M{"author_id": "a1"}, and[0])
	assert.Equal(t, bson.M{"is_featured": true}, and[1])
	assert.Equal(t, bson.M{"status": "published"}, and[2])

	search := and[3]["$or"].(bson.A)
	require.Len(t, search, 2)
	assert.Equal(t, bson.M{"title": bson.M{"$regex": `go \(1\.22\)`, "$options": "i"}}, search[0])
}

func TestBuildIgnoresInvalidValues(t *testing.T) {
	params := url.Values{}
	params.Set("status", "deleted")
	params.Set("featured", "maybe")
	params.Set("date_from", "yesterday")

	q := Build(testSpec(), params, nil)
	assert.Equal(t, bson.M{}, q.Match)
}

func TestBuildSingleClauseIsNotWrapped(t *testing.T) {
	params := url.Values{}
	params.Set("tag", "golang")

	q := Build(testSpec(), params, nil)
	assert.Equal(t, bson.M{"tags": "golang"}, q.Match)
}

func TestBuildDateRange(t *testing.T) {
	params := url.Values{}
	params.Set("date_from", "2024-03-01")
	params.Set("date_to", "2024-03-31")

	q := Build(testSpec(), params, nil)
	and := q.Match["$and"].([]bson.M)
	require.Len(t, and, 2)
	assert.Equal(t, bson.M{"created_at": bson.M{"$gte": time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}}, and[0])
	assert.Equal(t, bson.M{"created_at": bson.M{"$lt": time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}}, and[1])
}

func TestBuildSortFallsBackAndBreaksTies(t *testing.T) {
	tests := []struct {
		name     string
		sort     string
		wantName string
		want     bson.D
	}{
		{"default", "", "latest", bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}},
		{"unknown", "random", "latest", bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}},
		{"known", "title", "title", bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Build(testSpec(), url.Values{"sort": {tt.sort}}, nil)
			assert.Equal(t, tt.wantName, q.SortName)
			assert.Equal(t, tt.want, q.Sort)
		})
	}
}

func TestBuildPagination(t *testing.T) {
	tests := []struct {
		page, perPage string
		wantPage      int
		wantPer       int
		wantSkip      int64
	}{
		{"", "", 1, 10, 0},
		{"3", "20", 3, 20, 40},
		{"0", "500", 1, 50, 0},
		{"-2", "0", 1, 1, 0},
		{"abc", "x", 1, 10, 0},
	}
	for _, tt := range tests {
		q := Build(testSpec(), url.Values{"page": {tt.page}, "per_page": {tt.perPage}}, nil)
		assert.Equal(t, tt.wantPage, q.Page)
		assert.Equal(t, tt.wantPer, q.PerPage)
		assert.Equal(t, tt.wantSkip, q.Skip())
	}
}

func TestSignatureIsOrderIndependent(t *testing.T) {
	a, err := url.ParseQuery("status=published&tag=go&search=intro&sort=title")
	require.NoError(t, err)
	b, err := url.ParseQuery("sort=title&search=+intro+&utm_source=x&tag=go&status=published&page=1")
	require.NoError(t, err)

	assert.Equal(t, Signature(testSpec(), a), Signature(testSpec(), b))
}

func TestSignatureDistinguishesFilters(t *testing.T) {
	a := url.Values{"status": {"published"}}
	b := url.Values{"status": {"draft"}}
	c := url.Values{"status": {"published"}, "page": {"2"}}

	assert.NotEqual(t, Signature(testSpec(), a), Signature(testSpec(), b))
	assert.NotEqual(t, Signature(testSpec(), a), Signature(testSpec(), c))
}

func TestSignatureCanonicalizesEquivalentValues(t *testing.T) {
	spec := testSpec()
	sig := func(q string) string {
		params, err := url.ParseQuery(q)
		require.NoError(t, err)
		return Signature(spec, params)
	}

	assert.Equal(t, sig("featured=true"), sig("featured=1"))
	assert.Equal(t, sig("featured=false"), sig("featured=no"))
	assert.NotEqual(t, sig("featured=true"), sig("featured=false"))
	assert.Equal(t, sig("status=published"), sig("status=Published"))
	assert.Equal(t, sig("search=Go"), sig("search=go"))
	assert.Equal(t, sig("date_from=2026-03-01"), sig("date_from=+2026-03-01+"))

	// Values Build ignores do not split the cache.
	assert.Equal(t, sig(""), sig("featured=banana"))
	assert.Equal(t, sig(""), sig("status=archived&date_to=yesterday"))
}

func TestSignatureNormalizesSortAndPageSize(t *testing.T) {
	a := url.Values{"sort": {"bogus"}, "per_page": {"999"}}
	b := url.Values{"sort": {"latest"}, "per_page": {"50"}}
	assert.Equal(t, Signature(testSpec(), a), Signature(testSpec(), b))
	assert.Equal(t, "page=1&per_page=50&sort=latest", Signature(testSpec(), a))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 25, 10)
	assert.Equal(t, Pagination{CurrentPage: 2, LastPage: 3, PerPage: 10, Total: 25, From: 11, To: 20}, p)

	last := NewPagination(3, 10, 25, 5)
	assert.Equal(t, int64(21), last.From)
	assert.Equal(t, int64(25), last.To)

	empty := NewPagination(1, 10, 0, 0)
	assert.Equal(t, 1, empty.LastPage)
	assert.Zero(t, empty.From)
	assert.Zero(t, empty.To)
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "on"} {
		b, ok := ParseBool(v)
		assert.True(t, ok, v)
		assert.True(t, b, v)
	}
	for _, v := range []string{"0", "false", "No", "off"} {
		b, ok := ParseBool(v)
		assert.True(t, ok, v)
		assert.False(t, b, v)
	}
	_, ok := ParseBool("perhaps")
	assert.False(t, ok)
}
