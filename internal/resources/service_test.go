package resources

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"cms-backend/internal/apperr"
	"cms-backend/internal/cache"
	"cms-backend/internal/categories"
	"cms-backend/internal/engagement"
	"cms-backend/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type memRepo struct {
	mu    sync.Mutex
	items map[string]Resource
	// beforeWrite runs ahead of a guarded update, standing in for a
	// concurrent writer.
	beforeWrite func()
	incrErr     error
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[string]Resource)}
}

func (m *memRepo) Create(ctx context.Context, item Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.Slug == item.Slug {
			return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
		}
	}
	m.items[item.ID] = item
	return nil
}

func (m *memRepo) Get(ctx context.Context, id string) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return Resource{}, mongo.ErrNoDocuments
	}
	return r, nil
}

func (m *memRepo) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.Slug == slug && (!publishedOnly || r.Status == StatusPublished) {
			return r, nil
		}
	}
	return Resource{}, mongo.ErrNoDocuments
}

func (m *memRepo) SlugExists(ctx context.Context, slug, exceptID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.items {
		if r.Slug == slug && id != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) UpdateInCategory(ctx context.Context, id, categoryID string, set bson.M) (Resource, error) {
	if m.beforeWrite != nil {
		hook := m.beforeWrite
		m.beforeWrite = nil
		hook()
	}
	m.mu.Lock()
	r, ok := m.items[id]
	m.mu.Unlock()
	if !ok || r.CategoryID != categoryID {
		return Resource{}, mongo.ErrNoDocuments
	}
	return m.Update(ctx, id, set)
}

func (m *memRepo) Update(ctx context.Context, id string, set bson.M) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return Resource{}, mongo.ErrNoDocuments
	}
	raw, err := bson.Marshal(r)
	if err != nil {
		return Resource{}, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return Resource{}, err
	}
	for k, v := range set {
		doc[k] = v
	}
	raw, err = bson.Marshal(doc)
	if err != nil {
		return Resource{}, err
	}
	var updated Resource
	if err := bson.Unmarshal(raw, &updated); err != nil {
		return Resource{}, err
	}
	m.items[id] = updated
	return updated, nil
}

func (m *memRepo) Delete(ctx context.Context, id string) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return Resource{}, mongo.ErrNoDocuments
	}
	delete(m.items, id)
	return r, nil
}

func (m *memRepo) List(ctx context.Context, q listing.Query) (listing.Page[Resource], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]Resource, 0, len(m.items))
	for _, r := range m.items {
		items = append(items, r)
	}
	return listing.Page[Resource]{
		Items:      items,
		Pagination: listing.NewPagination(q.Page, q.PerPage, int64(len(items)), len(items)),
	}, nil
}

func (m *memRepo) Stats(ctx context.Context, match bson.M) (Stats, error) {
	return Stats{ByCategory: map[string]int64{}}, nil
}

func (m *memRepo) Increment(ctx context.Context, id, field string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	r, ok := m.items[id]
	if !ok || r.Status != StatusPublished {
		return 0, mongo.ErrNoDocuments
	}
	var n int64
	switch field {
	case "view_count":
		r.ViewCount++
		n = r.ViewCount
	case "share_count":
		r.ShareCount++
		n = r.ShareCount
	case "like_count":
		r.LikeCount++
		n = r.LikeCount
	}
	m.items[id] = r
	return n, nil
}

func (m *memRepo) Tags(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for _, r := range m.items {
		if r.Status != StatusPublished {
			continue
		}
		for _, t := range r.Tags {
			out[t]++
		}
	}
	return out, nil
}

func (m *memRepo) Find(ctx context.Context, match bson.M, order bson.D, limit int64) ([]Resource, error) {
	return nil, nil
}

func (m *memRepo) CountByCategory(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for _, r := range m.items {
		out[r.CategoryID]++
	}
	return out, nil
}

// fakeCategories keeps resource counts per category id.
type fakeCategories struct {
	mu     sync.Mutex
	byID   map[string]categories.Category
	counts map[string]int64
}

func newFakeCategories(cats ...categories.Category) *fakeCategories {
	f := &fakeCategories{byID: make(map[string]categories.Category), counts: make(map[string]int64)}
	for _, c := range cats {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCategories) Resolve(ctx context.Context, idOrSlug string) (categories.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.byID[idOrSlug]; ok {
		return c, nil
	}
	for _, c := range f.byID {
		if c.Slug == idOrSlug {
			return c, nil
		}
	}
	return categories.Category{}, categories.ErrNotFound
}

func (f *fakeCategories) AdjustResourceCount(ctx context.Context, id string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		if delta > 0 {
			return categories.ErrNotFound
		}
		return nil
	}
	f.counts[id] += int64(delta)
	return nil
}

func (f *fakeCategories) count(id string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[id]
}

type fakeImages struct {
	removed []string
}

func (f *fakeImages) Remove(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

const (
	catGuides = "65a000000000000000000001"
	catNews   = "65a000000000000000000002"
)

type fixture struct {
	svc    *Service
	repo   *memRepo
	cats   *fakeCategories
	store  *cache.MemoryStore
	images *fakeImages
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: newMemRepo(),
		cats: newFakeCategories(
			categories.Category{ID: catGuides, Name: "Guides", Slug: "guides", Color: "#3B82F6"},
			categories.Category{ID: catNews, Name: "News", Slug: "news", Color: "#10B981"},
		),
		images: &fakeImages{},
		now:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.store = cache.NewMemoryWithClock(func() time.Time { return f.now })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(Deps{
		Repo:       f.repo,
		Categories: f.cats,
		Cache:      f.store,
		Views:      engagement.NewTracker(f.store, time.Hour, log),
		Images:     f.images,
		Log:        log,
	})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func draft(title, category string) UpsertRequest {
	return UpsertRequest{
		Title:      title,
		Content:    "<p>" + strings.Repeat("word ", 250) + "</p>",
		CategoryID: category,
	}
}

func TestCreateCountsCategoryAndDeleteReleasesIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.Create(ctx, draft("Getting started", catGuides), "staff-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.cats.count(catGuides))
	assert.Equal(t, StatusDraft, item.Status)
	assert.False(t, item.IsPublished)
	assert.Nil(t, item.PublishedAt)
	assert.Equal(t, "staff-1", item.AuthorID)

	require.NoError(t, f.svc.Delete(ctx, item.ID))
	assert.Equal(t, int64(0), f.cats.count(catGuides))

	err = f.svc.Delete(ctx, item.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, int64(0), f.cats.count(catGuides))
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), draft("Orphan", "65a0000000000000000000ff"), "")
	require.ErrorIs(t, err, ErrCategoryNotFound)
	assert.Empty(t, f.repo.items)
}

func TestCreateDuplicateSlugRollsBackCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := draft("Pricing", catGuides)
	req.Slug = "pricing"
	_, err := f.svc.Create(ctx, req, "")
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, req, "")
	require.ErrorIs(t, err, ErrSlugTaken)
	assert.Equal(t, int64(1), f.cats.count(catGuides))

	req.Slug = ""
	second, err := f.svc.Create(ctx, req, "")
	require.NoError(t, err)
	assert.Equal(t, "pricing-2", second.Slug)
	assert.Equal(t, int64(2), f.cats.count(catGuides))
}

func TestUpdateMovesCategoryCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.Create(ctx, draft("Release notes", catGuides), "")
	require.NoError(t, err)

	req := draft("Release notes", catNews)
	updated, err := f.svc.Update(ctx, item.ID, req, "staff-2")
	require.NoError(t, err)
	assert.Equal(t, catNews, updated.CategoryID)
	assert.Equal(t, item.Slug, updated.Slug)
	assert.Equal(t, "staff-2", updated.UpdatedBy)
	assert.Equal(t, int64(0), f.cats.count(catGuides))
	assert.Equal(t, int64(1), f.cats.count(catNews))
}

func TestUpdateRejectsConcurrentCategoryMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.Create(ctx, draft("Roadmap", catGuides), "")
	require.NoError(t, err)

	// Another editor moves the resource to News between our read and write.
	f.repo.beforeWrite = func() {
		_, err := f.svc.Update(ctx, item.ID, draft("Roadmap", catNews), "staff-1")
		require.NoError(t, err)
	}

	_, err = f.svc.Update(ctx, item.ID, draft("Roadmap", catGuides), "staff-2")
	require.ErrorIs(t, err, ErrEditConflict)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	got, err := f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, catNews, got.CategoryID)
	assert.Equal(t, int64(0), f.cats.count(catGuides))
	assert.Equal(t, int64(1), f.cats.count(catNews))
}

func TestUpdateMissingResource(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Update(context.Background(), "65b0000000000000000000ff", draft("Ghost", catGuides), "")
	assert.True(t, apperr.IsNotFound(err))
}

func TestPublishedAtIsSetOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := draft("Launch", catGuides)
	req.Status = StatusPublished
	item, err := f.svc.Create(ctx, req, "")
	require.NoError(t, err)
	require.NotNil(t, item.PublishedAt)
	assert.True(t, item.IsPublished)
	first := *item.PublishedAt

	f.now = f.now.Add(24 * time.Hour)
	req.Status = StatusDraft
	item, err = f.svc.Update(ctx, item.ID, req, "")
	require.NoError(t, err)
	assert.False(t, item.IsPublished)

	f.now = f.now.Add(24 * time.Hour)
	res, err := f.svc.Bulk(ctx, "publish", []string{item.ID}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	item, err = f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, item.IsPublished)
	require.NotNil(t, item.PublishedAt)
	assert.True(t, first.Equal(*item.PublishedAt))
}

func TestCreateComputesReadTimeAndSeoScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := draft("Sparse", catGuides)
	req.Content = "<p>" + strings.Repeat("word ", 450) + "</p><script>alert(1)</script>"
	item, err := f.svc.Create(ctx, req, "")
	require.NoError(t, err)
	assert.Equal(t, 3, item.ReadTime)
	assert.NotContains(t, item.Content, "<script>")

	fuller := req
	fuller.Title = "A complete guide to planning your first project"
	fuller.Excerpt = "Everything you need before starting."
	fuller.MetaDescription = "Meta"
	fuller.Tags = []string{"Planning", " planning ", "guides"}
	fuller.FeaturedImage = "resources/2026/03/cover.png"
	manual := 12
	fuller.ReadTime = &manual
	better, err := f.svc.Create(ctx, fuller, "")
	require.NoError(t, err)
	assert.Equal(t, 12, better.ReadTime)
	assert.Equal(t, []string{"Planning", "guides"}, better.Tags)
	assert.Greater(t, better.SeoScore, item.SeoScore)
	assert.LessOrEqual(t, better.SeoScore, 100)
}

func TestRecordViewCountsOncePerWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := draft("Popular", catGuides)
	req.Status = StatusPublished
	item, err := f.svc.Create(ctx, req, "")
	require.NoError(t, err)

	viewer := engagement.ViewerKey("", "203.0.113.9")
	counted, err := f.svc.RecordView(ctx, item.ID, viewer)
	require.NoError(t, err)
	assert.True(t, counted)

	counted, err = f.svc.RecordView(ctx, item.ID, viewer)
	require.NoError(t, err)
	assert.False(t, counted)

	got, err := f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)

	counted, err = f.svc.RecordView(ctx, item.ID, engagement.ViewerKey("staff-9", "203.0.113.9"))
	require.NoError(t, err)
	assert.True(t, counted)

	f.now = f.now.Add(61 * time.Minute)
	counted, err = f.svc.RecordView(ctx, item.ID, viewer)
	require.NoError(t, err)
	assert.True(t, counted)

	got, err = f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ViewCount)
}

func TestRecordViewStorageFailureKeepsViewCountable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := draft("Flaky", catGuides)
	req.Status = StatusPublished
	item, err := f.svc.Create(ctx, req, "")
	require.NoError(t, err)
	viewer := engagement.ViewerKey("", "203.0.113.10")

	f.repo.incrErr = errors.New("connection reset")
	_, err = f.svc.RecordView(ctx, item.ID, viewer)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))

	f.repo.incrErr = nil
	counted, err := f.svc.RecordView(ctx, item.ID, viewer)
	require.NoError(t, err)
	assert.True(t, counted)
}

func TestShareAndLikeRequirePublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.Create(ctx, draft("Draft only", catGuides), "")
	require.NoError(t, err)

	_, err = f.svc.Share(ctx, item.ID)
	assert.True(t, apperr.IsNotFound(err))

	_, err = f.svc.Bulk(ctx, "publish", []string{item.ID}, "")
	require.NoError(t, err)

	c, err := f.svc.Share(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
	c, err = f.svc.Share(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Count)

	c, err = f.svc.Like(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
}

func TestDeleteRemovesImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := draft("With images", catGuides)
	req.FeaturedImage = "resources/cover.png"
	req.GalleryImages = []string{"resources/a.png", " ", "resources/b.png"}
	item, err := f.svc.Create(ctx, req, "")
	require.NoError(t, err)
	assert.Len(t, item.GalleryImages, 2)

	require.NoError(t, f.svc.Delete(ctx, item.ID))
	assert.Equal(t, []string{"resources/cover.png", "resources/a.png", "resources/b.png"}, f.images.removed)
}

func TestWritesInvalidateResourceAndCategoryCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	listKey := cache.ListKey(cache.EntityResources, "list", "page=1")
	catKey := cache.ListKey(cache.EntityResourceCategories, "tree", "")
	catDetail := cache.DetailKey(cache.EntityResourceCategories, "guides")
	otherDetail := cache.DetailKey(cache.EntityResources, "unrelated")
	seed := func() {
		for _, k := range []string{listKey, catKey, catDetail, otherDetail} {
			require.NoError(t, f.store.Set(ctx, k, []byte(`{}`), time.Minute))
		}
	}
	cached := func(key string) bool {
		_, ok, _ := f.store.Get(ctx, key)
		return ok
	}

	seed()
	item, err := f.svc.Create(ctx, draft("Fresh", catGuides), "")
	require.NoError(t, err)
	assert.False(t, cached(listKey))
	assert.False(t, cached(catKey))
	assert.False(t, cached(catDetail), "category detail embeds resource_count")
	assert.True(t, cached(otherDetail))

	seed()
	_, err = f.svc.Update(ctx, item.ID, draft("Fresh", catNews), "")
	require.NoError(t, err)
	assert.False(t, cached(catDetail))

	seed()
	require.NoError(t, f.svc.Delete(ctx, item.ID))
	assert.False(t, cached(catDetail))
	assert.False(t, cached(listKey))
}

func TestCategoryParamResolvesSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params, err := f.svc.resolveCategoryParam(ctx, url.Values{"category": {"news"}})
	require.NoError(t, err)
	assert.Equal(t, catNews, params.Get("category"))

	params, err = f.svc.resolveCategoryParam(ctx, url.Values{"category": {"missing"}})
	require.NoError(t, err)
	assert.NotEqual(t, "missing", params.Get("category"))

	q := listing.Build(PublicSpec, params, publishedOnly)
	assert.NotEmpty(t, q.Match)
}

func TestTagsOrderedByCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, tags := range [][]string{{"go", "api"}, {"go"}, {"cms", "api", "go"}} {
		req := draft("Tagged "+string(rune('a'+i)), catGuides)
		req.Status = StatusPublished
		req.Tags = tags
		_, err := f.svc.Create(ctx, req, "")
		require.NoError(t, err)
	}

	tags, err := f.svc.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TagCount{{Tag: "go", Count: 3}, {Tag: "api", Count: 2}, {Tag: "cms", Count: 1}}, tags)
}

func TestBulkRejectsUnknownAction(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Bulk(context.Background(), "explode", []string{"x"}, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
