package categories

import (
	"context"
	"sync"
	"testing"

	"cms-backend/internal/apperr"
	"cms-backend/internal/bulk"
	"cms-backend/internal/cache"
	"cms-backend/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type memRepo struct {
	mu    sync.Mutex
	items map[string]Category
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[string]Category)}
}

func (m *memRepo) Create(ctx context.Context, item Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.Slug == item.Slug {
			return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
		}
	}
	m.items[item.ID] = item
	return nil
}

func (m *memRepo) Get(ctx context.Context, id string) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return Category{}, mongo.ErrNoDocuments
	}
	return c, nil
}

func (m *memRepo) GetBySlug(ctx context.Context, slug string) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.Slug == slug {
			return c, nil
		}
	}
	return Category{}, mongo.ErrNoDocuments
}

func (m *memRepo) SlugExists(ctx context.Context, slug, exceptID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.items {
		if c.Slug == slug && id != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Update(ctx context.Context, id string, set bson.M) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return Category{}, mongo.ErrNoDocuments
	}
	raw, err := bson.Marshal(c)
	if err != nil {
		return Category{}, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return Category{}, err
	}
	for k, v := range set {
		doc[k] = v
	}
	raw, err = bson.Marshal(doc)
	if err != nil {
		return Category{}, err
	}
	var updated Category
	if err := bson.Unmarshal(raw, &updated); err != nil {
		return Category{}, err
	}
	m.items[id] = updated
	return updated, nil
}

func (m *memRepo) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok || c.ResourceCount > 0 {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

func (m *memRepo) All(ctx context.Context) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Category, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, c)
	}
	return out, nil
}

func (m *memRepo) CountChildren(ctx context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.items {
		if c.Parent() == id {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) AdjustResourceCount(ctx context.Context, id string, delta int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok || c.ResourceCount+int64(delta) < 0 {
		return false, nil
	}
	c.ResourceCount += int64(delta)
	m.items[id] = c
	return true, nil
}

func (m *memRepo) SetResourceCount(ctx context.Context, id string, count int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.items[id]
	c.ResourceCount = count
	m.items[id] = c
	return nil
}

func (m *memRepo) List(ctx context.Context, q listing.Query) (listing.Page[Category], error) {
	all, _ := m.All(ctx)
	return listing.Page[Category]{Items: all, Pagination: listing.NewPagination(q.Page, q.PerPage, int64(len(all)), len(all))}, nil
}

func (m *memRepo) Reorder(ctx context.Context, items []bulk.ReorderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if c, ok := m.items[item.ID]; ok {
			c.SortOrder = item.SortOrder
			m.items[item.ID] = c
		}
	}
	return nil
}

type removedImages struct{ keys []string }

func (r *removedImages) Remove(ctx context.Context, key string) error {
	r.keys = append(r.keys, key)
	return nil
}

func newTestService() (*Service, *memRepo, *cache.MemoryStore) {
	repo := newMemRepo()
	store := cache.NewMemory()
	return NewService(repo, nil, store, nil, nil, nil), repo, store
}

func TestCreateDerivesUniqueSlugs(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, UpsertRequest{Name: "Guides"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, UpsertRequest{Name: "Guides"})
	require.NoError(t, err)

	assert.Equal(t, "guides", first.Slug)
	assert.Equal(t, "guides-2", second.Slug)
	assert.Equal(t, DefaultColor, first.Color)
	assert.True(t, first.IsActive)
	assert.Nil(t, first.ParentID)

	_, err = svc.Create(ctx, UpsertRequest{Name: "Other", Slug: "guides"})
	assert.ErrorIs(t, err, ErrSlugTaken)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCreateRejectsUnknownParent(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), UpsertRequest{Name: "Child", ParentID: ptr("64b7f0c2a1b2c3d4e5f60718")})
	assert.ErrorIs(t, err, ErrParentNotFound)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestParentCycleRejected(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	parent, err := svc.Create(ctx, UpsertRequest{Name: "Parent"})
	require.NoError(t, err)
	child, err := svc.Create(ctx, UpsertRequest{Name: "Child", ParentID: ptr(parent.ID)})
	require.NoError(t, err)
	grandchild, err := svc.Create(ctx, UpsertRequest{Name: "Grandchild", ParentID: ptr(child.ID)})
	require.NoError(t, err)

	_, err = svc.Update(ctx, parent.ID, UpsertRequest{Name: "Parent", ParentID: ptr(child.ID)})
	assert.ErrorIs(t, err, ErrCircularReference)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.Update(ctx, parent.ID, UpsertRequest{Name: "Parent", ParentID: ptr(grandchild.ID)})
	assert.ErrorIs(t, err, ErrCircularReference)

	stored, err := repo.Get(ctx, parent.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ParentID)
}

func TestUpdateKeepsSlugAndMovesCategory(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, UpsertRequest{Name: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, UpsertRequest{Name: "B"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, b.ID, UpsertRequest{Name: "B renamed", ParentID: ptr(a.ID)})
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Slug)
	assert.Equal(t, a.ID, updated.Parent())
	assert.Equal(t, "B renamed", updated.Name)

	_, err = svc.Update(ctx, b.ID, UpsertRequest{Name: "B", Slug: "a"})
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestDeleteGuardsAndCountLifecycle(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	x, err := svc.Create(ctx, UpsertRequest{Name: "X"})
	require.NoError(t, err)

	require.NoError(t, svc.AdjustResourceCount(ctx, x.ID, 1))
	got, err := svc.Get(ctx, x.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ResourceCount)

	err = svc.Delete(ctx, x.ID)
	assert.ErrorIs(t, err, ErrHasResources)
	_, err = repo.Get(ctx, x.ID)
	require.NoError(t, err, "blocked delete must not remove the category")

	require.NoError(t, svc.AdjustResourceCount(ctx, x.ID, -1))
	got, err = svc.Get(ctx, x.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ResourceCount)

	require.NoError(t, svc.Delete(ctx, x.ID))
	_, err = svc.Get(ctx, x.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteBlockedByChildren(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	parent, err := svc.Create(ctx, UpsertRequest{Name: "Parent"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, UpsertRequest{Name: "Child", ParentID: ptr(parent.ID)})
	require.NoError(t, err)

	err = svc.Delete(ctx, parent.ID)
	assert.ErrorIs(t, err, ErrHasChildren)
}

func TestDeleteRemovesImage(t *testing.T) {
	repo := newMemRepo()
	images := &removedImages{}
	svc := NewService(repo, nil, cache.NewMemory(), images, nil, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, UpsertRequest{Name: "Pics", FeaturedImage: "categories/pics.png"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, c.ID))
	assert.Equal(t, []string{"categories/pics.png"}, images.keys)
}

func TestAdjustCountOnMissingCategory(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.AdjustResourceCount(context.Background(), "64b7f0c2a1b2c3d4e5f60718", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWritesInvalidateCache(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, cache.ListKey(cache.EntityResourceCategories, "tree", ""), []byte("[]"), 0))
	require.NoError(t, store.Set(ctx, cache.ListKey(cache.EntityResources, "index", "page=1"), []byte("[]"), 0))

	_, err := svc.Create(ctx, UpsertRequest{Name: "Fresh"})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestUpdateInvalidatesRelatedDetails(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()

	parent, err := svc.Create(ctx, UpsertRequest{Name: "Guides"})
	require.NoError(t, err)
	child, err := svc.Create(ctx, UpsertRequest{Name: "Basics", ParentID: ptr(parent.ID)})
	require.NoError(t, err)

	keys := []string{
		cache.DetailKey(cache.EntityResourceCategories, parent.Slug),
		cache.DetailKey(cache.EntityResourceCategories, child.Slug),
		cache.DetailKey(cache.EntityResources, "intro-to-basics"),
	}
	for _, k := range keys {
		require.NoError(t, store.Set(ctx, k, []byte("{}"), 0))
	}

	_, err = svc.Update(ctx, child.ID, UpsertRequest{Name: "Basics renamed", ParentID: ptr(parent.ID)})
	require.NoError(t, err)

	for _, k := range keys {
		_, ok, _ := store.Get(ctx, k)
		assert.False(t, ok, k)
	}
}

func TestPublicDetailHidesInactiveBranches(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	off := false

	root, err := svc.Create(ctx, UpsertRequest{Name: "Root"})
	require.NoError(t, err)
	hidden, err := svc.Create(ctx, UpsertRequest{Name: "Hidden", ParentID: ptr(root.ID), IsActive: &off})
	require.NoError(t, err)
	_, err = svc.Create(ctx, UpsertRequest{Name: "Below", ParentID: ptr(hidden.ID)})
	require.NoError(t, err)
	visible, err := svc.Create(ctx, UpsertRequest{Name: "Visible", ParentID: ptr(root.ID)})
	require.NoError(t, err)
	require.NoError(t, svc.AdjustResourceCount(ctx, visible.ID, 1))

	detail, err := svc.PublicDetail(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, 0, detail.HierarchyLevel)
	require.Len(t, detail.Children, 1)
	assert.Equal(t, "visible", detail.Children[0].Slug)
	assert.Equal(t, int64(1), detail.TotalResourceCount)

	_, err = svc.PublicDetail(ctx, "below")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBulkAndReconcile(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, UpsertRequest{Name: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, UpsertRequest{Name: "B"})
	require.NoError(t, err)

	res, err := svc.Bulk(ctx, "deactivate", []string{a.ID, b.ID, "64b7f0c2a1b2c3d4e5f60718"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	require.Len(t, res.Failed, 1)
	got, _ := repo.Get(ctx, a.ID)
	assert.False(t, got.IsActive)

	_, err = svc.Bulk(ctx, "explode", []string{a.ID})
	assert.ErrorIs(t, err, bulk.ErrUnknownAction)

	changed, err := svc.Reconcile(ctx, map[string]int64{a.ID: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	got, _ = repo.Get(ctx, a.ID)
	assert.Equal(t, int64(4), got.ResourceCount)
}
