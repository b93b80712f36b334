package categories

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"cms-backend/internal/apperr"
	"cms-backend/internal/bulk"
	"cms-backend/internal/cache"
	"cms-backend/internal/db"
	"cms-backend/internal/listing"
	"cms-backend/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ImageRemover deletes stored images. Removal is best effort.
type ImageRemover interface {
	Remove(ctx context.Context, key string) error
}

type Service struct {
	repo     Repository
	runner   db.Runner
	cache    cache.Cache
	images   ImageRemover
	location *time.Location
	log      *slog.Logger
}

func NewService(repo Repository, runner db.Runner, c cache.Cache, images ImageRemover, location *time.Location, log *slog.Logger) *Service {
	if runner == nil {
		runner = db.DirectRunner{}
	}
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		runner:   runner,
		cache:    c,
		images:   images,
		location: location,
		log:      log,
	}
}

func (s *Service) forest(ctx context.Context) (*Forest, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, apperr.Storage("categories load", err)
	}
	return NewForest(all), nil
}

func (s *Service) Tree(ctx context.Context, includeInactive bool) ([]TreeNode, error) {
	f, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	return f.Tree(includeInactive), nil
}

func (s *Service) Flat(ctx context.Context) ([]FlatNode, error) {
	f, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	return f.Flat(), nil
}

// PublicDetail returns an active category by slug with its breadcrumb and
// active children.
func (s *Service) PublicDetail(ctx context.Context, slug string) (Detail, error) {
	f, err := s.forest(ctx)
	if err != nil {
		return Detail{}, err
	}
	var found *Category
	for _, root := range f.Tree(false) {
		if c := findInTree(root, slug); c != nil {
			found = c
			break
		}
	}
	if found == nil {
		return Detail{}, ErrNotFound
	}
	return Detail{
		Category:           *found,
		HierarchyLevel:     f.Level(found.ID),
		Breadcrumb:         f.Breadcrumb(found.ID),
		Children:           f.Children(found.ID, false),
		TotalResourceCount: f.TotalResourceCount(found.ID),
	}, nil
}

// findInTree only reaches categories whose ancestors are all active.
func findInTree(node TreeNode, slug string) *Category {
	if node.Slug == slug {
		c := node.Category
		return &c
	}
	for _, child := range node.Children {
		if c := findInTree(child, slug); c != nil {
			return c
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (Category, error) {
	c, err := s.repo.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Category{}, ErrNotFound
		}
		return Category{}, apperr.Storage("categories get", err)
	}
	return c, nil
}

// Resolve finds a category by id or slug.
func (s *Service) Resolve(ctx context.Context, idOrSlug string) (Category, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if primitive.IsValidObjectID(idOrSlug) {
		c, err := s.repo.Get(ctx, idOrSlug)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return Category{}, apperr.Storage("categories resolve", err)
		}
	}
	c, err := s.repo.GetBySlug(ctx, idOrSlug)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Category{}, ErrNotFound
		}
		return Category{}, apperr.Storage("categories resolve", err)
	}
	return c, nil
}

var adminSpec = listing.Spec{
	Entity: cache.EntityResourceCategories,
	Filters: map[string]listing.Filter{
		"active":   listing.Bool("is_active"),
		"featured": listing.Bool("is_featured"),
		"parent": func(value string) (bson.M, bool) {
			if strings.EqualFold(value, "root") {
				return bson.M{"parent_id": nil}, true
			}
			return bson.M{"parent_id": value}, true
		},
	},
	SearchFields: []string{"name", "description"},
	Sorts: map[string]bson.D{
		"order":     {{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}},
		"name":      {{Key: "name", Value: 1}},
		"latest":    {{Key: "created_at", Value: -1}},
		"resources": {{Key: "resource_count", Value: -1}},
	},
	DefaultSort:    "order",
	DefaultPerPage: 20,
	MaxPerPage:     100,
}

func (s *Service) List(ctx context.Context, params url.Values) (listing.Page[Category], error) {
	page, err := s.repo.List(ctx, listing.Build(adminSpec, params, nil))
	if err != nil {
		return listing.Page[Category]{}, apperr.Storage("categories list", err)
	}
	return page, nil
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (Category, error) {
	now := time.Now().In(s.location)
	parentID := normalizeParent(req.ParentID)

	if parentID != nil {
		f, err := s.forest(ctx)
		if err != nil {
			return Category{}, err
		}
		if err := f.ValidateParent("", *parentID); err != nil {
			return Category{}, err
		}
	}

	slug, err := s.pickSlug(ctx, req.Slug, req.Name, "")
	if err != nil {
		return Category{}, err
	}

	item := Category{
		ID:              primitive.NewObjectID().Hex(),
		Name:            strings.TrimSpace(req.Name),
		Slug:            slug,
		Description:     strings.TrimSpace(req.Description),
		Color:           colorOrDefault(req.Color),
		Icon:            strings.TrimSpace(req.Icon),
		FeaturedImage:   strings.TrimSpace(req.FeaturedImage),
		ParentID:        parentID,
		MetaTitle:       strings.TrimSpace(req.MetaTitle),
		MetaDescription: strings.TrimSpace(req.MetaDescription),
		MetaKeywords:    strings.TrimSpace(req.MetaKeywords),
		IsActive:        boolOr(req.IsActive, true),
		IsFeatured:      boolOr(req.IsFeatured, false),
		SortOrder:       intOr(req.SortOrder, 0),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Category{}, ErrSlugTaken
		}
		return Category{}, apperr.Storage("categories create", err)
	}
	s.invalidate(ctx)
	return item, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpsertRequest) (Category, error) {
	id = strings.TrimSpace(id)
	f, err := s.forest(ctx)
	if err != nil {
		return Category{}, err
	}
	current, ok := f.Get(id)
	if !ok {
		return Category{}, ErrNotFound
	}

	parentID := normalizeParent(req.ParentID)
	if parentID != nil {
		if err := f.ValidateParent(id, *parentID); err != nil {
			return Category{}, err
		}
	}

	slug := current.Slug
	if want := strings.TrimSpace(req.Slug); want != "" && want != current.Slug {
		if slug, err = s.pickSlug(ctx, want, req.Name, id); err != nil {
			return Category{}, err
		}
	}

	set := bson.M{
		"name":             strings.TrimSpace(req.Name),
		"slug":             slug,
		"description":      strings.TrimSpace(req.Description),
		"color":            colorOrDefault(req.Color),
		"icon":             strings.TrimSpace(req.Icon),
		"featured_image":   strings.TrimSpace(req.FeaturedImage),
		"parent_id":        parentID,
		"meta_title":       strings.TrimSpace(req.MetaTitle),
		"meta_description": strings.TrimSpace(req.MetaDescription),
		"meta_keywords":    strings.TrimSpace(req.MetaKeywords),
		"is_active":        boolOr(req.IsActive, current.IsActive),
		"is_featured":      boolOr(req.IsFeatured, current.IsFeatured),
		"sort_order":       intOr(req.SortOrder, current.SortOrder),
		"updated_at":       time.Now().In(s.location),
	}

	updated, err := s.repo.Update(ctx, id, set)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Category{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return Category{}, ErrSlugTaken
		}
		return Category{}, apperr.Storage("categories update", err)
	}

	if current.FeaturedImage != "" && current.FeaturedImage != updated.FeaturedImage {
		s.removeImage(ctx, current.FeaturedImage)
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes a category that has no resources and no children. The
// check and the delete run as one unit; the delete itself is conditional on
// resource_count so a resource created in between still blocks it.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	var removed Category

	err := s.runner.Do(ctx, func(ctx context.Context) error {
		c, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return apperr.Storage("categories delete", err)
		}
		children, err := s.repo.CountChildren(ctx, id)
		if err != nil {
			return apperr.Storage("categories delete", err)
		}
		if !CanDelete(c, children > 0) {
			if c.ResourceCount > 0 {
				return ErrHasResources
			}
			return ErrHasChildren
		}

		deleted, err := s.repo.DeleteIfEmpty(ctx, id)
		if err != nil {
			return apperr.Storage("categories delete", err)
		}
		if !deleted {
			return ErrHasResources
		}
		removed = c
		return nil
	})
	if err != nil {
		return err
	}

	if removed.FeaturedImage != "" {
		s.removeImage(ctx, removed.FeaturedImage)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) Reorder(ctx context.Context, items []bulk.ReorderItem) error {
	if err := s.repo.Reorder(ctx, items); err != nil {
		return apperr.Storage("categories reorder", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) Bulk(ctx context.Context, action string, ids []string) (bulk.Result, error) {
	var set bson.M
	switch action {
	case "activate":
		set = bson.M{"is_active": true}
	case "deactivate":
		set = bson.M{"is_active": false}
	case "feature":
		set = bson.M{"is_featured": true}
	case "unfeature":
		set = bson.M{"is_featured": false}
	case "delete":
		return bulk.Run(ctx, action, ids, s.Delete)
	default:
		return bulk.Result{}, bulk.ErrUnknownAction
	}

	res, err := bulk.Run(ctx, action, ids, func(ctx context.Context, id string) error {
		set["updated_at"] = time.Now().In(s.location)
		if _, err := s.repo.Update(ctx, id, set); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return apperr.Storage("categories bulk", err)
		}
		return nil
	})
	s.invalidate(ctx)
	return res, err
}

// AdjustResourceCount moves a category's resource_count by delta. It fails
// with ErrNotFound when the category no longer exists.
func (s *Service) AdjustResourceCount(ctx context.Context, id string, delta int) error {
	if id == "" || delta == 0 {
		return nil
	}
	matched, err := s.repo.AdjustResourceCount(ctx, id, delta)
	if err != nil {
		return apperr.Storage("categories adjust count", err)
	}
	if !matched && delta > 0 {
		return ErrNotFound
	}
	return nil
}

// Reconcile overwrites every resource_count with the recounted value and
// reports how many categories changed.
func (s *Service) Reconcile(ctx context.Context, counts map[string]int64) (int, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return 0, apperr.Storage("categories reconcile", err)
	}
	changed := 0
	for _, c := range all {
		want := counts[c.ID]
		if c.ResourceCount == want {
			continue
		}
		if err := s.repo.SetResourceCount(ctx, c.ID, want); err != nil {
			return changed, apperr.Storage("categories reconcile", err)
		}
		changed++
	}
	if changed > 0 {
		s.invalidate(ctx)
	}
	return changed, nil
}

func (s *Service) pickSlug(ctx context.Context, requested, name, exceptID string) (string, error) {
	taken := func(ctx context.Context, slug string) (bool, error) {
		return s.repo.SlugExists(ctx, slug, exceptID)
	}
	if requested = strings.TrimSpace(requested); requested != "" {
		exists, err := taken(ctx, requested)
		if err != nil {
			return "", apperr.Storage("categories slug", err)
		}
		if exists {
			return "", ErrSlugTaken
		}
		return requested, nil
	}
	slug, err := utils.UniqueSlug(ctx, name, "category", taken)
	if err != nil {
		return "", apperr.Storage("categories slug", err)
	}
	return slug, nil
}

// invalidate drops every cached category view, since details embed parents,
// children and ancestry, and every resource view, which embeds category data.
func (s *Service) invalidate(ctx context.Context) {
	if err := cache.InvalidateAll(ctx, s.cache, cache.EntityResourceCategories); err != nil {
		s.log.Warn("categories cache: invalidate failed", slog.String("error", err.Error()))
	}
	if err := cache.InvalidateAll(ctx, s.cache, cache.EntityResources); err != nil {
		s.log.Warn("categories cache: invalidate resources failed", slog.String("error", err.Error()))
	}
}

func (s *Service) removeImage(ctx context.Context, key string) {
	if s.images == nil {
		return
	}
	if err := s.images.Remove(ctx, key); err != nil {
		s.log.Warn("categories media: remove failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func normalizeParent(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func colorOrDefault(color string) string {
	if color = strings.TrimSpace(color); color != "" {
		return color
	}
	return DefaultColor
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
