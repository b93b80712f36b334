package faqs

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"cms-backend/internal/apperr"
	"cms-backend/internal/bulk"
	"cms-backend/internal/cache"
	"cms-backend/internal/listing"
	"cms-backend/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var categorySpec = listing.Spec{
	Entity: cache.EntityFaqCategories,
	Filters: map[string]listing.Filter{
		"status": listing.OneOf("status", StatusActive, StatusInactive),
	},
	SearchFields: []string{"name", "description"},
	Sorts: map[string]bson.D{
		"order":  {{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}},
		"name":   {{Key: "name", Value: 1}},
		"latest": {{Key: "created_at", Value: -1}},
	},
	DefaultSort:    "order",
	DefaultPerPage: 20,
	MaxPerPage:     100,
}

// ResolveCategory finds a FAQ category by id or slug.
func (s *Service) ResolveCategory(ctx context.Context, idOrSlug string) (Category, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if primitive.IsValidObjectID(idOrSlug) {
		c, err := s.categories.Get(ctx, idOrSlug)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return Category{}, apperr.Storage("faq categories resolve", err)
		}
	}
	c, err := s.categories.GetBySlug(ctx, idOrSlug)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, apperr.Storage("faq categories resolve", err)
	}
	return c, nil
}

// PublicCategories lists active categories with their active FAQ counts.
func (s *Service) PublicCategories(ctx context.Context) ([]CategoryCount, error) {
	cats, err := s.categories.Active(ctx)
	if err != nil {
		return nil, apperr.Storage("faq categories public list", err)
	}
	counts, err := s.faqs.CountActiveByCategory(ctx)
	if err != nil {
		return nil, apperr.Storage("faq categories public list", err)
	}
	out := make([]CategoryCount, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryCount{Category: c, FaqCount: counts[c.ID]})
	}
	return out, nil
}

func (s *Service) ListCategories(ctx context.Context, params url.Values) (listing.Page[Category], error) {
	page, err := s.categories.List(ctx, listing.Build(categorySpec, params, nil))
	if err != nil {
		return listing.Page[Category]{}, apperr.Storage("faq categories list", err)
	}
	return page, nil
}

func (s *Service) GetCategory(ctx context.Context, id string) (Category, error) {
	c, err := s.categories.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, apperr.Storage("faq categories get", err)
	}
	return c, nil
}

func (s *Service) CreateCategory(ctx context.Context, req CategoryRequest, staffID string) (Category, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.requireFreeName(ctx, name, ""); err != nil {
		return Category{}, err
	}
	slug, err := s.categorySlug(ctx, name, "")
	if err != nil {
		return Category{}, err
	}

	now := s.now().In(s.location)
	item := Category{
		ID:              primitive.NewObjectID().Hex(),
		Name:            name,
		Slug:            slug,
		Description:     strings.TrimSpace(req.Description),
		Icon:            strings.TrimSpace(req.Icon),
		Color:           strings.TrimSpace(req.Color),
		Status:          statusOr(req.Status, StatusActive),
		MetaTitle:       strings.TrimSpace(req.MetaTitle),
		MetaDescription: strings.TrimSpace(req.MetaDescription),
		CreatedBy:       staffID,
		UpdatedBy:       staffID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.SortOrder != nil {
		item.SortOrder = *req.SortOrder
	}

	if err := s.categories.Create(ctx, item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Category{}, ErrNameTaken
		}
		return Category{}, apperr.Storage("faq categories create", err)
	}
	s.invalidateCategories(ctx)
	return item, nil
}

// UpdateCategory re-derives the slug when the name changes.
func (s *Service) UpdateCategory(ctx context.Context, id string, req CategoryRequest, staffID string) (Category, error) {
	current, err := s.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}

	name := strings.TrimSpace(req.Name)
	slug := current.Slug
	if name != current.Name {
		if err := s.requireFreeName(ctx, name, current.ID); err != nil {
			return Category{}, err
		}
		if slug, err = s.categorySlug(ctx, name, current.ID); err != nil {
			return Category{}, err
		}
	}

	sortOrder := current.SortOrder
	if req.SortOrder != nil {
		sortOrder = *req.SortOrder
	}

	updated, err := s.categories.Update(ctx, current.ID, bson.M{
		"name":             name,
		"slug":             slug,
		"description":      strings.TrimSpace(req.Description),
		"icon":             strings.TrimSpace(req.Icon),
		"color":            strings.TrimSpace(req.Color),
		"status":           statusOr(req.Status, current.Status),
		"sort_order":       sortOrder,
		"meta_title":       strings.TrimSpace(req.MetaTitle),
		"meta_description": strings.TrimSpace(req.MetaDescription),
		"updated_by":       staffID,
		"updated_at":       s.now().In(s.location),
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Category{}, ErrCategoryNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return Category{}, ErrNameTaken
		}
		return Category{}, apperr.Storage("faq categories update", err)
	}
	s.invalidateCategories(ctx)
	return updated, nil
}

// DeleteCategory refuses while any FAQ, active or not, references the category.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	err := s.runner.Do(ctx, func(ctx context.Context) error {
		n, err := s.faqs.CountInCategory(ctx, id)
		if err != nil {
			return apperr.Storage("faq categories delete", err)
		}
		if n > 0 {
			return ErrCategoryInUse
		}
		deleted, err := s.categories.Delete(ctx, id)
		if err != nil {
			return apperr.Storage("faq categories delete", err)
		}
		if !deleted {
			return ErrCategoryNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateCategories(ctx)
	return nil
}

func (s *Service) ReorderCategories(ctx context.Context, items []bulk.ReorderItem) error {
	if err := s.categories.Reorder(ctx, items); err != nil {
		return apperr.Storage("faq categories reorder", err)
	}
	s.invalidateCategories(ctx)
	return nil
}

func (s *Service) BulkCategories(ctx context.Context, action string, ids []string, staffID string) (bulk.Result, error) {
	var status string
	switch action {
	case "activate":
		status = StatusActive
	case "deactivate":
		status = StatusInactive
	case "delete":
		return bulk.Run(ctx, action, ids, s.DeleteCategory)
	default:
		return bulk.Result{}, bulk.ErrUnknownAction
	}

	res, err := bulk.Run(ctx, action, ids, func(ctx context.Context, id string) error {
		_, err := s.categories.Update(ctx, id, bson.M{
			"status":     status,
			"updated_by": staffID,
			"updated_at": s.now().In(s.location),
		})
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrCategoryNotFound
			}
			return apperr.Storage("faq categories bulk", err)
		}
		return nil
	})
	s.invalidateCategories(ctx)
	return res, err
}

func (s *Service) requireFreeName(ctx context.Context, name, exceptID string) error {
	taken, err := s.categories.NameExists(ctx, name, exceptID)
	if err != nil {
		return apperr.Storage("faq categories name", err)
	}
	if taken {
		return ErrNameTaken
	}
	return nil
}

func (s *Service) categorySlug(ctx context.Context, name, exceptID string) (string, error) {
	slug, err := utils.UniqueSlug(ctx, name, "category", func(ctx context.Context, slug string) (bool, error) {
		return s.categories.SlugExists(ctx, slug, exceptID)
	})
	if err != nil {
		return "", apperr.Storage("faq categories slug", err)
	}
	return slug, nil
}

// invalidateCategories drops category listings and every cached FAQ view,
// since FAQ listings and details embed category data.
func (s *Service) invalidateCategories(ctx context.Context) {
	if err := cache.Invalidate(ctx, s.cache, cache.EntityFaqCategories); err != nil {
		s.log.Warn("faq categories cache: invalidate failed", slog.String("error", err.Error()))
	}
	if err := cache.InvalidateAll(ctx, s.cache, cache.EntityFaqs); err != nil {
		s.log.Warn("faq categories cache: invalidate faqs failed", slog.String("error", err.Error()))
	}
}
