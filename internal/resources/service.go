package resources

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"cms-backend/internal/apperr"
	"cms-backend/internal/bulk"
	"cms-backend/internal/cache"
	"cms-backend/internal/categories"
	"cms-backend/internal/db"
	"cms-backend/internal/engagement"
	"cms-backend/internal/listing"
	"cms-backend/internal/metrics"
	"cms-backend/internal/seo"
	"cms-backend/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound         = apperr.NotFound("resource not found")
	ErrSlugTaken        = apperr.Conflict("slug already exists")
	ErrCategoryNotFound = apperr.Field("category_id", "category not found")
	ErrEditConflict     = apperr.Conflict("resource was moved to another category meanwhile, reload and retry")
)

// CategoryDirectory is the part of the category service resources depend on.
type CategoryDirectory interface {
	Resolve(ctx context.Context, idOrSlug string) (categories.Category, error)
	AdjustResourceCount(ctx context.Context, id string, delta int) error
}

type ImageRemover interface {
	Remove(ctx context.Context, key string) error
}

type Service struct {
	repo       Repository
	categories CategoryDirectory
	runner     db.Runner
	cache      cache.Cache
	views      *engagement.Tracker
	images     ImageRemover
	location   *time.Location
	log        *slog.Logger
	now        func() time.Time
}

type Deps struct {
	Repo       Repository
	Categories CategoryDirectory
	Runner     db.Runner
	Cache      cache.Cache
	Views      *engagement.Tracker
	Images     ImageRemover
	Location   *time.Location
	Log        *slog.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:       d.Repo,
		categories: d.Categories,
		runner:     d.Runner,
		cache:      d.Cache,
		views:      d.Views,
		images:     d.Images,
		location:   d.Location,
		log:        d.Log,
		now:        time.Now,
	}
	if s.runner == nil {
		s.runner = db.DirectRunner{}
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

var sortsPublic = map[string]bson.D{
	"latest":   {{Key: "published_at", Value: -1}},
	"oldest":   {{Key: "published_at", Value: 1}},
	"popular":  {{Key: "view_count", Value: -1}},
	"trending": {{Key: "share_count", Value: -1}},
	"liked":    {{Key: "like_count", Value: -1}},
	"title":    {{Key: "title", Value: 1}},
}

var PublicSpec = listing.Spec{
	Entity: cache.EntityResources,
	Filters: map[string]listing.Filter{
		"category": listing.Equals("category_id"),
		"tag":      listing.Equals("tags"),
		"featured": listing.Bool("is_featured"),
		"trending": listing.Bool("is_trending"),
		"author":   listing.Equals("author_id"),
	},
	SearchFields:   []string{"title", "excerpt", "content"},
	Sorts:          sortsPublic,
	DefaultSort:    "latest",
	DefaultPerPage: 12,
	MaxPerPage:     50,
}

// AdminSpec extends PublicSpec with workflow filters.
func AdminSpec(loc *time.Location) listing.Spec {
	sorts := make(map[string]bson.D, len(sortsPublic))
	for k, v := range sortsPublic {
		sorts[k] = v
	}
	sorts["latest"] = bson.D{{Key: "created_at", Value: -1}}
	sorts["oldest"] = bson.D{{Key: "created_at", Value: 1}}

	spec := PublicSpec.
		WithFilter("status", listing.OneOf("status", StatusDraft, StatusReview, StatusPublished, StatusArchived)).
		WithFilter("date_from", listing.DateFrom("created_at", loc)).
		WithFilter("date_to", listing.DateTo("created_at", loc)).
		WithMaxPerPage(100)
	spec.Sorts = sorts
	spec.DefaultPerPage = 20
	return spec
}

var publishedOnly = bson.M{"status": StatusPublished}

func (s *Service) PublicList(ctx context.Context, params url.Values) (ListResult, error) {
	return s.list(ctx, PublicSpec, params, publishedOnly, "resources public list")
}

func (s *Service) AdminList(ctx context.Context, params url.Values) (ListResult, error) {
	return s.list(ctx, AdminSpec(s.location), params, nil, "resources admin list")
}

// list runs the listing and computes statistics over the same match.
func (s *Service) list(ctx context.Context, spec listing.Spec, params url.Values, base bson.M, op string) (ListResult, error) {
	params, err := s.resolveCategoryParam(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	q := listing.Build(spec, params, base)

	page, err := s.repo.List(ctx, q)
	if err != nil {
		return ListResult{}, apperr.Storage(op, err)
	}
	stats, err := s.repo.Stats(ctx, q.Match)
	if err != nil {
		return ListResult{}, apperr.Storage(op, err)
	}
	return ListResult{Items: page.Items, Pagination: page.Pagination, Stats: stats}, nil
}

// resolveCategoryParam rewrites a category slug to its id. A category that
// does not resolve keeps a value no resource can match.
func (s *Service) resolveCategoryParam(ctx context.Context, params url.Values) (url.Values, error) {
	raw := strings.TrimSpace(params.Get("category"))
	if raw == "" || s.categories == nil {
		return params, nil
	}
	out := cloneValues(params)
	c, err := s.categories.Resolve(ctx, raw)
	switch {
	case err == nil:
		out.Set("category", c.ID)
	case apperr.IsNotFound(err):
		out.Set("category", "unknown:"+raw)
	default:
		return nil, err
	}
	return out, nil
}

func (s *Service) PublicDetail(ctx context.Context, slug string) (Detail, error) {
	item, err := s.repo.GetBySlug(ctx, strings.TrimSpace(slug), true)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Detail{}, ErrNotFound
		}
		return Detail{}, apperr.Storage("resources public detail", err)
	}

	detail := Detail{Resource: item}
	if s.categories != nil && item.CategoryID != "" {
		c, err := s.categories.Resolve(ctx, item.CategoryID)
		if err == nil {
			detail.Category = &CategorySummary{ID: c.ID, Name: c.Name, Slug: c.Slug, Color: c.Color}
		} else if !apperr.IsNotFound(err) {
			return Detail{}, err
		}
	}
	return detail, nil
}

// RecordView counts a view once per viewer inside the dedup window and
// reports whether it was counted.
func (s *Service) RecordView(ctx context.Context, id, viewer string) (bool, error) {
	if !s.views.FirstView(ctx, cache.EntityResources, id, viewer) {
		return false, nil
	}
	if _, err := s.repo.Increment(ctx, id, "view_count"); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, ErrNotFound
		}
		s.views.Forget(ctx, cache.EntityResources, id, viewer)
		return false, apperr.Storage("resources view", err)
	}
	metrics.RecordEngagement(cache.EntityResources, "view")
	return true, nil
}

func (s *Service) Share(ctx context.Context, id string) (Counter, error) {
	return s.increment(ctx, id, "share_count", "share")
}

func (s *Service) Like(ctx context.Context, id string) (Counter, error) {
	return s.increment(ctx, id, "like_count", "like")
}

func (s *Service) increment(ctx context.Context, id, field, event string) (Counter, error) {
	id = strings.TrimSpace(id)
	n, err := s.repo.Increment(ctx, id, field)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Counter{}, ErrNotFound
		}
		return Counter{}, apperr.Storage("resources "+event, err)
	}
	metrics.RecordEngagement(cache.EntityResources, event)
	return Counter{ID: id, Count: n}, nil
}

// Tags lists the tags of published resources, most used first.
func (s *Service) Tags(ctx context.Context) ([]TagCount, error) {
	counts, err := s.repo.Tags(ctx)
	if err != nil {
		return nil, apperr.Storage("resources tags", err)
	}
	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		if tag == "" {
			continue
		}
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

func (s *Service) Featured(ctx context.Context, limit int64) ([]Resource, error) {
	items, err := s.repo.Find(ctx,
		bson.M{"status": StatusPublished, "is_featured": true},
		bson.D{{Key: "published_at", Value: -1}},
		limit,
	)
	if err != nil {
		return nil, apperr.Storage("resources featured", err)
	}
	return items, nil
}

// Related returns other published resources from the same category.
func (s *Service) Related(ctx context.Context, slug string, limit int64) ([]Resource, error) {
	item, err := s.repo.GetBySlug(ctx, strings.TrimSpace(slug), true)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, apperr.Storage("resources related", err)
	}
	items, err := s.repo.Find(ctx,
		bson.M{"status": StatusPublished, "category_id": item.CategoryID, "_id": bson.M{"$ne": item.ID}},
		bson.D{{Key: "published_at", Value: -1}},
		limit,
	)
	if err != nil {
		return nil, apperr.Storage("resources related", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (Resource, error) {
	item, err := s.repo.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Resource{}, ErrNotFound
		}
		return Resource{}, apperr.Storage("resources get", err)
	}
	return item, nil
}

func (s *Service) Create(ctx context.Context, req UpsertRequest, authorID string) (Resource, error) {
	now := s.now().In(s.location)
	slug, err := s.pickSlug(ctx, req.Slug, req.Title, "")
	if err != nil {
		return Resource{}, err
	}

	status := req.Status
	if status == "" {
		status = StatusDraft
	}

	item := Resource{
		ID:              primitive.NewObjectID().Hex(),
		Title:           strings.TrimSpace(req.Title),
		Slug:            slug,
		Excerpt:         strings.TrimSpace(req.Excerpt),
		Content:         seo.SanitizeHTML(req.Content),
		CategoryID:      strings.TrimSpace(req.CategoryID),
		AuthorID:        authorID,
		Tags:            utils.NormalizeTags(req.Tags),
		Status:          status,
		IsPublished:     status == StatusPublished,
		IsFeatured:      boolOr(req.IsFeatured, false),
		IsTrending:      boolOr(req.IsTrending, false),
		FeaturedImage:   strings.TrimSpace(req.FeaturedImage),
		GalleryImages:   cleanList(req.GalleryImages),
		MetaTitle:       strings.TrimSpace(req.MetaTitle),
		MetaDescription: strings.TrimSpace(req.MetaDescription),
		MetaKeywords:    strings.TrimSpace(req.MetaKeywords),
		UpdatedBy:       authorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if item.IsPublished {
		item.PublishedAt = &now
	}
	item.ReadTime = readTime(req.ReadTime, item.Content)
	item.SeoScore = seo.Score(seoInput(item))

	err = s.runner.Do(ctx, func(ctx context.Context) error {
		if err := s.adjustCategory(ctx, item.CategoryID, 1); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, item); err != nil {
			// Without a transaction the increment has to be undone by hand.
			_ = s.adjustCategory(ctx, item.CategoryID, -1)
			if mongo.IsDuplicateKeyError(err) {
				return ErrSlugTaken
			}
			return apperr.Storage("resources create", err)
		}
		return nil
	})
	if err != nil {
		return Resource{}, err
	}

	s.invalidate(ctx, item.Slug)
	return item, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpsertRequest, editorID string) (Resource, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	now := s.now().In(s.location)

	slug := current.Slug
	if want := strings.TrimSpace(req.Slug); want != "" && want != current.Slug {
		if slug, err = s.pickSlug(ctx, want, req.Title, current.ID); err != nil {
			return Resource{}, err
		}
	}

	status := req.Status
	if status == "" {
		status = current.Status
	}
	next := current
	next.Title = strings.TrimSpace(req.Title)
	next.Slug = slug
	next.Excerpt = strings.TrimSpace(req.Excerpt)
	next.Content = seo.SanitizeHTML(req.Content)
	next.CategoryID = strings.TrimSpace(req.CategoryID)
	next.Tags = utils.NormalizeTags(req.Tags)
	next.FeaturedImage = strings.TrimSpace(req.FeaturedImage)
	next.GalleryImages = cleanList(req.GalleryImages)
	next.MetaTitle = strings.TrimSpace(req.MetaTitle)
	next.MetaDescription = strings.TrimSpace(req.MetaDescription)
	next.MetaKeywords = strings.TrimSpace(req.MetaKeywords)
	next.IsFeatured = boolOr(req.IsFeatured, current.IsFeatured)
	next.IsTrending = boolOr(req.IsTrending, current.IsTrending)
	applyStatus(&next, status, now)
	next.ReadTime = readTime(req.ReadTime, next.Content)
	next.SeoScore = seo.Score(seoInput(next))

	set := bson.M{
		"title":            next.Title,
		"slug":             next.Slug,
		"excerpt":          next.Excerpt,
		"content":          next.Content,
		"category_id":      next.CategoryID,
		"tags":             next.Tags,
		"status":           next.Status,
		"is_published":     next.IsPublished,
		"is_featured":      next.IsFeatured,
		"is_trending":      next.IsTrending,
		"featured_image":   next.FeaturedImage,
		"gallery_images":   next.GalleryImages,
		"read_time":        next.ReadTime,
		"seo_score":        next.SeoScore,
		"meta_title":       next.MetaTitle,
		"meta_description": next.MetaDescription,
		"meta_keywords":    next.MetaKeywords,
		"published_at":     next.PublishedAt,
		"updated_by":       editorID,
		"updated_at":       now,
	}

	var updated Resource
	err = s.runner.Do(ctx, func(ctx context.Context) error {
		if next.CategoryID != current.CategoryID {
			if err := s.adjustCategory(ctx, next.CategoryID, 1); err != nil {
				return err
			}
			if err := s.adjustCategory(ctx, current.CategoryID, -1); err != nil {
				return err
			}
		}
		var err error
		updated, err = s.repo.UpdateInCategory(ctx, current.ID, current.CategoryID, set)
		if err != nil {
			if next.CategoryID != current.CategoryID {
				_ = s.adjustCategory(ctx, next.CategoryID, -1)
				_ = s.adjustCategory(ctx, current.CategoryID, 1)
			}
			if errors.Is(err, mongo.ErrNoDocuments) {
				if _, getErr := s.repo.Get(ctx, current.ID); getErr == nil {
					return ErrEditConflict
				}
				return ErrNotFound
			}
			if mongo.IsDuplicateKeyError(err) {
				return ErrSlugTaken
			}
			return apperr.Storage("resources update", err)
		}
		return nil
	})
	if err != nil {
		return Resource{}, err
	}

	if current.FeaturedImage != "" && current.FeaturedImage != updated.FeaturedImage {
		s.removeImage(ctx, current.FeaturedImage)
	}
	s.invalidate(ctx, current.Slug, updated.Slug)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	var removed Resource

	err := s.runner.Do(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.repo.Delete(ctx, id)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return apperr.Storage("resources delete", err)
		}
		return s.adjustCategory(ctx, removed.CategoryID, -1)
	})
	if err != nil {
		return err
	}

	if removed.FeaturedImage != "" {
		s.removeImage(ctx, removed.FeaturedImage)
	}
	for _, img := range removed.GalleryImages {
		s.removeImage(ctx, img)
	}
	s.invalidate(ctx, removed.Slug)
	return nil
}

func (s *Service) Bulk(ctx context.Context, action string, ids []string, editorID string) (bulk.Result, error) {
	var fn func(ctx context.Context, id string) error
	switch action {
	case "publish":
		fn = s.statusAction(StatusPublished, editorID)
	case "unpublish":
		fn = s.statusAction(StatusDraft, editorID)
	case "archive":
		fn = s.statusAction(StatusArchived, editorID)
	case "feature":
		fn = s.flagAction(bson.M{"is_featured": true}, editorID)
	case "unfeature":
		fn = s.flagAction(bson.M{"is_featured": false}, editorID)
	case "trend":
		fn = s.flagAction(bson.M{"is_trending": true}, editorID)
	case "untrend":
		fn = s.flagAction(bson.M{"is_trending": false}, editorID)
	case "delete":
		fn = s.Delete
	default:
		return bulk.Result{}, bulk.ErrUnknownAction
	}
	return bulk.Run(ctx, action, ids, fn)
}

func (s *Service) statusAction(status, editorID string) func(ctx context.Context, id string) error {
	return func(ctx context.Context, id string) error {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().In(s.location)
		applyStatus(&current, status, now)
		updated, err := s.repo.Update(ctx, id, bson.M{
			"status":       current.Status,
			"is_published": current.IsPublished,
			"published_at": current.PublishedAt,
			"updated_by":   editorID,
			"updated_at":   now,
		})
		if err != nil {
			return apperr.Storage("resources bulk", err)
		}
		s.invalidate(ctx, updated.Slug)
		return nil
	}
}

func (s *Service) flagAction(flags bson.M, editorID string) func(ctx context.Context, id string) error {
	return func(ctx context.Context, id string) error {
		set := bson.M{"updated_by": editorID, "updated_at": s.now().In(s.location)}
		for k, v := range flags {
			set[k] = v
		}
		updated, err := s.repo.Update(ctx, strings.TrimSpace(id), set)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return apperr.Storage("resources bulk", err)
		}
		s.invalidate(ctx, updated.Slug)
		return nil
	}
}

// CountByCategory recounts resources per category for reconciliation.
func (s *Service) CountByCategory(ctx context.Context) (map[string]int64, error) {
	counts, err := s.repo.CountByCategory(ctx)
	if err != nil {
		return nil, apperr.Storage("resources count by category", err)
	}
	return counts, nil
}

func (s *Service) adjustCategory(ctx context.Context, categoryID string, delta int) error {
	if s.categories == nil {
		return nil
	}
	err := s.categories.AdjustResourceCount(ctx, categoryID, delta)
	if apperr.IsNotFound(err) {
		return ErrCategoryNotFound
	}
	return err
}

func (s *Service) pickSlug(ctx context.Context, requested, title, exceptID string) (string, error) {
	taken := func(ctx context.Context, slug string) (bool, error) {
		return s.repo.SlugExists(ctx, slug, exceptID)
	}
	if requested = strings.TrimSpace(requested); requested != "" {
		exists, err := taken(ctx, requested)
		if err != nil {
			return "", apperr.Storage("resources slug", err)
		}
		if exists {
			return "", ErrSlugTaken
		}
		return requested, nil
	}
	slug, err := utils.UniqueSlug(ctx, title, "resource", taken)
	if err != nil {
		return "", apperr.Storage("resources slug", err)
	}
	return slug, nil
}

// invalidate drops cached resource views and every category view, since
// category details and listings embed resource counts.
func (s *Service) invalidate(ctx context.Context, slugs ...string) {
	if err := cache.Invalidate(ctx, s.cache, cache.EntityResources, slugs...); err != nil {
		s.log.Warn("resources cache: invalidate failed", slog.String("error", err.Error()))
	}
	if err := cache.InvalidateAll(ctx, s.cache, cache.EntityResourceCategories); err != nil {
		s.log.Warn("resources cache: invalidate categories failed", slog.String("error", err.Error()))
	}
}

func (s *Service) removeImage(ctx context.Context, key string) {
	if s.images == nil {
		return
	}
	if err := s.images.Remove(ctx, key); err != nil {
		s.log.Warn("resources media: remove failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// applyStatus keeps is_published in step with status and stamps
// published_at the first time the resource is published.
func applyStatus(r *Resource, status string, now time.Time) {
	r.Status = status
	r.IsPublished = status == StatusPublished
	if r.IsPublished && r.PublishedAt == nil {
		t := now
		r.PublishedAt = &t
	}
}

func readTime(requested *int, content string) int {
	if requested != nil && *requested > 0 {
		return *requested
	}
	return seo.EstimateReadTime(content)
}

func seoInput(r Resource) seo.Input {
	return seo.Input{
		Title:           r.Title,
		Excerpt:         r.Excerpt,
		Content:         r.Content,
		MetaTitle:       r.MetaTitle,
		MetaDescription: r.MetaDescription,
		MetaKeywords:    r.MetaKeywords,
		Tags:            r.Tags,
		FeaturedImage:   r.FeaturedImage,
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
