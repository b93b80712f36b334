package faqs

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
	"cms-backend/internal/engagement"
	"cms-backend/internal/listing"
	"cms-backend/internal/metrics"
	"cms-backend/internal/seo"
	"cms-backend/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Service struct {
	faqs       Repository
	categories CategoryRepository
	runner     db.Runner
	cache      cache.Cache
	views      *engagement.Tracker
	location   *time.Location
	log        *slog.Logger
	now        func() time.Time
}

func NewService(faqs Repository, categories CategoryRepository, runner db.Runner, c cache.Cache, views *engagement.Tracker, location *time.Location, log *slog.Logger) *Service {
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
		faqs:       faqs,
		categories: categories,
		runner:     runner,
		cache:      c,
		views:      views,
		location:   location,
		log:        log,
		now:        time.Now,
	}
}

var PublicSpec = listing.Spec{
	Entity: cache.EntityFaqs,
	Filters: map[string]listing.Filter{
		"category": listing.Equals("category_id"),
		"tag":      listing.Equals("tags"),
		"featured": listing.Bool("is_featured"),
	},
	SearchFields: []string{"question", "answer", "tags"},
	Sorts: map[string]bson.D{
		"latest":   {{Key: "created_at", Value: -1}},
		"oldest":   {{Key: "created_at", Value: 1}},
		"popular":  {{Key: "view_count", Value: -1}},
		"helpful":  {{Key: "helpful_count", Value: -1}},
		"question": {{Key: "question", Value: 1}},
	},
	DefaultSort:    "latest",
	DefaultPerPage: 15,
	MaxPerPage:     50,
}

var adminSpec = PublicSpec.
	WithFilter("status", listing.OneOf("status", StatusActive, StatusInactive)).
	WithMaxPerPage(100)

var activeOnly = bson.M{"status": StatusActive}

func (s *Service) PublicList(ctx context.Context, params url.Values) (ListResult, error) {
	return s.list(ctx, PublicSpec, params, activeOnly, "faqs public list")
}

func (s *Service) AdminList(ctx context.Context, params url.Values) (ListResult, error) {
	return s.list(ctx, adminSpec, params, nil, "faqs admin list")
}

func (s *Service) list(ctx context.Context, spec listing.Spec, params url.Values, base bson.M, op string) (ListResult, error) {
	params, err := s.resolveCategoryParam(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	q := listing.Build(spec, params, base)

	page, err := s.faqs.List(ctx, q)
	if err != nil {
		return ListResult{}, apperr.Storage(op, err)
	}
	stats, err := s.faqs.Stats(ctx, q.Match)
	if err != nil {
		return ListResult{}, apperr.Storage(op, err)
	}
	return ListResult{Items: withRatios(page.Items), Pagination: page.Pagination, Stats: stats}, nil
}

func (s *Service) resolveCategoryParam(ctx context.Context, params url.Values) (url.Values, error) {
	raw := strings.TrimSpace(params.Get("category"))
	if raw == "" {
		return params, nil
	}
	out := make(url.Values, len(params))
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	c, err := s.ResolveCategory(ctx, raw)
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

// Popular returns the most viewed active FAQs.
func (s *Service) Popular(ctx context.Context, limit int64) ([]Faq, error) {
	items, err := s.faqs.Find(ctx, activeOnly, bson.D{{Key: "view_count", Value: -1}, {Key: "_id", Value: 1}}, limit)
	if err != nil {
		return nil, apperr.Storage("faqs popular", err)
	}
	return withRatios(items), nil
}

// Grouped returns active categories in display order, each with its active
// FAQs. Categories without active FAQs are left out.
func (s *Service) Grouped(ctx context.Context) ([]Group, error) {
	cats, err := s.categories.Active(ctx)
	if err != nil {
		return nil, apperr.Storage("faqs grouped", err)
	}
	items, err := s.faqs.Find(ctx, activeOnly, bson.D{
		{Key: "is_featured", Value: -1},
		{Key: "view_count", Value: -1},
		{Key: "_id", Value: 1},
	}, 0)
	if err != nil {
		return nil, apperr.Storage("faqs grouped", err)
	}

	byCategory := make(map[string][]Faq, len(cats))
	for _, f := range items {
		byCategory[f.CategoryID] = append(byCategory[f.CategoryID], withRatio(f))
	}
	groups := make([]Group, 0, len(cats))
	for _, c := range cats {
		if len(byCategory[c.ID]) == 0 {
			continue
		}
		groups = append(groups, Group{Category: c, Faqs: byCategory[c.ID]})
	}
	return groups, nil
}

func (s *Service) PublicDetail(ctx context.Context, slug string) (Detail, error) {
	f, err := s.faqs.GetBySlug(ctx, strings.TrimSpace(slug), true)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Detail{}, ErrNotFound
		}
		return Detail{}, apperr.Storage("faqs public detail", err)
	}

	detail := Detail{Faq: withRatio(f)}
	c, err := s.categories.Get(ctx, f.CategoryID)
	switch {
	case err == nil:
		detail.Category = &CategorySummary{ID: c.ID, Name: c.Name, Slug: c.Slug}
	case !errors.Is(err, mongo.ErrNoDocuments):
		return Detail{}, apperr.Storage("faqs public detail", err)
	}
	return detail, nil
}

// RecordView counts a view once per viewer inside the dedup window.
func (s *Service) RecordView(ctx context.Context, id, viewer string) (bool, error) {
	if !s.views.FirstView(ctx, cache.EntityFaqs, id, viewer) {
		return false, nil
	}
	if err := s.faqs.IncrementView(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, ErrNotFound
		}
		s.views.Forget(ctx, cache.EntityFaqs, id, viewer)
		return false, apperr.Storage("faqs view", err)
	}
	metrics.RecordEngagement(cache.EntityFaqs, "view")
	return true, nil
}

// Vote records one helpful or not helpful vote. Votes are not deduplicated;
// the per-IP rate limit is the only throttle.
func (s *Service) Vote(ctx context.Context, id string, helpful bool) (VoteResult, error) {
	id = strings.TrimSpace(id)
	f, err := s.faqs.Vote(ctx, id, helpful)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return VoteResult{}, ErrNotFound
		}
		return VoteResult{}, apperr.Storage("faqs vote", err)
	}

	event := "vote_not_helpful"
	if helpful {
		event = "vote_helpful"
	}
	metrics.RecordEngagement(cache.EntityFaqs, event)

	return VoteResult{
		ID:               f.ID,
		HelpfulCount:     f.HelpfulCount,
		NotHelpfulCount:  f.NotHelpfulCount,
		HelpfulnessRatio: Ratio(f.HelpfulCount, f.NotHelpfulCount),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (Faq, error) {
	f, err := s.faqs.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Faq{}, ErrNotFound
		}
		return Faq{}, apperr.Storage("faqs get", err)
	}
	return withRatio(f), nil
}

func (s *Service) Create(ctx context.Context, req FaqRequest, staffID string) (Faq, error) {
	categoryID := strings.TrimSpace(req.CategoryID)
	if err := s.requireCategory(ctx, categoryID); err != nil {
		return Faq{}, err
	}

	slug, err := s.pickSlug(ctx, req.Slug, req.Question, "")
	if err != nil {
		return Faq{}, err
	}

	now := s.now().In(s.location)
	item := Faq{
		ID:              primitive.NewObjectID().Hex(),
		Question:        strings.TrimSpace(req.Question),
		Answer:          seo.SanitizeHTML(req.Answer),
		CategoryID:      categoryID,
		Slug:            slug,
		Status:          statusOr(req.Status, StatusActive),
		IsFeatured:      req.IsFeatured != nil && *req.IsFeatured,
		Tags:            utils.NormalizeTags(req.Tags),
		MetaDescription: strings.TrimSpace(req.MetaDescription),
		CreatedBy:       staffID,
		UpdatedBy:       staffID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.faqs.Create(ctx, item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Faq{}, ErrSlugTaken
		}
		return Faq{}, apperr.Storage("faqs create", err)
	}
	s.invalidate(ctx, item.Slug)
	return withRatio(item), nil
}

func (s *Service) Update(ctx context.Context, id string, req FaqRequest, staffID string) (Faq, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Faq{}, err
	}

	categoryID := strings.TrimSpace(req.CategoryID)
	if categoryID != current.CategoryID {
		if err := s.requireCategory(ctx, categoryID); err != nil {
			return Faq{}, err
		}
	}

	slug := current.Slug
	if want := strings.TrimSpace(req.Slug); want != "" && want != current.Slug {
		if slug, err = s.pickSlug(ctx, want, req.Question, current.ID); err != nil {
			return Faq{}, err
		}
	}

	featured := current.IsFeatured
	if req.IsFeatured != nil {
		featured = *req.IsFeatured
	}

	updated, err := s.faqs.Update(ctx, current.ID, bson.M{
		"question":         strings.TrimSpace(req.Question),
		"answer":           seo.SanitizeHTML(req.Answer),
		"category_id":      categoryID,
		"slug":             slug,
		"status":           statusOr(req.Status, current.Status),
		"is_featured":      featured,
		"tags":             utils.NormalizeTags(req.Tags),
		"meta_description": strings.TrimSpace(req.MetaDescription),
		"updated_by":       staffID,
		"updated_at":       s.now().In(s.location),
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Faq{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return Faq{}, ErrSlugTaken
		}
		return Faq{}, apperr.Storage("faqs update", err)
	}

	s.invalidate(ctx, current.Slug, updated.Slug)
	return withRatio(updated), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	removed, err := s.faqs.Delete(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return apperr.Storage("faqs delete", err)
	}
	s.invalidate(ctx, removed.Slug)
	return nil
}

func (s *Service) Bulk(ctx context.Context, action string, ids []string, staffID string) (bulk.Result, error) {
	var set bson.M
	switch action {
	case "activate":
		set = bson.M{"status": StatusActive}
	case "deactivate":
		set = bson.M{"status": StatusInactive}
	case "feature":
		set = bson.M{"is_featured": true}
	case "unfeature":
		set = bson.M{"is_featured": false}
	case "delete":
		return bulk.Run(ctx, action, ids, s.Delete)
	default:
		return bulk.Result{}, bulk.ErrUnknownAction
	}

	set["updated_by"] = staffID
	res, err := bulk.Run(ctx, action, ids, func(ctx context.Context, id string) error {
		set["updated_at"] = s.now().In(s.location)
		updated, err := s.faqs.Update(ctx, id, set)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return apperr.Storage("faqs bulk", err)
		}
		s.invalidateDetail(ctx, updated.Slug)
		return nil
	})
	s.invalidate(ctx)
	return res, err
}

func (s *Service) requireCategory(ctx context.Context, id string) error {
	if _, err := s.categories.Get(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUnknownCategory
		}
		return apperr.Storage("faqs category lookup", err)
	}
	return nil
}

func (s *Service) pickSlug(ctx context.Context, requested, question, exceptID string) (string, error) {
	taken := func(ctx context.Context, slug string) (bool, error) {
		return s.faqs.SlugExists(ctx, slug, exceptID)
	}
	if requested = strings.TrimSpace(requested); requested != "" {
		exists, err := taken(ctx, requested)
		if err != nil {
			return "", apperr.Storage("faqs slug", err)
		}
		if exists {
			return "", ErrSlugTaken
		}
		return requested, nil
	}
	slug, err := utils.UniqueSlug(ctx, question, "faq", taken)
	if err != nil {
		return "", apperr.Storage("faqs slug", err)
	}
	return slug, nil
}

// invalidate drops FAQ detail entries for slugs, every FAQ listing and the
// category listings whose counts depend on FAQs.
func (s *Service) invalidate(ctx context.Context, slugs ...string) {
	if err := cache.Invalidate(ctx, s.cache, cache.EntityFaqs, slugs...); err != nil {
		s.log.Warn("faqs cache: invalidate failed", slog.String("error", err.Error()))
	}
	if err := cache.Invalidate(ctx, s.cache, cache.EntityFaqCategories); err != nil {
		s.log.Warn("faqs cache: invalidate categories failed", slog.String("error", err.Error()))
	}
}

func (s *Service) invalidateDetail(ctx context.Context, slug string) {
	if s.cache == nil || slug == "" {
		return
	}
	if err := s.cache.Delete(ctx, cache.DetailKey(cache.EntityFaqs, slug)); err != nil {
		s.log.Warn("faqs cache: invalidate detail failed", slog.String("slug", slug), slog.String("error", err.Error()))
	}
}

func statusOr(status, def string) string {
	if status == "" {
		return def
	}
	return status
}
