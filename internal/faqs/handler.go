package faqs

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cms-backend/internal/bulk"
	"cms-backend/internal/cache"
	"cms-backend/internal/engagement"
	"cms-backend/internal/httpx"
	"cms-backend/internal/listing"
	"cms-backend/internal/middleware"
	"cms-backend/internal/transport"
	"cms-backend/internal/validation"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPopularLimit = 5
	maxPopularLimit     = 20
)

type Handler struct {
	service *Service
	reads   *cache.ReadThrough
	val     *validation.Validator
	log     *slog.Logger
	debug   bool
}

func NewHandler(service *Service, reads *cache.ReadThrough, val *validation.Validator, log *slog.Logger, debug bool) *Handler {
	return &Handler{
		service: service,
		reads:   reads,
		val:     val,
		log:     log,
		debug:   debug,
	}
}

func (h *Handler) PublicList(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	params := r.URL.Query()
	key := cache.ListKey(cache.EntityFaqs, "list", listing.Signature(PublicSpec, params))
	body, hit, err := h.reads.Fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		res, err := h.service.PublicList(ctx, params)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{
			Success:    true,
			Data:       map[string]interface{}{"items": res.Items, "stats": res.Stats},
			Pagination: res.Pagination,
		}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "faqs public list", err, h.debug)
		return
	}

	log.Info("faqs public list: ok", slog.Bool("cache_hit", hit))
	transport.WriteCached(w, body, hit)
}

func (h *Handler) Popular(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	limit := int64(defaultPopularLimit)
	if n, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil && n > 0 {
		limit = n
		if limit > maxPopularLimit {
			limit = maxPopularLimit
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := cache.ListKey(cache.EntityFaqs, "popular", "limit="+strconv.FormatInt(limit, 10))
	body, hit, err := h.reads.Fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		items, err := h.service.Popular(ctx, limit)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: items}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "faqs public popular", err, h.debug)
		return
	}
	transport.WriteCached(w, body, hit)
}

func (h *Handler) Grouped(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	body, hit, err := h.reads.Fetch(ctx, cache.ListKey(cache.EntityFaqs, "grouped", ""), func(ctx context.Context) (interface{}, error) {
		groups, err := h.service.Grouped(ctx)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: groups}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "faqs public grouped", err, h.debug)
		return
	}
	transport.WriteCached(w, body, hit)
}

func (h *Handler) PublicCategories(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	body, hit, err := h.reads.Fetch(ctx, cache.ListKey(cache.EntityFaqCategories, "public", ""), func(ctx context.Context) (interface{}, error) {
		cats, err := h.service.PublicCategories(ctx)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: cats}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "faq categories public list", err, h.debug)
		return
	}
	transport.WriteCached(w, body, hit)
}

func (h *Handler) PublicDetail(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing slug", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	body, hit, err := h.reads.Fetch(ctx, cache.DetailKey(cache.EntityFaqs, slug), func(ctx context.Context) (interface{}, error) {
		detail, err := h.service.PublicDetail(ctx, slug)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: detail}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "faqs public detail", err, h.debug)
		return
	}

	var cached struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &cached); err == nil && cached.Data.ID != "" {
		viewer := engagement.ViewerKey(middleware.StaffIDFromContext(r.Context()), httpx.ClientIP(r))
		if _, err := h.service.RecordView(ctx, cached.Data.ID, viewer); err != nil {
			log.Warn("faqs public detail: view not recorded", slog.String("error", err.Error()))
		}
	}

	log.Info("faqs public detail: ok", slog.String("slug", slug), slog.Bool("cache_hit", hit))
	transport.WriteCached(w, body, hit)
}

func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req VoteRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("faqs public vote: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("faqs public vote: validation error")
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.service.Vote(ctx, id, *req.Helpful)
	if err != nil {
		transport.WriteServiceError(w, log, "faqs public vote", err, h.debug)
		return
	}

	log.Info("faqs public vote: ok", slog.String("faq_id", id), slog.Bool("helpful", *req.Helpful))
	transport.WriteMessage(w, http.StatusOK, "thank you for your feedback", res)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	res, err := h.service.AdminList(ctx, r.URL.Query())
	if err != nil {
		transport.WriteServiceError(w, log, "admin faqs list", err, h.debug)
		return
	}

	log.Info("admin faqs list: ok", slog.Int("count", len(res.Items)))
	transport.WriteJSON(w, http.StatusOK, transport.Envelope{
		Success:    true,
		Data:       map[string]interface{}{"items": res.Items, "stats": res.Stats},
		Pagination: res.Pagination,
	})
}

func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		transport.WriteServiceError(w, log, "admin faqs get", err, h.debug)
		return
	}
	transport.WriteData(w, http.StatusOK, item)
}

func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req FaqRequest
	if !h.decode(w, r, log, "admin faqs create", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.Create(ctx, req, middleware.StaffIDFromContext(r.Context()))
	if err != nil {
		transport.WriteServiceError(w, log, "admin faqs create", err, h.debug)
		return
	}

	log.Info("admin faqs create: ok", slog.String("faq_id", item.ID))
	transport.WriteMessage(w, http.StatusCreated, "faq created", item)
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req FaqRequest
	if !h.decode(w, r, log, "admin faqs update", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.Update(ctx, id, req, middleware.StaffIDFromContext(r.Context()))
	if err != nil {
		transport.WriteServiceError(w, log, "admin faqs update", err, h.debug)
		return
	}

	log.Info("admin faqs update: ok", slog.String("faq_id", id))
	transport.WriteMessage(w, http.StatusOK, "faq updated", item)
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		transport.WriteServiceError(w, log, "admin faqs delete", err, h.debug)
		return
	}

	log.Info("admin faqs delete: ok", slog.String("faq_id", id))
	transport.WriteMessage(w, http.StatusOK, "faq deleted", nil)
}

func (h *Handler) AdminBulk(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req bulk.Request
	if !h.decode(w, r, log, "admin faqs bulk", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	res, err := h.service.Bulk(ctx, req.Action, req.IDs, middleware.StaffIDFromContext(r.Context()))
	if err != nil {
		transport.WriteServiceError(w, log, "admin faqs bulk", err, h.debug)
		return
	}

	log.Info("admin faqs bulk: ok", slog.String("action", res.Action), slog.Int("processed", res.Processed))
	transport.WriteData(w, http.StatusOK, res)
}

func (h *Handler) AdminCategoryList(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	page, err := h.service.ListCategories(ctx, r.URL.Query())
	if err != nil {
		transport.WriteServiceError(w, log, "admin faq categories list", err, h.debug)
		return
	}

	transport.WriteJSON(w, http.StatusOK, transport.Envelope{
		Success:    true,
		Data:       page.Items,
		Pagination: page.Pagination,
	})
}

func (h *Handler) AdminCategoryCreate(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req CategoryRequest
	if !h.decode(w, r, log, "admin faq categories create", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.CreateCategory(ctx, req, middleware.StaffIDFromContext(r.Context()))
	if err != nil {
		transport.WriteServiceError(w, log, "admin faq categories create", err, h.debug)
		return
	}

	log.Info("admin faq categories create: ok", slog.String("category_id", item.ID))
	transport.WriteMessage(w, http.StatusCreated, "category created", item)
}

func (h *Handler) AdminCategoryUpdate(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req CategoryRequest
	if !h.decode(w, r, log, "admin faq categories update", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.UpdateCategory(ctx, id, req, middleware.StaffIDFromContext(r.Context()))
	if err != nil {
		transport.WriteServiceError(w, log, "admin faq categories update", err, h.debug)
		return
	}

	log.Info("admin faq categories update: ok", slog.String("category_id", id))
	transport.WriteMessage(w, http.StatusOK, "category updated", item)
}

func (h *Handler) AdminCategoryDelete(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if err := h.service.DeleteCategory(ctx, id); err != nil {
		transport.WriteServiceError(w, log, "admin faq categories delete", err, h.debug)
		return
	}

	log.Info("admin faq categories delete: ok", slog.String("category_id", id))
	transport.WriteMessage(w, http.StatusOK, "category deleted", nil)
}

func (h *Handler) AdminCategoryReorder(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req bulk.ReorderRequest
	if !h.decode(w, r, log, "admin faq categories reorder", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if err := h.service.ReorderCategories(ctx, req.Items); err != nil {
		transport.WriteServiceError(w, log, "admin faq categories reorder", err, h.debug)
		return
	}
	transport.WriteMessage(w, http.StatusOK, "order updated", nil)
}

func (h *Handler) AdminCategoryBulk(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req bulk.Request
	if !h.decode(w, r, log, "admin faq categories bulk", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	res, err := h.service.BulkCategories(ctx, req.Action, req.IDs, middleware.StaffIDFromContext(r.Context()))
	if err != nil {
		transport.WriteServiceError(w, log, "admin faq categories bulk", err, h.debug)
		return
	}
	transport.WriteData(w, http.StatusOK, res)
}

// decode reads and validates a JSON body, writing the error response itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, dst interface{}) bool {
	if err := httpx.DecodeJSON(r.Body, dst); err != nil {
		log.Warn(op + ": invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return false
	}
	if err := h.val.Struct(dst); err != nil {
		log.Warn(op + ": validation error")
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return false
	}
	return true
}
