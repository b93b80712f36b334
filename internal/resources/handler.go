package resources

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
	defaultFeaturedLimit = 6
	defaultRelatedLimit  = 4
	maxSideListLimit     = 20
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
	h.publicListing(w, r, "list", "resources public list")
}

// Search is the listing with a mandatory search term, throttled separately.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(r.URL.Query().Get(listing.ParamSearch)) == "" {
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", map[string]string{
			listing.ParamSearch: "is required",
		})
		return
	}
	h.publicListing(w, r, "search", "resources public search")
}

func (h *Handler) publicListing(w http.ResponseWriter, r *http.Request, endpoint, op string) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	params := r.URL.Query()
	key := cache.ListKey(cache.EntityResources, endpoint, listing.Signature(PublicSpec, params))
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
		transport.WriteServiceError(w, log, op, err, h.debug)
		return
	}

	log.Info(op+": ok", slog.Bool("cache_hit", hit))
	transport.WriteCached(w, body, hit)
}

func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	body, hit, err := h.reads.Fetch(ctx, cache.ListKey(cache.EntityResources, "tags", ""), func(ctx context.Context) (interface{}, error) {
		tags, err := h.service.Tags(ctx)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: tags}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "resources public tags", err, h.debug)
		return
	}
	transport.WriteCached(w, body, hit)
}

func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	limit := limitParam(r, defaultFeaturedLimit)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := cache.ListKey(cache.EntityResources, "featured", "limit="+strconv.FormatInt(limit, 10))
	body, hit, err := h.reads.Fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		items, err := h.service.Featured(ctx, limit)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: items}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "resources public featured", err, h.debug)
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

	body, hit, err := h.reads.Fetch(ctx, cache.DetailKey(cache.EntityResources, slug), func(ctx context.Context) (interface{}, error) {
		detail, err := h.service.PublicDetail(ctx, slug)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: detail}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "resources public detail", err, h.debug)
		return
	}

	// The body may come from cache, so the id is read back from it.
	var cached struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &cached); err == nil && cached.Data.ID != "" {
		viewer := engagement.ViewerKey(middleware.StaffIDFromContext(r.Context()), httpx.ClientIP(r))
		counted, err := h.service.RecordView(ctx, cached.Data.ID, viewer)
		if err != nil {
			log.Warn("resources public detail: view not recorded", slog.String("error", err.Error()))
		}
		log.Info("resources public detail: ok",
			slog.String("slug", slug),
			slog.Bool("cache_hit", hit),
			slog.Bool("view_counted", counted),
		)
	}
	transport.WriteCached(w, body, hit)
}

func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	limit := limitParam(r, defaultRelatedLimit)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := cache.ListKey(cache.EntityResources, "related", "limit="+strconv.FormatInt(limit, 10)+"&slug="+slug)
	body, hit, err := h.reads.Fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		items, err := h.service.Related(ctx, slug, limit)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: items}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "resources public related", err, h.debug)
		return
	}
	transport.WriteCached(w, body, hit)
}

func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	h.counter(w, r, "share", h.service.Share)
}

func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	h.counter(w, r, "like", h.service.Like)
}

func (h *Handler) counter(w http.ResponseWriter, r *http.Request, event string, fn func(context.Context, string) (Counter, error)) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := fn(ctx, id)
	if err != nil {
		transport.WriteServiceError(w, log, "resources public "+event, err, h.debug)
		return
	}

	log.Info("resources public "+event+": ok", slog.String("resource_id", id), slog.Int64("count", res.Count))
	transport.WriteData(w, http.StatusOK, res)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	res, err := h.service.AdminList(ctx, r.URL.Query())
	if err != nil {
		transport.WriteServiceError(w, log, "admin resources list", err, h.debug)
		return
	}

	log.Info("admin resources list: ok", slog.Int("count", len(res.Items)))
	transport.WriteJSON(w, http.StatusOK, transport.Envelope{
		Success:    true,
		Data:       map[string]interface{}{"items": res.Items, "stats": res.Stats},
		Pagination: res.Pagination,
	})
}

func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.service.Get(ctx, id)
	if err != nil {
		transport.WriteServiceError(w, log, "admin resources get", err, h.debug)
		return
	}
	transport.WriteData(w, http.StatusOK, item)
}

func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req UpsertRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin resources create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin resources create: validation error")
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.Create(ctx, req, middleware.StaffIDFromContext(r.Context()))
	if err != nil {
		transport.WriteServiceError(w, log, "admin resources create", err, h.debug)
		return
	}

	log.Info("admin resources create: ok", slog.String("resource_id", item.ID), slog.Int("seo_score", item.SeoScore))
	transport.WriteMessage(w, http.StatusCreated, "resource created", item)
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req UpsertRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin resources update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin resources update: validation error")
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.Update(ctx, id, req, middleware.StaffIDFromContext(r.Context()))
	if err != nil {
		transport.WriteServiceError(w, log, "admin resources update", err, h.debug)
		return
	}

	log.Info("admin resources update: ok", slog.String("resource_id", id))
	transport.WriteMessage(w, http.StatusOK, "resource updated", item)
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		transport.WriteServiceError(w, log, "admin resources delete", err, h.debug)
		return
	}

	log.Info("admin resources delete: ok", slog.String("resource_id", id))
	transport.WriteMessage(w, http.StatusOK, "resource deleted", nil)
}

func (h *Handler) AdminBulk(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req bulk.Request
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	res, err := h.service.Bulk(ctx, req.Action, req.IDs, middleware.StaffIDFromContext(r.Context()))
	if err != nil {
		transport.WriteServiceError(w, log, "admin resources bulk", err, h.debug)
		return
	}

	log.Info("admin resources bulk: ok",
		slog.String("action", res.Action),
		slog.Int("processed", res.Processed),
		slog.Int("failed", len(res.Failed)),
	)
	transport.WriteData(w, http.StatusOK, res)
}

func limitParam(r *http.Request, def int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("limit")), 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	if n > maxSideListLimit {
		return maxSideListLimit
	}
	return n
}
