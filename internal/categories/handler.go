package categories

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cms-backend/internal/bulk"
	"cms-backend/internal/cache"
	"cms-backend/internal/httpx"
	"cms-backend/internal/middleware"
	"cms-backend/internal/transport"
	"cms-backend/internal/validation"
	"github.com/go-chi/chi/v5"
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

func (h *Handler) PublicTree(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := cache.ListKey(cache.EntityResourceCategories, "tree", "")
	body, hit, err := h.reads.Fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		tree, err := h.service.Tree(ctx, false)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: tree}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "resource categories public tree", err, h.debug)
		return
	}

	log.Info("resource categories public tree: ok", slog.Bool("cache_hit", hit))
	transport.WriteCached(w, body, hit)
}

func (h *Handler) PublicFlat(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := cache.ListKey(cache.EntityResourceCategories, "flat", "")
	body, hit, err := h.reads.Fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		flat, err := h.service.Flat(ctx)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: flat}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "resource categories public flat", err, h.debug)
		return
	}

	log.Info("resource categories public flat: ok", slog.Bool("cache_hit", hit))
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

	body, hit, err := h.reads.Fetch(ctx, cache.DetailKey(cache.EntityResourceCategories, slug), func(ctx context.Context) (interface{}, error) {
		detail, err := h.service.PublicDetail(ctx, slug)
		if err != nil {
			return nil, err
		}
		return transport.Envelope{Success: true, Data: detail}, nil
	})
	if err != nil {
		transport.WriteServiceError(w, log, "resource categories public detail", err, h.debug)
		return
	}

	log.Info("resource categories public detail: ok", slog.String("slug", slug), slog.Bool("cache_hit", hit))
	transport.WriteCached(w, body, hit)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	page, err := h.service.List(ctx, r.URL.Query())
	if err != nil {
		transport.WriteServiceError(w, log, "admin resource categories list", err, h.debug)
		return
	}

	log.Info("admin resource categories list: ok", slog.Int("count", len(page.Items)))
	transport.WriteJSON(w, http.StatusOK, transport.Envelope{
		Success:    true,
		Data:       page.Items,
		Pagination: page.Pagination,
	})
}

func (h *Handler) AdminHierarchy(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	tree, err := h.service.Tree(ctx, true)
	if err != nil {
		transport.WriteServiceError(w, log, "admin resource categories hierarchy", err, h.debug)
		return
	}

	log.Info("admin resource categories hierarchy: ok", slog.Int("roots", len(tree)))
	transport.WriteData(w, http.StatusOK, tree)
}

func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.service.Get(ctx, id)
	if err != nil {
		transport.WriteServiceError(w, log, "admin resource categories get", err, h.debug)
		return
	}
	transport.WriteData(w, http.StatusOK, item)
}

func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req UpsertRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin resource categories create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin resource categories create: validation error")
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.Create(ctx, req)
	if err != nil {
		transport.WriteServiceError(w, log, "admin resource categories create", err, h.debug)
		return
	}

	log.Info("admin resource categories create: ok", slog.String("category_id", item.ID))
	transport.WriteMessage(w, http.StatusCreated, "category created", item)
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
		log.Warn("admin resource categories update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin resource categories update: validation error")
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.Update(ctx, id, req)
	if err != nil {
		transport.WriteServiceError(w, log, "admin resource categories update", err, h.debug)
		return
	}

	log.Info("admin resource categories update: ok", slog.String("category_id", id))
	transport.WriteMessage(w, http.StatusOK, "category updated", item)
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
		transport.WriteServiceError(w, log, "admin resource categories delete", err, h.debug)
		return
	}

	log.Info("admin resource categories delete: ok", slog.String("category_id", id))
	transport.WriteMessage(w, http.StatusOK, "category deleted", nil)
}

func (h *Handler) AdminReorder(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req bulk.ReorderRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if err := h.service.Reorder(ctx, req.Items); err != nil {
		transport.WriteServiceError(w, log, "admin resource categories reorder", err, h.debug)
		return
	}

	log.Info("admin resource categories reorder: ok", slog.Int("count", len(req.Items)))
	transport.WriteMessage(w, http.StatusOK, "order updated", nil)
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

	res, err := h.service.Bulk(ctx, req.Action, req.IDs)
	if err != nil {
		transport.WriteServiceError(w, log, "admin resource categories bulk", err, h.debug)
		return
	}

	log.Info("admin resource categories bulk: ok",
		slog.String("action", res.Action),
		slog.Int("processed", res.Processed),
		slog.Int("failed", len(res.Failed)),
	)
	transport.WriteData(w, http.StatusOK, res)
}
