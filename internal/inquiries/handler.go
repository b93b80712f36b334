package inquiries

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cms-backend/internal/httpx"
	"cms-backend/internal/middleware"
	"cms-backend/internal/transport"
	"cms-backend/internal/validation"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
	debug   bool
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger, debug bool) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
		debug:   debug,
	}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("contact submit: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("contact submit: validation error")
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.Submit(ctx, req, Metadata{
		IP:        httpx.ClientIP(r),
		UserAgent: truncate(r.UserAgent(), 512),
		Referer:   truncate(r.Referer(), 1024),
	})
	if err != nil {
		transport.WriteServiceError(w, log, "contact submit", err, h.debug)
		return
	}

	go func(created Inquiry) {
		notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer notifyCancel()
		if err := h.service.NotifyNew(notifyCtx, created); err != nil {
			h.log.Warn("contact submit: notification failed",
				slog.String("inquiry_id", created.ID),
				slog.String("error", err.Error()),
			)
		}
	}(item)

	log.Info("contact submit: ok", slog.String("inquiry_id", item.ID))
	transport.WriteMessage(w, http.StatusCreated, "thank you, we will get back to you shortly", map[string]string{"id": item.ID})
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	res, err := h.service.List(ctx, r.URL.Query())
	if err != nil {
		transport.WriteServiceError(w, log, "admin contacts list", err, h.debug)
		return
	}

	log.Info("admin contacts list: ok", slog.Int("count", len(res.Items)))
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
		transport.WriteServiceError(w, log, "admin contacts get", err, h.debug)
		return
	}
	transport.WriteData(w, http.StatusOK, item)
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req UpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin contacts update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin contacts update: validation error")
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.Update(ctx, id, req)
	if err != nil {
		transport.WriteServiceError(w, log, "admin contacts update", err, h.debug)
		return
	}

	log.Info("admin contacts update: ok",
		slog.String("inquiry_id", id),
		slog.String("status", item.Status),
		slog.String("staff_id", middleware.StaffIDFromContext(r.Context())),
	)
	transport.WriteMessage(w, http.StatusOK, "inquiry updated", item)
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		transport.WriteServiceError(w, log, "admin contacts delete", err, h.debug)
		return
	}

	log.Info("admin contacts delete: ok", slog.String("inquiry_id", id))
	transport.WriteMessage(w, http.StatusOK, "inquiry deleted", nil)
}

func (h *Handler) AdminBulk(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req BulkRequest
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

	res, err := h.service.Bulk(ctx, req.Action, req.IDs, req.Status)
	if err != nil {
		transport.WriteServiceError(w, log, "admin contacts bulk", err, h.debug)
		return
	}

	log.Info("admin contacts bulk: ok",
		slog.String("action", res.Action),
		slog.Int("processed", res.Processed),
		slog.Int("failed", len(res.Failed)),
	)
	transport.WriteData(w, http.StatusOK, res)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
