package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cms-backend/internal/middleware"
	"cms-backend/internal/transport"
)

type Handler struct {
	service *Service
	log     *slog.Logger
	debug   bool
}

func NewHandler(service *Service, log *slog.Logger, debug bool) *Handler {
	return &Handler{service: service, log: log, debug: debug}
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	summary, err := h.service.Summary(ctx)
	if err != nil {
		transport.WriteServiceError(w, log, "admin dashboard", err, h.debug)
		return
	}
	log.Info("admin dashboard: ok", slog.String("staff_id", middleware.StaffIDFromContext(r.Context())))
	transport.WriteData(w, http.StatusOK, summary)
}
