package media

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cms-backend/internal/middleware"
	"cms-backend/internal/transport"
)

type Uploader interface {
	UploadImage(ctx context.Context, folder, originalName string, body io.Reader, size int64, contentType string) (Upload, error)
}

var allowedFolders = map[string]bool{
	"categories": true,
	"resources":  true,
	"gallery":    true,
}

type Handler struct {
	store    Uploader
	maxBytes int64
	log      *slog.Logger
}

func NewHandler(store Uploader, maxMB int, log *slog.Logger) *Handler {
	if maxMB <= 0 {
		maxMB = 5
	}
	return &Handler{store: store, maxBytes: int64(maxMB) << 20, log: log}
}

// UploadImage accepts a multipart "image" file and an optional "folder" field.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	if h.store == nil {
		transport.WriteError(w, http.StatusServiceUnavailable, "media storage not configured", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		log.Warn("admin media upload: invalid form", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "invalid multipart form", nil)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", map[string]string{"image": "required"})
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", map[string]string{"image": "too large"})
		return
	}

	folder := strings.TrimSpace(r.FormValue("folder"))
	if folder == "" {
		folder = "resources"
	}
	if !allowedFolders[folder] {
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", map[string]string{"folder": "oneof"})
		return
	}

	buffered := bufio.NewReader(file)
	head, _ := buffered.Peek(512)
	contentType := DetectType(head)
	if _, err := ImageExtension(contentType); err != nil {
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", map[string]string{"image": "unsupported type"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	up, err := h.store.UploadImage(ctx, folder, header.Filename, buffered, header.Size, contentType)
	if err != nil {
		if errors.Is(err, ErrUnsupportedType) {
			transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", map[string]string{"image": "unsupported type"})
			return
		}
		log.Error("admin media upload: storage error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadGateway, "upload failed", nil)
		return
	}

	log.Info("admin media upload: ok", slog.String("key", up.Key), slog.Int64("size", up.Size))
	transport.WriteMessage(w, http.StatusCreated, "image uploaded", up)
}
