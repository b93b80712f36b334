// Package engagement decides whether a view is the first one from a viewer
// inside the dedup window.
package engagement

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"cms-backend/internal/cache"
)

const DefaultViewWindow = time.Hour

// ViewerKey identifies a viewer by staff id when signed in, else by IP.
func ViewerKey(staffID, ip string) string {
	if id := strings.TrimSpace(staffID); id != "" {
		return "user:" + id
	}
	return "ip:" + strings.TrimSpace(ip)
}

type Tracker struct {
	marker cache.Marker
	window time.Duration
	log    *slog.Logger
}

func NewTracker(marker cache.Marker, window time.Duration, log *slog.Logger) *Tracker {
	if window <= 0 {
		window = DefaultViewWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{marker: marker, window: window, log: log}
}

// FirstView reports whether viewer has not viewed (entity, id) within the
// window, and marks it viewed. When the marker store fails the view is not
// counted.
func (t *Tracker) FirstView(ctx context.Context, entity, id, viewer string) bool {
	if t == nil || t.marker == nil || id == "" || viewer == "" {
		return false
	}
	first, err := t.marker.SetNX(ctx, cache.ViewKey(entity, id, viewer), t.window)
	if err != nil {
		t.log.Warn("engagement view: marker error",
			slog.String("entity", entity),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return false
	}
	return first
}

// Forget drops the marker set by FirstView, so a view whose count could not
// be stored is counted on the viewer's next visit.
func (t *Tracker) Forget(ctx context.Context, entity, id, viewer string) {
	if t == nil || t.marker == nil {
		return
	}
	if err := t.marker.Delete(ctx, cache.ViewKey(entity, id, viewer)); err != nil {
		t.log.Warn("engagement view: marker release failed",
			slog.String("entity", entity),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}
