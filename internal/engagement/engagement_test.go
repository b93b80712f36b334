package engagement

import (
	"context"
	"errors"
	"testing"
	"time"

	"cms-backend/internal/cache"
	"github.com/stretchr/testify/assert"
)

type brokenMarker struct{}

func (brokenMarker) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenMarker) Delete(ctx context.Context, keys ...string) error {
	return errors.New("connection refused")
}

func TestViewerKey(t *testing.T) {
	assert.Equal(t, "user:abc", ViewerKey("abc", "1.2.3.4"))
	assert.Equal(t, "ip:1.2.3.4", ViewerKey("", "1.2.3.4"))
	assert.Equal(t, "ip:1.2.3.4", ViewerKey("  ", " 1.2.3.4 "))
}

func TestFirstViewDedupWithinWindow(t *testing.T) {
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	store := cache.NewMemoryWithClock(func() time.Time { return now })
	tr := NewTracker(store, time.Hour, nil)
	ctx := context.Background()

	assert.True(t, tr.FirstView(ctx, "resources", "r1", "ip:1.1.1.1"))
	assert.False(t, tr.FirstView(ctx, "resources", "r1", "ip:1.1.1.1"))
	assert.True(t, tr.FirstView(ctx, "resources", "r1", "ip:2.2.2.2"))
	assert.True(t, tr.FirstView(ctx, "resources", "r2", "ip:1.1.1.1"))
	assert.True(t, tr.FirstView(ctx, "faqs", "r1", "ip:1.1.1.1"))

	now = now.Add(59 * time.Minute)
	assert.False(t, tr.FirstView(ctx, "resources", "r1", "ip:1.1.1.1"))

	now = now.Add(time.Minute)
	assert.True(t, tr.FirstView(ctx, "resources", "r1", "ip:1.1.1.1"))
}

func TestFirstViewMarkerFailureDoesNotCount(t *testing.T) {
	tr := NewTracker(brokenMarker{}, time.Hour, nil)
	assert.False(t, tr.FirstView(context.Background(), "faqs", "f1", "ip:1.1.1.1"))
}

func TestForgetAllowsRecount(t *testing.T) {
	store := cache.NewMemory()
	tr := NewTracker(store, time.Hour, nil)
	ctx := context.Background()

	assert.True(t, tr.FirstView(ctx, "resources", "r1", "ip:1.1.1.1"))
	tr.Forget(ctx, "resources", "r1", "ip:1.1.1.1")
	assert.True(t, tr.FirstView(ctx, "resources", "r1", "ip:1.1.1.1"))
	assert.False(t, tr.FirstView(ctx, "resources", "r1", "ip:1.1.1.1"))

	NewTracker(brokenMarker{}, time.Hour, nil).Forget(ctx, "faqs", "f1", "ip:1.1.1.1")
	var nilTracker *Tracker
	nilTracker.Forget(ctx, "faqs", "f1", "ip:1.1.1.1")
}
