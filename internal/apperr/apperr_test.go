package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("faq not found")
	wrapped := fmt.Errorf("lookup: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsConflict(wrapped))
	assert.ErrorIs(t, wrapped, base)

	assert.Equal(t, KindStorage, KindOf(errors.New("raw")))
	assert.False(t, IsNotFound(nil))
}

func TestStorageKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage("resources list", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "resources list: storage error: connection refused", err.Error())
	assert.Equal(t, "storage", err.Kind.String())
}

func TestField(t *testing.T) {
	err := Field("category_id", "category not found")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, map[string]string{"category_id": "category not found"}, err.Fields)
}

func TestRateLimitedRoundsUp(t *testing.T) {
	err := RateLimited(1500 * time.Millisecond)
	assert.Equal(t, KindRateLimited, err.Kind)
	assert.Equal(t, "2", err.Fields["retry_after"])

	assert.Equal(t, "1", RateLimited(0).Fields["retry_after"])
}
