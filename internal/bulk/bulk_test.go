package bulk

import (
	"context"
	"errors"
	"testing"

	"cms-backend/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCollectsFailures(t *testing.T) {
	var seen []string
	res, err := Run(context.Background(), "delete", []string{"a", " b ", "a", "", "c", "d"}, func(ctx context.Context, id string) error {
		seen = append(seen, id)
		switch id {
		case "b":
			return apperr.Conflict("category still has resources")
		case "c":
			return errors.New("socket closed")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, seen)
	assert.Equal(t, "delete", res.Action)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, []Failure{
		{ID: "b", Error: "category still has resources"},
		{ID: "c", Error: "storage error"},
	}, res.Failed)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	res, err := Run(ctx, "activate", []string{"a", "b", "c"}, func(ctx context.Context, id string) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, res.Processed)
}
