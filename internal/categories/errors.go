package categories

import "cms-backend/internal/apperr"

var (
	ErrNotFound          = apperr.NotFound("category not found")
	ErrParentNotFound    = apperr.Field("parent_id", "parent category not found")
	ErrCircularReference = apperr.Conflict("a category cannot be its own ancestor")
	ErrHasResources      = apperr.Conflict("category still has resources")
	ErrHasChildren       = apperr.Conflict("category still has subcategories")
	ErrSlugTaken         = apperr.Conflict("slug already exists")
)
