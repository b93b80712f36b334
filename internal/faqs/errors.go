package faqs

import "cms-backend/internal/apperr"

var (
	ErrNotFound         = apperr.NotFound("faq not found")
	ErrCategoryNotFound = apperr.NotFound("faq category not found")
	ErrUnknownCategory  = apperr.Field("category_id", "faq category not found")
	ErrCategoryInUse    = apperr.Conflict("faq category still has faqs")
	ErrNameTaken        = apperr.Conflict("category name already exists")
	ErrSlugTaken        = apperr.Conflict("slug already exists")
)
