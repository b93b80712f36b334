package faqs

import (
	"time"

	"cms-backend/internal/listing"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Category struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	Name            string    `bson:"name" json:"name"`
	Slug            string    `bson:"slug" json:"slug"`
	Description     string    `bson:"description,omitempty" json:"description,omitempty"`
	Icon            string    `bson:"icon,omitempty" json:"icon,omitempty"`
	Color           string    `bson:"color,omitempty" json:"color,omitempty"`
	Status          string    `bson:"status" json:"status"`
	SortOrder       int       `bson:"sort_order" json:"sort_order"`
	MetaTitle       string    `bson:"meta_title,omitempty" json:"meta_title,omitempty"`
	MetaDescription string    `bson:"meta_description,omitempty" json:"meta_description,omitempty"`
	CreatedBy       string    `bson:"created_by,omitempty" json:"created_by,omitempty"`
	UpdatedBy       string    `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

type CategoryRequest struct {
	Name            string `json:"name" validate:"required,max=255"`
	Description     string `json:"description" validate:"max=2000"`
	Icon            string `json:"icon" validate:"max=100"`
	Color           string `json:"color" validate:"omitempty,color"`
	Status          string `json:"status" validate:"omitempty,oneof=active inactive"`
	SortOrder       *int   `json:"sort_order" validate:"omitempty,gte=0"`
	MetaTitle       string `json:"meta_title" validate:"max=255"`
	MetaDescription string `json:"meta_description" validate:"max=500"`
}

// CategoryCount is a category with the number of its active FAQs.
type CategoryCount struct {
	Category
	FaqCount int64 `json:"faq_count"`
}

type Faq struct {
	ID               string    `bson:"_id,omitempty" json:"id"`
	Question         string    `bson:"question" json:"question"`
	Answer           string    `bson:"answer" json:"answer"`
	CategoryID       string    `bson:"category_id" json:"category_id"`
	Slug             string    `bson:"slug" json:"slug"`
	Status           string    `bson:"status" json:"status"`
	IsFeatured       bool      `bson:"is_featured" json:"is_featured"`
	Tags             []string  `bson:"tags" json:"tags"`
	ViewCount        int64     `bson:"view_count" json:"view_count"`
	HelpfulCount     int64     `bson:"helpful_count" json:"helpful_count"`
	NotHelpfulCount  int64     `bson:"not_helpful_count" json:"not_helpful_count"`
	HelpfulnessRatio float64   `bson:"-" json:"helpfulness_ratio"`
	MetaDescription  string    `bson:"meta_description,omitempty" json:"meta_description,omitempty"`
	CreatedBy        string    `bson:"created_by,omitempty" json:"created_by,omitempty"`
	UpdatedBy        string    `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

type FaqRequest struct {
	Question        string   `json:"question" validate:"required,max=500"`
	Answer          string   `json:"answer" validate:"required"`
	CategoryID      string   `json:"category_id" validate:"required,objectid"`
	Slug            string   `json:"slug" validate:"omitempty,slug,max=255"`
	Status          string   `json:"status" validate:"omitempty,oneof=active inactive"`
	IsFeatured      *bool    `json:"is_featured"`
	Tags            []string `json:"tags" validate:"max=20,dive,max=50"`
	MetaDescription string   `json:"meta_description" validate:"max=500"`
}

type VoteRequest struct {
	Helpful *bool `json:"helpful" validate:"required"`
}

type VoteResult struct {
	ID               string  `json:"id"`
	HelpfulCount     int64   `json:"helpful_count"`
	NotHelpfulCount  int64   `json:"not_helpful_count"`
	HelpfulnessRatio float64 `json:"helpfulness_ratio"`
}

type CategorySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Detail struct {
	Faq
	Category *CategorySummary `json:"category,omitempty"`
}

// Group is one category with its active FAQs.
type Group struct {
	Category
	Faqs []Faq `json:"faqs"`
}

type Stats struct {
	ByCategory map[string]int64 `json:"by_category"`
	Featured   int64            `json:"featured"`
}

type ListResult struct {
	Items      []Faq              `json:"items"`
	Pagination listing.Pagination `json:"pagination"`
	Stats      Stats              `json:"stats"`
}

// Ratio is helpful / (helpful + not helpful), 0 when nobody voted.
func Ratio(helpful, notHelpful int64) float64 {
	total := helpful + notHelpful
	if total <= 0 || helpful <= 0 {
		return 0
	}
	if helpful >= total {
		return 1
	}
	return float64(helpful) / float64(total)
}

func withRatio(f Faq) Faq {
	f.HelpfulnessRatio = Ratio(f.HelpfulCount, f.NotHelpfulCount)
	return f
}

func withRatios(items []Faq) []Faq {
	for i := range items {
		items[i] = withRatio(items[i])
	}
	return items
}
