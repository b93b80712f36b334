package resources

import (
	"time"

	"cms-backend/internal/listing"
)

const (
	StatusDraft     = "draft"
	StatusReview    = "review"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type Resource struct {
	ID              string     `bson:"_id,omitempty" json:"id"`
	Title           string     `bson:"title" json:"title"`
	Slug            string     `bson:"slug" json:"slug"`
	Excerpt         string     `bson:"excerpt" json:"excerpt"`
	Content         string     `bson:"content" json:"content"`
	CategoryID      string     `bson:"category_id" json:"category_id"`
	AuthorID        string     `bson:"author_id,omitempty" json:"author_id,omitempty"`
	Tags            []string   `bson:"tags" json:"tags"`
	Status          string     `bson:"status" json:"status"`
	IsPublished     bool       `bson:"is_published" json:"is_published"`
	IsFeatured      bool       `bson:"is_featured" json:"is_featured"`
	IsTrending      bool       `bson:"is_trending" json:"is_trending"`
	FeaturedImage   string     `bson:"featured_image,omitempty" json:"featured_image,omitempty"`
	GalleryImages   []string   `bson:"gallery_images,omitempty" json:"gallery_images,omitempty"`
	ReadTime        int        `bson:"read_time" json:"read_time"`
	ViewCount       int64      `bson:"view_count" json:"view_count"`
	ShareCount      int64      `bson:"share_count" json:"share_count"`
	LikeCount       int64      `bson:"like_count" json:"like_count"`
	SeoScore        int        `bson:"seo_score" json:"seo_score"`
	MetaTitle       string     `bson:"meta_title,omitempty" json:"meta_title,omitempty"`
	MetaDescription string     `bson:"meta_description,omitempty" json:"meta_description,omitempty"`
	MetaKeywords    string     `bson:"meta_keywords,omitempty" json:"meta_keywords,omitempty"`
	PublishedAt     *time.Time `bson:"published_at" json:"published_at"`
	UpdatedBy       string     `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at" json:"updated_at"`
}

type UpsertRequest struct {
	Title           string   `json:"title" validate:"required,max=255"`
	Slug            string   `json:"slug" validate:"omitempty,slug,max=255"`
	Excerpt         string   `json:"excerpt" validate:"max=500"`
	Content         string   `json:"content" validate:"required"`
	CategoryID      string   `json:"category_id" validate:"required,objectid"`
	Tags            []string `json:"tags" validate:"max=20,dive,max=50"`
	Status          string   `json:"status" validate:"omitempty,oneof=draft review published archived"`
	IsFeatured      *bool    `json:"is_featured"`
	IsTrending      *bool    `json:"is_trending"`
	FeaturedImage   string   `json:"featured_image" validate:"max=500"`
	GalleryImages   []string `json:"gallery_images" validate:"max=20,dive,max=500"`
	ReadTime        *int     `json:"read_time" validate:"omitempty,gte=0,lte=600"`
	MetaTitle       string   `json:"meta_title" validate:"max=255"`
	MetaDescription string   `json:"meta_description" validate:"max=500"`
	MetaKeywords    string   `json:"meta_keywords" validate:"max=500"`
}

type CategorySummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Color string `json:"color"`
}

// Detail is the public view of one published resource.
type Detail struct {
	Resource
	Category *CategorySummary `json:"category,omitempty"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

type Stats struct {
	ByCategory map[string]int64 `json:"by_category"`
	Featured   int64            `json:"featured"`
}

type ListResult struct {
	Items      []Resource         `json:"items"`
	Pagination listing.Pagination `json:"pagination"`
	Stats      Stats              `json:"stats"`
}

// Counter is the new value of an engagement counter.
type Counter struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}
