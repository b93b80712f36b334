package categories

import "time"

const DefaultColor = "#3B82F6"

type Category struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	Name            string    `bson:"name" json:"name"`
	Slug            string    `bson:"slug" json:"slug"`
	Description     string    `bson:"description,omitempty" json:"description,omitempty"`
	Color           string    `bson:"color" json:"color"`
	Icon            string    `bson:"icon,omitempty" json:"icon,omitempty"`
	FeaturedImage   string    `bson:"featured_image,omitempty" json:"featured_image,omitempty"`
	ParentID        *string   `bson:"parent_id" json:"parent_id"`
	MetaTitle       string    `bson:"meta_title,omitempty" json:"meta_title,omitempty"`
	MetaDescription string    `bson:"meta_description,omitempty" json:"meta_description,omitempty"`
	MetaKeywords    string    `bson:"meta_keywords,omitempty" json:"meta_keywords,omitempty"`
	IsActive        bool      `bson:"is_active" json:"is_active"`
	IsFeatured      bool      `bson:"is_featured" json:"is_featured"`
	SortOrder       int       `bson:"sort_order" json:"sort_order"`
	ResourceCount   int64     `bson:"resource_count" json:"resource_count"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// Parent returns the parent id, or "" for a root category.
func (c Category) Parent() string {
	if c.ParentID == nil {
		return ""
	}
	return *c.ParentID
}

type UpsertRequest struct {
	Name            string  `json:"name" validate:"required,max=255"`
	Slug            string  `json:"slug" validate:"omitempty,slug,max=255"`
	Description     string  `json:"description" validate:"max=2000"`
	Color           string  `json:"color" validate:"omitempty,color"`
	Icon            string  `json:"icon" validate:"max=100"`
	FeaturedImage   string  `json:"featured_image" validate:"max=500"`
	ParentID        *string `json:"parent_id"`
	MetaTitle       string  `json:"meta_title" validate:"max=255"`
	MetaDescription string  `json:"meta_description" validate:"max=500"`
	MetaKeywords    string  `json:"meta_keywords" validate:"max=500"`
	IsActive        *bool   `json:"is_active"`
	IsFeatured      *bool   `json:"is_featured"`
	SortOrder       *int    `json:"sort_order" validate:"omitempty,gte=0"`
}

type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

type TreeNode struct {
	Category
	Children []TreeNode `json:"children"`
}

type FlatNode struct {
	Category
	HierarchyLevel int     `json:"hierarchy_level"`
	Breadcrumb     []Crumb `json:"breadcrumb"`
}

// Detail is the public view of one category.
type Detail struct {
	Category
	HierarchyLevel     int        `json:"hierarchy_level"`
	Breadcrumb         []Crumb    `json:"breadcrumb"`
	Children           []Category `json:"children"`
	TotalResourceCount int64      `json:"total_resource_count"`
}
