package inquiries

import (
	"time"

	"cms-backend/internal/bulk"
	"cms-backend/internal/listing"
)

const (
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var Statuses = []string{StatusNew, StatusInProgress, StatusResolved, StatusClosed}

var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

type Metadata struct {
	IP          string    `bson:"ip" json:"ip"`
	UserAgent   string    `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	Referer     string    `bson:"referer,omitempty" json:"referer,omitempty"`
	SubmittedAt time.Time `bson:"submitted_at" json:"submitted_at"`
}

type Inquiry struct {
	ID          string     `bson:"_id,omitempty" json:"id"`
	Name        string     `bson:"name" json:"name"`
	Email       string     `bson:"email" json:"email"`
	Company     string     `bson:"company,omitempty" json:"company,omitempty"`
	Phone       string     `bson:"phone,omitempty" json:"phone,omitempty"`
	Service     string     `bson:"service,omitempty" json:"service,omitempty"`
	Message     string     `bson:"message" json:"message"`
	Status      string     `bson:"status" json:"status"`
	Priority    string     `bson:"priority" json:"priority"`
	AssignedTo  *string    `bson:"assigned_to" json:"assigned_to"`
	Notes       string     `bson:"notes,omitempty" json:"notes,omitempty"`
	Metadata    Metadata   `bson:"metadata" json:"metadata"`
	RespondedAt *time.Time `bson:"responded_at" json:"responded_at"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Company string `json:"company" validate:"max=255"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Service string `json:"service" validate:"max=255"`
	Message string `json:"message" validate:"required,max=5000"`
}

// UpdateRequest carries the staff-editable fields. Nil fields are left as is;
// an empty assigned_to clears the assignment.
type UpdateRequest struct {
	Status     *string `json:"status" validate:"omitempty,oneof=new in_progress resolved closed"`
	Priority   *string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	AssignedTo *string `json:"assigned_to" validate:"omitempty,max=64"`
	Notes      *string `json:"notes" validate:"omitempty,max=5000"`
}

type BulkRequest struct {
	bulk.Request
	Status string `json:"status" validate:"omitempty,oneof=new in_progress resolved closed"`
}

type Stats struct {
	ByStatus   map[string]int64 `json:"by_status"`
	ByPriority map[string]int64 `json:"by_priority"`
}

type ListResult struct {
	Items      []Inquiry          `json:"items"`
	Pagination listing.Pagination `json:"pagination"`
	Stats      Stats              `json:"stats"`
}
