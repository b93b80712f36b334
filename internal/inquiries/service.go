package inquiries

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"cms-backend/internal/apperr"
	"cms-backend/internal/bulk"
	"cms-backend/internal/db"
	"cms-backend/internal/listing"
	"cms-backend/internal/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const DefaultDedupWindow = 10 * time.Minute

var (
	ErrNotFound  = apperr.NotFound("inquiry not found")
	ErrDuplicate = apperr.Duplicate("an identical message was submitted recently")
	ErrNoStatus  = apperr.Field("status", "status is required for this action")
)

type Notifier interface {
	SendInquiryNotification(ctx context.Context, item Inquiry) (string, error)
}

type Service struct {
	repo        Repository
	runner      db.Runner
	notifier    Notifier
	dedupWindow time.Duration
	location    *time.Location
	log         *slog.Logger
	now         func() time.Time
}

func NewService(repo Repository, runner db.Runner, notifier Notifier, dedupWindow time.Duration, location *time.Location, log *slog.Logger) *Service {
	if runner == nil {
		runner = db.DirectRunner{}
	}
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:        repo,
		runner:      runner,
		notifier:    notifier,
		dedupWindow: dedupWindow,
		location:    location,
		log:         log,
		now:         time.Now,
	}
}

// Submit stores a public contact submission unless the same email sent the
// same message within the dedup window.
func (s *Service) Submit(ctx context.Context, req CreateRequest, meta Metadata) (Inquiry, error) {
	now := s.now().In(s.location)
	email := normalizeEmail(req.Email)
	message := strings.TrimSpace(req.Message)

	dup, err := s.repo.ExistsSince(ctx, email, message, now.Add(-s.dedupWindow))
	if err != nil {
		metrics.RecordContactSubmission("error")
		return Inquiry{}, apperr.Storage("inquiries dedup", err)
	}
	if dup {
		metrics.RecordContactSubmission("duplicate")
		return Inquiry{}, ErrDuplicate
	}

	meta.SubmittedAt = now
	item := Inquiry{
		ID:        primitive.NewObjectID().Hex(),
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Company:   strings.TrimSpace(req.Company),
		Phone:     strings.TrimSpace(req.Phone),
		Service:   strings.TrimSpace(req.Service),
		Message:   message,
		Status:    StatusNew,
		Priority:  PriorityMedium,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, item); err != nil {
		metrics.RecordContactSubmission("error")
		return Inquiry{}, apperr.Storage("inquiries create", err)
	}
	metrics.RecordContactSubmission("accepted")
	return item, nil
}

func (s *Service) NotifyNew(ctx context.Context, item Inquiry) error {
	if s.notifier == nil {
		return nil
	}
	_, err := s.notifier.SendInquiryNotification(ctx, item)
	return err
}

func (s *Service) adminSpec() listing.Spec {
	return listing.Spec{
		Entity: "inquiries",
		Filters: map[string]listing.Filter{
			"status":      listing.OneOf("status", Statuses...),
			"priority":    listing.OneOf("priority", Priorities...),
			"service":     listing.Equals("service"),
			"assigned_to": listing.Equals("assigned_to"),
			"date_from":   listing.DateFrom("created_at", s.location),
			"date_to":     listing.DateTo("created_at", s.location),
		},
		SearchFields: []string{"name", "email", "company", "message"},
		Sorts: map[string]bson.D{
			"latest": {{Key: "created_at", Value: -1}},
			"oldest": {{Key: "created_at", Value: 1}},
			"name":   {{Key: "name", Value: 1}},
		},
		DefaultSort:    "latest",
		DefaultPerPage: 20,
		MaxPerPage:     100,
	}
}

func (s *Service) List(ctx context.Context, params url.Values) (ListResult, error) {
	q := listing.Build(s.adminSpec(), params, nil)

	page, err := s.repo.List(ctx, q)
	if err != nil {
		return ListResult{}, apperr.Storage("inquiries list", err)
	}
	stats, err := s.repo.Stats(ctx, q.Match)
	if err != nil {
		return ListResult{}, apperr.Storage("inquiries list", err)
	}
	return ListResult{Items: page.Items, Pagination: page.Pagination, Stats: stats}, nil
}

func (s *Service) Get(ctx context.Context, id string) (Inquiry, error) {
	item, err := s.repo.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Inquiry{}, ErrNotFound
		}
		return Inquiry{}, apperr.Storage("inquiries get", err)
	}
	return item, nil
}

// Update applies staff changes. The first move from new to in_progress
// stamps responded_at; later transitions never touch it again.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Inquiry, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Inquiry{}, err
	}
	now := s.now().In(s.location)

	set := bson.M{"updated_at": now}
	if req.Status != nil {
		set["status"] = *req.Status
	}
	if req.Priority != nil {
		set["priority"] = *req.Priority
	}
	if req.AssignedTo != nil {
		if assignee := strings.TrimSpace(*req.AssignedTo); assignee != "" {
			set["assigned_to"] = assignee
		} else {
			set["assigned_to"] = nil
		}
	}
	if req.Notes != nil {
		set["notes"] = strings.TrimSpace(*req.Notes)
	}
	responded := req.Status != nil && current.Status == StatusNew && *req.Status == StatusInProgress

	var updated Inquiry
	err = s.runner.Do(ctx, func(ctx context.Context) error {
		var err error
		if updated, err = s.repo.Update(ctx, current.ID, set); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return apperr.Storage("inquiries update", err)
		}
		if !responded {
			return nil
		}
		marked, err := s.repo.MarkResponded(ctx, current.ID, now)
		if err != nil {
			return apperr.Storage("inquiries update", err)
		}
		if marked {
			t := now
			updated.RespondedAt = &t
		}
		return nil
	})
	if err != nil {
		return Inquiry{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, strings.TrimSpace(id))
	if err != nil {
		return apperr.Storage("inquiries delete", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// Bulk runs "status" (with the target status) or "delete" over ids.
func (s *Service) Bulk(ctx context.Context, action string, ids []string, status string) (bulk.Result, error) {
	switch action {
	case "status":
		if status == "" {
			return bulk.Result{}, ErrNoStatus
		}
		return bulk.Run(ctx, action, ids, func(ctx context.Context, id string) error {
			_, err := s.Update(ctx, id, UpdateRequest{Status: &status})
			return err
		})
	case "delete":
		return bulk.Run(ctx, action, ids, s.Delete)
	default:
		return bulk.Result{}, bulk.ErrUnknownAction
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
