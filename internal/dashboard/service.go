package dashboard

import (
	"context"
	"log/slog"
	"time"

	"cms-backend/internal/apperr"
	"cms-backend/internal/inquiries"
	"golang.org/x/sync/errgroup"
)

const recentInquiries = 5

type Breakdown struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

type InquiryStats struct {
	Breakdown
	ByPriority map[string]int64    `json:"by_priority"`
	Open       int64               `json:"open"`
	Recent     []inquiries.Inquiry `json:"recent"`
}

type FaqStats struct {
	Breakdown
	Views      int64 `json:"views"`
	Helpful    int64 `json:"helpful"`
	NotHelpful int64 `json:"not_helpful"`
}

type ResourceStats struct {
	Breakdown
	Views  int64 `json:"views"`
	Shares int64 `json:"shares"`
	Likes  int64 `json:"likes"`
}

type CategoryStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

// Summary is the admin landing page. Every number is global, regardless of
// any list filters the caller may have applied elsewhere.
type Summary struct {
	Inquiries          InquiryStats  `json:"inquiries"`
	Faqs               FaqStats      `json:"faqs"`
	FaqCategories      CategoryStats `json:"faq_categories"`
	Resources          ResourceStats `json:"resources"`
	ResourceCategories CategoryStats `json:"resource_categories"`
	GeneratedAt        time.Time     `json:"generated_at"`
}

type Service struct {
	store    Store
	location *time.Location
	log      *slog.Logger
	now      func() time.Time
}

func NewService(store Store, location *time.Location, log *slog.Logger) *Service {
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, location: location, log: log, now: time.Now}
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var (
		out       Summary
		faqCats   map[string]int64
		resCats   map[string]int64
		faqSums   map[string]int64
		resSums   map[string]int64
		inqStatus map[string]int64
		inqPrio   map[string]int64
		faqStatus map[string]int64
		resStatus map[string]int64
		recent    []inquiries.Inquiry
	)

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *map[string]int64, collection, field string) {
		g.Go(func() error {
			m, err := s.store.CountBy(gctx, collection, field)
			*dst = m
			return err
		})
	}
	count(&inqStatus, Inquiries, "status")
	count(&inqPrio, Inquiries, "priority")
	count(&faqStatus, Faqs, "status")
	count(&faqCats, FaqCategories, "status")
	count(&resStatus, Resources, "status")
	count(&resCats, ResourceCategories, "is_active")
	g.Go(func() error {
		m, err := s.store.Sum(gctx, Faqs, "view_count", "helpful_count", "not_helpful_count")
		faqSums = m
		return err
	})
	g.Go(func() error {
		m, err := s.store.Sum(gctx, Resources, "view_count", "share_count", "like_count")
		resSums = m
		return err
	})
	g.Go(func() error {
		items, err := s.store.RecentInquiries(gctx, recentInquiries)
		recent = items
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, apperr.Storage("dashboard summary", err)
	}

	out.Inquiries = InquiryStats{
		Breakdown:  breakdown(inqStatus),
		ByPriority: nonNil(inqPrio),
		Open:       inqStatus[inquiries.StatusNew] + inqStatus[inquiries.StatusInProgress],
		Recent:     recent,
	}
	out.Faqs = FaqStats{
		Breakdown:  breakdown(faqStatus),
		Views:      faqSums["view_count"],
		Helpful:    faqSums["helpful_count"],
		NotHelpful: faqSums["not_helpful_count"],
	}
	out.FaqCategories = CategoryStats{
		Active:   faqCats["active"],
		Inactive: faqCats["inactive"],
		Total:    total(faqCats),
	}
	out.Resources = ResourceStats{
		Breakdown: breakdown(resStatus),
		Views:     resSums["view_count"],
		Shares:    resSums["share_count"],
		Likes:     resSums["like_count"],
	}
	out.ResourceCategories = CategoryStats{
		Active:   resCats["true"],
		Inactive: resCats["false"],
		Total:    total(resCats),
	}
	out.GeneratedAt = s.now().In(s.location)
	if out.Inquiries.Recent == nil {
		out.Inquiries.Recent = []inquiries.Inquiry{}
	}
	return out, nil
}

func breakdown(m map[string]int64) Breakdown {
	return Breakdown{Total: total(m), ByStatus: nonNil(m)}
}

func total(m map[string]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}

func nonNil(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}
