package inquiries

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cms-backend/internal/apperr"
	"cms-backend/internal/listing"
	"cms-backend/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type memRepo struct {
	mu    sync.Mutex
	items map[string]Inquiry
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[string]Inquiry)}
}

func (m *memRepo) Create(ctx context.Context, item Inquiry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *memRepo) Get(ctx context.Context, id string) (Inquiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Inquiry{}, mongo.ErrNoDocuments
	}
	return item, nil
}

func (m *memRepo) ExistsSince(ctx context.Context, email, message string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.Email == email && item.Message == message && !item.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Update(ctx context.Context, id string, set bson.M) (Inquiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Inquiry{}, mongo.ErrNoDocuments
	}
	raw, err := bson.Marshal(item)
	if err != nil {
		return Inquiry{}, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return Inquiry{}, err
	}
	for k, v := range set {
		doc[k] = v
	}
	raw, err = bson.Marshal(doc)
	if err != nil {
		return Inquiry{}, err
	}
	var updated Inquiry
	if err := bson.Unmarshal(raw, &updated); err != nil {
		return Inquiry{}, err
	}
	m.items[id] = updated
	return updated, nil
}

func (m *memRepo) MarkResponded(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.RespondedAt != nil {
		return false, nil
	}
	item.RespondedAt = &at
	m.items[id] = item
	return true, nil
}

func (m *memRepo) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

func (m *memRepo) List(ctx context.Context, q listing.Query) (listing.Page[Inquiry], error) {
	return listing.Page[Inquiry]{}, nil
}

func (m *memRepo) Stats(ctx context.Context, match bson.M) (Stats, error) {
	return Stats{}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *recordingNotifier) SendInquiryNotification(ctx context.Context, item Inquiry) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, item.ID)
	return "msg-1", n.err
}

func newTestService(repo Repository, now *time.Time) *Service {
	s := NewService(repo, nil, nil, 10*time.Minute, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return *now }
	return s
}

func contactRequest(email, message string) CreateRequest {
	return CreateRequest{Name: "Ada", Email: email, Message: message}
}

func TestDuplicateSubmissionWindow(t *testing.T) {
	t0 := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	now := t0
	repo := newMemRepo()
	s := newTestService(repo, &now)
	ctx := context.Background()

	first, err := s.Submit(ctx, contactRequest("a@b.com", "Hi"), Metadata{IP: "203.0.113.1"})
	require.NoError(t, err)
	assert.Equal(t, StatusNew, first.Status)
	assert.Equal(t, PriorityMedium, first.Priority)
	assert.Equal(t, t0, first.Metadata.SubmittedAt)

	now = t0.Add(5 * time.Minute)
	_, err = s.Submit(ctx, contactRequest("A@B.com ", " Hi"), Metadata{IP: "203.0.113.1"})
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, apperr.KindDuplicate, apperr.KindOf(err))
	assert.Len(t, repo.items, 1)

	now = t0.Add(11 * time.Minute)
	second, err := s.Submit(ctx, contactRequest("a@b.com", "Hi"), Metadata{IP: "203.0.113.1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, repo.items, 2)
}

func TestDifferentMessageIsNotDuplicate(t *testing.T) {
	now := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	s := newTestService(newMemRepo(), &now)
	ctx := context.Background()

	_, err := s.Submit(ctx, contactRequest("a@b.com", "Hi"), Metadata{})
	require.NoError(t, err)
	_, err = s.Submit(ctx, contactRequest("a@b.com", "Hello again"), Metadata{})
	require.NoError(t, err)
}

func TestRespondedAtSetOnceOnFirstProgress(t *testing.T) {
	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	now := t0
	s := newTestService(newMemRepo(), &now)
	ctx := context.Background()

	item, err := s.Submit(ctx, contactRequest("c@d.com", "Quote please"), Metadata{})
	require.NoError(t, err)

	priority := PriorityHigh
	item, err = s.Update(ctx, item.ID, UpdateRequest{Priority: &priority})
	require.NoError(t, err)
	assert.Nil(t, item.RespondedAt)
	assert.Equal(t, PriorityHigh, item.Priority)

	now = t0.Add(time.Hour)
	progress := StatusInProgress
	item, err = s.Update(ctx, item.ID, UpdateRequest{Status: &progress})
	require.NoError(t, err)
	require.NotNil(t, item.RespondedAt)
	assert.True(t, item.RespondedAt.Equal(t0.Add(time.Hour)))

	now = t0.Add(2 * time.Hour)
	back := StatusNew
	_, err = s.Update(ctx, item.ID, UpdateRequest{Status: &back})
	require.NoError(t, err)
	item, err = s.Update(ctx, item.ID, UpdateRequest{Status: &progress})
	require.NoError(t, err)
	require.NotNil(t, item.RespondedAt)
	assert.True(t, item.RespondedAt.Equal(t0.Add(time.Hour)))
}

func TestResolvedWithoutProgressLeavesRespondedAtEmpty(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(newMemRepo(), &now)
	ctx := context.Background()

	item, err := s.Submit(ctx, contactRequest("e@f.com", "Thanks"), Metadata{})
	require.NoError(t, err)

	res, err := s.Bulk(ctx, "status", []string{item.ID, "missing"}, StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "missing", res.Failed[0].ID)

	got, err := s.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, got.Status)
	assert.Nil(t, got.RespondedAt)
}

func TestAssignmentAndNotes(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(newMemRepo(), &now)
	ctx := context.Background()

	item, err := s.Submit(ctx, contactRequest("g@h.com", "Call me"), Metadata{})
	require.NoError(t, err)

	staff := "65c000000000000000000001"
	notes := "  called back  "
	item, err = s.Update(ctx, item.ID, UpdateRequest{AssignedTo: &staff, Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, item.AssignedTo)
	assert.Equal(t, staff, *item.AssignedTo)
	assert.Equal(t, "called back", item.Notes)

	empty := ""
	item, err = s.Update(ctx, item.ID, UpdateRequest{AssignedTo: &empty})
	require.NoError(t, err)
	assert.Nil(t, item.AssignedTo)
}

func TestBulkRequiresStatus(t *testing.T) {
	now := time.Now()
	s := newTestService(newMemRepo(), &now)

	_, err := s.Bulk(context.Background(), "status", []string{"x"}, "")
	require.ErrorIs(t, err, ErrNoStatus)

	_, err = s.Bulk(context.Background(), "archive", []string{"x"}, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDeleteMissing(t *testing.T) {
	now := time.Now()
	s := newTestService(newMemRepo(), &now)

	err := s.Delete(context.Background(), "nope")
	assert.True(t, apperr.IsNotFound(err))
}

func TestNotifyNew(t *testing.T) {
	now := time.Now()
	notifier := &recordingNotifier{}
	s := NewService(newMemRepo(), nil, notifier, 0, nil, nil)
	s.now = func() time.Time { return now }

	require.NoError(t, s.NotifyNew(context.Background(), Inquiry{ID: "i-1"}))
	assert.Equal(t, []string{"i-1"}, notifier.sent)

	notifier.err = errors.New("brevo down")
	assert.Error(t, s.NotifyNew(context.Background(), Inquiry{ID: "i-2"}))

	none := NewService(newMemRepo(), nil, nil, 0, nil, nil)
	assert.NoError(t, none.NotifyNew(context.Background(), Inquiry{ID: "i-3"}))
}

func TestSubmitHandlerStatuses(t *testing.T) {
	now := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	s := newTestService(newMemRepo(), &now)
	h := NewHandler(s, validation.New(), slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.Submit(rec, req)
		return rec
	}

	body := `{"name":"Ada","email":"a@b.com","message":"Hi"}`
	assert.Equal(t, http.StatusCreated, post(body).Code)
	assert.Equal(t, http.StatusConflict, post(body).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"name":"Ada","email":"not-an-email","message":"Hi"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"name":`).Code)
}
