package console

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitj-alumni/alumni-erp-api/internal/client"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
)

type stubReviewer struct {
	mu        sync.Mutex
	items     []models.Request
	listErr   error
	listCalls int
	updateErr error
	updates   []string
	gate      map[string]chan struct{}
}

func (s *stubReviewer) ListAssigned(_ context.Context, status string) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.Request(nil), s.items...), nil
}

func (s *stubReviewer) UpdateStatus(_ context.Context, id string, status models.RequestStatus) (*client.StatusUpdate, error) {
	s.mu.Lock()
	gate := s.gate[id]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, id+":"+string(status))
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &client.StatusUpdate{Request: models.Request{ID: id, Status: status, UpdatedAt: time.Unix(1700000000, 0)}}, nil
}

type stubSession struct{ cleared int }

func (s *stubSession) Clear() { s.cleared++ }

func seededReviewer() *stubReviewer {
	return &stubReviewer{items: []models.Request{
		{ID: "r1", Status: models.RequestStatusPending},
		{ID: "r2", Status: models.RequestStatusApproved},
		{ID: "r3", Status: models.RequestStatusPending},
	}}
}

func ids(items []models.Request) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestLoadOnceAndFilterLocally(t *testing.T) {
	rev := seededReviewer()
	c := New(rev, &stubSession{}, nil, nil)

	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, 1, rev.listCalls)

	all, err := c.Visible("all")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(all))

	pending, err := c.Visible("pending")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r3"}, ids(pending))

	rejected, err := c.Visible("rejected")
	require.NoError(t, err)
	assert.Empty(t, rejected)

	_, err = c.Visible("archived")
	assert.ErrorIs(t, err, appErrors.ErrInvalidStatus)
	assert.Equal(t, 1, rev.listCalls)
}

func TestApproveUpdatesInPlace(t *testing.T) {
	rev := seededReviewer()
	c := New(rev, &stubSession{}, nil, nil)
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.Approve(context.Background(), "r1"))
	require.NoError(t, c.Reject(context.Background(), "r3"))

	approved, _ := c.Visible("approved")
	assert.Equal(t, []string{"r1", "r2"}, ids(approved))
	rejected, _ := c.Visible("rejected")
	assert.Equal(t, []string{"r3"}, ids(rejected))
	assert.Equal(t, 1, rev.listCalls)

	assert.ErrorIs(t, c.Approve(context.Background(), "r2"), appErrors.ErrInvalidTransition)
	assert.ErrorIs(t, c.Approve(context.Background(), "missing"), appErrors.ErrRequestNotFound)
	assert.Equal(t, []string{"r1:approved", "r3:rejected"}, rev.updates)
}

func TestInFlightActionBlocksSameRequestOnly(t *testing.T) {
	rev := seededReviewer()
	release := make(chan struct{})
	rev.gate = map[string]chan struct{}{"r1": release}
	c := New(rev, &stubSession{}, nil, nil)
	require.NoError(t, c.Load(context.Background()))

	done := make(chan error, 1)
	go func() { done <- c.Approve(context.Background(), "r1") }()
	require.Eventually(t, func() bool { return c.Busy("r1") }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, c.Reject(context.Background(), "r1"), ErrInFlight)
	require.NoError(t, c.Reject(context.Background(), "r3"))
	assert.False(t, c.Busy("r3"))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Busy("r1"))

	approved, _ := c.Visible("approved")
	assert.Contains(t, ids(approved), "r1")
}

func TestPermissionDeniedClearsSessionAndRedirects(t *testing.T) {
	rev := seededReviewer()
	session := &stubSession{}
	var redirected []string
	c := New(rev, session, func(path string) { redirected = append(redirected, path) }, nil)
	require.NoError(t, c.Load(context.Background()))

	rev.updateErr = &client.APIError{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: "access denied"}
	err := c.Approve(context.Background(), "r1")
	require.Error(t, err)
	assert.Equal(t, 1, session.cleared)
	assert.Equal(t, []string{LoginPath}, redirected)
	assert.Equal(t, "access denied", c.Error())

	pending, _ := c.Visible("pending")
	assert.Contains(t, ids(pending), "r1")
}

func TestFailuresAreReportedWithoutRetry(t *testing.T) {
	rev := seededReviewer()
	rev.listErr = errors.New("dial tcp: connection refused")
	session := &stubSession{}
	c := New(rev, session, nil, nil)

	require.Error(t, c.Load(context.Background()))
	assert.Equal(t, "Failed to fetch requests", c.Error())
	assert.Equal(t, 1, rev.listCalls)
	assert.Zero(t, session.cleared)

	rev.listErr = nil
	require.NoError(t, c.Load(context.Background()))
	assert.Empty(t, c.Error())

	rev.updateErr = &client.APIError{Status: http.StatusBadRequest, Code: "INVALID_TRANSITION", Message: "can only update pending requests"}
	require.Error(t, c.Approve(context.Background(), "r1"))
	assert.Equal(t, "can only update pending requests", c.Error())
	assert.Len(t, rev.updates, 1)
	assert.Zero(t, session.cleared)
}
