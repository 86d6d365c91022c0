// Package console backs the admin review screen: the assigned list, local
// status filtering and approve/reject actions with per-request busy state.
package console

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/client"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
)

// LoginPath is where a rejected session is sent.
const LoginPath = "/login"

// ErrInFlight is returned when a decision on the same request is already running.
var ErrInFlight = errors.New("an action on this request is already in progress")

// Reviewer is the part of the API client the console calls.
type Reviewer interface {
	ListAssigned(ctx context.Context, status string) ([]models.Request, error)
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus) (*client.StatusUpdate, error)
}

// SessionStore is cleared when the API rejects the caller.
type SessionStore interface {
	Clear()
}

// Console holds the admin's assigned requests. Methods are safe for
// concurrent use so decisions on different requests can overlap.
type Console struct {
	reviewer Reviewer
	session  SessionStore
	redirect func(path string)
	logger   *zap.Logger

	mu       sync.Mutex
	loaded   bool
	items    []models.Request
	inFlight map[string]bool
	errText  string
}

// New builds a console. redirect may be nil.
func New(reviewer Reviewer, session SessionStore, redirect func(path string), logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	if redirect == nil {
		redirect = func(string) {}
	}
	return &Console{
		reviewer: reviewer,
		session:  session,
		redirect: redirect,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Load fetches the assigned list. Only the first successful call reaches the API.
func (c *Console) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	items, err := c.reviewer.ListAssigned(ctx, "")
	if err != nil {
		c.fail(err, "Failed to fetch requests")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.loaded = true
	c.errText = ""
	return nil
}

// Visible returns the loaded requests matching filter: all, pending,
// approved or rejected. An empty filter means all.
func (c *Console) Visible(filter string) ([]models.Request, error) {
	status, ok := models.ParseStatusFilter(filter)
	if !ok {
		return nil, appErrors.ErrInvalidStatus
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Request, 0, len(c.items))
	for _, item := range c.items {
		if status == "" || item.Status == status {
			out = append(out, item)
		}
	}
	return out, nil
}

// Busy reports whether a decision on id is in flight.
func (c *Console) Busy(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[id]
}

// Error returns the text of the last failure, or "".
func (c *Console) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errText
}

// Approve marks a pending request approved.
func (c *Console) Approve(ctx context.Context, id string) error {
	return c.decide(ctx, id, models.RequestStatusApproved)
}

// Reject marks a pending request rejected.
func (c *Console) Reject(ctx context.Context, id string) error {
	return c.decide(ctx, id, models.RequestStatusRejected)
}

func (c *Console) decide(ctx context.Context, id string, status models.RequestStatus) error {
	c.mu.Lock()
	if c.inFlight[id] {
		c.mu.Unlock()
		return ErrInFlight
	}
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return appErrors.ErrRequestNotFound
	}
	if c.items[idx].Status != models.RequestStatusPending {
		c.mu.Unlock()
		return appErrors.ErrInvalidTransition
	}
	c.inFlight[id] = true
	c.mu.Unlock()

	update, err := c.reviewer.UpdateStatus(ctx, id, status)

	c.mu.Lock()
	delete(c.inFlight, id)
	if err == nil {
		if i := c.indexOf(id); i >= 0 {
			c.items[i].Status = update.Request.Status
			c.items[i].UpdatedAt = update.Request.UpdatedAt
		}
		c.errText = ""
	}
	c.mu.Unlock()

	if err != nil {
		c.fail(err, "Failed to update request status")
		return err
	}
	c.logger.Debug("request decided", zap.String("request_id", id), zap.String("status", string(status)))
	return nil
}

// fail records the error text and tears down the session on 401/403.
func (c *Console) fail(err error, fallback string) {
	text := fallback
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		text = apiErr.Message
	}
	c.mu.Lock()
	c.errText = text
	c.mu.Unlock()

	if client.IsPermissionDenied(err) {
		c.logger.Warn("session rejected, redirecting to login", zap.Error(err))
		if c.session != nil {
			c.session.Clear()
		}
		c.redirect(LoginPath)
		return
	}
	c.logger.Warn("console action failed", zap.Error(err))
}

func (c *Console) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
