package service

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/nitj-alumni/alumni-erp-api/internal/cache"
	"github.com/nitj-alumni/alumni-erp-api/internal/dto"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/repository"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
)

type stubCacheRepo struct {
	store map[string][]byte
	gets  int
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	s.gets++
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range s.store {
		if ok, _ := path.Match(pattern, key); ok {
			delete(s.store, key)
		}
	}
	return nil
}

// memoryRequestStore mirrors the storage contract, including the
// single-pending rule and the conditional status update.
type memoryRequestStore struct {
	mu        sync.Mutex
	requests  map[string]models.Request
	owners    map[string]models.Owner
	listCalls int
	createErr error
	// beforeUpdate runs inside UpdateStatus, before the pending check.
	beforeUpdate func(*memoryRequestStore, string)
	// afterList runs once ListAssigned has read its rows.
	afterList func()
}

func newMemoryRequestStore() *memoryRequestStore {
	return &memoryRequestStore{requests: make(map[string]models.Request), owners: make(map[string]models.Owner)}
}

func (m *memoryRequestStore) HasPending(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.UserID == userID && r.Status == models.RequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRequestStore) Create(_ context.Context, req *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, r := range m.requests {
		if r.UserID == req.UserID && r.Status == models.RequestStatusPending {
			return repository.ErrDuplicatePending
		}
	}
	if req.ID == "" {
		req.ID = "req-" + string(rune('a'+len(m.requests)))
	}
	m.requests[req.ID] = *req
	return nil
}

func (m *memoryRequestStore) withOwner(r models.Request) models.Request {
	if owner, ok := m.owners[r.UserID]; ok {
		r.Owner = &owner
	}
	return r
}

func (m *memoryRequestStore) GetForAdmin(_ context.Context, id, adminID string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.AssignedAdmin != adminID {
		return nil, repository.ErrNotFound
	}
	r = m.withOwner(r)
	return &r, nil
}

func (m *memoryRequestStore) ListAssigned(_ context.Context, filter models.RequestFilter) ([]models.Request, error) {
	out := m.list(filter)
	if m.afterList != nil {
		m.afterList()
	}
	return out, nil
}

func (m *memoryRequestStore) list(filter models.RequestFilter) []models.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := make([]models.Request, 0)
	for _, r := range m.requests {
		if r.AssignedAdmin != filter.AssignedAdmin {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, m.withOwner(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memoryRequestStore) UpdateStatus(_ context.Context, id, adminID string, status models.RequestStatus, updatedAt time.Time) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(m, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.AssignedAdmin != adminID || r.Status != models.RequestStatusPending {
		return repository.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = updatedAt
	m.requests[id] = r
	return nil
}

type stubAdminDirectory struct {
	admins map[models.Branch]string
	err    error
}

func (s *stubAdminDirectory) AdminFor(_ context.Context, branch models.Branch) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	id, ok := s.admins[branch]
	if !ok {
		return "", cache.ErrNoAdmin
	}
	return id, nil
}

type stubIssuer struct {
	issued []string
}

func (s *stubIssuer) Issue(_ context.Context, req *models.Request) dto.Verification {
	s.issued = append(s.issued, req.ID)
	return dto.Verification{CertificateID: "CERT-1", FullName: req.Name, PlacementStatus: req.PlacementLabel()}
}

type stubNotifier struct {
	notified []models.Request
}

func (s *stubNotifier) NotifyDecision(req *models.Request) {
	s.notified = append(s.notified, *req)
}
