package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/repository"
)

type adminLookupStub struct {
	admins map[models.Branch]string
	err    error
	calls  int
}

func (s *adminLookupStub) FindAdminByBranch(_ context.Context, branch models.Branch) (*models.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	id, ok := s.admins[branch]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &models.User{ID: id, Role: models.RoleAdmin, Branch: branch}, nil
}

func TestAdminDirectoryCachesHits(t *testing.T) {
	stub := &adminLookupStub{admins: map[models.Branch]string{models.BranchCSE: "admin-cse"}}
	dir := NewAdminDirectory(stub, time.Minute, nil)

	for i := 0; i < 3; i++ {
		id, err := dir.AdminFor(context.Background(), models.BranchCSE)
		require.NoError(t, err)
		assert.Equal(t, "admin-cse", id)
	}
	assert.Equal(t, 1, stub.calls)

}

func TestAdminDirectoryRefreshesAfterTTL(t *testing.T) {
	stub := &adminLookupStub{admins: map[models.Branch]string{models.BranchCSE: "admin-cse"}}
	dir := NewAdminDirectory(stub, 20*time.Millisecond, nil)

	_, err := dir.AdminFor(context.Background(), models.BranchCSE)
	require.NoError(t, err)

	stub.admins[models.BranchCSE] = "admin-cse-2"
	time.Sleep(40 * time.Millisecond)
	id, err := dir.AdminFor(context.Background(), models.BranchCSE)
	require.NoError(t, err)
	assert.Equal(t, "admin-cse-2", id)
	assert.Equal(t, 2, stub.calls)
}

func TestAdminDirectoryDoesNotCacheMisses(t *testing.T) {
	stub := &adminLookupStub{admins: map[models.Branch]string{}}
	dir := NewAdminDirectory(stub, time.Minute, nil)

	_, err := dir.AdminFor(context.Background(), models.BranchTT)
	assert.ErrorIs(t, err, ErrNoAdmin)

	stub.admins[models.BranchTT] = "admin-tt"
	id, err := dir.AdminFor(context.Background(), models.BranchTT)
	require.NoError(t, err)
	assert.Equal(t, "admin-tt", id)
	assert.Equal(t, 2, stub.calls)
}

func TestAdminDirectoryWrapsLookupFailure(t *testing.T) {
	boom := errors.New("connection refused")
	dir := NewAdminDirectory(&adminLookupStub{err: boom}, 0, nil)

	_, err := dir.AdminFor(context.Background(), models.BranchME)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoAdmin)
}
