package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/repository"
)

const defaultAdminDirectoryTTL = 10 * time.Minute

// ErrNoAdmin is returned when a branch has no reviewing admin.
var ErrNoAdmin = errors.New("no admin for branch")

// AdminLookup resolves the admin account of a branch.
type AdminLookup interface {
	FindAdminByBranch(ctx context.Context, branch models.Branch) (*models.User, error)
}

// AdminDirectory caches the branch to admin mapping in memory. Misses are not
// cached so a newly provisioned admin is picked up on the next submission.
type AdminDirectory struct {
	cache  *gocache.Cache
	lookup AdminLookup
	ttl    time.Duration
	logger *zap.Logger
}

// NewAdminDirectory creates a directory backed by lookup.
func NewAdminDirectory(lookup AdminLookup, ttl time.Duration, logger *zap.Logger) *AdminDirectory {
	if ttl <= 0 {
		ttl = defaultAdminDirectoryTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminDirectory{
		cache:  gocache.New(ttl, 2*ttl),
		lookup: lookup,
		ttl:    ttl,
		logger: logger,
	}
}

// AdminFor returns the admin id reviewing branch.
func (d *AdminDirectory) AdminFor(ctx context.Context, branch models.Branch) (string, error) {
	key := string(branch)
	if data, found := d.cache.Get(key); found {
		if id, ok := data.(string); ok {
			return id, nil
		}
		d.logger.Error("invalid admin directory entry", zap.String("branch", key))
		d.cache.Delete(key)
	}

	admin, err := d.lookup.FindAdminByBranch(ctx, branch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNoAdmin
		}
		return "", fmt.Errorf("resolve admin for %s: %w", branch, err)
	}

	d.cache.Set(key, admin.ID, d.ttl)
	d.logger.Debug("admin directory refreshed", zap.String("branch", key), zap.String("admin_id", admin.ID))
	return admin.ID, nil
}
