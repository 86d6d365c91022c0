package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/handler"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/repository"
	"github.com/nitj-alumni/alumni-erp-api/pkg/config"
	"github.com/nitj-alumni/alumni-erp-api/pkg/database"
)

// UserStore is the user persistence both drivers provide.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindAdminByBranch(ctx context.Context, branch models.Branch) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// RequestStore is the request persistence both drivers provide.
type RequestStore interface {
	Create(ctx context.Context, req *models.Request) error
	HasPending(ctx context.Context, userID string) (bool, error)
	GetForAdmin(ctx context.Context, id, adminID string) (*models.Request, error)
	ListAssigned(ctx context.Context, filter models.RequestFilter) ([]models.Request, error)
	UpdateStatus(ctx context.Context, id, adminID string, status models.RequestStatus, updatedAt time.Time) error
}

// Stores bundles the opened persistence layer.
type Stores struct {
	Users    UserStore
	Requests RequestStore
	// Ready pings the backing database.
	Ready handler.ReadinessCheck

	// Postgres or Mongo is set, matching the driver.
	Postgres *sqlx.DB
	Mongo    *mongo.Database
	closers  []func(context.Context) error
}

// Close releases database connections.
func (s *Stores) Close(ctx context.Context) error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenStores connects to the configured driver. With AutoMigrate the postgres
// schema is migrated and the mongo indexes are ensured before returning.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		client, db, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		stores := &Stores{
			Users:    repository.NewUserMongoRepository(db),
			Requests: repository.NewRequestMongoRepository(db),
			Ready: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
			Mongo:   db,
			closers: []func(context.Context) error{client.Disconnect},
		}
		if cfg.Database.AutoMigrate {
			if err := EnsureMongoIndexes(ctx, db); err != nil {
				_ = stores.Close(ctx)
				return nil, err
			}
			logger.Info("mongo indexes ensured", zap.String("database", cfg.Mongo.Database))
		}
		return stores, nil

	case config.DriverPostgres, "":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		stores := &Stores{
			Users:    repository.NewUserRepository(db),
			Requests: repository.NewRequestRepository(db),
			Ready:    db.PingContext,
			Postgres: db,
			closers:  []func(context.Context) error{func(context.Context) error { return db.Close() }},
		}
		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(db); err != nil {
				_ = stores.Close(ctx)
				return nil, err
			}
			logger.Info("database migrations applied")
		}
		return stores, nil

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
}

// EnsureMongoIndexes creates the unique and lookup indexes the mongo stores rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	if err := repository.NewUserMongoRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure user indexes: %w", err)
	}
	if err := repository.NewRequestMongoRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure request indexes: %w", err)
	}
	return nil
}
