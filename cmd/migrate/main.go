package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/server"
	"github.com/nitj-alumni/alumni-erp-api/internal/service"
	"github.com/nitj-alumni/alumni-erp-api/pkg/config"
	"github.com/nitj-alumni/alumni-erp-api/pkg/database"
	"github.com/nitj-alumni/alumni-erp-api/pkg/logger"
)

const usage = `usage:
  migrate up
  migrate down [-steps N]
  migrate version
  migrate admin create -name NAME -email EMAIL -password PASSWORD -branch BRANCH`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// schema changes are explicit here
	cfg.Database.AutoMigrate = false
	stores, err := server.OpenStores(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("open database", zap.Error(err))
	}
	defer stores.Close(context.Background()) //nolint:errcheck

	if err := dispatch(ctx, cfg, stores, logr, os.Args[1:]); err != nil {
		logr.Fatal("migrate command failed", zap.Strings("args", os.Args[1:]), zap.Error(err))
	}
}

func dispatch(ctx context.Context, cfg *config.Config, stores *server.Stores, logr *zap.Logger, args []string) error {
	switch args[0] {
	case "up":
		if stores.Postgres == nil {
			if err := server.EnsureMongoIndexes(ctx, stores.Mongo); err != nil {
				return err
			}
			logr.Info("mongo indexes ensured", zap.String("database", cfg.Mongo.Database))
			return nil
		}
		if err := database.RunMigrations(stores.Postgres); err != nil {
			return err
		}
		logr.Info("migrations applied")
	case "down":
		fs := flag.NewFlagSet("down", flag.ExitOnError)
		steps := fs.Int("steps", 1, "number of migrations to roll back")
		_ = fs.Parse(args[1:])
		if stores.Postgres == nil {
			return fmt.Errorf("down is only supported for the postgres driver")
		}
		if err := database.RollbackMigrations(stores.Postgres, *steps); err != nil {
			return err
		}
		logr.Info("migrations rolled back", zap.Int("steps", *steps))
	case "version":
		if stores.Postgres == nil {
			return fmt.Errorf("version is only supported for the postgres driver")
		}
		version, dirty, err := database.MigrationVersion(stores.Postgres)
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
	case "admin":
		if len(args) < 2 || args[1] != "create" {
			return fmt.Errorf("unknown admin command\n%s", usage)
		}
		return createAdmin(ctx, cfg, stores, logr, args[2:])
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
	return nil
}

// createAdmin registers the reviewing admin of a branch. Each branch has at
// most one admin; the store rejects a second one.
func createAdmin(ctx context.Context, cfg *config.Config, stores *server.Stores, logr *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("admin create", flag.ExitOnError)
	name := fs.String("name", "", "admin display name")
	email := fs.String("email", "", "admin login e-mail")
	password := fs.String("password", "", "initial password")
	branch := fs.String("branch", "", "branch the admin reviews")
	_ = fs.Parse(args)

	auth := service.NewAuthService(stores.Users, nil, logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret})
	info, err := auth.Register(ctx, models.RegisterRequest{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Branch:   models.Branch(*branch),
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return err
	}
	logr.Info("admin created", zap.String("id", info.ID), zap.String("email", info.Email), zap.String("branch", string(info.Branch)))
	return nil
}
