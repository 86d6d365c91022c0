package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
)

const branchAdminIndex = "users_branch_admin_key"

// UserMongoRepository stores accounts in MongoDB. E-mail addresses are kept
// lower-cased so the unique index is case-insensitive.
type UserMongoRepository struct {
	collection *mongo.Collection
}

// NewUserMongoRepository constructs a UserMongoRepository.
func NewUserMongoRepository(db *mongo.Database) *UserMongoRepository {
	return &UserMongoRepository{collection: db.Collection(usersCollection)}
}

// EnsureIndexes creates the e-mail and branch admin unique indexes.
func (r *UserMongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("users_email_key").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "branch", Value: 1}},
			Options: options.Index().
				SetName(branchAdminIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"role": string(models.RoleAdmin)}),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *UserMongoRepository) findOne(ctx context.Context, filter bson.M, op string) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// FindByEmail returns a user by email address, ignoring case.
func (r *UserMongoRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)}, "find user by email")
}

// FindByID returns a user by identifier.
func (r *UserMongoRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "find user by id")
}

// FindAdminByBranch returns the admin reviewing the given branch.
func (r *UserMongoRepository) FindAdminByBranch(ctx context.Context, branch models.Branch) (*models.User, error) {
	return r.findOne(ctx, bson.M{"branch": string(branch), "role": string(models.RoleAdmin)}, "find admin by branch")
}

// Create inserts a new user.
func (r *UserMongoRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), branchAdminIndex) {
				return ErrBranchHasAdmin
			}
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
