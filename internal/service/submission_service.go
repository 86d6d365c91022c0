package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/cache"
	"github.com/nitj-alumni/alumni-erp-api/internal/dto"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/repository"
	"github.com/nitj-alumni/alumni-erp-api/internal/validation"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
	"github.com/nitj-alumni/alumni-erp-api/pkg/tracing"
)

type submissionStore interface {
	HasPending(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, req *models.Request) error
}

type adminDirectory interface {
	AdminFor(ctx context.Context, branch models.Branch) (string, error)
}

type verificationIssuer interface {
	Issue(ctx context.Context, req *models.Request) dto.Verification
}

// SubmissionService accepts certificate requests from alumni.
type SubmissionService struct {
	store        submissionStore
	admins       adminDirectory
	verification verificationIssuer
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(store submissionStore, admins adminDirectory, verification verificationIssuer, cacheSvc *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &SubmissionService{
		store:        store,
		admins:       admins,
		verification: verification,
		cache:        cacheSvc,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// Submit validates and stores a request for userID, routing it to the admin
// of the submitted branch.
func (s *SubmissionService) Submit(ctx context.Context, userID string, payload dto.SubmitRequest) (*dto.SubmitResult, error) {
	ctx, span := tracing.StartSpan(ctx, "submission.submit", attribute.String("user.id", userID))
	defer span.End()

	req, err := s.submit(ctx, userID, payload)
	if err != nil {
		s.metrics.RecordSubmission(appErrors.FromError(err).Code)
		span.RecordError(err)
		return nil, err
	}
	s.metrics.RecordSubmission("accepted")

	if err := s.cache.Invalidate(ctx, AssignedListPattern(req.AssignedAdmin)); err != nil {
		s.logger.Warn("failed to invalidate assigned list cache", zap.String("admin_id", req.AssignedAdmin), zap.Error(err))
	}

	result := &dto.SubmitResult{RequestID: req.ID}
	if s.verification != nil {
		result.Verification = s.verification.Issue(ctx, req)
	}
	s.logger.Info("request submitted",
		zap.String("request_id", req.ID),
		zap.String("user_id", userID),
		zap.String("branch", string(req.Branch)),
		zap.String("admin_id", req.AssignedAdmin))
	return result, nil
}

func (s *SubmissionService) submit(ctx context.Context, userID string, payload dto.SubmitRequest) (*models.Request, error) {
	payload.Normalize()
	if err := validation.Submission(s.validator, &payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	pending, err := s.store.HasPending(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.ErrDuplicatePending
	}

	branch := models.Branch(payload.Branch)
	adminID, err := s.admins.AdminFor(ctx, branch)
	if err != nil {
		if errors.Is(err, cache.ErrNoAdmin) {
			return nil, appErrors.ErrNoAdminForBranch
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve branch admin")
	}

	now := s.now().UTC()
	req := &models.Request{
		UserID:             userID,
		Name:               payload.Name,
		Branch:             branch,
		RollNo:             payload.RollNo,
		BatchYear:          payload.BatchYear,
		MobileNo:           payload.MobileNo,
		AlternativeNo:      payload.AlternativeNo,
		Email:              payload.Email,
		AlternativeEmail:   payload.AlternativeEmail,
		Address:            payload.Address,
		CurrentDesignation: payload.CurrentDesignation,
		Career:             careerFromPayload(&payload),
		OpinionAboutNITJ:   payload.OpinionAboutNITJ,
		ProudPoints:        payload.ProudPoints,
		CourseRelevance:    payload.CourseRelevance,
		Ratings:            payload.Ratings.WithDefaults(),
		Status:             models.RequestStatusPending,
		AssignedAdmin:      adminID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			return nil, appErrors.ErrDuplicatePending
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store request")
	}
	return req, nil
}

// careerFromPayload assumes a validated payload.
func careerFromPayload(p *dto.SubmitRequest) models.CareerOutcome {
	if p.Placed == dto.PlacedYes {
		return models.Employed{CompanyName: p.CompanyName, Package: p.Package, City: p.City}
	}
	seeking := models.Seeking{Plan: models.FuturePlan(p.FuturePlans)}
	if seeking.Plan != models.FuturePlanHigherStudies {
		return seeking
	}
	exam, _ := models.ParseHigherStudiesType(p.HigherStudiesType)
	details := &models.HigherStudiesDetails{Exam: exam}
	if exam == models.HigherStudiesForeign {
		details.Country = p.ForeignCountry
		details.Course = p.Course
		details.University = p.University
	}
	seeking.HigherStudies = details
	return seeking
}
