package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/dto"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/repository"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
	"github.com/nitj-alumni/alumni-erp-api/pkg/export"
	"github.com/nitj-alumni/alumni-erp-api/pkg/tracing"
)

type reviewStore interface {
	GetForAdmin(ctx context.Context, id, adminID string) (*models.Request, error)
	ListAssigned(ctx context.Context, filter models.RequestFilter) ([]models.Request, error)
	UpdateStatus(ctx context.Context, id, adminID string, status models.RequestStatus, updatedAt time.Time) error
}

type decisionNotifier interface {
	NotifyDecision(req *models.Request)
}

type datasetRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

// ReviewService lets an admin inspect and decide the requests assigned to them.
type ReviewService struct {
	store     reviewStore
	cache     *CacheService
	notifier  decisionNotifier
	metrics   *MetricsService
	logger    *zap.Logger
	renderers map[dto.ExportFormat]datasetRenderer
	now       func() time.Time
}

// NewReviewService constructs a ReviewService.
func NewReviewService(store reviewStore, cache *CacheService, notifier decisionNotifier, metrics *MetricsService, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		store:    store,
		cache:    cache,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		renderers: map[dto.ExportFormat]datasetRenderer{
			dto.ExportFormatCSV: export.NewCSVExporter(),
			dto.ExportFormatPDF: export.NewPDFExporter(),
		},
		now: time.Now,
	}
}

// ListAssigned returns the admin's requests, newest first. The filter accepts
// a status, "all" or nothing.
func (s *ReviewService) ListAssigned(ctx context.Context, adminID, statusFilter string) ([]models.Request, error) {
	status, ok := models.ParseStatusFilter(statusFilter)
	if !ok {
		return nil, appErrors.ErrInvalidStatus
	}

	key := AssignedListKey(adminID, string(status))
	var cached []models.Request
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	scope := AssignedListPattern(adminID)
	gen := s.cache.Generation(scope)
	requests, err := s.store.ListAssigned(ctx, models.RequestFilter{AssignedAdmin: adminID, Status: status})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	if _, err := s.cache.SetIfCurrent(ctx, scope, gen, key, requests, 0); err != nil {
		s.logger.Warn("cache assigned list", zap.String("admin_id", adminID), zap.Error(err))
	}
	return requests, nil
}

// GetDetail returns the structured view of one assigned request.
func (s *ReviewService) GetDetail(ctx context.Context, adminID, requestID string) (*models.RequestDetail, error) {
	req, err := s.load(ctx, adminID, requestID)
	if err != nil {
		return nil, err
	}
	detail := models.NewRequestDetail(req)
	return &detail, nil
}

// UpdateStatus records a decision on a pending request.
func (s *ReviewService) UpdateStatus(ctx context.Context, adminID, requestID string, payload dto.UpdateStatusRequest) (*models.Request, error) {
	ctx, span := tracing.StartSpan(ctx, "review.update_status",
		attribute.String("request.id", requestID),
		attribute.String("request.status", payload.Status))
	defer span.End()

	status := models.RequestStatus(payload.Status)
	if !status.IsDecision() {
		return nil, appErrors.ErrInvalidStatus
	}

	req, err := s.load(ctx, adminID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusPending {
		return nil, appErrors.ErrInvalidTransition
	}

	updatedAt := s.now().UTC()
	if err := s.store.UpdateStatus(ctx, requestID, adminID, status, updatedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// decided concurrently since load
			return nil, appErrors.ErrInvalidTransition
		}
		span.RecordError(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
	}
	req.Status = status
	req.UpdatedAt = updatedAt

	s.metrics.RecordDecision(string(status))
	if err := s.cache.Invalidate(ctx, AssignedListPattern(adminID)); err != nil {
		s.logger.Warn("failed to invalidate assigned list cache", zap.String("admin_id", adminID), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.NotifyDecision(req)
	}
	s.logger.Info("request status updated",
		zap.String("request_id", requestID),
		zap.String("admin_id", adminID),
		zap.String("status", string(status)))
	return req, nil
}

// Export renders the admin's listing as CSV or PDF.
func (s *ReviewService) Export(ctx context.Context, adminID, statusFilter string, format dto.ExportFormat) (*dto.ExportFile, error) {
	if format == "" {
		format = dto.ExportFormatCSV
	}
	renderer, ok := s.renderers[dto.ExportFormat(strings.ToLower(string(format)))]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	requests, err := s.ListAssigned(ctx, adminID, statusFilter)
	if err != nil {
		return nil, err
	}

	title := "Assigned certificate requests"
	if status, _ := models.ParseStatusFilter(statusFilter); status != "" {
		title += " (" + string(status) + ")"
	}
	payload, err := renderer.Render(requestDataset(requests), title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("requests-%s.%s", s.now().UTC().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     payload,
	}, nil
}

func (s *ReviewService) load(ctx context.Context, adminID, requestID string) (*models.Request, error) {
	req, err := s.store.GetForAdmin(ctx, requestID, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.ErrRequestNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return req, nil
}

var exportHeaders = []string{"Submitted", "Name", "Email", "Branch", "Roll No", "Batch", "Mobile", "Placement", "Company / Plan", "Overall", "Status"}

func requestDataset(requests []models.Request) export.Dataset {
	rows := make([]map[string]string, 0, len(requests))
	for i := range requests {
		r := &requests[i]
		flat := models.Flatten(r.Career)
		outcome := string(flat.FuturePlans)
		if flat.PlacementDetails != nil {
			outcome = flat.PlacementDetails.CompanyName
		}
		rows = append(rows, map[string]string{
			"Submitted":      r.CreatedAt.UTC().Format("2006-01-02"),
			"Name":           r.Name,
			"Email":          r.Email,
			"Branch":         string(r.Branch),
			"Roll No":        r.RollNo,
			"Batch":          r.BatchYear,
			"Mobile":         r.MobileNo,
			"Placement":      r.PlacementLabel(),
			"Company / Plan": outcome,
			"Overall":        string(r.Ratings.Overall),
			"Status":         string(r.Status),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
