package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/dto"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
	"github.com/nitj-alumni/alumni-erp-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, userID string, payload dto.SubmitRequest) (*dto.SubmitResult, error)
}

type reviewService interface {
	ListAssigned(ctx context.Context, adminID, statusFilter string) ([]models.Request, error)
	GetDetail(ctx context.Context, adminID, requestID string) (*models.RequestDetail, error)
	UpdateStatus(ctx context.Context, adminID, requestID string, payload dto.UpdateStatusRequest) (*models.Request, error)
	Export(ctx context.Context, adminID, statusFilter string, format dto.ExportFormat) (*dto.ExportFile, error)
}

// Response messages the web client displays verbatim.
const (
	msgSubmitted     = "Request and feedback submitted successfully"
	msgStatusUpdated = "Request status updated successfully"
)

// RequestHandler exposes certificate request submission and review.
type RequestHandler struct {
	submissions submissionService
	reviews     reviewService
	logger      *zap.Logger
}

// NewRequestHandler constructs a RequestHandler.
func NewRequestHandler(submissions submissionService, reviews reviewService, logger *zap.Logger) *RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestHandler{submissions: submissions, reviews: reviews, logger: logger}
}

// Submit godoc
// @Summary Submit certificate request
// @Description Submit the certificate request together with the feedback survey
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitRequest true "Request and feedback"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /requests/submit [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	var payload dto.SubmitRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	result, err := h.submissions.Submit(c.Request.Context(), claims.UserID, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msgSubmitted, result)
}

// ListAssigned godoc
// @Summary List assigned requests
// @Description Requests routed to the calling admin, newest first
// @Tags Review
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved, rejected or all"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests/admin-requests [get]
func (h *RequestHandler) ListAssigned(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	requests, err := h.reviews.ListAssigned(c.Request.Context(), claims.UserID, c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, map[string]interface{}{"total": len(requests)})
}

// Export godoc
// @Summary Export assigned requests
// @Tags Review
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param status query string false "pending, approved, rejected or all"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests/admin-requests/export [get]
func (h *RequestHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	file, err := h.reviews.Export(c.Request.Context(), claims.UserID, c.Query("status"), dto.ExportFormat(c.DefaultQuery("format", string(dto.ExportFormatCSV))))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}

// Detail godoc
// @Summary Request detail
// @Tags Review
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Detail(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	detail, err := h.reviews.GetDetail(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// UpdateStatus godoc
// @Summary Approve or reject a request
// @Tags Review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.UpdateStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/status [put]
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	var payload dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	updated, err := h.reviews.UpdateStatus(c.Request.Context(), claims.UserID, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, msgStatusUpdated, updated)
}
