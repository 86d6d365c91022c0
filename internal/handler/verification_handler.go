package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/nitj-alumni/alumni-erp-api/internal/dto"
	"github.com/nitj-alumni/alumni-erp-api/pkg/response"
)

type verificationService interface {
	Open(ctx context.Context, token string) (*dto.ExportFile, error)
}

// VerificationHandler streams verification documents behind signed links.
type VerificationHandler struct {
	service verificationService
}

// NewVerificationHandler constructs a VerificationHandler.
func NewVerificationHandler(svc verificationService) *VerificationHandler {
	return &VerificationHandler{service: svc}
}

// Download godoc
// @Summary Download verification document
// @Tags Verification
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verifications/{token} [get]
func (h *VerificationHandler) Download(c *gin.Context) {
	file, err := h.service.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}
