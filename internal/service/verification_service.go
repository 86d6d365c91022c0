package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/dto"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
	"github.com/nitj-alumni/alumni-erp-api/pkg/export"
	"github.com/nitj-alumni/alumni-erp-api/pkg/storage"
)

type artifactStorage interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
}

// expiringStorage is implemented by backends that need the service to purge
// documents once their links have lapsed.
type expiringStorage interface {
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type certificateRenderer interface {
	Render(cert export.Certificate) ([]byte, error)
}

// VerificationConfig tunes verification document handling.
type VerificationConfig struct {
	Enabled   bool
	URLPrefix string
	// RetainFor should match the signed link TTL; older documents are unreachable.
	RetainFor       time.Duration
	CleanupInterval time.Duration
}

// VerificationService renders the document confirming a submission, stores
// it and hands out signed download links.
type VerificationService struct {
	storage  artifactStorage
	renderer certificateRenderer
	signer   *storage.SignedURLSigner
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      VerificationConfig
	now      func() time.Time
	newID    func() string
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(store artifactStorage, renderer certificateRenderer, signer *storage.SignedURLSigner, metrics *MetricsService, cfg VerificationConfig, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewCertificateRenderer("Dr B R Ambedkar National Institute of Technology, Jalandhar")
	}
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = "/verifications"
	}
	return &VerificationService{
		storage:  store,
		renderer: renderer,
		signer:   signer,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Issue builds the verification record for a stored request. The document is
// rendered only when enabled; render or storage failures are logged and the
// record is returned without a download link.
func (s *VerificationService) Issue(ctx context.Context, req *models.Request) dto.Verification {
	issuedAt := s.now().UTC()
	verification := dto.Verification{
		CertificateID:   s.certificateID(issuedAt),
		FullName:        req.Name,
		RollNumber:      req.RollNo,
		BatchYear:       req.BatchYear,
		Email:           req.Email,
		PlacementStatus: req.PlacementLabel(),
	}
	if !s.cfg.Enabled || s.storage == nil || s.signer == nil {
		return verification
	}

	logger := s.logger.With(zap.String("request_id", req.ID), zap.String("certificate_id", verification.CertificateID))
	payload, err := s.renderer.Render(export.Certificate{
		CertificateID:   verification.CertificateID,
		FullName:        verification.FullName,
		RollNumber:      verification.RollNumber,
		BatchYear:       verification.BatchYear,
		Email:           verification.Email,
		PlacementStatus: verification.PlacementStatus,
		IssuedAt:        issuedAt,
	})
	if err != nil {
		s.metrics.RecordArtifact("render_failed")
		logger.Warn("failed to render verification document", zap.Error(err))
		return verification
	}

	key := req.ID
	if key == "" {
		key = verification.CertificateID
	}
	relPath, err := s.storage.Save(path.Join("certificates", key+".pdf"), payload)
	if err != nil {
		s.metrics.RecordArtifact("store_failed")
		logger.Warn("failed to store verification document", zap.Error(err))
		return verification
	}

	token, expiresAt, err := s.signer.Generate(verification.CertificateID, relPath)
	if err != nil {
		s.metrics.RecordArtifact("sign_failed")
		logger.Warn("failed to sign verification link", zap.Error(err))
		if store, ok := s.storage.(expiringStorage); ok {
			if err := store.Delete(relPath); err != nil {
				logger.Warn("failed to drop unsigned verification document", zap.Error(err))
			}
		}
		return verification
	}

	s.metrics.RecordArtifact("issued")
	verification.DownloadURL = s.cfg.URLPrefix + "/" + token
	verification.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	return verification
}

// StartCleanup periodically purges stored documents older than RetainFor.
// Backends without expiringStorage (S3 lifecycle rules) are left alone.
func (s *VerificationService) StartCleanup(ctx context.Context) {
	if s == nil || !s.cfg.Enabled || s.cfg.CleanupInterval <= 0 || s.cfg.RetainFor <= 0 {
		return
	}
	if _, ok := s.storage.(expiringStorage); !ok {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired()
			}
		}
	}()
}

func (s *VerificationService) cleanupExpired() int {
	store, ok := s.storage.(expiringStorage)
	if !ok {
		return 0
	}
	deleted, err := store.CleanupOlderThan(s.cfg.RetainFor)
	if err != nil {
		s.logger.Warn("verification cleanup failed", zap.Error(err))
		return 0
	}
	if len(deleted) > 0 {
		s.metrics.RecordArtifact("purged")
		s.logger.Info("purged expired verification documents", zap.Int("count", len(deleted)))
	}
	return len(deleted)
}

// certificateID is CERT-<issue millis>-<8 hex chars of a uuid>.
func (s *VerificationService) certificateID(issuedAt time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(s.newID(), "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("CERT-%d-%s", issuedAt.UnixMilli(), suffix)
}

// Open resolves a signed token to the stored document.
func (s *VerificationService) Open(ctx context.Context, token string) (*dto.ExportFile, error) {
	if s == nil || !s.cfg.Enabled || s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "verification documents are disabled")
	}
	signed, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	payload, err := s.storage.Read(signed.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "verification document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read verification document")
	}
	return &dto.ExportFile{
		Filename:    signed.ArtifactID + ".pdf",
		ContentType: "application/pdf",
		Content:     payload,
	}, nil
}
