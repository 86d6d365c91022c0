package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
	"github.com/nitj-alumni/alumni-erp-api/pkg/export"
	"github.com/nitj-alumni/alumni-erp-api/pkg/storage"
)

type stubRenderer struct {
	err  error
	last export.Certificate
}

func (r *stubRenderer) Render(cert export.Certificate) ([]byte, error) {
	r.last = cert
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + cert.CertificateID), nil
}

func verifiedRequest() *models.Request {
	return &models.Request{
		ID:        "req-1",
		Name:      "Asha Verma",
		RollNo:    "18103021",
		BatchYear: "2022",
		Email:     "asha@example.com",
		Career:    models.Employed{CompanyName: "Acme"},
	}
}

func newVerificationFixture(t *testing.T, enabled bool, ttl time.Duration) (*VerificationService, *stubRenderer) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	renderer := &stubRenderer{}
	svc := NewVerificationService(store, renderer, storage.NewSignedURLSigner("secret", ttl), NewMetricsService(),
		VerificationConfig{Enabled: enabled, URLPrefix: "/api/v1/verifications"}, zap.NewNop())
	svc.now = func() time.Time { return time.UnixMilli(1700000000123) }
	ids := []string{"0f3c2a1b-0000-4000-8000-000000000001", "9d8e7f6a-0000-4000-8000-000000000002"}
	svc.newID = func() string {
		id := ids[0]
		ids = append(ids[1:], id)
		return id
	}
	return svc, renderer
}

func TestVerificationServiceIssueAndOpen(t *testing.T) {
	svc, renderer := newVerificationFixture(t, true, time.Hour)

	v := svc.Issue(context.Background(), verifiedRequest())
	assert.Equal(t, "CERT-1700000000123-0F3C2A1B", v.CertificateID)
	assert.Equal(t, "Placed", v.PlacementStatus)
	assert.Equal(t, "Asha Verma", renderer.last.FullName)
	require.True(t, strings.HasPrefix(v.DownloadURL, "/api/v1/verifications/"))
	assert.NotEmpty(t, v.ExpiresAt)

	token := strings.TrimPrefix(v.DownloadURL, "/api/v1/verifications/")
	file, err := svc.Open(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "CERT-1700000000123-0F3C2A1B.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "%PDF-CERT-1700000000123-0F3C2A1B", string(file.Content))

	_, err = svc.Open(context.Background(), token+"x")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestVerificationServiceSameInstantIssuesStayApart(t *testing.T) {
	svc, _ := newVerificationFixture(t, true, time.Hour)

	first := verifiedRequest()
	second := verifiedRequest()
	second.ID = "req-2"
	second.Name = "Ravi Kumar"

	a := svc.Issue(context.Background(), first)
	b := svc.Issue(context.Background(), second)
	require.NotEqual(t, a.CertificateID, b.CertificateID)

	fileA, err := svc.Open(context.Background(), strings.TrimPrefix(a.DownloadURL, "/api/v1/verifications/"))
	require.NoError(t, err)
	assert.Equal(t, a.CertificateID+".pdf", fileA.Filename)
	assert.Equal(t, "%PDF-"+a.CertificateID, string(fileA.Content))

	fileB, err := svc.Open(context.Background(), strings.TrimPrefix(b.DownloadURL, "/api/v1/verifications/"))
	require.NoError(t, err)
	assert.Equal(t, b.CertificateID+".pdf", fileB.Filename)
	assert.Equal(t, "%PDF-"+b.CertificateID, string(fileB.Content))
}

func TestVerificationServiceExpiredLink(t *testing.T) {
	svc, _ := newVerificationFixture(t, true, time.Nanosecond)

	v := svc.Issue(context.Background(), verifiedRequest())
	require.NotEmpty(t, v.DownloadURL)
	time.Sleep(10 * time.Millisecond)

	_, err := svc.Open(context.Background(), strings.TrimPrefix(v.DownloadURL, "/api/v1/verifications/"))
	require.Error(t, err)
	assert.Equal(t, "download link expired", appErrors.FromError(err).Message)
}

func TestVerificationServiceRenderFailureKeepsRecord(t *testing.T) {
	svc, renderer := newVerificationFixture(t, true, time.Hour)
	renderer.err = errors.New("font missing")

	v := svc.Issue(context.Background(), verifiedRequest())
	assert.True(t, strings.HasPrefix(v.CertificateID, "CERT-1700000000123-"))
	assert.Empty(t, v.DownloadURL)
}

func TestVerificationServicePurgesLapsedDocuments(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	svc := NewVerificationService(store, &stubRenderer{}, storage.NewSignedURLSigner("secret", time.Hour), NewMetricsService(),
		VerificationConfig{Enabled: true, URLPrefix: "/v", RetainFor: time.Hour, CleanupInterval: 5 * time.Millisecond}, zap.NewNop())

	lapsed := svc.Issue(context.Background(), verifiedRequest())
	fresh := verifiedRequest()
	fresh.ID = "req-2"
	current := svc.Issue(context.Background(), fresh)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "certificates", "req-1.pdf"), old, old))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartCleanup(ctx)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "certificates", "req-1.pdf"))
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)

	_, err = svc.Open(context.Background(), strings.TrimPrefix(lapsed.DownloadURL, "/v/"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	file, err := svc.Open(context.Background(), strings.TrimPrefix(current.DownloadURL, "/v/"))
	require.NoError(t, err)
	assert.Equal(t, current.CertificateID+".pdf", file.Filename)
}

func TestVerificationServiceDropsUnsignedDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	svc := NewVerificationService(store, &stubRenderer{}, storage.NewSignedURLSigner("", time.Hour), nil,
		VerificationConfig{Enabled: true}, zap.NewNop())

	v := svc.Issue(context.Background(), verifiedRequest())
	assert.Empty(t, v.DownloadURL)
	_, err = os.Stat(filepath.Join(dir, "certificates", "req-1.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestVerificationServiceCleanupSkipsObjectStorage(t *testing.T) {
	svc := NewVerificationService(readOnlyStorage{}, &stubRenderer{}, storage.NewSignedURLSigner("secret", time.Hour), nil,
		VerificationConfig{Enabled: true, RetainFor: time.Hour, CleanupInterval: time.Millisecond}, zap.NewNop())
	assert.Zero(t, svc.cleanupExpired())
}

type readOnlyStorage struct{}

func (readOnlyStorage) Save(name string, _ []byte) (string, error) { return name, nil }
func (readOnlyStorage) Read(string) ([]byte, error)                { return nil, os.ErrNotExist }

func TestVerificationServiceDisabled(t *testing.T) {
	svc, renderer := newVerificationFixture(t, false, time.Hour)

	v := svc.Issue(context.Background(), verifiedRequest())
	assert.Empty(t, v.DownloadURL)
	assert.Empty(t, renderer.last.CertificateID)

	_, err := svc.Open(context.Background(), "anything")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
