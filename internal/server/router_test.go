package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/nitj-alumni/alumni-erp-api/internal/handler"
	internalmiddleware "github.com/nitj-alumni/alumni-erp-api/internal/middleware"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/repository"
	"github.com/nitj-alumni/alumni-erp-api/internal/service"
	"github.com/nitj-alumni/alumni-erp-api/pkg/config"
)

type userStore struct {
	users []*models.User
}

func (s *userStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *userStore) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *userStore) Create(_ context.Context, user *models.User) error {
	s.users = append(s.users, user)
	return nil
}

func newTestRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	store := &userStore{users: []*models.User{
		{ID: "u-alumni", Name: "Asha", Email: "asha@example.com", PasswordHash: string(hash), Role: models.RoleAlumni, Branch: models.BranchCSE},
	}}
	auth := service.NewAuthService(store, nil, zap.NewNop(), service.AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour})
	metrics := service.NewMetricsService()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return NewRouter(cfg, Deps{
		Metrics:       metrics,
		Tokens:        auth,
		SubmitLimiter: internalmiddleware.NewRateLimiter(ctx, rate.Every(time.Hour), 1),
		Auth:          handler.NewAuthHandler(auth),
		Requests:      handler.NewRequestHandler(nil, nil, nil),
		Verification:  handler.NewVerificationHandler(service.NewVerificationService(nil, nil, nil, metrics, service.VerificationConfig{}, nil)),
		Observe:       handler.NewMetricsHandler(metrics, nil),
	})
}

func do(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router http.Handler, prefix string) string {
	t.Helper()
	rec := do(router, http.MethodPost, prefix+"/auth/login", "", `{"email":"asha@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data.Token
}

func TestRouterPublicAndAuthenticatedRoutes(t *testing.T) {
	router := newTestRouter(t, &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api"})

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/ready", "", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/docs/index.html", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/api/auth/me", "", "").Code)

	token := login(t, router, "/api")
	rec := do(router, http.MethodGet, "/api/auth/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"branch":"CSE"`)

	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/requests/admin-requests", token, "").Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodPut, "/api/requests/r1/status", token, `{"status":"approved"}`).Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/metrics/summary", token, "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/verifications/anything", "", "").Code)

	metrics := do(router, http.MethodGet, "/metrics", "", "")
	assert.Contains(t, metrics.Body.String(), `path="/api/auth/me"`)
}

func TestRouterRateLimitsSubmit(t *testing.T) {
	router := newTestRouter(t, &config.Config{Env: config.EnvDevelopment})
	token := login(t, router, "")

	// the first call spends the only token and fails validation on the malformed body
	first := do(router, http.MethodPost, "/requests/submit", token, `{`)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := do(router, http.MethodPost, "/requests/submit", token, `{`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	router := newTestRouter(t, &config.Config{Env: config.EnvProduction})
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/docs/index.html", "", "").Code)
}
