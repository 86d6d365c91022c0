package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/nitj-alumni/alumni-erp-api/api/swagger"
	"github.com/nitj-alumni/alumni-erp-api/internal/handler"
	internalmiddleware "github.com/nitj-alumni/alumni-erp-api/internal/middleware"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/service"
	"github.com/nitj-alumni/alumni-erp-api/pkg/config"
	"github.com/nitj-alumni/alumni-erp-api/pkg/logger"
	corsmiddleware "github.com/nitj-alumni/alumni-erp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/nitj-alumni/alumni-erp-api/pkg/middleware/requestid"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Logger        *zap.Logger
	Metrics       *service.MetricsService
	Tokens        internalmiddleware.TokenValidator
	SubmitLimiter *internalmiddleware.RateLimiter

	Auth         *handler.AuthHandler
	Requests     *handler.RequestHandler
	Verification *handler.VerificationHandler
	Observe      *handler.MetricsHandler
}

// NewRouter builds the gin engine serving the HTTP API.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if cfg.Tracing.Endpoint != "" {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.Metrics))

	r.GET("/health", deps.Observe.Health)
	r.GET("/ready", deps.Observe.Ready)
	r.GET("/metrics", deps.Observe.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	auth := internalmiddleware.JWT(deps.Tokens)
	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", deps.Auth.Register)
	authGroup.POST("/login", deps.Auth.Login)
	authGroup.GET("/me", auth, deps.Auth.Me)

	requests := api.Group("/requests", auth)
	submit := []gin.HandlerFunc{}
	if deps.SubmitLimiter != nil {
		submit = append(submit, deps.SubmitLimiter.Middleware())
	}
	requests.POST("/submit", append(submit, deps.Requests.Submit)...)

	review := requests.Group("", adminOnly)
	review.GET("/admin-requests", deps.Requests.ListAssigned)
	review.GET("/admin-requests/export", deps.Requests.Export)
	review.GET("/:id", deps.Requests.Detail)
	review.PUT("/:id/status", deps.Requests.UpdateStatus)

	api.GET("/verifications/:token", deps.Verification.Download)
	api.GET("/metrics/summary", auth, adminOnly, deps.Observe.Summary)

	return r
}
