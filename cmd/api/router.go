package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/nishant-gupta/smartkosh-sub000/pkg/middleware"
	"github.com/nishant-gupta/smartkosh-sub000/pkg/observability"
)

// SetupRouter configures all routes and returns the HTTP handler.
func SetupRouter(deps *Dependencies) http.Handler {
	jwtSecret := []byte(deps.Config.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		deps.Logger.Warn("JWT secret is empty; authentication middleware will reject requests")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	tracer := otel.GetTracerProvider().Tracer("smartkosh/api")

	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(tracer),
		middleware.Recovery(deps.Logger),
		middleware.Logger(deps.Logger),
		observability.MetricsMiddleware(),
	)

	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		engine.Use(middleware.RateLimit(limiter))
	}

	registerAPIRoutes(engine, deps, jwtSecret)
	registerUtilityRoutes(engine, deps)

	return cors.New(corsOptions()).Handler(engine)
}

// corsOptions allows any origin without credentials. Auth rides the
// Authorization header, which is not a CORS credential, so the wildcard
// stays valid in browsers.
func corsOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{"*"}, // Narrow to specific origins in production.
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         7200, // Cache preflights for 2 hours
	}
}

// registerAPIRoutes registers the authenticated statement import endpoints.
func registerAPIRoutes(engine *gin.Engine, deps *Dependencies, jwtSecret []byte) {
	v1 := engine.Group("/api/v1")
	v1.Use(middleware.Auth(jwtSecret))

	v1.POST("/statements/upload", deps.StatementHandler.Upload)
	v1.GET("/statements/jobs", deps.StatementHandler.GetJobs)
	v1.GET("/notifications", deps.StatementHandler.GetNotifications)

	deps.Logger.Info("registered statement import routes", "prefix", "/api/v1")
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(engine *gin.Engine, deps *Dependencies) {
	engine.GET("/health", func(c *gin.Context) {
		if err := deps.DB.Health(); err != nil {
			c.String(http.StatusServiceUnavailable, "database unhealthy")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	deps.Logger.Info("registered health check", "path", "/health")

	engine.GET("/ready", func(c *gin.Context) {
		c.String(http.StatusOK, "ready")
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	if deps.Config.Observability.MetricsEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
