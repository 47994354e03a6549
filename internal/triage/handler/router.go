package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	CORSOrigins  []string
	RateLimitRPS int             // 0 disables per-IP limiting
	Done         <-chan struct{} // stops background cleanup
}

// NewRouter builds the Gin engine with the middleware chain, health and
// metrics endpoints, and every handler mounted under /api/v1.
func NewRouter(cfg RouterConfig, logger *zap.Logger, triage *TriageHandler, admin *AdminHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if len(cfg.CORSOrigins) > 0 {
		router.Use(CORS(cfg.CORSOrigins))
	}
	router.Use(SecurityHeaders())
	router.Use(BodyLimit(MaxBodyBytes))
	if cfg.RateLimitRPS > 0 {
		router.Use(RateLimiter(cfg.RateLimitRPS, cfg.RateLimitRPS*2, cfg.Done))
	}
	router.Use(PrometheusMiddleware())
	router.Use(RequestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", MetricsHandler())

	v1 := router.Group("/api/v1")
	triage.Register(v1)
	if admin != nil {
		admin.Register(v1)
	}
	return router
}
