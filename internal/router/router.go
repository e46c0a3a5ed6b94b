package router

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"x402-backend/internal/handlers"
	"x402-backend/internal/middleware"
)

// corsMiddleware allows browser clients to reach both services. Allowed
// origins come from CORS_ALLOWED_ORIGINS (comma-separated); unset means all.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed := "*"
		origin := c.GetHeader("Origin")

		if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
			allowed = ""
			for _, o := range strings.Split(envOrigins, ",") {
				if strings.TrimSpace(o) == origin {
					allowed = origin
					break
				}
			}
		}

		if allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Payment")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestLogger(), corsMiddleware())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return engine
}

// NewFacilitatorRouter wires the facilitator's HTTP surface.
func NewFacilitatorRouter(h *handlers.FacilitatorHandler) *gin.Engine {
	engine := newEngine()
	engine.GET("/health", h.Health)
	engine.POST("/verify", h.Verify)
	engine.POST("/settle", h.Settle)
	return engine
}

// NewResourceRouter wires the resource server's HTTP surface.
func NewResourceRouter(h *handlers.ResourceHandler) *gin.Engine {
	engine := newEngine()
	api := engine.Group("/api")
	api.GET("/health", h.Health)
	api.GET("/free", h.Free)
	api.GET("/paid", h.Paid)
	return engine
}
