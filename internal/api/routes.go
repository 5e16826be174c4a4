// Package api exposes the agent's HTTP surface: workload cache lookups,
// the canonical manifest, and manifest validation.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WhizardTelemetry/eBPFConductor/internal/auth"
	"github.com/WhizardTelemetry/eBPFConductor/internal/cache"
	"github.com/WhizardTelemetry/eBPFConductor/internal/config"
)

// RegisterRoutes registers all /api/v1 routes.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, c *cache.Cache) {
	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/token", tokenHandler(cfg))
	}

	workloads := api.Group("/workloads")
	workloads.Use(auth.Middleware(cfg))
	{
		workloads.GET("", listWorkloadsHandler(c))
		workloads.GET("/by-ip/:ip", lookupWorkloadHandler(c))
	}

	rbacGroup := api.Group("/rbac")
	rbacGroup.Use(auth.Middleware(cfg))
	{
		rbacGroup.GET("/manifest", manifestHandler())
		rbacGroup.POST("/validate", validateHandler())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
